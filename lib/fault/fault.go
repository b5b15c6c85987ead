//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package fault defines the error kinds shared by index building and mapping.
package fault

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindParse
	KindIO
	KindIndex
	KindMapping
	KindFatal
)

var kindNames = [...]string{"Error", "ConfigError", "ParseError", "IOError", "IndexError", "MappingError", "FatalError"}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is an error tagged with a Kind.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Kind() Kind    { return e.kind }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Cause() error  { return e.err }

// New returns a new error of kind.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{kind: kind, err: errors.Errorf(format, args...)}
}

// Wrap annotates err and tags it with kind. Wrap returns nil if err is nil.
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: errors.Wrapf(err, format, args...)}
}

// Config is a shortcut for New(KindConfig, ...).
func Config(format string, args ...interface{}) error {
	return New(KindConfig, format, args...)
}

// IO is a shortcut for Wrap(KindIO, ...).
func IO(err error, format string, args ...interface{}) error {
	return Wrap(KindIO, err, format, args...)
}

type kinder interface {
	Kind() Kind
}

// KindOf returns the kind of the first error in the chain of err reporting one.
func KindOf(err error) Kind {
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// Is reports whether err is of kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
