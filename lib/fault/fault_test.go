//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package fault

import (
	"io"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"
)

type customError struct{}

func (customError) Error() string { return "custom" }
func (customError) Kind() Kind    { return KindParse }

func TestKindOf(t *testing.T) {
	c := qt.New(t)

	err := Wrap(KindIndex, io.ErrUnexpectedEOF, "reading %s", "x.ctab")
	c.Assert(KindOf(err), qt.Equals, KindIndex)
	c.Assert(err.Error(), qt.Equals, "reading x.ctab: unexpected EOF")
	c.Assert(errors.Is(err, io.ErrUnexpectedEOF), qt.IsTrue)

	// Outermost kind wins
	c.Assert(KindOf(Wrap(KindFatal, err, "worker 1")), qt.Equals, KindFatal)

	// Foreign types reporting a kind
	c.Assert(KindOf(errors.Wrap(customError{}, "geometry")), qt.Equals, KindParse)

	c.Assert(KindOf(io.EOF), qt.Equals, KindUnknown)
	c.Assert(Wrap(KindIO, nil, "nothing"), qt.IsNil)
	c.Assert(Is(nil, KindIO), qt.IsFalse)
	c.Assert(Is(Config("k=%d", 4), KindConfig), qt.IsTrue)
}

func TestKindString(t *testing.T) {
	c := qt.New(t)
	c.Assert(KindMapping.String(), qt.Equals, "MappingError")
	c.Assert(Kind(42).String(), qt.Equals, "Kind(42)")
}
