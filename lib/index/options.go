//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package index

import (
	"io"
	"runtime"

	"github.com/sirupsen/logrus"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/kmer"
)

const (
	MainVersion    = 1
	MinorVersion   = 0
	BuilderVersion = "0.1.0"

	DefaultK    = 31
	DefaultM    = 19
	DefaultSeed = 1
)

type BuildOptions struct {
	K                int
	M                int
	Seed             uint64
	Threads          int
	Overwrite        bool
	NoECTable        bool
	PolyAClipLength  int
	KeepIntermediate bool
	Log              logrus.FieldLogger
}

func DefaultBuildOptions() BuildOptions {
	return BuildOptions{K: DefaultK, M: DefaultM, Seed: DefaultSeed, Threads: runtime.NumCPU()}
}

// Check validates the options and sets a discarding logger if none is set.
func (o *BuildOptions) Check() error {
	if o.K < 3 || o.K > kmer.MaxK || o.K%2 == 0 {
		return fault.Config("k-mer length must be odd and within [3,%d], got %d", kmer.MaxK, o.K)
	}
	if o.M < 1 || o.M > o.K {
		return fault.Config("minimizer length must be within [1,k=%d], got %d", o.K, o.M)
	}
	if o.Threads < 1 {
		return fault.Config("number of workers must be at least 1, got %d", o.Threads)
	}
	if o.PolyAClipLength < 0 {
		return fault.Config("negative polyA clip length %d", o.PolyAClipLength)
	}
	if o.Log == nil {
		o.Log = discardLogger()
	}
	return nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// LoadOptions select the optional tables read by Load.
type LoadOptions struct {
	IgnoreClasses bool
	NoPoison      bool
	NoMmap        bool
}
