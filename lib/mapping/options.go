//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package mapping

import (
	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/geometry"
)

const (
	DefaultMaxECCard         = 256
	DefaultMaxHitOcc         = 256
	DefaultMaxHitOccRecover  = 1024
	DefaultMaxReadOcc        = 2500
	DefaultMaxFragmentLength = 1000
)

type Mode uint8

const (
	ModeBulk Mode = iota
	ModeSingleCell
)

func (m Mode) String() string {
	if m == ModeSingleCell {
		return "single-cell"
	}
	return "bulk"
}

// Skipping selects how k-mers following a hit are queried.
type Skipping uint8

const (
	// SkipPermissive extends hits along their unitig and resumes querying after a mismatch
	SkipPermissive Skipping = iota
	// SkipStrict queries every k-mer
	SkipStrict
)

func (s Skipping) String() string {
	if s == SkipStrict {
		return "strict"
	}
	return "permissive"
}

func ParseSkipping(s string) (Skipping, error) {
	switch s {
	case "permissive", "":
		return SkipPermissive, nil
	case "strict":
		return SkipStrict, nil
	}
	return SkipPermissive, fault.Config("unknown skipping strategy %q (permissive or strict)", s)
}

type Options struct {
	Mode              Mode
	Geometry          *geometry.Geometry
	Skipping          Skipping
	StructConstraints bool
	IgnoreAmbigHits   bool
	NoPoison          bool
	MaxECCard         int
	MaxHitOcc         int
	MaxHitOccRecover  int
	MaxReadOcc        int
	MaxFragmentLength int

	// KeepSequences copies the biological sequences and qualities into records
	KeepSequences bool
}

func DefaultOptions() Options {
	return Options{
		MaxECCard:         DefaultMaxECCard,
		MaxHitOcc:         DefaultMaxHitOcc,
		MaxHitOccRecover:  DefaultMaxHitOccRecover,
		MaxReadOcc:        DefaultMaxReadOcc,
		MaxFragmentLength: DefaultMaxFragmentLength,
	}
}

func (o *Options) Check() error {
	if o.Mode == ModeSingleCell && o.Geometry == nil {
		return fault.Config("single-cell mapping requires a geometry")
	}
	if o.MaxECCard < 1 {
		return fault.Config("max_ec_card must be positive, got %d", o.MaxECCard)
	}
	if o.MaxHitOcc < 1 {
		return fault.Config("max_hit_occ must be positive, got %d", o.MaxHitOcc)
	}
	if o.MaxHitOccRecover < o.MaxHitOcc {
		return fault.Config("max_hit_occ_recover (%d) must be at least max_hit_occ (%d)", o.MaxHitOccRecover, o.MaxHitOcc)
	}
	if o.MaxReadOcc < 1 {
		return fault.Config("max_read_occ must be positive, got %d", o.MaxReadOcc)
	}
	if o.MaxFragmentLength < 1 {
		return fault.Config("max_fragment_length must be positive, got %d", o.MaxFragmentLength)
	}
	return nil
}
