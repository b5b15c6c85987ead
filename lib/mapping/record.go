//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package mapping

import "git.sr.ht/~vejnar/Pesca/lib/eqclass"

type MateType uint8

const (
	MateNone MateType = iota
	MateSingle
	MateLeftOnly
	MateRightOnly
	MatePair
)

var mateNames = [...]string{"none", "single", "left_only", "right_only", "pair"}

func (m MateType) String() string {
	if int(m) < len(mateNames) {
		return mateNames[m]
	}
	return "unknown"
}

// Reason explains why a record is unmapped.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonNoHits
	ReasonTooShort
	ReasonEmptyBiological
	ReasonPoisoned
	ReasonTooManyMappings
	ReasonFieldTooLong
	NumReasons
)

var reasonNames = [...]string{"none", "no_hits", "too_short", "empty_biological", "poisoned", "too_many_mappings", "field_too_long"}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Placement is one kept chain. Mate is 1 or 2; Pos is the 0-based alignment start on the reference.
type Placement struct {
	Ref     uint32
	Reverse bool
	Pos     int
	Score   int
	Mate    uint8
	// Position of the other mate for joined pairs, -1 otherwise
	MatePos int
}

// Record is the mapping result of one fragment. Buffers are reused between fragments.
type Record struct {
	Name        []byte
	Class       uint32
	Mate        MateType
	Reason      Reason
	Barcode     []byte
	UMI         []byte
	Placements  []Placement
	Seq1, Qual1 []byte
	Seq2, Qual2 []byte
}

func (r *Record) Reset() {
	r.Name = r.Name[:0]
	r.Class = eqclass.Unmapped
	r.Mate = MateNone
	r.Reason = ReasonNone
	r.Barcode = r.Barcode[:0]
	r.UMI = r.UMI[:0]
	r.Placements = r.Placements[:0]
	r.Seq1, r.Qual1 = r.Seq1[:0], r.Qual1[:0]
	r.Seq2, r.Qual2 = r.Seq2[:0], r.Qual2[:0]
}

func (r *Record) Mapped() bool { return r.Class != eqclass.Unmapped }

func (r *Record) unmapped(reason Reason) {
	r.Class = eqclass.Unmapped
	r.Mate = MateNone
	r.Reason = reason
	r.Placements = r.Placements[:0]
}
