//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package geometry

import (
	"math"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
)

// MaxFieldLength is the longest barcode or UMI a record can hold.
const MaxFieldLength = math.MaxUint16

var (
	ErrReadTooShort    = fault.New(fault.KindMapping, "read shorter than geometry")
	ErrEmptyBiological = fault.New(fault.KindMapping, "empty biological sequence")
	ErrFieldTooLong    = fault.New(fault.KindMapping, "barcode or UMI longer than %d", MaxFieldLength)
)

// Extracted holds the fields of one read pair. Buffers are reused between calls.
type Extracted struct {
	Barcode []byte
	UMI     []byte
	Bio     [2][]byte
}

func (e *Extracted) Reset() {
	e.Barcode = e.Barcode[:0]
	e.UMI = e.UMI[:0]
	e.Bio[0] = e.Bio[0][:0]
	e.Bio[1] = e.Bio[1][:0]
}

// Extract splits reads r1 and r2 according to g. Fields of slots long enough are kept when another slot is too short.
// Barcode and UMI are dropped when one is longer than MaxFieldLength.
func (g *Geometry) Extract(r1, r2 []byte, e *Extracted) error {
	e.Reset()
	reads := [2][]byte{r1, r2}
	short := false
	for i, segs := range g.Slots {
		read := reads[i]
		if len(read) < g.MinLength(i+1) {
			short = true
			continue
		}
		pos := 0
		for _, seg := range segs {
			var part []byte
			if seg.Unbounded() {
				part = read[pos:]
				pos = len(read)
			} else {
				part = read[pos : pos+seg.Length]
				pos += seg.Length
			}
			switch seg.Tag {
			case TagBarcode:
				e.Barcode = append(e.Barcode, part...)
			case TagUMI:
				e.UMI = append(e.UMI, part...)
			case TagBio:
				e.Bio[i] = append(e.Bio[i], part...)
			case TagDiscard:
			}
		}
	}
	if short {
		return ErrReadTooShort
	}
	if len(e.Barcode) > MaxFieldLength || len(e.UMI) > MaxFieldLength {
		e.Barcode = e.Barcode[:0]
		e.UMI = e.UMI[:0]
		return ErrFieldTooLong
	}
	for _, slot := range g.BiologicalSlots() {
		if len(e.Bio[slot-1]) > 0 {
			return nil
		}
	}
	return ErrEmptyBiological
}
