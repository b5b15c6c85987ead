//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package index

import (
	"bytes"
	"encoding/binary"

	"git.sr.ht/~vejnar/Pesca/lib/cdbg"
	"git.sr.ht/~vejnar/Pesca/lib/eqclass"
	"git.sr.ht/~vejnar/Pesca/lib/fault"
)

// unitigPairs appends the (reference, orientation) pairs of occs to dst.
func unitigPairs(dst []eqclass.Pair, occs []cdbg.Occurrence) []eqclass.Pair {
	for _, o := range occs {
		dst = append(dst, eqclass.NewPair(o.Ref, o.Strand == -1))
	}
	return dst
}

// buildClasses interns the class of every unitig in unitig order.
func buildClasses(unitigs []cdbg.Unitig) (*eqclass.Table, []uint32) {
	t := eqclass.NewTable()
	unitigClass := make([]uint32, len(unitigs))
	var pairs []eqclass.Pair
	for u := range unitigs {
		pairs = eqclass.Canonical(unitigPairs(pairs[:0], unitigs[u].Occs))
		unitigClass[u] = t.Intern(pairs)
	}
	return t, unitigClass
}

// WriteClasses writes a class table followed by the class of every unitig (possibly none).
func WriteClasses(path string, t *eqclass.Table, unitigClass []uint32) error {
	var buf bytes.Buffer
	if err := eqclass.WriteTable(&buf, t); err != nil {
		return err
	}
	binary.Write(&buf, binary.LittleEndian, uint32(len(unitigClass)))
	binary.Write(&buf, binary.LittleEndian, unitigClass)
	return writeFrame(path, magicClasses, buf.Bytes(), true)
}

// ReadClasses reads a file written by WriteClasses.
func ReadClasses(path string) (*eqclass.Table, []uint32, error) {
	payload, err := readFrame(path, magicClasses)
	if err != nil {
		return nil, nil, err
	}
	r := bytes.NewReader(payload)
	t, err := eqclass.ReadTable(r)
	if err != nil {
		return nil, nil, err
	}
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, nil, fault.Wrap(fault.KindIndex, err, "%s: unitig classes", path)
	}
	if int(n) > r.Len()/4 {
		return nil, nil, fault.New(fault.KindIndex, "%s: truncated unitig classes", path)
	}
	unitigClass := make([]uint32, n)
	if err := binary.Read(r, binary.LittleEndian, unitigClass); err != nil {
		return nil, nil, fault.Wrap(fault.KindIndex, err, "%s: unitig classes", path)
	}
	for u, id := range unitigClass {
		if int(id) >= t.Len() {
			return nil, nil, fault.New(fault.KindIndex, "%s: unitig %d has unknown class %d", path, u, id)
		}
	}
	return t, unitigClass, nil
}
