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
	"git.sr.ht/~vejnar/Pesca/lib/fault"
)

// Unitig table payload: u32 count, then per unitig u32 length, sequence,
// u32 occurrence count and occurrences (u32 reference, u32 start, i8 strand).
func writeUnitigs(path string, unitigs []cdbg.Unitig) error {
	var buf bytes.Buffer
	var w [9]byte
	binary.LittleEndian.PutUint32(w[:4], uint32(len(unitigs)))
	buf.Write(w[:4])
	for _, u := range unitigs {
		binary.LittleEndian.PutUint32(w[:4], uint32(len(u.Seq)))
		buf.Write(w[:4])
		buf.Write(u.Seq)
		binary.LittleEndian.PutUint32(w[:4], uint32(len(u.Occs)))
		buf.Write(w[:4])
		for _, o := range u.Occs {
			binary.LittleEndian.PutUint32(w[:4], o.Ref)
			binary.LittleEndian.PutUint32(w[4:8], uint32(o.Start))
			w[8] = uint8(o.Strand)
			buf.Write(w[:9])
		}
	}
	return writeFrame(path, magicUnitigs, buf.Bytes(), true)
}

func readUnitigs(path string) ([]cdbg.Unitig, error) {
	payload, err := readFrame(path, magicUnitigs)
	if err != nil {
		return nil, err
	}
	d := &decoder{b: payload}
	n := d.u32()
	if d.err || int(n) > len(payload) {
		return nil, fault.New(fault.KindIndex, "%s: truncated unitig table", path)
	}
	unitigs := make([]cdbg.Unitig, n)
	for i := range unitigs {
		u := &unitigs[i]
		u.Seq = d.take(int(d.u32()))
		nocc := int(d.u32())
		if d.err || nocc*9 > len(d.b) {
			return nil, fault.New(fault.KindIndex, "%s: truncated unitig %d", path, i)
		}
		u.Occs = make([]cdbg.Occurrence, nocc)
		for j := range u.Occs {
			u.Occs[j] = cdbg.Occurrence{Ref: d.u32(), Start: int(d.u32()), Strand: int8(d.u8())}
		}
	}
	if d.err {
		return nil, fault.New(fault.KindIndex, "%s: truncated unitig table", path)
	}
	return unitigs, nil
}
