//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package eqclass interns sets of (reference, orientation) pairs into equivalence classes.
package eqclass

import (
	"encoding/binary"
	"io"
	"slices"
	"unsafe"

	"github.com/RoaringBitmap/roaring"
	"github.com/zeebo/wyhash"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
)

// Unmapped is the class id of reads without placement.
const Unmapped = ^uint32(0)

const internSeed = 0x9e3779b97f4a7c15

// Pair is a reference id and an orientation encoded as ref<<1 | reverse.
type Pair uint32

func NewPair(ref uint32, reverse bool) Pair {
	p := Pair(ref << 1)
	if reverse {
		p |= 1
	}
	return p
}

func (p Pair) Ref() uint32 { return uint32(p) >> 1 }
func (p Pair) Reverse() bool { return p&1 == 1 }
func (p Pair) Flip() Pair { return p ^ 1 }

// Canonical sorts and deduplicates pairs in place.
func Canonical(pairs []Pair) []Pair {
	slices.Sort(pairs)
	return slices.Compact(pairs)
}

// Collector accumulates pairs; Pairs returns them in canonical order.
type Collector struct {
	bm *roaring.Bitmap
}

func NewCollector() *Collector {
	return &Collector{bm: roaring.New()}
}

func (c *Collector) Add(p Pair) { c.bm.Add(uint32(p)) }

func (c *Collector) Contains(p Pair) bool { return c.bm.Contains(uint32(p)) }

func (c *Collector) Len() int { return int(c.bm.GetCardinality()) }

func (c *Collector) Reset() { c.bm.Clear() }

// Pairs appends the collected pairs in ascending order to dst.
func (c *Collector) Pairs(dst []Pair) []Pair {
	it := c.bm.Iterator()
	for it.HasNext() {
		dst = append(dst, Pair(it.Next()))
	}
	return dst
}

// Table stores canonical classes contiguously. Ids are assigned in intern order.
type Table struct {
	offsets []uint32
	pairs   []Pair
	index   map[uint64][]uint32
}

func NewTable() *Table {
	return &Table{offsets: []uint32{0}, index: make(map[uint64][]uint32)}
}

func hashPairs(canon []Pair) uint64 {
	if len(canon) == 0 {
		return wyhash.Hash(nil, internSeed)
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&canon[0])), len(canon)*4)
	return wyhash.Hash(b, internSeed)
}

// Len returns the number of classes.
func (t *Table) Len() int { return len(t.offsets) - 1 }

// Class returns the pairs of class id. The slice must not be modified.
func (t *Table) Class(id uint32) []Pair {
	return t.pairs[t.offsets[id]:t.offsets[id+1]]
}

// Lookup returns the id of the canonical set canon.
func (t *Table) Lookup(canon []Pair) (uint32, bool) {
	for _, id := range t.index[hashPairs(canon)] {
		if slices.Equal(t.Class(id), canon) {
			return id, true
		}
	}
	return 0, false
}

// Intern returns the id of canon, adding it if needed.
func (t *Table) Intern(canon []Pair) uint32 {
	h := hashPairs(canon)
	for _, id := range t.index[h] {
		if slices.Equal(t.Class(id), canon) {
			return id
		}
	}
	id := uint32(t.Len())
	t.pairs = append(t.pairs, canon...)
	t.offsets = append(t.offsets, uint32(len(t.pairs)))
	t.index[h] = append(t.index[h], id)
	return id
}

func (t *Table) rebuildIndex() {
	t.index = make(map[uint64][]uint32, t.Len())
	for id := uint32(0); id < uint32(t.Len()); id++ {
		h := hashPairs(t.Class(id))
		t.index[h] = append(t.index[h], id)
	}
}

// WriteTable writes t as u32 class count, u32 pair count, offsets and pairs (little-endian).
func WriteTable(w io.Writer, t *Table) error {
	for _, v := range []interface{}{uint32(t.Len()), uint32(len(t.pairs)), t.offsets, t.pairs} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fault.IO(err, "writing classes")
		}
	}
	return nil
}

// ReadTable reads a table written by WriteTable.
func ReadTable(r io.Reader) (*Table, error) {
	var nclass, npair uint32
	if err := binary.Read(r, binary.LittleEndian, &nclass); err != nil {
		return nil, fault.Wrap(fault.KindIndex, err, "reading class count")
	}
	if err := binary.Read(r, binary.LittleEndian, &npair); err != nil {
		return nil, fault.Wrap(fault.KindIndex, err, "reading pair count")
	}
	t := &Table{offsets: make([]uint32, nclass+1), pairs: make([]Pair, npair)}
	if err := binary.Read(r, binary.LittleEndian, t.offsets); err != nil {
		return nil, fault.Wrap(fault.KindIndex, err, "reading class offsets")
	}
	if err := binary.Read(r, binary.LittleEndian, t.pairs); err != nil {
		return nil, fault.Wrap(fault.KindIndex, err, "reading class pairs")
	}
	for i := 1; i < len(t.offsets); i++ {
		if t.offsets[i] < t.offsets[i-1] || t.offsets[i] > npair {
			return nil, fault.New(fault.KindIndex, "invalid offset for class %d", i-1)
		}
	}
	if t.offsets[0] != 0 || t.offsets[nclass] != npair {
		return nil, fault.New(fault.KindIndex, "class offsets do not cover %d pairs", npair)
	}
	t.rebuildIndex()
	return t, nil
}
