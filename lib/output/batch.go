//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package output

import "git.sr.ht/~vejnar/Pesca/lib/mapping"

// Batch holds the records of one chunk. Records are reused between chunks.
type Batch struct {
	ChunkID    uint64
	Records    []mapping.Record
	LastRecord int
}

func NewBatch(size int) *Batch {
	b := &Batch{Records: make([]mapping.Record, size)}
	return b
}

func (b *Batch) Grow() {
	osize := len(b.Records)
	nsize := max(int(float64(osize)*1.5), osize+1)
	b.Records = append(b.Records, make([]mapping.Record, nsize-osize)...)
}

// Next returns the next free record.
func (b *Batch) Next() *mapping.Record {
	if b.LastRecord >= len(b.Records) {
		b.Grow()
	}
	rec := &b.Records[b.LastRecord]
	b.LastRecord++
	return rec
}

// Filled returns the records in use.
func (b *Batch) Filled() []mapping.Record { return b.Records[:b.LastRecord] }

func (b *Batch) Reset() {
	b.ChunkID = 0
	b.LastRecord = 0
}
