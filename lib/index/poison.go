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
	"slices"

	"github.com/bits-and-blooms/bloom/v3"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/kmer"
)

const poisonFalsePositiveRate = 0.01

// poisonTable is the sorted set of decoy k-mers absent from the graph, behind a Bloom filter.
type poisonTable struct {
	kmers  []uint64
	filter *bloom.BloomFilter
}

func poisonKey(cn kmer.Kmer) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(cn))
	return b[:]
}

func newPoisonTable(kmers []uint64) *poisonTable {
	slices.Sort(kmers)
	kmers = slices.Compact(kmers)
	n := uint(len(kmers))
	if n == 0 {
		n = 1
	}
	t := &poisonTable{kmers: kmers, filter: bloom.NewWithEstimates(n, poisonFalsePositiveRate)}
	for _, y := range kmers {
		t.filter.Add(poisonKey(kmer.Kmer(y)))
	}
	return t
}

func (t *poisonTable) Len() int { return len(t.kmers) }

// Contains reports whether the canonical k-mer cn is poison.
func (t *poisonTable) Contains(cn kmer.Kmer) bool {
	if !t.filter.Test(poisonKey(cn)) {
		return false
	}
	_, found := slices.BinarySearch(t.kmers, uint64(cn))
	return found
}

// Payload: u64 count, sorted k-mers, serialized Bloom filter.
func (t *poisonTable) write(path string) error {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(len(t.kmers)))
	binary.Write(&buf, binary.LittleEndian, t.kmers)
	if _, err := t.filter.WriteTo(&buf); err != nil {
		return fault.Wrap(fault.KindFatal, err, "encoding poison filter")
	}
	return writeFrame(path, magicPoison, buf.Bytes(), false)
}

func readPoison(path string) (*poisonTable, error) {
	payload, err := readFrame(path, magicPoison)
	if err != nil {
		return nil, err
	}
	d := &decoder{b: payload}
	n := d.u64()
	if d.err || n > uint64(len(d.b)/8) {
		return nil, fault.New(fault.KindIndex, "%s: truncated poison table", path)
	}
	t := &poisonTable{kmers: make([]uint64, n), filter: &bloom.BloomFilter{}}
	for i := range t.kmers {
		t.kmers[i] = d.u64()
	}
	if _, err := t.filter.ReadFrom(bytes.NewReader(d.b)); err != nil {
		return nil, fault.Wrap(fault.KindIndex, err, "%s: poison filter", path)
	}
	return t, nil
}
