//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package kmer

// Iterator scans the valid k-mers of a sequence, updating the forward and
// reverse-complement encodings one base at a time. Non-ACGT bases restart the scan.
type Iterator struct {
	k     int
	mask  Kmer
	shift uint

	seq   []byte
	i     int // next base to consume
	valid int // consecutive valid bases before i
	pos   int
	fwd   Kmer
	rc    Kmer
}

func NewIterator(k int) *Iterator {
	return &Iterator{k: k, mask: Mask(k), shift: uint(k-1) * 2}
}

// K returns the k-mer length.
func (it *Iterator) K() int { return it.k }

// Reset starts scanning seq from its first base.
func (it *Iterator) Reset(seq []byte) {
	it.seq = seq
	it.Seek(0)
}

// Seek restarts the scan so that the next k-mer starts at pos or later.
func (it *Iterator) Seek(pos int) {
	it.i = pos
	it.valid = 0
	it.fwd, it.rc = 0, 0
}

// Next advances to the next valid k-mer.
func (it *Iterator) Next() bool {
	for it.i < len(it.seq) {
		ch := it.seq[it.i]
		it.i++
		b := asciiToBits[ch]
		if b == invalidBits {
			it.valid = 0
			continue
		}
		it.fwd = ((it.fwd << 2) | Kmer(b)) & it.mask
		it.rc = (it.rc >> 2) | (Kmer(asciiToCompBits[ch]) << it.shift)
		it.valid++
		if it.valid >= it.k {
			it.pos = it.i - it.k
			return true
		}
	}
	return false
}

// Pos returns the start of the current k-mer.
func (it *Iterator) Pos() int { return it.pos }

// Forward returns the current k-mer.
func (it *Iterator) Forward() Kmer { return it.fwd }

// Reverse returns the reverse complement of the current k-mer.
func (it *Iterator) Reverse() Kmer { return it.rc }

// Canonical returns the canonical form of the current k-mer and whether it is the forward one.
func (it *Iterator) Canonical() (Kmer, bool) {
	return Canonical(it.fwd, it.rc)
}
