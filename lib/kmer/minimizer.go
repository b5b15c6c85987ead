//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package kmer

import (
	"encoding/binary"

	"github.com/zeebo/wyhash"
)

// Scorer orders canonical m-mers by a seeded hash.
type Scorer struct {
	k, m  int
	mmask Kmer
	seed  uint64
}

// Minimizer is the minimal-score canonical m-mer of a k-mer.
type Minimizer struct {
	Mmer   Kmer
	Score  uint64
	Offset int // start of the m-mer within the scanned k-mer
}

func NewScorer(k, m int, seed uint64) Scorer {
	return Scorer{k: k, m: m, mmask: Mask(m), seed: seed}
}

func (s Scorer) K() int { return s.k }
func (s Scorer) M() int { return s.m }

// Score hashes a canonical m-mer.
func (s Scorer) Score(mmer Kmer) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(mmer))
	return wyhash.Hash(buf[:], s.seed)
}

// Of returns the minimizer of the k-mer y. Ties on score go to the smallest m-mer, then the smallest offset.
// Callers pass the canonical k-mer so that a k-mer and its reverse complement share the same minimizer and offset.
func (s Scorer) Of(y Kmer) Minimizer {
	n := s.k - s.m
	best := Minimizer{Score: ^uint64(0), Offset: -1}
	for j := 0; j <= n; j++ {
		mm := (y >> (uint(n-j) * 2)) & s.mmask
		c, _ := Canonical(mm, ReverseComplement(mm, s.m))
		score := s.Score(c)
		if best.Offset < 0 || score < best.Score || (score == best.Score && c < best.Mmer) {
			best = Minimizer{Mmer: c, Score: score, Offset: j}
		}
	}
	return best
}
