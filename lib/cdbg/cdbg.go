//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package cdbg holds compacted colored de Bruijn graphs: unitigs and their reference occurrences.
package cdbg

import (
	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/kmer"
)

// Reference is an input sequence. Seq may be nil when only the name and length are known.
type Reference struct {
	ID     uint32
	Name   string
	Length int
	Seq    []byte
}

// Occurrence locates a whole unitig on a reference. Strand is 1 when the unitig
// reads forward on the reference and -1 when it reads as its reverse complement.
type Occurrence struct {
	Ref    uint32
	Start  int
	Strand int8
}

type Unitig struct {
	Seq  []byte
	Occs []Occurrence
}

// Graph is a unitig decomposition of references for k-mer length K. Unitig ids are slice indexes.
type Graph struct {
	K       int
	Refs    []Reference
	Unitigs []Unitig
}

// Compactor builds the unitig decomposition of references.
type Compactor interface {
	Compact(refs []Reference, k int) (*Graph, error)
}

// Check verifies the graph invariants needed by the index: unitigs of at least K
// ACGT bases and occurrences lying inside their reference.
func (g *Graph) Check() error {
	if g.K < 1 || g.K > kmer.MaxK {
		return fault.New(fault.KindIndex, "invalid graph k-mer length %d", g.K)
	}
	for i, u := range g.Unitigs {
		if len(u.Seq) < g.K {
			return fault.New(fault.KindIndex, "unitig %d shorter than k (%d < %d)", i, len(u.Seq), g.K)
		}
		for _, b := range u.Seq {
			if _, ok := kmer.Bits(b); !ok {
				return fault.New(fault.KindIndex, "unitig %d has non-ACGT base %q", i, b)
			}
		}
		for _, o := range u.Occs {
			if int(o.Ref) >= len(g.Refs) {
				return fault.New(fault.KindIndex, "unitig %d occurs on unknown reference %d", i, o.Ref)
			}
			if o.Start < 0 || o.Start+len(u.Seq) > g.Refs[o.Ref].Length {
				return fault.New(fault.KindIndex, "unitig %d occurrence [%d,%d) outside reference %s (length %d)", i, o.Start, o.Start+len(u.Seq), g.Refs[o.Ref].Name, g.Refs[o.Ref].Length)
			}
			if o.Strand != 1 && o.Strand != -1 {
				return fault.New(fault.KindIndex, "unitig %d occurrence with invalid strand %d", i, o.Strand)
			}
		}
	}
	return nil
}

// Spell rebuilds the sequence of reference ref from the unitig occurrences, with N in uncovered positions.
func (g *Graph) Spell(ref uint32) []byte {
	s := make([]byte, g.Refs[ref].Length)
	for i := range s {
		s[i] = 'N'
	}
	var rc []byte
	for _, u := range g.Unitigs {
		for _, o := range u.Occs {
			if o.Ref != ref {
				continue
			}
			if o.Strand == 1 {
				copy(s[o.Start:], u.Seq)
			} else {
				rc = kmer.ReverseComplementSeq(rc, u.Seq)
				copy(s[o.Start:], rc)
			}
		}
	}
	return s
}
