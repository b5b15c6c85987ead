//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package index builds, persists and queries the minimizer index of a compacted de Bruijn graph.
package index

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"git.sr.ht/~vejnar/Pesca/lib/cdbg"
	"git.sr.ht/~vejnar/Pesca/lib/eqclass"
	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/kmer"
)

// Hit locates a k-mer in a unitig. Reverse is set when the k-mer is the reverse complement of the unitig sequence at Pos.
type Hit struct {
	Unitig  uint32
	Pos     int
	Reverse bool
}

// Index is a read-only minimizer index, safe for concurrent use.
type Index struct {
	Info    Info
	Refs    []cdbg.Reference
	Unitigs []cdbg.Unitig

	scorer      kmer.Scorer
	mins        *minimizerTable
	classes     *eqclass.Table
	unitigClass []uint32
	poison      *poisonTable
}

func newIndex(info Info, refs []cdbg.Reference, unitigs []cdbg.Unitig, mins *minimizerTable) *Index {
	return &Index{
		Info:    info,
		Refs:    refs,
		Unitigs: unitigs,
		scorer:  kmer.NewScorer(info.K, info.M, uint64(info.Seed)),
		mins:    mins,
	}
}

// Load opens the index in dir.
func Load(dir string, opt LoadOptions) (*Index, error) {
	if st, err := os.Stat(dir); err != nil {
		return nil, fault.Wrap(fault.KindIndex, err, "opening index")
	} else if !st.IsDir() {
		return nil, fault.New(fault.KindIndex, "index %s is not a directory", dir)
	}
	info, err := ReadInfo(filepath.Join(dir, FileInfo))
	if err != nil {
		return nil, err
	}
	if info.K < 1 || info.K > kmer.MaxK || info.M < 1 || info.M > info.K {
		return nil, fault.New(fault.KindIndex, "invalid k=%d m=%d in index info", info.K, info.M)
	}
	if _, err := uuid.Parse(info.BuildID); err != nil {
		return nil, fault.Wrap(fault.KindIndex, err, "invalid build id")
	}
	refs, err := ReadRefInfo(filepath.Join(dir, FileRefInfo))
	if err != nil {
		return nil, err
	}
	unitigs, err := readUnitigs(filepath.Join(dir, FileUnitigs))
	if err != nil {
		return nil, err
	}
	for u := range unitigs {
		if len(unitigs[u].Seq) < info.K {
			return nil, fault.New(fault.KindIndex, "unitig %d shorter than k", u)
		}
		for _, o := range unitigs[u].Occs {
			if int(o.Ref) >= len(refs) {
				return nil, fault.New(fault.KindIndex, "unitig %d occurs on unknown reference %d", u, o.Ref)
			}
		}
	}
	mins, err := readMinimizers(filepath.Join(dir, FileMinimizers), !opt.NoMmap)
	if err != nil {
		return nil, err
	}
	idx := newIndex(*info, refs, unitigs, mins)
	if !opt.IgnoreClasses {
		if !info.ECTable {
			idx.Close()
			return nil, fault.New(fault.KindIndex, "index built without class table")
		}
		idx.classes, idx.unitigClass, err = ReadClasses(filepath.Join(dir, FileClasses))
		if err != nil {
			idx.Close()
			return nil, err
		}
		if len(idx.unitigClass) != len(unitigs) {
			idx.Close()
			return nil, fault.New(fault.KindIndex, "class table covers %d unitigs, index has %d", len(idx.unitigClass), len(unitigs))
		}
	}
	if info.PoisonTable && !opt.NoPoison {
		if idx.poison, err = readPoison(filepath.Join(dir, FilePoison)); err != nil {
			idx.Close()
			return nil, err
		}
	}
	return idx, nil
}

// K returns the k-mer length.
func (idx *Index) K() int { return idx.Info.K }

// BuildID returns the 16-byte build id of the index.
func (idx *Index) BuildID() uuid.UUID {
	id, _ := uuid.Parse(idx.Info.BuildID)
	return id
}

// Lookup returns the unique position of the k-mer fwd (reverse complement rc) in the graph.
func (idx *Index) Lookup(fwd, rc kmer.Kmer) (Hit, bool) {
	k, m := idx.scorer.K(), idx.scorer.M()
	cn, _ := kmer.Canonical(fwd, rc)
	mz := idx.scorer.Of(cn)
	lo, hi := idx.mins.candidates(mz.Score, uint64(mz.Mmer))
	for i := lo; i < hi; i++ {
		val := idx.mins.vals[i]
		u, q := uint32(val>>32), int(uint32(val))
		seq := idx.Unitigs[u].Seq
		for _, p := range [2]int{q - mz.Offset, q - (k - m - mz.Offset)} {
			if p < 0 || p+k > len(seq) {
				continue
			}
			y, _ := kmer.Encode(seq[p : p+k])
			if y == fwd {
				return Hit{Unitig: u, Pos: p, Reverse: false}, true
			} else if y == rc {
				return Hit{Unitig: u, Pos: p, Reverse: true}, true
			}
		}
	}
	return Hit{}, false
}

// Occurrences returns the occurrences of unitig u.
func (idx *Index) Occurrences(u uint32) []cdbg.Occurrence { return idx.Unitigs[u].Occs }

// HasClasses reports whether the class table is loaded.
func (idx *Index) HasClasses() bool { return idx.classes != nil }

// Classes returns the class table, or nil.
func (idx *Index) Classes() *eqclass.Table { return idx.classes }

// UnitigClass returns the class id of unitig u. The class table must be loaded.
func (idx *Index) UnitigClass(u uint32) uint32 { return idx.unitigClass[u] }

// UnitigCardinality returns the number of (reference, orientation) pairs of unitig u.
func (idx *Index) UnitigCardinality(u uint32) int {
	if idx.classes != nil {
		return len(idx.classes.Class(idx.unitigClass[u]))
	}
	return len(idx.Unitigs[u].Occs)
}

// Class returns the pairs of class id.
func (idx *Index) Class(id uint32) []eqclass.Pair { return idx.classes.Class(id) }

// HasPoison reports whether the poison table is loaded.
func (idx *Index) HasPoison() bool { return idx.poison != nil }

// IsPoison reports whether the canonical k-mer cn only occurs in decoys.
func (idx *Index) IsPoison(cn kmer.Kmer) bool {
	return idx.poison != nil && idx.poison.Contains(cn)
}

// NumMinimizers returns the number of minimizer entries.
func (idx *Index) NumMinimizers() int { return idx.mins.Len() }

// Close unmaps the minimizer table.
func (idx *Index) Close() error {
	if idx.mins == nil {
		return nil
	}
	if err := idx.mins.close(); err != nil {
		return fault.IO(err, "unmapping minimizers")
	}
	return nil
}
