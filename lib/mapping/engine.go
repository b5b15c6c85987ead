//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package mapping maps reads to equivalence classes of references.
package mapping

import (
	"github.com/pkg/errors"

	"git.sr.ht/~vejnar/Pesca/lib/eqclass"
	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/geometry"
	"git.sr.ht/~vejnar/Pesca/lib/index"
	"git.sr.ht/~vejnar/Pesca/lib/kmer"
	"git.sr.ht/~vejnar/Pesca/lib/seqio"
)

// Engine maps fragments against one index. An Engine is not safe for
// concurrent use; each worker owns one. The index and resolver are shared.
type Engine struct {
	idx *index.Index
	res *eqclass.Resolver
	opt Options
	it  *kmer.Iterator

	mates  [2]*mateChains
	col    *eqclass.Collector
	pairs  []eqclass.Pair
	ext    geometry.Extracted
	trees  chainTrees
	joints []joint
}

func NewEngine(idx *index.Index, res *eqclass.Resolver, opt Options) (*Engine, error) {
	if idx == nil || res == nil {
		return nil, fault.Config("mapping engine requires an index and a class resolver")
	}
	if err := opt.Check(); err != nil {
		return nil, err
	}
	return &Engine{
		idx:   idx,
		res:   res,
		opt:   opt,
		it:    kmer.NewIterator(idx.K()),
		mates: [2]*mateChains{newMateChains(), newMateChains()},
		col:   eqclass.NewCollector(),
		trees: make(chainTrees),
	}, nil
}

func (e *Engine) Options() Options { return e.opt }

// Map fills rec with the mapping of f. Reads that cannot be mapped
// produce an unmapped record with its reason; Map never fails.
func (e *Engine) Map(f *seqio.Fragment, rec *Record) {
	rec.Reset()
	rec.Name = append(rec.Name, f.Name...)

	bio1, bio2 := f.Read1, f.Read2
	qual1, qual2 := f.Qual1, f.Qual2
	if e.opt.Mode == ModeSingleCell {
		err := e.opt.Geometry.Extract(f.Read1, f.Read2, &e.ext)
		rec.Barcode = append(rec.Barcode, e.ext.Barcode...)
		rec.UMI = append(rec.UMI, e.ext.UMI...)
		if err != nil {
			switch {
			case errors.Is(err, geometry.ErrReadTooShort):
				rec.unmapped(ReasonTooShort)
			case errors.Is(err, geometry.ErrFieldTooLong):
				rec.unmapped(ReasonFieldTooLong)
			default:
				rec.unmapped(ReasonEmptyBiological)
			}
			return
		}
		bio1, bio2 = e.ext.Bio[0], e.ext.Bio[1]
		qual1, qual2 = nil, nil
	}
	if e.opt.KeepSequences {
		rec.Seq1 = append(rec.Seq1, bio1...)
		rec.Qual1 = append(rec.Qual1, qual1...)
		rec.Seq2 = append(rec.Seq2, bio2...)
		rec.Qual2 = append(rec.Qual2, qual2...)
	}

	switch {
	case len(bio1) > 0 && len(bio2) > 0:
		e.mapPair(bio1, bio2, rec)
	case len(bio1) > 0:
		e.mapSingle(bio1, 1, rec)
	case len(bio2) > 0:
		e.mapSingle(bio2, 2, rec)
	default:
		rec.unmapped(ReasonEmptyBiological)
	}
}

func (e *Engine) mapSingle(seq []byte, mate uint8, rec *Record) {
	mc := e.mates[0]
	e.chain(seq, mc)
	if mc.poisoned {
		rec.unmapped(ReasonPoisoned)
		return
	}
	if len(mc.kept) == 0 {
		rec.unmapped(ReasonNoHits)
		return
	}
	e.resolveMate(mc, mate, MateSingle, rec)
}

// resolveMate resolves the kept chains of a single mate.
func (e *Engine) resolveMate(mc *mateChains, mate uint8, mt MateType, rec *Record) {
	if len(mc.kept) > e.opt.MaxReadOcc {
		rec.unmapped(ReasonTooManyMappings)
		return
	}
	e.col.Reset()
	for _, ic := range mc.kept {
		c := &mc.chains[ic]
		e.col.Add(c.pair)
		rec.Placements = append(rec.Placements, Placement{Ref: c.pair.Ref(), Reverse: c.pair.Reverse(), Pos: c.pos, Score: c.score, Mate: mate, MatePos: -1})
	}
	e.resolve(mt, rec)
}

func (e *Engine) resolve(mt MateType, rec *Record) {
	e.pairs = e.col.Pairs(e.pairs[:0])
	rec.Class = e.res.Resolve(e.pairs)
	rec.Mate = mt
	rec.Reason = ReasonNone
}
