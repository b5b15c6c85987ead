//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package mapping

import (
	"sort"

	"git.sr.ht/~vejnar/Pesca/lib/cmapper"
	"git.sr.ht/~vejnar/Pesca/lib/eqclass"
	"git.sr.ht/~vejnar/Pesca/lib/index"
	"git.sr.ht/~vejnar/Pesca/lib/kmer"
)

type seedHit struct {
	readPos int
	hit     index.Hit
}

type chainKey struct {
	pair eqclass.Pair
	diag int
}

// chain groups the projections of read k-mers on one reference and orientation
// (and one diagonal with structural constraints).
type chain struct {
	pair        eqclass.Pair
	pos         int
	score       int
	lastReadPos int
}

// mateChains is the chaining state of one read.
type mateChains struct {
	readLen  int
	hits     []seedHit
	primary  []seedHit
	ambig    []seedHit
	chains   []chain
	keys     map[chainKey]int
	best     int
	kept     []int
	poisoned bool
}

func newMateChains() *mateChains {
	return &mateChains{keys: make(map[chainKey]int)}
}

func (mc *mateChains) reset(readLen int) {
	mc.readLen = readLen
	mc.hits = mc.hits[:0]
	mc.primary = mc.primary[:0]
	mc.ambig = mc.ambig[:0]
	mc.chains = mc.chains[:0]
	clear(mc.keys)
	mc.best = 0
	mc.kept = mc.kept[:0]
	mc.poisoned = false
}

// collect queries the k-mers of seq and stores their hits.
func (e *Engine) collect(seq []byte, mc *mateChains) {
	k := e.idx.K()
	it := e.it
	it.Reset(seq)
	checkPoison := !e.opt.NoPoison && e.idx.HasPoison()
	for it.Next() {
		p := it.Pos()
		hit, ok := e.idx.Lookup(it.Forward(), it.Reverse())
		if !ok {
			if checkPoison {
				if cn, _ := it.Canonical(); e.idx.IsPoison(cn) {
					mc.poisoned = true
					return
				}
			}
			continue
		}
		mc.hits = append(mc.hits, seedHit{readPos: p, hit: hit})
		if e.opt.Skipping == SkipStrict {
			continue
		}
		// Extend along the unitig
		useq := e.idx.Unitigs[hit.Unitig].Seq
		q, up := p, hit.Pos
		for {
			next := q + k
			if next >= len(seq) {
				it.Seek(len(seq))
				break
			}
			var base byte
			nup := up + 1
			if hit.Reverse {
				nup = up - 1
				if nup < 0 {
					it.Seek(q + 1)
					break
				}
				base = kmer.Complement(useq[nup])
			} else {
				if nup+k > len(useq) {
					it.Seek(q + 1)
					break
				}
				base = useq[nup+k-1]
			}
			if seq[next] != base {
				it.Seek(next + 1)
				break
			}
			q, up = q+1, nup
			mc.hits = append(mc.hits, seedHit{readPos: q, hit: index.Hit{Unitig: hit.Unitig, Pos: up, Reverse: hit.Reverse}})
		}
	}
}

// project calls fn with the chain key and alignment start of every reference projection of h.
func (e *Engine) project(h seedHit, readLen int, fn func(key chainKey, start int)) {
	k := e.idx.K()
	u := &e.idx.Unitigs[h.hit.Unitig]
	cm := cmapper.New(u.Occs, len(u.Seq), k)
	for i := range u.Occs {
		ref, refPos, refReverse := cm.Unitig2Reference(i, h.hit.Pos, h.hit.Reverse)
		var diag, start int
		if refReverse {
			diag = refPos + h.readPos
			start = diag - readLen + k
		} else {
			diag = refPos - h.readPos
			start = diag
		}
		key := chainKey{pair: eqclass.NewPair(ref, refReverse)}
		if e.opt.StructConstraints {
			key.diag = diag
		}
		fn(key, start)
	}
}

func (mc *mateChains) add(key chainKey, start, readPos int, create bool) {
	ic, ok := mc.keys[key]
	if !ok {
		if !create {
			return
		}
		mc.keys[key] = len(mc.chains)
		mc.chains = append(mc.chains, chain{pair: key.pair, pos: start, score: 1, lastReadPos: readPos})
		return
	}
	c := &mc.chains[ic]
	if c.lastReadPos == readPos {
		return
	}
	c.lastReadPos = readPos
	c.score++
	if start < c.pos {
		c.pos = start
	}
}

// chain maps seq and selects its best chains.
func (e *Engine) chain(seq []byte, mc *mateChains) {
	mc.reset(len(seq))
	if len(seq) < e.idx.K() {
		return
	}
	e.collect(seq, mc)
	if mc.poisoned || len(mc.hits) == 0 {
		return
	}

	// Set aside highly repeated unitigs
	primary := mc.primary
	for _, h := range mc.hits {
		if len(e.idx.Occurrences(h.hit.Unitig)) > e.opt.MaxHitOcc {
			mc.ambig = append(mc.ambig, h)
		} else {
			primary = append(primary, h)
		}
	}
	if len(primary) == 0 {
		rest := mc.ambig[:0]
		for _, h := range mc.ambig {
			if len(e.idx.Occurrences(h.hit.Unitig)) <= e.opt.MaxHitOccRecover {
				primary = append(primary, h)
			} else {
				rest = append(rest, h)
			}
		}
		mc.ambig = rest
	}
	mc.primary = primary

	for _, h := range primary {
		e.project(h, mc.readLen, func(key chainKey, start int) {
			mc.add(key, start, h.readPos, true)
		})
	}
	if !e.opt.IgnoreAmbigHits && len(mc.chains) > 0 {
		for _, h := range mc.ambig {
			if e.idx.UnitigCardinality(h.hit.Unitig) > e.opt.MaxECCard {
				continue
			}
			e.project(h, mc.readLen, func(key chainKey, start int) {
				mc.add(key, start, h.readPos, false)
			})
		}
	}

	// Keep all best chains in canonical order
	for _, c := range mc.chains {
		if c.score > mc.best {
			mc.best = c.score
		}
	}
	for i, c := range mc.chains {
		if c.score == mc.best {
			mc.kept = append(mc.kept, i)
		}
	}
	sort.Slice(mc.kept, func(a, b int) bool {
		ca, cb := mc.chains[mc.kept[a]], mc.chains[mc.kept[b]]
		if ca.pair != cb.pair {
			return ca.pair < cb.pair
		}
		return ca.pos < cb.pos
	})
}
