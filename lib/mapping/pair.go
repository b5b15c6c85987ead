//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package mapping

// joint is a compatible pair of mate 1 and mate 2 chains.
type joint struct {
	c1, c2 int
	score  int
}

func (e *Engine) mapPair(seq1, seq2 []byte, rec *Record) {
	mc1, mc2 := e.mates[0], e.mates[1]
	e.chain(seq1, mc1)
	e.chain(seq2, mc2)
	if mc1.poisoned || mc2.poisoned {
		rec.unmapped(ReasonPoisoned)
		return
	}
	if len(mc1.kept) > 0 && len(mc2.kept) > 0 {
		if e.join(mc1, mc2) {
			e.resolveJoints(mc1, mc2, rec)
			return
		}
	}
	// Best single mate
	switch {
	case len(mc1.kept) > 0 && (len(mc2.kept) == 0 || mc1.best >= mc2.best):
		e.resolveMate(mc1, 1, MateLeftOnly, rec)
	case len(mc2.kept) > 0:
		e.resolveMate(mc2, 2, MateRightOnly, rec)
	default:
		rec.unmapped(ReasonNoHits)
	}
}

// join finds the best-scoring compatible chain pairs.
func (e *Engine) join(mc1, mc2 *mateChains) bool {
	maxLen := e.opt.MaxFragmentLength
	clear(e.trees)
	for i, ic := range mc1.kept {
		c := &mc1.chains[ic]
		iv := ChainInterval{Start: c.pos, End: c.pos + mc1.readLen, UID: uintptr(i), Chain: ic}
		if err := e.trees.insert(c.pair.Ref(), iv); err != nil {
			return false
		}
	}
	e.trees.adjust()

	e.joints = e.joints[:0]
	best := 0
	for _, ic2 := range mc2.kept {
		c2 := &mc2.chains[ic2]
		start2, end2 := c2.pos, c2.pos+mc2.readLen
		for _, iv := range e.trees.get(c2.pair.Ref(), start2-maxLen, end2+maxLen) {
			ic1 := iv.(ChainInterval).Chain
			c1 := &mc1.chains[ic1]
			if c1.pair.Reverse() == c2.pair.Reverse() {
				continue
			}
			start1, end1 := c1.pos, c1.pos+mc1.readLen
			if max(end1, end2)-min(start1, start2) > maxLen {
				continue
			}
			score := c1.score + c2.score
			if score > best {
				best = score
				e.joints = e.joints[:0]
			}
			if score == best {
				e.joints = append(e.joints, joint{c1: ic1, c2: ic2, score: score})
			}
		}
	}
	return len(e.joints) > 0
}

// resolveJoints resolves joined pairs using mate 1 orientation.
func (e *Engine) resolveJoints(mc1, mc2 *mateChains, rec *Record) {
	if len(e.joints) > e.opt.MaxReadOcc {
		rec.unmapped(ReasonTooManyMappings)
		return
	}
	e.col.Reset()
	for _, j := range e.joints {
		c1, c2 := &mc1.chains[j.c1], &mc2.chains[j.c2]
		e.col.Add(c1.pair)
		rec.Placements = append(rec.Placements,
			Placement{Ref: c1.pair.Ref(), Reverse: c1.pair.Reverse(), Pos: c1.pos, Score: c1.score, Mate: 1, MatePos: c2.pos},
			Placement{Ref: c2.pair.Ref(), Reverse: c2.pair.Reverse(), Pos: c2.pos, Score: c2.score, Mate: 2, MatePos: c1.pos})
	}
	e.resolve(MatePair, rec)
}
