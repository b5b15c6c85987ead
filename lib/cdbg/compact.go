//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package cdbg

import (
	"io"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/kmer"
)

const (
	// Extension bit set when a k-mer ends a reference segment on that side
	sentinel         = uint8(1 << 4)
	defaultMaxRounds = 64
)

// MemCompactor builds unitigs from the k-mers of references held in memory.
type MemCompactor struct {
	Log       logrus.FieldLogger
	MaxRounds int
}

type okmer struct {
	f, r kmer.Kmer
}

func (o okmer) canonical() kmer.Kmer {
	if o.f <= o.r {
		return o.f
	}
	return o.r
}

func (o okmer) isCanonical() bool { return o.f <= o.r }
func (o okmer) rc() okmer         { return okmer{f: o.r, r: o.f} }

// node stores left and right extensions of a canonical k-mer: bits 0-3 for ACGT, plus sentinel.
type node struct {
	left, right uint8
}

type location struct {
	unitig uint32
	pos    uint32
	fwd    bool // canonical k-mer reads forward in the unitig
}

type compaction struct {
	k     int
	mask  kmer.Kmer
	shift uint

	ids     map[kmer.Kmer]uint32
	nodes   []node
	canon   []kmer.Kmer
	locs    []location
	visited *bitset.BitSet
	unitigs []Unitig
}

func compMask(m uint8) uint8 {
	out := m & sentinel
	for b := 0; b < 4; b++ {
		if m&(1<<b) != 0 {
			out |= 1 << (3 - b)
		}
	}
	return out
}

func (c *compaction) id(o okmer) uint32 {
	return c.ids[o.canonical()]
}

func (c *compaction) ensure(o okmer) {
	cn := o.canonical()
	if _, ok := c.ids[cn]; !ok {
		c.ids[cn] = uint32(len(c.nodes))
		c.nodes = append(c.nodes, node{})
		c.canon = append(c.canon, cn)
	}
}

func (c *compaction) rightOf(o okmer) uint8 {
	n := c.nodes[c.id(o)]
	if o.isCanonical() {
		return n.right
	}
	return compMask(n.left)
}

func (c *compaction) leftOf(o okmer) uint8 {
	n := c.nodes[c.id(o)]
	if o.isCanonical() {
		return n.left
	}
	return compMask(n.right)
}

func (c *compaction) addRight(o okmer, m uint8) {
	n := &c.nodes[c.id(o)]
	if o.isCanonical() {
		n.right |= m
	} else {
		n.left |= compMask(m)
	}
}

func (c *compaction) addLeft(o okmer, m uint8) {
	n := &c.nodes[c.id(o)]
	if o.isCanonical() {
		n.left |= m
	} else {
		n.right |= compMask(m)
	}
}

func (c *compaction) next(o okmer, b uint8) okmer {
	return okmer{
		f: ((o.f << 2) | kmer.Kmer(b)) & c.mask,
		r: (o.r >> 2) | (kmer.Kmer(3-b) << c.shift),
	}
}

func (c *compaction) firstBase(o okmer) uint8 { return uint8(o.f >> c.shift) }

// collect registers every k-mer of every N-free segment and the observed extensions.
func (c *compaction) collect(refs []Reference) {
	it := kmer.NewIterator(c.k)
	for _, ref := range refs {
		it.Reset(ref.Seq)
		prevPos := -2
		var prev okmer
		for it.Next() {
			o := okmer{f: it.Forward(), r: it.Reverse()}
			c.ensure(o)
			if it.Pos() == prevPos+1 {
				c.addRight(prev, 1<<uint8(o.f&3))
				c.addLeft(o, 1<<c.firstBase(prev))
			} else {
				if prevPos >= 0 {
					c.addRight(prev, sentinel)
				}
				c.addLeft(o, sentinel)
			}
			prev, prevPos = o, it.Pos()
		}
		if prevPos >= 0 {
			c.addRight(prev, sentinel)
		}
	}
}

// extend walks right from o while the path does not branch.
func (c *compaction) extend(o okmer) (path []okmer) {
	for {
		rs := c.rightOf(o)
		if rs&sentinel != 0 || bits.OnesCount8(rs) != 1 {
			return
		}
		n := c.next(o, uint8(bits.TrailingZeros8(rs)))
		ls := c.leftOf(n)
		if ls&sentinel != 0 || bits.OnesCount8(ls) != 1 {
			return
		}
		id := uint(c.id(n))
		if c.visited.Test(id) {
			return
		}
		c.visited.Set(id)
		path = append(path, n)
		o = n
	}
}

// walk builds every unitig.
func (c *compaction) walk() {
	c.visited = bitset.New(uint(len(c.nodes)))
	c.locs = make([]location, len(c.nodes))
	c.unitigs = c.unitigs[:0]
	var path []okmer
	for id, cn := range c.canon {
		if c.visited.Test(uint(id)) {
			continue
		}
		c.visited.Set(uint(id))
		seed := okmer{f: cn, r: kmer.ReverseComplement(cn, c.k)}
		right := c.extend(seed)
		left := c.extend(seed.rc())
		path = path[:0]
		for i := len(left) - 1; i >= 0; i-- {
			path = append(path, left[i].rc())
		}
		path = append(path, seed)
		path = append(path, right...)

		uid := uint32(len(c.unitigs))
		seq := kmer.Decode(path[0].f, c.k)
		for p, o := range path {
			if p > 0 {
				seq = append(seq, kmer.Base(uint8(o.f&3)))
			}
			c.locs[c.id(o)] = location{unitig: uid, pos: uint32(p), fwd: o.isCanonical()}
		}
		c.unitigs = append(c.unitigs, Unitig{Seq: seq})
	}
}

// tile records the unitig occurrences of every reference. Every place where a
// reference enters or leaves a unitig elsewhere than at its ends is turned into a
// forced boundary; tile returns the number of such places.
func (c *compaction) tile(refs []Reference) (violations int) {
	type current struct {
		active bool
		u      uint32
		next   int
		dir    int
		nk     int
	}
	it := kmer.NewIterator(c.k)
	for _, ref := range refs {
		it.Reset(ref.Seq)
		prevPos := -2
		var prev okmer
		var cur current
		for it.Next() {
			o := okmer{f: it.Forward(), r: it.Reverse()}
			pos := it.Pos()
			l := c.locs[c.id(o)]
			along := o.isCanonical() == l.fwd
			contiguous := pos == prevPos+1
			if cur.active && contiguous && l.unitig == cur.u && int(l.pos) == cur.next && along == (cur.dir == 1) {
				cur.next += cur.dir
			} else {
				finished := !cur.active || (cur.dir == 1 && cur.next == cur.nk) || (cur.dir == -1 && cur.next == -1)
				nk := len(c.unitigs[l.unitig].Seq) - c.k + 1
				started := (along && l.pos == 0) || (!along && int(l.pos) == nk-1)
				if !finished || !started {
					if contiguous {
						c.addRight(prev, sentinel)
					}
					c.addLeft(o, sentinel)
					violations++
				}
				cur = current{active: true, u: l.unitig, nk: nk}
				if along {
					cur.dir = 1
				} else {
					cur.dir = -1
				}
				cur.next = int(l.pos) + cur.dir
				strand := int8(cur.dir)
				c.unitigs[l.unitig].Occs = append(c.unitigs[l.unitig].Occs, Occurrence{Ref: ref.ID, Start: pos, Strand: strand})
			}
			prev, prevPos = o, pos
		}
	}
	return
}

// Compact returns the unitig decomposition of refs. Reference sequences must be normalized (ACGTN).
func (mc MemCompactor) Compact(refs []Reference, k int) (*Graph, error) {
	log := mc.Log
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	maxRounds := mc.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	if k < 1 || k > kmer.MaxK {
		return nil, fault.Config("invalid k-mer length %d", k)
	}
	c := &compaction{k: k, mask: kmer.Mask(k), shift: uint(k-1) * 2, ids: make(map[kmer.Kmer]uint32)}
	c.collect(refs)
	log.Infof("Collected %s distinct k-mers", humanize.Comma(int64(len(c.nodes))))
	for round := 1; ; round++ {
		c.walk()
		violations := c.tile(refs)
		if violations == 0 {
			break
		}
		if round == maxRounds {
			return nil, fault.New(fault.KindFatal, "compaction did not converge after %d rounds", round)
		}
		log.Debugf("Compaction round %d: %d forced boundaries", round, violations)
	}
	log.Infof("Compacted into %s unitigs", humanize.Comma(int64(len(c.unitigs))))
	g := &Graph{K: k, Refs: make([]Reference, len(refs)), Unitigs: c.unitigs}
	for i, r := range refs {
		g.Refs[i] = Reference{ID: r.ID, Name: r.Name, Length: len(r.Seq), Seq: r.Seq}
	}
	return g, nil
}
