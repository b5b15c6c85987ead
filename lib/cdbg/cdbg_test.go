//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package cdbg

import (
	"math/rand"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"git.sr.ht/~vejnar/Pesca/lib/kmer"
)

func randomSeq(r *rand.Rand, n int) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = "ACGT"[r.Intn(4)]
	}
	return s
}

func join(parts ...[]byte) (s []byte) {
	for _, p := range parts {
		s = append(s, p...)
	}
	return
}

func testRefs() []Reference {
	r := rand.New(rand.NewSource(7))
	shared := randomSeq(r, 40)
	// Flanks differ between references so the shared region is a whole unitig
	a := join(randomSeq(r, 229), []byte("A"), shared, []byte("A"), randomSeq(r, 229))
	b := join(randomSeq(r, 99), []byte("A"), kmer.ReverseComplementSeq(nil, shared), []byte("A"), randomSeq(r, 359))
	c := append(append(randomSeq(r, 50), []byte("NNNNN")...), randomSeq(r, 80)...)
	return []Reference{
		{ID: 0, Name: "a", Seq: a},
		{ID: 1, Name: "b", Seq: b},
		{ID: 2, Name: "c", Seq: c},
	}
}

func checkGraph(c *qt.C, g *Graph, refs []Reference) {
	c.Assert(g.Check(), qt.IsNil)
	// Every canonical k-mer is in one unitig
	seen := make(map[kmer.Kmer]int)
	it := kmer.NewIterator(g.K)
	for i, u := range g.Unitigs {
		it.Reset(u.Seq)
		for it.Next() {
			cn, _ := it.Canonical()
			_, dup := seen[cn]
			c.Assert(dup, qt.IsFalse, qt.Commentf("unitig %d", i))
			seen[cn] = i
		}
	}
	for _, ref := range refs {
		it.Reset(ref.Seq)
		for it.Next() {
			cn, _ := it.Canonical()
			_, ok := seen[cn]
			c.Assert(ok, qt.IsTrue)
		}
		// Tiling spells the reference back
		want := make([]byte, len(ref.Seq))
		copy(want, ref.Seq)
		c.Assert(string(g.Spell(ref.ID)), qt.Equals, string(want))
	}
}

func TestMemCompactor(t *testing.T) {
	c := qt.New(t)
	refs := testRefs()
	g, err := MemCompactor{}.Compact(refs, 31)
	c.Assert(err, qt.IsNil)
	checkGraph(c, g, refs)

	// The shared region is one unitig occurring on both references in opposite strands
	var found bool
	for _, u := range g.Unitigs {
		if len(u.Occs) == 2 {
			c.Assert(len(u.Seq), qt.Equals, 40)
			c.Assert(u.Occs[0].Strand*u.Occs[1].Strand, qt.Equals, int8(-1))
			found = true
		}
	}
	c.Assert(found, qt.IsTrue)
}

func TestMemCompactorRepeats(t *testing.T) {
	c := qt.New(t)
	// Tandem repeat and palindromic arm force boundaries inside the reference
	unit := []byte("ACGTTGCATGCCATAGGCTTACAGATCCGTA")
	seq := append(append(append([]byte{}, unit...), unit...), unit...)
	seq = append(seq, kmer.ReverseComplementSeq(nil, unit)...)
	refs := []Reference{{ID: 0, Name: "rep", Seq: seq}}
	for _, k := range []int{5, 11, 21} {
		g, err := MemCompactor{}.Compact(refs, k)
		c.Assert(err, qt.IsNil)
		checkGraph(c, g, refs)
	}
}

func TestCompactInvalidK(t *testing.T) {
	c := qt.New(t)
	_, err := MemCompactor{}.Compact(testRefs(), 40)
	c.Assert(err, qt.ErrorMatches, "invalid k-mer length 40")
}

func TestGFARoundTrip(t *testing.T) {
	c := qt.New(t)
	refs := testRefs()
	g, err := MemCompactor{}.Compact(refs, 31)
	c.Assert(err, qt.IsNil)

	prefix := filepath.Join(t.TempDir(), "cdbg")
	c.Assert(WriteGFA(g, prefix+SegSuffix, prefix+SeqSuffix), qt.IsNil)

	g2, err := ReadGFA(prefix+SegSuffix, prefix+SeqSuffix, 31)
	c.Assert(err, qt.IsNil)
	c.Assert(g2.Refs, qt.HasLen, len(refs))
	for i := range refs {
		c.Assert(g2.Refs[i].Name, qt.Equals, refs[i].Name)
		c.Assert(g2.Refs[i].Length, qt.Equals, len(refs[i].Seq))
	}

	// Reference order differs from the tiling file
	swapped := []Reference{{ID: 0, Name: "c", Seq: refs[2].Seq}, {ID: 1, Name: "b", Seq: refs[1].Seq}, {ID: 2, Name: "a", Seq: refs[0].Seq}}
	g3, err := GFACompactor{Prefix: prefix}.Compact(swapped, 31)
	c.Assert(err, qt.IsNil)
	checkGraph(c, g3, swapped)

	_, err = GFACompactor{Prefix: prefix}.Compact(swapped[:2], 31)
	c.Assert(err, qt.ErrorMatches, "tiling of unknown reference a")
}
