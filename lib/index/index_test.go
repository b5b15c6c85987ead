//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package index

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"git.sr.ht/~vejnar/Pesca/lib/cdbg"
	"git.sr.ht/~vejnar/Pesca/lib/eqclass"
	"git.sr.ht/~vejnar/Pesca/lib/fault"
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

// twoRefs returns two 500-base references sharing a 40-base region.
func twoRefs() ([]cdbg.Reference, []byte) {
	r := rand.New(rand.NewSource(42))
	shared := randomSeq(r, 40)
	a := join(randomSeq(r, 199), []byte("A"), shared, []byte("A"), randomSeq(r, 259))
	b := join(randomSeq(r, 299), []byte("C"), shared, []byte("C"), randomSeq(r, 159))
	return []cdbg.Reference{{ID: 0, Name: "refA", Seq: a}, {ID: 1, Name: "refB", Seq: b}}, shared
}

func testOptions() BuildOptions {
	opt := DefaultBuildOptions()
	opt.Threads = 2
	return opt
}

func buildTwoRefs(c *qt.C, dir string, opt BuildOptions, decoys []cdbg.Reference) *Index {
	refs, _ := twoRefs()
	_, err := BuildFromReferences(dir, refs, cdbg.MemCompactor{}, decoys, opt)
	c.Assert(err, qt.IsNil)
	idx, err := Load(dir, LoadOptions{IgnoreClasses: opt.NoECTable})
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { idx.Close() })
	return idx
}

func TestBuildLookup(t *testing.T) {
	c := qt.New(t)
	dir := filepath.Join(t.TempDir(), "idx")
	idx := buildTwoRefs(c, dir, testOptions(), nil)
	c.Assert(idx.Info.K, qt.Equals, 31)
	c.Assert(idx.Info.M, qt.Equals, 19)
	c.Assert(idx.Refs, qt.HasLen, 2)
	c.Assert(idx.Refs[1].Length, qt.Equals, 500)
	c.Assert(idx.HasClasses(), qt.IsTrue)

	refs, shared := twoRefs()
	it := kmer.NewIterator(idx.K())
	for _, ref := range refs {
		it.Reset(ref.Seq)
		for it.Next() {
			hit, ok := idx.Lookup(it.Forward(), it.Reverse())
			c.Assert(ok, qt.IsTrue)
			y, _ := kmer.Encode(idx.Unitigs[hit.Unitig].Seq[hit.Pos : hit.Pos+idx.K()])
			if hit.Reverse {
				c.Assert(y, qt.Equals, it.Reverse())
			} else {
				c.Assert(y, qt.Equals, it.Forward())
			}
			var found bool
			for _, p := range idx.Class(idx.UnitigClass(hit.Unitig)) {
				if p.Ref() == ref.ID && p.Reverse() == hit.Reverse {
					found = true
				}
			}
			c.Assert(found, qt.IsTrue)
		}
	}

	// Shared region resolves to both references, unique regions to one
	y, _ := kmer.Encode(shared[5:36])
	hit, ok := idx.Lookup(y, kmer.ReverseComplement(y, 31))
	c.Assert(ok, qt.IsTrue)
	c.Assert(idx.UnitigCardinality(hit.Unitig), qt.Equals, 2)
	class := idx.Class(idx.UnitigClass(hit.Unitig))
	c.Assert(class, qt.DeepEquals, []eqclass.Pair{eqclass.NewPair(0, hit.Reverse), eqclass.NewPair(1, hit.Reverse)})
	y, _ = kmer.Encode(refs[0].Seq[10:41])
	hit, ok = idx.Lookup(y, kmer.ReverseComplement(y, 31))
	c.Assert(ok, qt.IsTrue)
	c.Assert(idx.Class(idx.UnitigClass(hit.Unitig)), qt.DeepEquals, []eqclass.Pair{eqclass.NewPair(0, hit.Reverse)})

	// Absent k-mer
	y, _ = kmer.Encode([]byte(strings.Repeat("A", 31)))
	_, ok = idx.Lookup(y, kmer.ReverseComplement(y, 31))
	c.Assert(ok, qt.IsFalse)

	// Without memory mapping
	idx2, err := Load(dir, LoadOptions{NoMmap: true})
	c.Assert(err, qt.IsNil)
	c.Assert(idx2.NumMinimizers(), qt.Equals, idx.NumMinimizers())
	y, _ = kmer.Encode(shared[0:31])
	hit2, ok := idx2.Lookup(y, kmer.ReverseComplement(y, 31))
	c.Assert(ok, qt.IsTrue)
	hit, _ = idx.Lookup(y, kmer.ReverseComplement(y, 31))
	c.Assert(hit2, qt.Equals, hit)
}

func TestBuildOptionsErrors(t *testing.T) {
	c := qt.New(t)
	refs, _ := twoRefs()
	dir := filepath.Join(t.TempDir(), "idx")
	tests := []struct {
		mod func(*BuildOptions, *[]cdbg.Reference)
		msg string
	}{
		{func(o *BuildOptions, _ *[]cdbg.Reference) { o.K = 30 }, "k-mer length must be odd.*"},
		{func(o *BuildOptions, _ *[]cdbg.Reference) { o.M = 32 }, "minimizer length must be within.*"},
		{func(o *BuildOptions, _ *[]cdbg.Reference) { o.Threads = 0 }, "number of workers.*"},
		{func(_ *BuildOptions, r *[]cdbg.Reference) { *r = nil }, "empty reference set"},
		{func(_ *BuildOptions, r *[]cdbg.Reference) { (*r)[1].ID = 0 }, "duplicate reference id 0"},
		{func(_ *BuildOptions, r *[]cdbg.Reference) { (*r)[1].Name = "refA" }, "duplicate reference name refA"},
	}
	for _, test := range tests {
		opt := testOptions()
		rs := append([]cdbg.Reference(nil), refs...)
		test.mod(&opt, &rs)
		_, err := BuildFromReferences(dir, rs, cdbg.MemCompactor{}, nil, opt)
		c.Assert(fault.KindOf(err), qt.Equals, fault.KindConfig)
		c.Assert(err, qt.ErrorMatches, test.msg)
		_, statErr := os.Stat(dir)
		c.Assert(os.IsNotExist(statErr), qt.IsTrue)
	}
}

func TestOverwrite(t *testing.T) {
	c := qt.New(t)
	parent := t.TempDir()
	dir := filepath.Join(parent, "idx")
	refs, _ := twoRefs()
	info1, err := BuildFromReferences(dir, refs, cdbg.MemCompactor{}, nil, testOptions())
	c.Assert(err, qt.IsNil)

	_, err = BuildFromReferences(dir, refs, cdbg.MemCompactor{}, nil, testOptions())
	c.Assert(err, qt.ErrorMatches, "output .* already exists")

	opt := testOptions()
	opt.Overwrite = true
	opt.NoECTable = true
	opt.KeepIntermediate = true
	info2, err := BuildFromReferences(dir, refs, cdbg.MemCompactor{}, nil, opt)
	c.Assert(err, qt.IsNil)
	c.Assert(info2.BuildID, qt.Not(qt.Equals), info1.BuildID)
	c.Assert(info2.ECTable, qt.IsFalse)

	// Only the new index remains
	entries, err := os.ReadDir(parent)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 1)
	_, err = os.Stat(filepath.Join(dir, FileClasses))
	c.Assert(os.IsNotExist(err), qt.IsTrue)
	_, err = Load(dir, LoadOptions{})
	c.Assert(fault.KindOf(err), qt.Equals, fault.KindIndex)

	// The intermediate graph can be used again as input
	g, err := cdbg.GFACompactor{Prefix: filepath.Join(dir, FileGraph)}.Compact(refs, 31)
	c.Assert(err, qt.IsNil)
	c.Assert(g.Unitigs, qt.HasLen, info2.Unitigs)
}

func TestCorruptIndex(t *testing.T) {
	c := qt.New(t)
	dir := filepath.Join(t.TempDir(), "idx")
	refs, _ := twoRefs()
	_, err := BuildFromReferences(dir, refs, cdbg.MemCompactor{}, nil, testOptions())
	c.Assert(err, qt.IsNil)

	corrupt := func(name string, offset int) {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		c.Assert(err, qt.IsNil)
		if offset < 0 {
			offset = len(data) + offset
		}
		data[offset] ^= 0xff
		c.Assert(os.WriteFile(path, data, 0666), qt.IsNil)
	}

	// Flipped payload byte
	corrupt(FileMinimizers, -3)
	_, err = Load(dir, LoadOptions{})
	c.Assert(fault.KindOf(err), qt.Equals, fault.KindIndex)
	c.Assert(err, qt.ErrorMatches, ".*checksum mismatch")
	_, err = Load(dir, LoadOptions{NoMmap: true})
	c.Assert(err, qt.ErrorMatches, ".*checksum mismatch")
	corrupt(FileMinimizers, -3)

	// Version byte
	corrupt(FileUnitigs, 8)
	_, err = Load(dir, LoadOptions{})
	c.Assert(err, qt.ErrorMatches, ".*format version .*")
	corrupt(FileUnitigs, 8)

	// Truncated table
	path := filepath.Join(dir, FileClasses)
	data, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(os.WriteFile(path, data[:len(data)-4], 0666), qt.IsNil)
	_, err = Load(dir, LoadOptions{})
	c.Assert(fault.KindOf(err), qt.Equals, fault.KindIndex)
	_, err = Load(dir, LoadOptions{IgnoreClasses: true})
	c.Assert(err, qt.IsNil)

	// Format main version of the record
	info, err := os.ReadFile(filepath.Join(dir, FileInfo))
	c.Assert(err, qt.IsNil)
	info = []byte(strings.Replace(string(info), "main-version = 1", "main-version = 2", 1))
	c.Assert(os.WriteFile(filepath.Join(dir, FileInfo), info, 0666), qt.IsNil)
	_, err = Load(dir, LoadOptions{IgnoreClasses: true})
	c.Assert(err, qt.ErrorMatches, "index format version 2, expected 1")

	_, err = Load(filepath.Join(dir, "missing"), LoadOptions{})
	c.Assert(fault.KindOf(err), qt.Equals, fault.KindIndex)
}

func TestPoison(t *testing.T) {
	c := qt.New(t)
	refs, _ := twoRefs()
	r := rand.New(rand.NewSource(3))
	decoy := join(refs[0].Seq[100:160], randomSeq(r, 60))
	dir := filepath.Join(t.TempDir(), "idx")
	idx := buildTwoRefs(c, dir, testOptions(), []cdbg.Reference{{Name: "decoy", Seq: decoy}})
	c.Assert(idx.HasPoison(), qt.IsTrue)

	y, _ := kmer.Encode(decoy[80:111])
	cn, _ := kmer.Canonical(y, kmer.ReverseComplement(y, 31))
	c.Assert(idx.IsPoison(cn), qt.IsTrue)
	y, _ = kmer.Encode(decoy[0:31])
	cn, _ = kmer.Canonical(y, kmer.ReverseComplement(y, 31))
	c.Assert(idx.IsPoison(cn), qt.IsFalse)

	idx2, err := Load(dir, LoadOptions{NoPoison: true})
	c.Assert(err, qt.IsNil)
	defer idx2.Close()
	c.Assert(idx2.HasPoison(), qt.IsFalse)
}
