//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package seqio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
)

func writeFastq(c *qt.C, path string, names []string, seqs []string) {
	var b strings.Builder
	for i := range names {
		fmt.Fprintf(&b, "@%s\n%s\n+\n%s\n", names[i], seqs[i], strings.Repeat("I", len(seqs[i])))
	}
	c.Assert(os.WriteFile(path, []byte(b.String()), 0666), qt.IsNil)
}

func TestNormalizeClip(t *testing.T) {
	c := qt.New(t)
	c.Assert(string(Normalize([]byte("acgtRYn"))), qt.Equals, "ACGTNNN")
	c.Assert(string(ClipPolyA([]byte("ACGTAAAAA"), 5)), qt.Equals, "ACGT")
	c.Assert(string(ClipPolyA([]byte("ACGTAAAA"), 5)), qt.Equals, "ACGTAAAA")
	c.Assert(string(ClipPolyA([]byte("ACGTAAAAA"), 0)), qt.Equals, "ACGTAAAAA")
}

func TestReadSequences(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "ref.fa")
	c.Assert(os.WriteFile(path, []byte(">tx1 desc\nACGT\nacgt\n>tx2\nNNRA\n"), 0666), qt.IsNil)
	var names, seqs []string
	err := ReadSequences(path, func(name string, s []byte) error {
		names = append(names, name)
		seqs = append(seqs, string(s))
		return nil
	})
	c.Assert(err, qt.IsNil)
	c.Assert(names, qt.DeepEquals, []string{"tx1", "tx2"})
	c.Assert(seqs, qt.DeepEquals, []string{"ACGTACGT", "NNNA"})

	err = ReadSequences(filepath.Join(t.TempDir(), "missing.fa"), func(string, []byte) error { return nil })
	c.Assert(fault.KindOf(err), qt.Equals, fault.KindIO)
}

func TestPairedReader(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	r1a, r2a := filepath.Join(dir, "a_1.fq"), filepath.Join(dir, "a_2.fq")
	r1b, r2b := filepath.Join(dir, "b_1.fq"), filepath.Join(dir, "b_2.fq")
	writeFastq(c, r1a, []string{"r1/1", "r2/1", "r3/1"}, []string{"ACGT", "CCCC", "GGGG"})
	writeFastq(c, r2a, []string{"r1/2", "r2/2", "r3/2"}, []string{"TTTT", "AAAA", "CGCG"})
	writeFastq(c, r1b, []string{"r4"}, []string{"ACAC"})
	writeFastq(c, r2b, []string{"r4"}, []string{"GTGT"})

	r, err := NewPairedReader([]string{r1a, r1b}, []string{r2a, r2b})
	c.Assert(err, qt.IsNil)
	defer r.Close()

	ch := NewChunk(2)
	var got []string
	var lengths []int
	for {
		err := r.Fill(ch)
		if err == io.EOF {
			break
		}
		c.Assert(err, qt.IsNil)
		lengths = append(lengths, ch.Length)
		for i := 0; i < ch.Length; i++ {
			f := ch.Fragments[i]
			c.Assert(f.Read2, qt.Not(qt.HasLen), 0)
			got = append(got, string(f.Read1)+"+"+string(f.Read2))
		}
	}
	c.Assert(lengths, qt.DeepEquals, []int{2, 1, 1})
	c.Assert(got, qt.DeepEquals, []string{"ACGT+TTTT", "CCCC+AAAA", "GGGG+CGCG", "ACAC+GTGT"})
}

func TestPairedReaderErrors(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	r1, r2 := filepath.Join(dir, "1.fq"), filepath.Join(dir, "2.fq")
	writeFastq(c, r1, []string{"x", "y"}, []string{"ACGT", "ACGT"})
	writeFastq(c, r2, []string{"x", "z"}, []string{"ACGT", "ACGT"})

	_, err := NewPairedReader([]string{r1}, nil)
	c.Assert(fault.KindOf(err), qt.Equals, fault.KindConfig)
	_, err = NewSingleReader([]string{filepath.Join(dir, "none.fq")})
	c.Assert(fault.KindOf(err), qt.Equals, fault.KindIO)

	r, err := NewPairedReader([]string{r1}, []string{r2})
	c.Assert(err, qt.IsNil)
	err = r.Fill(NewChunk(10))
	c.Assert(fault.KindOf(err), qt.Equals, fault.KindIO)
	c.Assert(err, qt.ErrorMatches, "different names for read 1 y and read 2 z")
}

func TestSingleReader(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "r.fq")
	writeFastq(c, path, []string{"a", "b"}, []string{"ACGT", "TTTA"})
	r, err := NewSingleReader([]string{path})
	c.Assert(err, qt.IsNil)
	ch := NewChunk(8)
	c.Assert(r.Fill(ch), qt.IsNil)
	c.Assert(ch.Length, qt.Equals, 2)
	c.Assert(ch.Fragments[1].Read2, qt.HasLen, 0)
	c.Assert(string(ch.Fragments[1].Qual1), qt.Equals, "IIII")
	c.Assert(r.Fill(ch), qt.Equals, io.EOF)
}

func TestPaths(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	for _, name := range []string{"b.fa", "a.fasta.gz", "notes.txt", "c.fq"} {
		c.Assert(os.WriteFile(filepath.Join(dir, name), nil, 0666), qt.IsNil)
	}
	paths, err := ListFasta(dir)
	c.Assert(err, qt.IsNil)
	c.Assert(paths, qt.DeepEquals, []string{filepath.Join(dir, "a.fasta.gz"), filepath.Join(dir, "b.fa")})

	list := filepath.Join(dir, "refs.txt")
	c.Assert(os.WriteFile(list, []byte("# references\n/data/a.fa\n\n  /data/b.fa\n"), 0666), qt.IsNil)
	paths, err = ReadPathList(list)
	c.Assert(err, qt.IsNil)
	c.Assert(paths, qt.DeepEquals, []string{"/data/a.fa", "/data/b.fa"})

	_, err = ReadPathList(filepath.Join(dir, "missing.txt"))
	c.Assert(fault.KindOf(err), qt.Equals, fault.KindIO)
}
