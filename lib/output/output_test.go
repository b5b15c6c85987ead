//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package output

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/biogo/hts/sam"
	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"git.sr.ht/~vejnar/Pesca/lib/cdbg"
	"git.sr.ht/~vejnar/Pesca/lib/eqclass"
	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/index"
	"git.sr.ht/~vejnar/Pesca/lib/mapping"
)

func fillBatch(b *Batch, n int, sc bool) {
	b.Reset()
	for i := 0; i < n; i++ {
		rec := b.Next()
		rec.Reset()
		rec.Class = uint32(i)
		rec.Mate = mapping.MateSingle
		if i%3 == 0 {
			rec.Class = eqclass.Unmapped
			rec.Mate = mapping.MateNone
			rec.Reason = mapping.ReasonNoHits
		}
		if sc {
			rec.Barcode = append(rec.Barcode, "ACGTACGTACGTACGT"[:i%17]...)
			rec.UMI = append(rec.UMI, "TTTTGGGGCCCC"...)
		}
	}
}

func TestStreamRoundTrip(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionLZ4, CompressionLZ4HC, CompressionSnappy} {
		for _, mode := range []mapping.Mode{mapping.ModeBulk, mapping.ModeSingleCell} {
			t.Run(comp.String()+"/"+mode.String(), func(t *testing.T) {
				c := qt.New(t)
				dir := filepath.Join(t.TempDir(), "out")
				hdr := Header{Mode: mode, Classes: 12, BuildID: uuid.New()}
				w, err := Create(dir, comp, hdr)
				c.Assert(err, qt.IsNil)
				b := NewBatch(2)
				sc := mode == mapping.ModeSingleCell
				for _, n := range []int{5, 0, 40} {
					fillBatch(b, n, sc)
					c.Assert(w.WriteBatch(b), qt.IsNil)
				}
				overlay := eqclass.NewTable()
				overlay.Intern([]eqclass.Pair{eqclass.NewPair(0, false), eqclass.NewPair(3, true)})
				c.Assert(w.Close(overlay), qt.IsNil)
				c.Assert(w.NRecords, qt.Equals, uint64(45))
				c.Assert(w.NBatches, qt.Equals, uint64(2))

				_, err = os.Stat(w.Path() + PartialSuffix)
				c.Assert(os.IsNotExist(err), qt.IsTrue)
				c.Assert(w.Path(), qt.Equals, StreamPath(dir, comp))

				r, err := Open(w.Path())
				c.Assert(err, qt.IsNil)
				defer r.Close()
				c.Assert(r.Header, qt.Equals, hdr)
				got := NewBatch(1)
				want := NewBatch(1)
				// Empty batches are not written
				for _, n := range []int{5, 40} {
					c.Assert(r.Next(got), qt.IsNil)
					fillBatch(want, n, sc)
					c.Assert(got.LastRecord, qt.Equals, n)
					for i, rec := range got.Filled() {
						w := want.Records[i]
						c.Assert(rec.Class, qt.Equals, w.Class)
						c.Assert(rec.Mate, qt.Equals, w.Mate)
						c.Assert(rec.Reason, qt.Equals, w.Reason)
						c.Assert(string(rec.Barcode), qt.Equals, string(w.Barcode))
						c.Assert(string(rec.UMI), qt.Equals, string(w.UMI))
					}
				}
				c.Assert(r.Next(got), qt.Equals, io.EOF)

				tbl, _, err := index.ReadClasses(filepath.Join(dir, FileOverlay))
				c.Assert(err, qt.IsNil)
				c.Assert(tbl.Len(), qt.Equals, 1)
			})
		}
	}
}

func TestStreamTruncated(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	w, err := Create(dir, CompressionNone, Header{})
	c.Assert(err, qt.IsNil)
	b := NewBatch(4)
	fillBatch(b, 4, false)
	c.Assert(w.WriteBatch(b), qt.IsNil)
	c.Assert(w.Close(nil), qt.IsNil)
	_, err = os.Stat(filepath.Join(dir, FileOverlay))
	c.Assert(os.IsNotExist(err), qt.IsTrue)

	data, err := os.ReadFile(w.Path())
	c.Assert(err, qt.IsNil)

	// Missing end marker
	r, err := NewReader(bytes.NewReader(data[:len(data)-batchFrameSize]))
	c.Assert(err, qt.IsNil)
	c.Assert(r.Next(b), qt.IsNil)
	c.Assert(r.Next(b), qt.Equals, ErrTruncated)

	// Incomplete batch
	r, err = NewReader(bytes.NewReader(data[:headerSize+10]))
	c.Assert(err, qt.IsNil)
	c.Assert(r.Next(b), qt.Equals, ErrTruncated)

	// Corrupt payload
	bad := append([]byte(nil), data...)
	bad[headerSize+batchFrameSize] ^= 0xff
	r, err = NewReader(bytes.NewReader(bad))
	c.Assert(err, qt.IsNil)
	c.Assert(r.Next(b), qt.ErrorMatches, `.*checksum mismatch`)

	_, err = NewReader(bytes.NewReader([]byte("PESCAUTG")))
	c.Assert(err, qt.Equals, ErrTruncated)
	_, err = NewReader(bytes.NewReader(make([]byte, headerSize)))
	c.Assert(fault.KindOf(err), qt.Equals, fault.KindIO)
}

func TestAbort(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	w, err := Create(dir, CompressionSnappy, Header{})
	c.Assert(err, qt.IsNil)
	c.Assert(w.Abort(), qt.IsNil)
	entries, err := os.ReadDir(dir)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 0)

	_, err = ParseCompression("gzip")
	c.Assert(fault.KindOf(err), qt.Equals, fault.KindConfig)
}

func TestCloseOverlayError(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	w, err := Create(dir, CompressionNone, Header{Classes: 4})
	c.Assert(err, qt.IsNil)
	b := NewBatch(4)
	fillBatch(b, 4, false)
	c.Assert(w.WriteBatch(b), qt.IsNil)
	// A directory in place of the overlay file
	c.Assert(os.Mkdir(filepath.Join(dir, FileOverlay), 0755), qt.IsNil)
	overlay := eqclass.NewTable()
	overlay.Intern([]eqclass.Pair{eqclass.NewPair(0, false)})
	c.Assert(w.Close(overlay), qt.Not(qt.IsNil))
	_, err = os.Stat(w.Path())
	c.Assert(os.IsNotExist(err), qt.IsTrue)
	_, err = os.Stat(w.Path() + PartialSuffix)
	c.Assert(os.IsNotExist(err), qt.IsTrue)
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteBatchErrors(t *testing.T) {
	c := qt.New(t)
	w := &Writer{bw: bufio.NewWriterSize(failWriter{}, 16), hdr: Header{Mode: mapping.ModeSingleCell}}
	b := NewBatch(8)
	fillBatch(b, 8, true)
	err := w.WriteBatch(b)
	c.Assert(fault.KindOf(err), qt.Equals, fault.KindIO)
	c.Assert(err, qt.ErrorMatches, `writing batch.*disk full`)
	c.Assert(w.NBatches, qt.Equals, uint64(0))

	var buf bytes.Buffer
	w = &Writer{bw: bufio.NewWriter(&buf), hdr: Header{Mode: mapping.ModeSingleCell}}
	b.Reset()
	rec := b.Next()
	rec.Reset()
	rec.Name = append(rec.Name, "long"...)
	rec.Barcode = bytes.Repeat([]byte("A"), math.MaxUint16+1)
	err = w.WriteBatch(b)
	c.Assert(fault.KindOf(err), qt.Equals, fault.KindMapping)
	c.Assert(err, qt.ErrorMatches, `fragment long: barcode or UMI longer than 65535`)

	rec.Barcode = rec.Barcode[:math.MaxUint16]
	c.Assert(w.WriteBatch(b), qt.IsNil)
}

func TestCigar(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		pos, n, refLen int
		wantPos        int
		want           string
	}{
		{10, 50, 100, 10, "50M"},
		{-5, 50, 100, 0, "5S45M"},
		{70, 50, 100, 70, "30M20S"},
	}
	for _, test := range tests {
		pos, co := cigar(test.pos, test.n, test.refLen)
		c.Assert(pos, qt.Equals, test.wantPos)
		c.Assert(sam.Cigar(co).String(), qt.Equals, test.want)
	}
}

func TestSAMWriter(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "out.sam")
	refs := []cdbg.Reference{{ID: 0, Name: "refA", Length: 500}, {ID: 1, Name: "refB", Length: 500}}
	w, err := CreateSAM(NewPathSAM(path), refs, 1)
	c.Assert(err, qt.IsNil)

	b := NewBatch(2)
	rec := b.Next()
	rec.Reset()
	rec.Name = append(rec.Name, "multi"...)
	rec.Class = 3
	rec.Mate = mapping.MateSingle
	rec.Seq1 = append(rec.Seq1, "ACGTACGTAA"...)
	rec.Qual1 = append(rec.Qual1, "IIIIIIIIII"...)
	rec.Placements = append(rec.Placements,
		mapping.Placement{Ref: 0, Pos: 200, Score: 10, Mate: 1, MatePos: -1},
		mapping.Placement{Ref: 1, Reverse: true, Pos: 300, Score: 10, Mate: 1, MatePos: -1})
	rec = b.Next()
	rec.Reset()
	rec.Name = append(rec.Name, "unmapped"...)
	c.Assert(w.WriteBatch(b), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)

	f, err := os.Open(path)
	c.Assert(err, qt.IsNil)
	defer f.Close()
	sr, err := sam.NewReader(f)
	c.Assert(err, qt.IsNil)
	c.Assert(sr.Header().Refs(), qt.HasLen, 2)
	var got []*sam.Record
	for {
		r, err := sr.Read()
		if err == io.EOF {
			break
		}
		c.Assert(err, qt.IsNil)
		got = append(got, r)
	}
	c.Assert(got, qt.HasLen, 2)
	c.Assert(got[0].Ref.Name(), qt.Equals, "refA")
	c.Assert(got[0].Pos, qt.Equals, 200)
	c.Assert(got[0].Flags&sam.Secondary, qt.Equals, sam.Flags(0))
	c.Assert(got[1].Flags&(sam.Secondary|sam.Reverse), qt.Equals, sam.Secondary|sam.Reverse)
	c.Assert(string(got[1].Seq.Expand()), qt.Equals, "TTACGTACGT")
	nh, ok := got[1].Tag([]byte("NH"))
	c.Assert(ok, qt.IsTrue)
	c.Assert(nh.String(), qt.Equals, "NH:i:2")
}
