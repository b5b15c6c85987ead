//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package seqio

import (
	"bytes"
	"io"
	"os"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
)

// Fragment is a read or a read pair. Read2 is empty for unpaired reads.
type Fragment struct {
	Name         []byte
	Read1, Qual1 []byte
	Read2, Qual2 []byte
}

// Chunk is a unit of work claimed by one worker.
type Chunk struct {
	ID        uint64
	Source    string
	Fragments []Fragment
	Length    int
}

func NewChunk(size int) *Chunk {
	return &Chunk{Fragments: make([]Fragment, size)}
}

// FragmentReader fills chunks with consecutive fragments.
type FragmentReader interface {
	// Fill overwrites c with up to len(c.Fragments) fragments. It returns io.EOF once every input is exhausted.
	Fill(c *Chunk) error
	Close() error
}

// PairedReader reads fragments from lists of read 1 and read 2 files, or from one list of unpaired reads.
type PairedReader struct {
	read1, read2 []string
	ifile        int
	r1, r2       *fastx.Reader
	nChunk       uint64
}

// CheckFiles returns an IOError for the first path that is not a readable file.
func CheckFiles(paths []string) error {
	for _, p := range paths {
		if st, err := os.Stat(p); err != nil {
			return fault.IO(err, "read file")
		} else if st.IsDir() {
			return fault.New(fault.KindIO, "read file %s is a directory", p)
		}
	}
	return nil
}

// NewPairedReader returns a reader over matching read 1 and read 2 file lists.
func NewPairedReader(read1, read2 []string) (*PairedReader, error) {
	if len(read1) == 0 {
		return nil, fault.Config("no read 1 file")
	}
	if len(read1) != len(read2) {
		return nil, fault.Config("%d read 1 file(s) but %d read 2 file(s)", len(read1), len(read2))
	}
	if err := CheckFiles(append(append([]string{}, read1...), read2...)); err != nil {
		return nil, err
	}
	return &PairedReader{read1: read1, read2: read2}, nil
}

// NewSingleReader returns a reader over unpaired read files.
func NewSingleReader(reads []string) (*PairedReader, error) {
	if len(reads) == 0 {
		return nil, fault.Config("no read file")
	}
	if err := CheckFiles(reads); err != nil {
		return nil, err
	}
	return &PairedReader{read1: reads}, nil
}

func (r *PairedReader) open() (err error) {
	if r.r1, err = fastx.NewReader(seq.DNAredundant, r.read1[r.ifile], ""); err != nil {
		return fault.IO(err, "opening %s", r.read1[r.ifile])
	}
	if r.read2 != nil {
		if r.r2, err = fastx.NewReader(seq.DNAredundant, r.read2[r.ifile], ""); err != nil {
			return fault.IO(err, "opening %s", r.read2[r.ifile])
		}
	}
	return nil
}

func (r *PairedReader) closeCurrent() {
	if r.r1 != nil {
		r.r1.Close()
		r.r1 = nil
	}
	if r.r2 != nil {
		r.r2.Close()
		r.r2 = nil
	}
}

// Source returns the file(s) currently read.
func (r *PairedReader) Source() string {
	if r.ifile >= len(r.read1) {
		return ""
	}
	if r.read2 != nil {
		return r.read1[r.ifile] + "," + r.read2[r.ifile]
	}
	return r.read1[r.ifile]
}

func (r *PairedReader) Fill(c *Chunk) error {
	c.Length = 0
	c.ID = r.nChunk
	for c.Length < len(c.Fragments) {
		if r.ifile >= len(r.read1) {
			break
		}
		if r.r1 == nil {
			if err := r.open(); err != nil {
				return err
			}
			c.Source = r.Source()
		}
		rec1, err := r.r1.Read()
		if err == io.EOF {
			if r.r2 != nil {
				if _, err2 := r.r2.Read(); err2 != io.EOF {
					return fault.New(fault.KindIO, "%s has more reads than %s", r.read2[r.ifile], r.read1[r.ifile])
				}
			}
			r.closeCurrent()
			r.ifile++
			// A chunk never spans two inputs
			if c.Length > 0 {
				break
			}
			continue
		} else if err != nil {
			return fault.IO(err, "reading %s", r.read1[r.ifile])
		}
		f := &c.Fragments[c.Length]
		f.Name = append(f.Name[:0], rec1.ID...)
		f.Read1 = append(f.Read1[:0], rec1.Seq.Seq...)
		f.Qual1 = append(f.Qual1[:0], rec1.Seq.Qual...)
		f.Read2, f.Qual2 = f.Read2[:0], f.Qual2[:0]
		if r.r2 != nil {
			rec2, err := r.r2.Read()
			if err == io.EOF {
				return fault.New(fault.KindIO, "%s has more reads than %s", r.read1[r.ifile], r.read2[r.ifile])
			} else if err != nil {
				return fault.IO(err, "reading %s", r.read2[r.ifile])
			}
			if !sameMate(rec1.ID, rec2.ID) {
				return fault.New(fault.KindIO, "different names for read 1 %s and read 2 %s", rec1.ID, rec2.ID)
			}
			f.Read2 = append(f.Read2, rec2.Seq.Seq...)
			f.Qual2 = append(f.Qual2, rec2.Seq.Qual...)
		}
		c.Length++
	}
	if c.Length == 0 {
		return io.EOF
	}
	r.nChunk++
	return nil
}

func (r *PairedReader) Close() error {
	r.closeCurrent()
	r.ifile = len(r.read1)
	return nil
}

// sameMate compares read names, ignoring /1 and /2 suffixes.
func sameMate(a, b []byte) bool {
	trim := func(n []byte) []byte {
		if l := len(n); l > 2 && n[l-2] == '/' && (n[l-1] == '1' || n[l-1] == '2') {
			return n[:l-2]
		}
		return n
	}
	return bytes.Equal(trim(a), trim(b))
}
