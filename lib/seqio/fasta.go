//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package seqio reads reference sequences and sequencing reads.
package seqio

import (
	"io"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
)

var toUpperAndN [256]byte

func init() {
	seq.ValidateSeq = false
	for i := range toUpperAndN {
		toUpperAndN[i] = 'N'
	}
	for _, b := range []byte("ACGT") {
		toUpperAndN[b] = b
		toUpperAndN[b+32] = b
	}
}

// Normalize upper-cases seq in place and replaces every non-ACGT base by N.
func Normalize(s []byte) []byte {
	for i, b := range s {
		s[i] = toUpperAndN[b]
	}
	return s
}

// ClipPolyA removes a trailing run of A of at least minLength bases. A minLength of 0 disables clipping.
func ClipPolyA(s []byte, minLength int) []byte {
	if minLength <= 0 {
		return s
	}
	n := len(s)
	for n > 0 && s[n-1] == 'A' {
		n--
	}
	if len(s)-n >= minLength {
		return s[:n]
	}
	return s
}

// ReadSequences calls fn for each record of the FASTA/FASTQ file at path (plain or compressed).
// The name is the record identifier; seq is a normalized copy owned by fn.
func ReadSequences(path string, fn func(name string, s []byte) error) error {
	reader, err := fastx.NewReader(seq.DNAredundant, path, "")
	if err != nil {
		return fault.IO(err, "opening %s", path)
	}
	defer reader.Close()
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return fault.IO(err, "reading %s", path)
		}
		s := make([]byte, len(record.Seq.Seq))
		copy(s, record.Seq.Seq)
		if err = fn(string(record.ID), Normalize(s)); err != nil {
			return err
		}
	}
	return nil
}
