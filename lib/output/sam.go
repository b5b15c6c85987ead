//
// Copyright (C) 2015-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package output

import (
	"os"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"

	"git.sr.ht/~vejnar/Pesca/lib/cdbg"
	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/kmer"
	"git.sr.ht/~vejnar/Pesca/lib/mapping"
)

// PathSAM stores Path to SAM (Binary=false) or BAM (Binary=true) file.
type PathSAM struct {
	Path   string
	Binary bool
}

func NewPathSAM(path string) PathSAM {
	return PathSAM{Path: path, Binary: strings.HasSuffix(path, ".bam")}
}

var (
	tagNH = sam.NewTag("NH")
	tagCB = sam.NewTag("CB")
	tagUR = sam.NewTag("UR")
)

// SAMWriter writes one alignment per placement of mapped records.
// Records must carry their sequences.
type SAMWriter struct {
	f    *os.File
	sw   *sam.Writer
	bw   *bam.Writer
	refs []*sam.Reference
	seq  []byte
	qual []byte
}

func CreateSAM(p PathSAM, refs []cdbg.Reference, nWorker int) (*SAMWriter, error) {
	w := &SAMWriter{}
	for _, ref := range refs {
		r, err := sam.NewReference(ref.Name, "", "", ref.Length, nil, nil)
		if err != nil {
			return nil, fault.Wrap(fault.KindConfig, err, "SAM reference %s", ref.Name)
		}
		w.refs = append(w.refs, r)
	}
	header, err := sam.NewHeader(nil, w.refs)
	if err != nil {
		return nil, fault.Wrap(fault.KindConfig, err, "SAM header")
	}
	if w.f, err = os.Create(p.Path); err != nil {
		return nil, fault.IO(err, "creating SAM output")
	}
	if p.Binary {
		w.bw, err = bam.NewWriter(w.f, header, nWorker)
	} else {
		w.sw, err = sam.NewWriter(w.f, header, sam.FlagDecimal)
	}
	if err != nil {
		w.f.Close()
		return nil, fault.IO(err, "writing SAM header")
	}
	return w, nil
}

func (w *SAMWriter) WriteBatch(b *Batch) error {
	recs := b.Filled()
	for i := range recs {
		if err := w.Write(&recs[i]); err != nil {
			return err
		}
	}
	return nil
}

// cigar soft-clips the bases of a read of length n at pos falling outside a reference of length refLen.
func cigar(pos, n, refLen int) (int, []sam.CigarOp) {
	var co []sam.CigarOp
	left, right := 0, 0
	if pos < 0 {
		left = min(-pos, n)
		pos = 0
	}
	if end := pos + n - left; end > refLen {
		right = min(end-refLen, n-left)
	}
	if left > 0 {
		co = append(co, sam.NewCigarOp(sam.CigarSoftClipped, left))
	}
	if m := n - left - right; m > 0 {
		co = append(co, sam.NewCigarOp(sam.CigarMatch, m))
	}
	if right > 0 {
		co = append(co, sam.NewCigarOp(sam.CigarSoftClipped, right))
	}
	return pos, co
}

func (w *SAMWriter) Write(rec *mapping.Record) error {
	if !rec.Mapped() {
		return nil
	}
	paired := rec.Mate == mapping.MatePair
	nh := len(rec.Placements)
	if paired {
		nh /= 2
	}
	for i, pl := range rec.Placements {
		seq, qual := rec.Seq1, rec.Qual1
		if pl.Mate == 2 {
			seq, qual = rec.Seq2, rec.Qual2
		}
		w.seq = append(w.seq[:0], seq...)
		w.qual = w.qual[:0]
		for _, q := range qual {
			w.qual = append(w.qual, q-33)
		}
		if pl.Reverse {
			w.seq = kmer.ReverseComplementSeq(w.seq[:0], seq)
			for l, r := 0, len(w.qual)-1; l < r; l, r = l+1, r-1 {
				w.qual[l], w.qual[r] = w.qual[r], w.qual[l]
			}
		}
		var qv []byte
		if len(w.qual) > 0 {
			qv = w.qual
		}
		ref := w.refs[pl.Ref]
		pos, co := cigar(pl.Pos, len(w.seq), ref.Len())

		aux := make([]sam.Aux, 0, 3)
		a, err := sam.NewAux(tagNH, nh)
		if err != nil {
			return fault.Wrap(fault.KindFatal, err, "NH tag")
		}
		aux = append(aux, a)
		if len(rec.Barcode) > 0 {
			a, _ = sam.NewAux(tagCB, string(rec.Barcode))
			aux = append(aux, a)
		}
		if len(rec.UMI) > 0 {
			a, _ = sam.NewAux(tagUR, string(rec.UMI))
			aux = append(aux, a)
		}

		var mref *sam.Reference
		mpos, tlen := -1, 0
		if paired {
			mref = ref
			mpos = max(pl.MatePos, 0)
			mateLen := len(rec.Seq2)
			if pl.Mate == 2 {
				mateLen = len(rec.Seq1)
			}
			if pl.MatePos >= pl.Pos {
				tlen = pl.MatePos + mateLen - pl.Pos
			} else {
				tlen = -(pl.Pos + len(w.seq) - pl.MatePos)
			}
		}
		r, err := sam.NewRecord(string(rec.Name), ref, mref, pos, mpos, tlen, 255, co, w.seq, qv, aux)
		if err != nil {
			return fault.Wrap(fault.KindFatal, err, "SAM record %s", rec.Name)
		}
		if pl.Reverse {
			r.Flags |= sam.Reverse
		}
		switch rec.Mate {
		case mapping.MatePair:
			r.Flags |= sam.Paired | sam.ProperPair
			if rec.Placements[i^1].Reverse {
				r.Flags |= sam.MateReverse
			}
			if i/2 > 0 {
				r.Flags |= sam.Secondary
			}
		case mapping.MateLeftOnly, mapping.MateRightOnly:
			r.Flags |= sam.Paired | sam.MateUnmapped
		}
		if rec.Mate != mapping.MatePair && i > 0 {
			r.Flags |= sam.Secondary
		}
		if rec.Mate != mapping.MateSingle {
			if pl.Mate == 1 {
				r.Flags |= sam.Read1
			} else {
				r.Flags |= sam.Read2
			}
		}
		if w.bw != nil {
			err = w.bw.Write(r)
		} else {
			err = w.sw.Write(r)
		}
		if err != nil {
			return fault.IO(err, "writing SAM record")
		}
	}
	return nil
}

func (w *SAMWriter) Close() error {
	var err error
	if w.bw != nil {
		err = w.bw.Close()
	}
	if ferr := w.f.Close(); err == nil {
		err = ferr
	}
	if err != nil {
		return fault.IO(err, "closing SAM output")
	}
	return nil
}
