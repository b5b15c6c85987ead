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
	"encoding/binary"
	"hash/adler32"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4"

	"git.sr.ht/~vejnar/Pesca/lib/eqclass"
	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/index"
)

// BatchWriter receives the batches of a run in order.
type BatchWriter interface {
	WriteBatch(b *Batch) error
}

// Writer writes a record stream to a partial file renamed by Close.
type Writer struct {
	dir     string
	path    string
	partial string
	hdr     Header
	f       *os.File
	zw      io.WriteCloser
	bw      *bufio.Writer
	buf     []byte

	NRecords uint64
	NBatches uint64
}

// Create starts a stream in dir, creating dir if needed.
func Create(dir string, c Compression, hdr Header) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fault.IO(err, "creating output directory")
	}
	w := &Writer{dir: dir, path: StreamPath(dir, c), hdr: hdr}
	w.partial = w.path + PartialSuffix
	f, err := os.Create(w.partial)
	if err != nil {
		return nil, fault.IO(err, "creating record stream")
	}
	w.f = f
	var dst io.Writer = f
	switch c {
	case CompressionLZ4:
		w.zw = lz4.NewWriter(f)
	case CompressionLZ4HC:
		lzWriter := lz4.NewWriter(f)
		lzWriter.Header = lz4.Header{CompressionLevel: 9}
		w.zw = lzWriter
	case CompressionSnappy:
		w.zw = snappy.NewBufferedWriter(f)
	}
	if w.zw != nil {
		dst = w.zw
	}
	w.bw = bufio.NewWriterSize(dst, 1<<20)
	if _, err := w.bw.Write(hdr.encode()); err != nil {
		w.Abort()
		return nil, fault.IO(err, "writing stream header")
	}
	return w, nil
}

// Path returns the final path of the stream.
func (w *Writer) Path() string { return w.path }

// WriteBatch appends the records of b. Empty batches are skipped.
func (w *Writer) WriteBatch(b *Batch) error {
	w.buf = w.buf[:0]
	recs := b.Filled()
	if len(recs) == 0 {
		return nil
	}
	for i := range recs {
		var err error
		if w.buf, err = appendRecord(w.buf, &recs[i], w.hdr.Mode); err != nil {
			return err
		}
	}
	if err := w.writeFrame(w.buf, uint32(len(recs))); err != nil {
		return err
	}
	w.NRecords += uint64(len(recs))
	w.NBatches++
	return nil
}

func (w *Writer) writeFrame(payload []byte, count uint32) error {
	var frame [batchFrameSize]byte
	binary.LittleEndian.PutUint32(frame[:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(frame[4:], count)
	if _, err := w.bw.Write(frame[:]); err != nil {
		return fault.IO(err, "writing batch")
	}
	if count == 0 && len(payload) == 0 {
		return nil
	}
	if _, err := w.bw.Write(payload); err != nil {
		return fault.IO(err, "writing batch")
	}
	if _, err := w.bw.Write(binary.LittleEndian.AppendUint32(frame[:0], adler32.Checksum(payload))); err != nil {
		return fault.IO(err, "writing batch")
	}
	return nil
}

func (w *Writer) close() error {
	err := w.bw.Flush()
	if w.zw != nil {
		if zerr := w.zw.Close(); err == nil {
			err = zerr
		}
	}
	if ferr := w.f.Close(); err == nil {
		err = ferr
	}
	return err
}

// Close writes overlay when it holds classes, ends the stream and renames it to its final path.
func (w *Writer) Close(overlay *eqclass.Table) error {
	if overlay != nil && overlay.Len() > 0 {
		if err := index.WriteClasses(filepath.Join(w.dir, FileOverlay), overlay, nil); err != nil {
			w.Abort()
			return err
		}
	}
	if err := w.writeFrame(nil, 0); err != nil {
		w.Abort()
		return err
	}
	if err := w.close(); err != nil {
		os.Remove(w.partial)
		return fault.IO(err, "closing record stream")
	}
	if err := os.Rename(w.partial, w.path); err != nil {
		return fault.IO(err, "renaming record stream")
	}
	return nil
}

// Abort removes the partial stream.
func (w *Writer) Abort() error {
	w.close()
	if err := os.Remove(w.partial); err != nil && !os.IsNotExist(err) {
		return fault.IO(err, "removing partial record stream")
	}
	return nil
}
