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

	"github.com/golang/snappy"
	"github.com/pierrec/lz4"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
)

// Reader reads a record stream batch by batch.
type Reader struct {
	Header
	r       io.Reader
	f       *os.File
	payload []byte
	done    bool
}

// Open opens the stream at path. The compression is guessed from the file suffix.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.IO(err, "opening record stream")
	}
	var src io.Reader = f
	switch compressionOf(path) {
	case CompressionLZ4:
		src = lz4.NewReader(f)
	case CompressionSnappy:
		src = snappy.NewReader(f)
	}
	r, err := NewReader(bufio.NewReaderSize(src, 1<<20))
	if err != nil {
		f.Close()
		return nil, err
	}
	r.f = f
	return r, nil
}

// NewReader reads the stream header from r.
func NewReader(r io.Reader) (*Reader, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	return &Reader{Header: hdr, r: r}, nil
}

// Next fills b with the next batch. It returns io.EOF after the end marker
// and ErrTruncated if the stream stops before it.
func (r *Reader) Next(b *Batch) error {
	if r.done {
		return io.EOF
	}
	var frame [batchFrameSize]byte
	if err := r.readFull(frame[:]); err != nil {
		return err
	}
	length := binary.LittleEndian.Uint32(frame[:4])
	count := binary.LittleEndian.Uint32(frame[4:])
	if length == 0 && count == 0 {
		r.done = true
		return io.EOF
	}
	if cap(r.payload) < int(length)+4 {
		r.payload = make([]byte, int(length)+4)
	}
	r.payload = r.payload[:int(length)+4]
	if err := r.readFull(r.payload); err != nil {
		return err
	}
	payload := r.payload[:length]
	if adler32.Checksum(payload) != binary.LittleEndian.Uint32(r.payload[length:]) {
		return fault.New(fault.KindIO, "record stream batch checksum mismatch")
	}
	b.Reset()
	for i := uint32(0); i < count; i++ {
		var ok bool
		if payload, ok = decodeRecord(payload, b.Next(), r.Mode); !ok {
			return fault.New(fault.KindIO, "record stream batch holds fewer than %d records", count)
		}
	}
	if len(payload) != 0 {
		return fault.New(fault.KindIO, "record stream batch has %d trailing bytes", len(payload))
	}
	return nil
}

func (r *Reader) readFull(b []byte) error {
	if _, err := io.ReadFull(r.r, b); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrTruncated
		}
		return fault.IO(err, "reading record stream")
	}
	return nil
}

func (r *Reader) Close() error {
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}
