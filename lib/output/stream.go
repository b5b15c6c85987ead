//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package output writes and reads the mapping record stream.
package output

import (
	"encoding/binary"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/mapping"
)

const (
	Version = 1

	FileStream     = "map.pbs"
	FileOverlay    = "classes.overlay.ectab"
	PartialSuffix  = ".partial"
	headerSize     = 32
	batchFrameSize = 8
)

var streamMagic = [8]byte{'P', 'E', 'S', 'C', 'A', 'P', 'B', 'S'}

var ErrTruncated = fault.New(fault.KindIO, "truncated record stream")

type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionLZ4HC
	CompressionSnappy
)

var compressionNames = [...]string{"none", "lz4", "lz4hc", "snappy"}

func (c Compression) String() string {
	if int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return "unknown"
}

func ParseCompression(s string) (Compression, error) {
	if s == "" {
		return CompressionNone, nil
	}
	for i, n := range compressionNames {
		if s == n {
			return Compression(i), nil
		}
	}
	return CompressionNone, fault.Config("unknown output compression %q (none, lz4, lz4hc or snappy)", s)
}

// Suffix returns the file suffix of the stream.
func (c Compression) Suffix() string {
	switch c {
	case CompressionLZ4, CompressionLZ4HC:
		return ".lz4"
	case CompressionSnappy:
		return ".sz"
	}
	return ""
}

// StreamPath returns the path of the stream written in dir.
func StreamPath(dir string, c Compression) string {
	return filepath.Join(dir, FileStream+c.Suffix())
}

// compressionOf guesses the compression from a stream file name.
func compressionOf(path string) Compression {
	switch {
	case strings.HasSuffix(path, ".lz4"):
		return CompressionLZ4
	case strings.HasSuffix(path, ".sz"):
		return CompressionSnappy
	}
	return CompressionNone
}

// Header describes the run that produced a stream.
type Header struct {
	Mode    mapping.Mode
	Classes uint32
	BuildID uuid.UUID
}

func (h *Header) encode() []byte {
	b := make([]byte, 0, headerSize)
	b = append(b, streamMagic[:]...)
	b = append(b, Version, byte(h.Mode), 0, 0)
	b = binary.LittleEndian.AppendUint32(b, h.Classes)
	return append(b, h.BuildID[:]...)
}

func readHeader(r io.Reader) (h Header, err error) {
	var b [headerSize]byte
	if _, err = io.ReadFull(r, b[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return h, ErrTruncated
		}
		return h, fault.IO(err, "reading stream header")
	}
	if [8]byte(b[:8]) != streamMagic {
		return h, fault.New(fault.KindIO, "not a record stream")
	}
	if b[8] != Version {
		return h, fault.New(fault.KindIO, "record stream version %d, expected %d", b[8], Version)
	}
	h.Mode = mapping.Mode(b[9])
	h.Classes = binary.LittleEndian.Uint32(b[12:16])
	copy(h.BuildID[:], b[16:32])
	return h, nil
}

// appendRecord encodes rec. Barcode and UMI are only stored in single-cell mode.
func appendRecord(b []byte, rec *mapping.Record, mode mapping.Mode) ([]byte, error) {
	b = binary.LittleEndian.AppendUint32(b, rec.Class)
	b = append(b, byte(rec.Mate), byte(rec.Reason))
	if mode == mapping.ModeSingleCell {
		if len(rec.Barcode) > math.MaxUint16 || len(rec.UMI) > math.MaxUint16 {
			return b, fault.New(fault.KindMapping, "fragment %s: barcode or UMI longer than %d", rec.Name, math.MaxUint16)
		}
		b = binary.LittleEndian.AppendUint16(b, uint16(len(rec.Barcode)))
		b = append(b, rec.Barcode...)
		b = binary.LittleEndian.AppendUint16(b, uint16(len(rec.UMI)))
		b = append(b, rec.UMI...)
	}
	return b, nil
}

// decodeRecord decodes the record starting b and returns the remaining bytes.
func decodeRecord(b []byte, rec *mapping.Record, mode mapping.Mode) ([]byte, bool) {
	rec.Reset()
	if len(b) < 6 {
		return nil, false
	}
	rec.Class = binary.LittleEndian.Uint32(b)
	rec.Mate = mapping.MateType(b[4])
	rec.Reason = mapping.Reason(b[5])
	b = b[6:]
	if mode != mapping.ModeSingleCell {
		return b, true
	}
	for _, field := range []*[]byte{&rec.Barcode, &rec.UMI} {
		if len(b) < 2 {
			return nil, false
		}
		l := int(binary.LittleEndian.Uint16(b))
		if len(b) < 2+l {
			return nil, false
		}
		*field = append((*field)[:0], b[2:2+l]...)
		b = b[2+l:]
	}
	return b, true
}
