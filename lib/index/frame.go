//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package index

import (
	"bytes"
	"encoding/binary"
	"hash/adler32"
	"os"

	"github.com/klauspost/compress/zstd"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
)

// Binary files start with a 16-byte header: magic, version, flags, 2 reserved
// bytes and the adler32 checksum of the uncompressed payload.
const (
	headerSize = 16
	flagZstd   = uint8(1)
)

type magic [8]byte

var (
	magicUnitigs    = magic{'P', 'E', 'S', 'C', 'A', 'U', 'T', 'G'}
	magicMinimizers = magic{'P', 'E', 'S', 'C', 'A', 'M', 'I', 'N'}
	magicClasses    = magic{'P', 'E', 'S', 'C', 'A', 'E', 'Q', 'C'}
	magicPoison     = magic{'P', 'E', 'S', 'C', 'A', 'P', 'S', 'N'}
)

func encodeHeader(m magic, flags uint8, checksum uint32) []byte {
	h := make([]byte, headerSize)
	copy(h, m[:])
	h[8] = MainVersion
	h[9] = flags
	binary.LittleEndian.PutUint32(h[12:], checksum)
	return h
}

// writeFrame writes payload to path, zstd-compressed if compress is set.
func writeFrame(path string, m magic, payload []byte, compress bool) error {
	var flags uint8
	body := payload
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fault.Wrap(fault.KindFatal, err, "zstd encoder")
		}
		body = enc.EncodeAll(payload, nil)
		enc.Close()
		flags |= flagZstd
	}
	f, err := os.Create(path)
	if err != nil {
		return fault.IO(err, "creating %s", path)
	}
	if _, err = f.Write(encodeHeader(m, flags, adler32.Checksum(payload))); err == nil {
		_, err = f.Write(body)
	}
	if err != nil {
		f.Close()
		return fault.IO(err, "writing %s", path)
	}
	if err := f.Close(); err != nil {
		return fault.IO(err, "closing %s", path)
	}
	return nil
}

// checkHeader validates the header of data and returns its flags and checksum.
func checkHeader(path string, data []byte, m magic) (flags uint8, checksum uint32, err error) {
	if len(data) < headerSize {
		return 0, 0, fault.New(fault.KindIndex, "%s: truncated header", path)
	}
	if !bytes.Equal(data[:8], m[:]) {
		return 0, 0, fault.New(fault.KindIndex, "%s: wrong magic", path)
	}
	if data[8] != MainVersion {
		return 0, 0, fault.New(fault.KindIndex, "%s: format version %d, expected %d", path, data[8], MainVersion)
	}
	return data[9], binary.LittleEndian.Uint32(data[12:16]), nil
}

// readFrame reads, decompresses and verifies the payload of path.
func readFrame(path string, m magic) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fault.Wrap(fault.KindIndex, err, "missing index file")
		}
		return nil, fault.IO(err, "reading index file")
	}
	flags, checksum, err := checkHeader(path, data, m)
	if err != nil {
		return nil, err
	}
	payload := data[headerSize:]
	if flags&flagZstd != 0 {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fault.Wrap(fault.KindFatal, err, "zstd decoder")
		}
		payload, err = dec.DecodeAll(payload, nil)
		dec.Close()
		if err != nil {
			return nil, fault.Wrap(fault.KindIndex, err, "%s: corrupt payload", path)
		}
	}
	if adler32.Checksum(payload) != checksum {
		return nil, fault.New(fault.KindIndex, "%s: checksum mismatch", path)
	}
	return payload, nil
}

// decoder reads little-endian values from a payload, recording truncation.
type decoder struct {
	b   []byte
	err bool
}

func (d *decoder) take(n int) []byte {
	if d.err || n < 0 || len(d.b) < n {
		d.err = true
		return nil
	}
	v := d.b[:n]
	d.b = d.b[n:]
	return v
}

func (d *decoder) u8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u32() uint32 {
	if b := d.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) u64() uint64 {
	if b := d.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}
