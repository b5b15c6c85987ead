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
	"math/bits"
	"os"
	"sort"
	"unsafe"

	"github.com/exascience/pargo/parallel"
	psort "github.com/exascience/pargo/sort"
	"golang.org/x/sys/unix"

	"git.sr.ht/~vejnar/Pesca/lib/cdbg"
	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/kmer"
)

const (
	minBucketBits = 4
	maxBucketBits = 28
)

// mentry is one minimizer occurrence. val is unitig<<32 | m-mer position in the unitig.
type mentry struct {
	hash, mmer, val uint64
}

func (a mentry) less(b mentry) bool {
	if a.hash != b.hash {
		return a.hash < b.hash
	}
	if a.mmer != b.mmer {
		return a.mmer < b.mmer
	}
	return a.val < b.val
}

type entrySorter []mentry

func (s entrySorter) SequentialSort(i, j int) {
	e := s[i:j]
	sort.SliceStable(e, func(a, b int) bool { return e[a].less(e[b]) })
}

func (s entrySorter) NewTemp() psort.StableSorter {
	return entrySorter(make([]mentry, len(s)))
}

func (s entrySorter) Len() int {
	return len(s)
}

func (s entrySorter) Less(i, j int) bool {
	return s[i].less(s[j])
}

func (s entrySorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(entrySorter)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

// unitigMinimizers appends the minimizer entries of unitig u.
func unitigMinimizers(entries []mentry, sc kmer.Scorer, u uint32, seq []byte) []mentry {
	k, m := sc.K(), sc.M()
	it := kmer.NewIterator(k)
	it.Reset(seq)
	lastQ, lastMmer := -1, kmer.Kmer(0)
	for it.Next() {
		p := it.Pos()
		cn, fwd := it.Canonical()
		mz := sc.Of(cn)
		q := p + mz.Offset
		if !fwd {
			q = p + (k - m - mz.Offset)
		}
		if q == lastQ && mz.Mmer == lastMmer {
			continue
		}
		lastQ, lastMmer = q, mz.Mmer
		entries = append(entries, mentry{hash: mz.Score, mmer: uint64(mz.Mmer), val: uint64(u)<<32 | uint64(q)})
	}
	return entries
}

// collectMinimizers extracts entries over unitig ranges in parallel then sorts them.
func collectMinimizers(unitigs []cdbg.Unitig, sc kmer.Scorer, threads int) []mentry {
	if len(unitigs) == 0 {
		return nil
	}
	result := parallel.RangeReduce(0, len(unitigs), threads, func(low, high int) interface{} {
		var entries []mentry
		for u := low; u < high; u++ {
			entries = unitigMinimizers(entries, sc, uint32(u), unitigs[u].Seq)
		}
		return entries
	}, func(x, y interface{}) interface{} {
		return append(x.([]mentry), y.([]mentry)...)
	})
	entries := result.([]mentry)
	psort.StableSort(entrySorter(entries))
	return entries
}

// minimizerTable is the sorted entry arrays and a directory over the high bits of the hash.
type minimizerTable struct {
	bits   uint
	dir    []uint64
	hashes []uint64
	mmers  []uint64
	vals   []uint64
	mapped []byte
}

func bucketBits(n int) uint {
	b := uint(bits.Len(uint(n)))
	if b < minBucketBits {
		b = minBucketBits
	} else if b > maxBucketBits {
		b = maxBucketBits
	}
	return b
}

func newMinimizerTable(entries []mentry) *minimizerTable {
	t := &minimizerTable{bits: bucketBits(len(entries))}
	t.dir = make([]uint64, (1<<t.bits)+1)
	t.hashes = make([]uint64, len(entries))
	t.mmers = make([]uint64, len(entries))
	t.vals = make([]uint64, len(entries))
	for i, e := range entries {
		t.hashes[i], t.mmers[i], t.vals[i] = e.hash, e.mmer, e.val
		t.dir[(e.hash>>(64-t.bits))+1]++
	}
	for b := 1; b < len(t.dir); b++ {
		t.dir[b] += t.dir[b-1]
	}
	return t
}

func (t *minimizerTable) Len() int { return len(t.hashes) }

// candidates returns the range of entries of minimizer mmer with hash h.
func (t *minimizerTable) candidates(h uint64, mmer uint64) (int, int) {
	b := h >> (64 - t.bits)
	lo, hi := int(t.dir[b]), int(t.dir[b+1])
	i := lo + sort.Search(hi-lo, func(i int) bool {
		j := lo + i
		return t.hashes[j] > h || (t.hashes[j] == h && t.mmers[j] >= mmer)
	})
	j := i
	for j < hi && t.hashes[j] == h && t.mmers[j] == mmer {
		j++
	}
	return i, j
}

// Payload: u64 bucket bits, u64 entry count, directory, hashes, m-mers, values.
func (t *minimizerTable) write(path string) error {
	var buf bytes.Buffer
	buf.Grow((len(t.dir) + 3*len(t.hashes) + 2) * 8)
	for _, v := range []interface{}{uint64(t.bits), uint64(len(t.hashes)), t.dir, t.hashes, t.mmers, t.vals} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return fault.Wrap(fault.KindFatal, err, "encoding minimizers")
		}
	}
	return writeFrame(path, magicMinimizers, buf.Bytes(), false)
}

func (t *minimizerTable) assign(path string, words []uint64) error {
	if len(words) < 2 {
		return fault.New(fault.KindIndex, "%s: truncated minimizer table", path)
	}
	t.bits = uint(words[0])
	n := words[1]
	if t.bits < 1 || t.bits > 63 {
		return fault.New(fault.KindIndex, "%s: invalid bucket bits %d", path, t.bits)
	}
	ndir := uint64(1)<<t.bits + 1
	if uint64(len(words)) != 2+ndir+3*n {
		return fault.New(fault.KindIndex, "%s: truncated minimizer table", path)
	}
	words = words[2:]
	t.dir, words = words[:ndir], words[ndir:]
	t.hashes, words = words[:n], words[n:]
	t.mmers, t.vals = words[:n], words[n:]
	if t.dir[ndir-1] != n {
		return fault.New(fault.KindIndex, "%s: inconsistent minimizer directory", path)
	}
	return nil
}

// readMinimizers memory-maps path on little-endian hosts, or reads it when mmap is not wanted.
func readMinimizers(path string, useMmap bool) (*minimizerTable, error) {
	t := &minimizerTable{}
	if useMmap && nativeLittleEndian() {
		if err := t.mmap(path); err == nil {
			return t, nil
		} else if fault.KindOf(err) == fault.KindIndex {
			return nil, err
		}
	}
	payload, err := readFrame(path, magicMinimizers)
	if err != nil {
		return nil, err
	}
	if len(payload)%8 != 0 {
		return nil, fault.New(fault.KindIndex, "%s: truncated minimizer table", path)
	}
	words := make([]uint64, len(payload)/8)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(payload[i*8:])
	}
	if err := t.assign(path, words); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *minimizerTable) mmap(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fault.Wrap(fault.KindIndex, err, "missing index file")
		}
		return fault.IO(err, "opening %s", path)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return fault.IO(err, "stat %s", path)
	}
	if st.Size() < headerSize {
		return fault.New(fault.KindIndex, "%s: truncated header", path)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return fault.IO(err, "mapping %s", path)
	}
	flags, checksum, err := checkHeader(path, data, magicMinimizers)
	if err == nil && flags&flagZstd != 0 {
		err = fault.New(fault.KindIndex, "%s: compressed minimizer table", path)
	}
	payload := data[headerSize:]
	if err == nil && adler32.Checksum(payload) != checksum {
		err = fault.New(fault.KindIndex, "%s: checksum mismatch", path)
	}
	if err == nil && (len(payload) == 0 || len(payload)%8 != 0) {
		err = fault.New(fault.KindIndex, "%s: truncated minimizer table", path)
	}
	if err == nil {
		err = t.assign(path, unsafe.Slice((*uint64)(unsafe.Pointer(&payload[0])), len(payload)/8))
	}
	if err != nil {
		unix.Munmap(data)
		return err
	}
	t.mapped = data
	return nil
}

func (t *minimizerTable) close() error {
	if t.mapped == nil {
		return nil
	}
	err := unix.Munmap(t.mapped)
	t.mapped = nil
	t.dir, t.hashes, t.mmers, t.vals = nil, nil, nil, nil
	return err
}

func nativeLittleEndian() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}
