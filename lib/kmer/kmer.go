//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package kmer encodes nucleotide k-mers on 2 bits per base.
package kmer

import (
	"math/bits"
)

// MaxK is the largest supported k-mer length.
const MaxK = 31

const invalidBits = uint8(255)

// Kmer is a 2-bit encoded sequence of ACGT, first base in the highest bits.
type Kmer uint64

var (
	asciiToBits     [256]uint8
	asciiToCompBits [256]uint8
	bitsToASCII     = [4]byte{'A', 'C', 'G', 'T'}
	complement      [256]byte
)

func init() {
	for i := range asciiToBits {
		asciiToBits[i] = invalidBits
		asciiToCompBits[i] = invalidBits
		complement[i] = 'N'
	}
	for i, b := range []byte("ACGT") {
		asciiToBits[b] = uint8(i)
		asciiToBits[b+32] = uint8(i)
		asciiToCompBits[b] = uint8(3 - i)
		asciiToCompBits[b+32] = uint8(3 - i)
		complement[b] = bitsToASCII[3-i]
		complement[b+32] = bitsToASCII[3-i]
	}
}

// Bits returns the 2-bit code of base b.
func Bits(b byte) (uint8, bool) {
	v := asciiToBits[b]
	return v, v != invalidBits
}

// Base returns the ASCII base of the 2-bit code b.
func Base(b uint8) byte {
	return bitsToASCII[b&3]
}

// Complement returns the complementary base of b (N for non-ACGT).
func Complement(b byte) byte {
	return complement[b]
}

// Mask returns the mask covering a k-mer of length k.
func Mask(k int) Kmer {
	return ^(Kmer(0xffffffffffffffff) << (uint(k) * 2))
}

// Encode returns the encoding of seq. It returns false if seq contains a non-ACGT base.
func Encode(seq []byte) (Kmer, bool) {
	var k Kmer
	for _, ch := range seq {
		b := asciiToBits[ch]
		if b == invalidBits {
			return 0, false
		}
		k = (k << 2) | Kmer(b)
	}
	return k, true
}

// Decode returns the n bases encoded in k.
func Decode(k Kmer, n int) []byte {
	seq := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		seq[i] = bitsToASCII[k&3]
		k >>= 2
	}
	return seq
}

// ReverseComplement returns the reverse complement of the n-long k-mer k.
func ReverseComplement(k Kmer, n int) Kmer {
	x := ^uint64(k)
	x = (x>>2)&0x3333333333333333 | (x&0x3333333333333333)<<2
	x = (x>>4)&0x0F0F0F0F0F0F0F0F | (x&0x0F0F0F0F0F0F0F0F)<<4
	x = bits.ReverseBytes64(x)
	return Kmer(x >> (64 - uint(n)*2))
}

// Canonical returns the smallest of fwd and its reverse complement rc, and whether it is fwd.
func Canonical(fwd, rc Kmer) (Kmer, bool) {
	if fwd <= rc {
		return fwd, true
	}
	return rc, false
}

// ReverseComplementSeq writes the reverse complement of src into dst and returns it.
func ReverseComplementSeq(dst, src []byte) []byte {
	dst = dst[:0]
	for i := len(src) - 1; i >= 0; i-- {
		dst = append(dst, complement[src[i]])
	}
	return dst
}
