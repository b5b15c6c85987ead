//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package geometry parses read geometries describing where barcode, UMI and
// biological sequence lie in single-cell reads.
package geometry

import (
	"fmt"
	"strconv"
	"strings"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
)

type Tag uint8

const (
	TagBarcode Tag = iota
	TagUMI
	TagBio
	TagDiscard
)

func (t Tag) Char() byte {
	switch t {
	case TagBarcode:
		return 'b'
	case TagUMI:
		return 'u'
	case TagBio:
		return 'r'
	case TagDiscard:
		return 'x'
	}
	return '?'
}

func (t Tag) String() string {
	switch t {
	case TagBarcode:
		return "barcode"
	case TagUMI:
		return "umi"
	case TagBio:
		return "read"
	case TagDiscard:
		return "discard"
	}
	return "unknown"
}

// Segment is a tagged region. A zero Length is unbounded: the segment runs to the end of the read.
type Segment struct {
	Tag    Tag
	Length int
}

func (s Segment) Unbounded() bool { return s.Length == 0 }

// Geometry holds the segments of read slots 1 and 2 (Slots[0] and Slots[1]).
type Geometry struct {
	Slots [2][]Segment
}

// ParseError is a malformed geometry, Pos being the 0-based offset of the offending character.
type ParseError struct {
	Spec string
	Pos  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid geometry %q at position %d: %s", e.Spec, e.Pos, e.Msg)
}

func (e *ParseError) Kind() fault.Kind { return fault.KindParse }

const maxBound = MaxFieldLength

type parser struct {
	s   string
	pos int
}

func (p *parser) fail(pos int, format string, args ...interface{}) error {
	return &ParseError{Spec: p.s, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) segment() (seg Segment, err error) {
	switch p.s[p.pos] {
	case 'b':
		seg.Tag = TagBarcode
	case 'u':
		seg.Tag = TagUMI
	case 'r':
		seg.Tag = TagBio
	case 'x':
		seg.Tag = TagDiscard
	default:
		return seg, p.fail(p.pos, "unknown tag %q", p.s[p.pos])
	}
	p.pos++
	if p.pos >= len(p.s) {
		return seg, p.fail(p.pos, "missing bound")
	}
	switch p.s[p.pos] {
	case ':':
		p.pos++
	case '[':
		p.pos++
		start := p.pos
		for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
			p.pos++
		}
		if p.pos == start {
			return seg, p.fail(start, "non-numeric bound")
		}
		n, err := strconv.Atoi(p.s[start:p.pos])
		if err != nil || n > maxBound {
			return seg, p.fail(start, "bound too large")
		}
		if n == 0 {
			return seg, p.fail(start, "zero bound")
		}
		if p.pos >= len(p.s) || p.s[p.pos] != ']' {
			return seg, p.fail(p.pos, "missing closing bracket")
		}
		p.pos++
		seg.Length = n
	default:
		return seg, p.fail(p.pos, "expected '[' or ':'")
	}
	return seg, nil
}

// Parse parses a geometry specifier such as 1{b[16]u[12]x:}2{r:}.
func Parse(s string) (*Geometry, error) {
	p := &parser{s: s}
	var g Geometry
	var seen [2]bool
	if len(s) == 0 {
		return nil, p.fail(0, "empty geometry")
	}
	for p.pos < len(s) {
		var slot int
		switch s[p.pos] {
		case '1':
			slot = 0
		case '2':
			slot = 1
		default:
			return nil, p.fail(p.pos, "expected slot number 1 or 2")
		}
		if seen[slot] {
			return nil, p.fail(p.pos, "duplicate slot %d", slot+1)
		}
		seen[slot] = true
		p.pos++
		if p.pos >= len(s) || s[p.pos] != '{' {
			return nil, p.fail(p.pos, "expected '{'")
		}
		p.pos++
		var segs []Segment
		unbounded := false
		for {
			if p.pos >= len(s) {
				return nil, p.fail(p.pos, "missing closing brace")
			}
			if s[p.pos] == '}' {
				if len(segs) == 0 {
					return nil, p.fail(p.pos, "empty block")
				}
				p.pos++
				break
			}
			if s[p.pos] == '1' || s[p.pos] == '2' {
				return nil, p.fail(p.pos, "missing closing brace")
			}
			start := p.pos
			seg, err := p.segment()
			if err != nil {
				return nil, err
			}
			if unbounded {
				if seg.Unbounded() {
					return nil, p.fail(start, "duplicate unbounded segment")
				}
				return nil, p.fail(start, "segment after unbounded segment")
			}
			unbounded = seg.Unbounded()
			segs = append(segs, seg)
		}
		g.Slots[slot] = segs
	}
	if len(g.BiologicalSlots()) == 0 {
		return nil, p.fail(len(s), "no biological segment")
	}
	return &g, nil
}

// Resolve returns the geometry of a preset name, or parses nameOrSpec.
func Resolve(nameOrSpec string) (*Geometry, error) {
	if spec, ok := presets[nameOrSpec]; ok {
		return Parse(spec)
	}
	return Parse(nameOrSpec)
}

// String returns the canonical specifier of g.
func (g *Geometry) String() string {
	var b strings.Builder
	for i, segs := range g.Slots {
		if len(segs) == 0 {
			continue
		}
		b.WriteByte(byte('1' + i))
		b.WriteByte('{')
		for _, seg := range segs {
			b.WriteByte(seg.Tag.Char())
			if seg.Unbounded() {
				b.WriteByte(':')
			} else {
				fmt.Fprintf(&b, "[%d]", seg.Length)
			}
		}
		b.WriteByte('}')
	}
	return b.String()
}

// HasSlot reports whether slot (1 or 2) is described.
func (g *Geometry) HasSlot(slot int) bool {
	return slot >= 1 && slot <= 2 && len(g.Slots[slot-1]) > 0
}

// MinLength returns the sum of the bounded segment lengths of slot (1 or 2).
func (g *Geometry) MinLength(slot int) (l int) {
	if !g.HasSlot(slot) {
		return 0
	}
	for _, seg := range g.Slots[slot-1] {
		l += seg.Length
	}
	return
}

// BiologicalSlots returns the slots (1 or 2) holding biological sequence.
func (g *Geometry) BiologicalSlots() (slots []int) {
	for i, segs := range g.Slots {
		for _, seg := range segs {
			if seg.Tag == TagBio {
				slots = append(slots, i+1)
				break
			}
		}
	}
	return
}
