//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package eqclass

import (
	"bytes"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
)

func TestPair(t *testing.T) {
	c := qt.New(t)
	p := NewPair(7, true)
	c.Assert(uint32(p), qt.Equals, uint32(15))
	c.Assert(p.Ref(), qt.Equals, uint32(7))
	c.Assert(p.Reverse(), qt.IsTrue)
	c.Assert(p.Flip().Reverse(), qt.IsFalse)
	c.Assert(Canonical([]Pair{NewPair(2, false), NewPair(1, true), NewPair(2, false), NewPair(1, false)}), qt.DeepEquals,
		[]Pair{NewPair(1, false), NewPair(1, true), NewPair(2, false)})
}

func TestCollector(t *testing.T) {
	c := qt.New(t)
	col := NewCollector()
	col.Add(NewPair(9, false))
	col.Add(NewPair(3, true))
	col.Add(NewPair(9, false))
	c.Assert(col.Len(), qt.Equals, 2)
	c.Assert(col.Contains(NewPair(3, true)), qt.IsTrue)
	c.Assert(col.Pairs(nil), qt.DeepEquals, []Pair{NewPair(3, true), NewPair(9, false)})
	col.Reset()
	c.Assert(col.Len(), qt.Equals, 0)
}

func TestTableIntern(t *testing.T) {
	c := qt.New(t)
	tb := NewTable()
	a, b := NewPair(0, false), NewPair(1, true)
	id1 := tb.Intern(Canonical([]Pair{a, b}))
	id2 := tb.Intern(Canonical([]Pair{b, a}))
	c.Assert(id1, qt.Equals, id2)
	id3 := tb.Intern([]Pair{a})
	c.Assert(id3, qt.Equals, uint32(1))
	c.Assert(tb.Len(), qt.Equals, 2)
	c.Assert(tb.Class(id1), qt.DeepEquals, []Pair{a, b})
	_, ok := tb.Lookup([]Pair{b})
	c.Assert(ok, qt.IsFalse)

	var buf bytes.Buffer
	c.Assert(WriteTable(&buf, tb), qt.IsNil)
	tb2, err := ReadTable(bytes.NewReader(buf.Bytes()))
	c.Assert(err, qt.IsNil)
	c.Assert(tb2.Len(), qt.Equals, 2)
	id, ok := tb2.Lookup([]Pair{a, b})
	c.Assert(ok, qt.IsTrue)
	c.Assert(id, qt.Equals, id1)

	_, err = ReadTable(bytes.NewReader(buf.Bytes()[:buf.Len()-2]))
	c.Assert(fault.KindOf(err), qt.Equals, fault.KindIndex)
}

func TestResolver(t *testing.T) {
	c := qt.New(t)
	base := NewTable()
	base.Intern([]Pair{NewPair(0, false)})
	base.Intern([]Pair{NewPair(1, false)})
	r := NewResolver(base)
	c.Assert(r.Resolve([]Pair{NewPair(1, false)}), qt.Equals, uint32(1))

	var wg sync.WaitGroup
	ids := make([]uint32, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = r.Resolve([]Pair{NewPair(0, false), NewPair(1, false)})
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		c.Assert(id, qt.Equals, uint32(2))
	}
	c.Assert(r.Class(2), qt.DeepEquals, []Pair{NewPair(0, false), NewPair(1, false)})
	c.Assert(r.Len(), qt.Equals, 3)
	c.Assert(r.Overlay().Len(), qt.Equals, 1)

	c.Assert(NewResolver(nil).Resolve([]Pair{NewPair(4, true)}), qt.Equals, uint32(0))
}
