//
// Copyright (C) 2015-2021 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package mapping

import (
	"fmt"

	"github.com/biogo/store/interval"
)

// Integer-specific intervals

// ChainInterval is the reference extent of a mate 1 chain.
type ChainInterval struct {
	Start, End int
	UID        uintptr
	Chain      int
}

func (i ChainInterval) Overlap(b interval.IntRange) bool {
	// Half-open interval indexing.
	return i.End > b.Start && i.Start < b.End
}

func (i ChainInterval) ID() uintptr {
	return i.UID
}

func (i ChainInterval) Range() interval.IntRange {
	return interval.IntRange{Start: i.Start, End: i.End}
}

func (i ChainInterval) String() string {
	return fmt.Sprintf("[%d,%d)#%d-chain%d", i.Start, i.End, i.UID, i.Chain)
}

// chainTrees holds one interval tree per reference.
type chainTrees map[uint32]*interval.IntTree

func (ts chainTrees) insert(ref uint32, iv ChainInterval) error {
	tree, ok := ts[ref]
	if !ok {
		tree = &interval.IntTree{}
		ts[ref] = tree
	}
	return tree.Insert(iv, true)
}

func (ts chainTrees) adjust() {
	for _, tree := range ts {
		tree.AdjustRanges()
	}
}

// get returns the mate 1 chains of ref overlapping [start,end).
func (ts chainTrees) get(ref uint32, start, end int) []interval.IntInterface {
	tree, ok := ts[ref]
	if !ok {
		return nil
	}
	return tree.Get(ChainInterval{Start: start, End: end})
}
