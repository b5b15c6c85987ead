//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

package cmapper

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"git.sr.ht/~vejnar/Pesca/lib/cdbg"
)

func TestCoordMapper(t *testing.T) {
	c := qt.New(t)
	cm := New([]cdbg.Occurrence{{Ref: 3, Start: 100, Strand: 1}, {Ref: 5, Start: 10, Strand: -1}}, 40, 31)
	c.Assert(cm.LastPos(), qt.Equals, 9)

	ref, pos, rev := cm.Unitig2Reference(0, 2, false)
	c.Assert([]interface{}{ref, pos, rev}, qt.DeepEquals, []interface{}{uint32(3), 102, false})
	// Last unitig k-mer is the first on a reverse occurrence
	ref, pos, rev = cm.Unitig2Reference(1, 9, false)
	c.Assert([]interface{}{ref, pos, rev}, qt.DeepEquals, []interface{}{uint32(5), 10, true})
	_, pos, rev = cm.Unitig2Reference(1, 0, true)
	c.Assert(pos, qt.Equals, 19)
	c.Assert(rev, qt.IsFalse)

	// Every k-mer stays within the occurrence
	for i, o := range cm.Occs {
		for p := 0; p <= cm.LastPos(); p++ {
			_, refPos, _ := cm.Unitig2Reference(i, p, false)
			c.Assert(refPos >= o.Start && refPos <= o.Start+cm.LastPos(), qt.IsTrue)
		}
	}
}
