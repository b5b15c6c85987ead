//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

package cmapper

import "git.sr.ht/~vejnar/Pesca/lib/cdbg"

// CoordMapper translates k-mer coordinates between a unitig and the references it occurs on.
type CoordMapper struct {
	Occs   []cdbg.Occurrence
	Length int
	K      int
}

// New returns the mapper of a unitig of length length.
func New(occs []cdbg.Occurrence, length, k int) CoordMapper {
	return CoordMapper{Occs: occs, Length: length, K: k}
}

// LastPos returns the position of the last k-mer of the unitig.
func (cm *CoordMapper) LastPos() int {
	return cm.Length - cm.K
}

// Unitig2Reference translates the k-mer at position pos of the unitig, with orientation
// reverse relative to the unitig, into its position and orientation on the ith occurrence.
func (cm *CoordMapper) Unitig2Reference(i int, pos int, reverse bool) (ref uint32, refPos int, refReverse bool) {
	o := cm.Occs[i]
	ref = o.Ref
	if o.Strand == 1 {
		refPos = o.Start + pos
		refReverse = reverse
	} else if o.Strand == -1 {
		refPos = o.Start + cm.Length - pos - cm.K
		refReverse = !reverse
	}
	return
}
