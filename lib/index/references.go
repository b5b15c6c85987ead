//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package index

import (
	"git.sr.ht/~vejnar/Pesca/lib/cdbg"
	"git.sr.ht/~vejnar/Pesca/lib/seqio"
)

// ReadReferences reads every record of paths as a reference, numbered in reading order.
func ReadReferences(paths []string) (refs []cdbg.Reference, err error) {
	for _, path := range paths {
		err = seqio.ReadSequences(path, func(name string, s []byte) error {
			refs = append(refs, cdbg.Reference{ID: uint32(len(refs)), Name: name, Length: len(s), Seq: s})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return refs, nil
}
