//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package eqclass

import "sync"

// Resolver interns classes found while mapping. Ids of classes missing from the
// read-only base table follow the base ids.
type Resolver struct {
	base    *Table
	mu      sync.Mutex
	overlay *Table
}

// NewResolver returns a resolver over base; base may be nil.
func NewResolver(base *Table) *Resolver {
	if base == nil {
		base = NewTable()
	}
	return &Resolver{base: base, overlay: NewTable()}
}

// Resolve returns the class id of the canonical set canon.
func (r *Resolver) Resolve(canon []Pair) uint32 {
	if id, ok := r.base.Lookup(canon); ok {
		return id
	}
	r.mu.Lock()
	id := uint32(r.base.Len()) + r.overlay.Intern(canon)
	r.mu.Unlock()
	return id
}

// Class returns a copy of the pairs of class id.
func (r *Resolver) Class(id uint32) []Pair {
	if int(id) < r.base.Len() {
		return append([]Pair(nil), r.base.Class(id)...)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Pair(nil), r.overlay.Class(id-uint32(r.base.Len()))...)
}

// BaseLen returns the number of classes of the base table.
func (r *Resolver) BaseLen() int { return r.base.Len() }

// Len returns the number of classes known, base and overlay.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.base.Len() + r.overlay.Len()
}

// Overlay returns the run-time classes. It must not be called while resolving.
func (r *Resolver) Overlay() *Table { return r.overlay }
