//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package geometry

import "sort"

// PresetVersion is incremented whenever a preset specifier changes.
const PresetVersion = 1

var presets = map[string]string{
	"chromium_v2":    "1{b[16]u[10]x:}2{r:}",
	"chromium_v2_5p": "1{b[16]u[10]x:}2{r:}",
	"chromium_v3":    "1{b[16]u[12]x:}2{r:}",
	"chromium_v3_5p": "1{b[16]u[12]x:}2{r:}",
	"chromium_v4_3p": "1{b[16]u[12]x:}2{r:}",
	"dropseq":        "1{b[12]u[8]x:}2{r:}",
	"citeseq":        "1{b[16]u[12]x:}2{r[15]x:}",
}

type Preset struct {
	Name string
	Spec string
}

// Presets returns the built-in geometries sorted by name.
func Presets() []Preset {
	ps := make([]Preset, 0, len(presets))
	for name, spec := range presets {
		ps = append(ps, Preset{Name: name, Spec: spec})
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Name < ps[j].Name })
	return ps
}
