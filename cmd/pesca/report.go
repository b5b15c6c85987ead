//
// Copyright (C) 2015-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"git.sr.ht/~vejnar/Pesca/lib/dispatch"
	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/mapping"
)

type Report struct {
	Fragments      uint64            `json:"fragments"`
	Mapped         uint64            `json:"mapped"`
	Unmapped       map[string]uint64 `json:"unmapped"`
	Mates          map[string]uint64 `json:"mates"`
	Barcodes       int               `json:"distinct_barcodes,omitempty"`
	IndexClasses   int               `json:"index_classes"`
	OverlayClasses int               `json:"overlay_classes"`
	ElapsedSeconds float64           `json:"elapsed_seconds"`
}

func newReport(stats *dispatch.Stats, indexClasses, overlayClasses int) *Report {
	r := &Report{
		Fragments:      stats.Fragments,
		Mapped:         stats.Mapped,
		Unmapped:       make(map[string]uint64),
		Mates:          make(map[string]uint64),
		Barcodes:       stats.Barcodes,
		IndexClasses:   indexClasses,
		OverlayClasses: overlayClasses,
		ElapsedSeconds: stats.Elapsed.Seconds(),
	}
	for reason := mapping.ReasonNoHits; reason < mapping.NumReasons; reason++ {
		r.Unmapped[reason.String()] = stats.Unmapped[reason]
	}
	for mt, n := range stats.Mates {
		r.Mates[mt.String()] = n
	}
	return r
}

func WriteReport(pathReport string, report *Report) error {
	data, _ := json.MarshalIndent(report, "", "  ")
	if pathReport != "-" {
		if err := os.WriteFile(pathReport, append(data, '\n'), 0666); err != nil {
			return fault.IO(err, "writing report")
		}
	} else {
		fmt.Println(string(data))
	}
	return nil
}
