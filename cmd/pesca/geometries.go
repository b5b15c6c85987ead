//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"git.sr.ht/~vejnar/Pesca/lib/geometry"
)

func geometriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "geometries",
		Short: "List geometry presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintf(w, "# presets version %d\n", geometry.PresetVersion)
			for _, p := range geometry.Presets() {
				fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Spec)
			}
			return w.Flush()
		},
	}
}
