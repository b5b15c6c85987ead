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
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
)

var version = "DEV"

// app holds the state shared by subcommands.
type app struct {
	log       *logrus.Logger
	verbose   bool
	quiet     bool
	timeStart time.Time
}

func (a *app) setup() {
	a.timeStart = time.Now()
	a.log.Out = os.Stderr
	a.log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	switch {
	case a.verbose:
		a.log.SetLevel(logrus.InfoLevel)
	case a.quiet:
		a.log.SetLevel(logrus.ErrorLevel)
	default:
		a.log.SetLevel(logrus.WarnLevel)
	}
}

// elapsed returns the minutes since the command started.
func (a *app) elapsed() float64 {
	return time.Since(a.timeStart).Minutes()
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pesca %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pesca",
		Short:         "Index references as a colored compacted de Bruijn graph and map reads to equivalence classes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.setup()
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "Verbose")
	rootCmd.PersistentFlags().BoolVar(&a.quiet, "quiet", false, "Only report errors")
	rootCmd.AddCommand(buildCommand(a))
	rootCmd.AddCommand(mapCommand(a, true))
	rootCmd.AddCommand(mapCommand(a, false))
	rootCmd.AddCommand(geometriesCommand())
	rootCmd.AddCommand(versionCommand())
	return rootCmd
}

func main() {
	a := &app{log: logrus.New()}
	if err := newRootCommand(a).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pesca: %s: %v\n", fault.KindOf(err), err)
		os.Exit(1)
	}
}
