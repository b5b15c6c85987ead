//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package main

import (
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"git.sr.ht/~vejnar/Pesca/lib/cdbg"
	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/index"
	"git.sr.ht/~vejnar/Pesca/lib/seqio"
)

type buildArgs struct {
	refSeqs, refLists, refDirs []string
	decoyPaths                 []string
	cdbgPrefix                 string
	output                     string
	opt                        index.BuildOptions
}

// referencePaths returns the FASTA files of the single reference source given.
func (b *buildArgs) referencePaths() (paths []string, err error) {
	nSource := 0
	for _, s := range [][]string{b.refSeqs, b.refLists, b.refDirs} {
		if len(s) > 0 {
			nSource++
		}
	}
	if nSource != 1 {
		return nil, fault.Config("exactly one of --ref_seqs, --ref_lists or --ref_dirs is required")
	}
	paths = append(paths, b.refSeqs...)
	for _, l := range b.refLists {
		p, err := seqio.ReadPathList(l)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p...)
	}
	for _, d := range b.refDirs {
		p, err := seqio.ListFasta(d)
		if err != nil {
			return nil, err
		}
		if len(p) == 0 {
			return nil, fault.Config("no FASTA file in %s", d)
		}
		paths = append(paths, p...)
	}
	return paths, seqio.CheckFiles(paths)
}

func runBuild(a *app, b *buildArgs) error {
	b.opt.Log = a.log
	if err := b.opt.Check(); err != nil {
		return err
	}
	if b.output == "" {
		return fault.Config("missing --output")
	}
	paths, err := b.referencePaths()
	if err != nil {
		return err
	}
	a.log.Infof("%.1fmin - Reading %d reference file(s)", a.elapsed(), len(paths))
	refs, err := index.ReadReferences(paths)
	if err != nil {
		return err
	}
	var decoys []cdbg.Reference
	if len(b.decoyPaths) > 0 {
		if err := seqio.CheckFiles(b.decoyPaths); err != nil {
			return err
		}
		if decoys, err = index.ReadReferences(b.decoyPaths); err != nil {
			return err
		}
	}
	var compactor cdbg.Compactor = cdbg.MemCompactor{Log: a.log}
	if b.cdbgPrefix != "" {
		compactor = cdbg.GFACompactor{Prefix: b.cdbgPrefix}
	}
	a.log.Infof("%.1fmin - Building index of %s references (k=%d, m=%d)", a.elapsed(), humanize.Comma(int64(len(refs))), b.opt.K, b.opt.M)
	info, err := index.BuildFromReferences(b.output, refs, compactor, decoys, b.opt)
	if err != nil {
		return err
	}
	a.log.Infof("%.1fmin - Done %s unitigs, %s minimizers, %s classes", a.elapsed(), humanize.Comma(int64(info.Unitigs)), humanize.Comma(int64(info.Minimizers)), humanize.Comma(int64(info.Classes)))
	return nil
}

func buildCommand(a *app) *cobra.Command {
	b := &buildArgs{opt: index.DefaultBuildOptions()}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build an index from reference sequences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(a, b)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&b.refSeqs, "ref_seqs", nil, "Reference FASTA file(s) (comma separated)")
	f.StringSliceVar(&b.refLists, "ref_lists", nil, "File(s) listing reference FASTA files, one per line")
	f.StringSliceVar(&b.refDirs, "ref_dirs", nil, "Director(y|ies) of reference FASTA files")
	f.StringSliceVar(&b.decoyPaths, "decoy_paths", nil, "Decoy FASTA file(s) for the poison table")
	f.StringVar(&b.cdbgPrefix, "cdbg_prefix", "", "Read the compacted graph from <prefix>.cf_seg and <prefix>.cf_seq")
	f.StringVar(&b.output, "output", "", "Index directory")
	f.IntVar(&b.opt.K, "klen", index.DefaultK, "k-mer length")
	f.IntVar(&b.opt.M, "mlen", index.DefaultM, "Minimizer length")
	f.Uint64Var(&b.opt.Seed, "seed", index.DefaultSeed, "Minimizer hash seed")
	f.IntVar(&b.opt.Threads, "num_worker", runtime.NumCPU(), "Number of worker(s)")
	f.BoolVar(&b.opt.Overwrite, "overwrite", false, "Replace an existing index")
	f.BoolVar(&b.opt.NoECTable, "no_ec_table", false, "Do not build the equivalence class table")
	f.IntVar(&b.opt.PolyAClipLength, "polya_clip_length", 0, "Clip trailing polyA of at least this length (0 disables)")
	f.BoolVar(&b.opt.KeepIntermediate, "keep_intermediate_dbg", false, "Keep the compacted graph in the index directory")
	return cmd
}
