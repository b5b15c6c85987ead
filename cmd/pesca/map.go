//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"git.sr.ht/~vejnar/Pesca/lib/dispatch"
	"git.sr.ht/~vejnar/Pesca/lib/eqclass"
	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/geometry"
	"git.sr.ht/~vejnar/Pesca/lib/index"
	"git.sr.ht/~vejnar/Pesca/lib/mapping"
	"git.sr.ht/~vejnar/Pesca/lib/output"
	"git.sr.ht/~vejnar/Pesca/lib/seqio"
)

type mapArgs struct {
	singleCell        bool
	indexDir          string
	geometry          string
	read1, read2      []string
	reads             []string
	output            string
	nWorker           int
	chunkSize         int
	skipping          string
	outputCompression string
	pathSAMOut        string
	pathReport        string
	opt               mapping.Options
}

func (m *mapArgs) source() (seqio.FragmentReader, error) {
	if m.singleCell {
		return seqio.NewPairedReader(m.read1, m.read2)
	}
	if len(m.reads) > 0 {
		if len(m.read1) > 0 || len(m.read2) > 0 {
			return nil, fault.Config("--reads cannot be combined with --read1 and --read2")
		}
		return seqio.NewSingleReader(m.reads)
	}
	return seqio.NewPairedReader(m.read1, m.read2)
}

func runMap(a *app, m *mapArgs) (err error) {
	// Options first: nothing is written on a configuration error
	if m.singleCell {
		m.opt.Mode = mapping.ModeSingleCell
		if m.opt.Geometry, err = geometry.Resolve(m.geometry); err != nil {
			return err
		}
		a.log.Infof("%.1fmin - Geometry %s", a.elapsed(), m.opt.Geometry)
	}
	if m.opt.Skipping, err = mapping.ParseSkipping(m.skipping); err != nil {
		return err
	}
	compression, err := output.ParseCompression(m.outputCompression)
	if err != nil {
		return err
	}
	m.opt.KeepSequences = m.pathSAMOut != ""
	if err = m.opt.Check(); err != nil {
		return err
	}
	dopt := dispatch.DefaultOptions()
	dopt.Workers = m.nWorker
	dopt.ChunkSize = m.chunkSize
	dopt.Log = a.log
	dopt.Start = a.timeStart
	if err = dopt.Check(); err != nil {
		return err
	}
	if m.indexDir == "" || m.output == "" {
		return fault.Config("--index and --output are required")
	}
	src, err := m.source()
	if err != nil {
		return err
	}
	defer src.Close()

	// Index
	a.log.Infof("%.1fmin - Loading index %s", a.elapsed(), m.indexDir)
	info, err := index.ReadInfo(filepath.Join(m.indexDir, index.FileInfo))
	if err != nil {
		return err
	}
	idx, err := index.Load(m.indexDir, index.LoadOptions{IgnoreClasses: !info.ECTable, NoPoison: m.opt.NoPoison})
	if err != nil {
		return err
	}
	defer idx.Close()
	a.log.Infof("%.1fmin - Loaded %s unitigs and %s minimizers", a.elapsed(), humanize.Comma(int64(len(idx.Unitigs))), humanize.Comma(int64(idx.NumMinimizers())))
	res := eqclass.NewResolver(idx.Classes())

	// Outputs
	w, err := output.Create(m.output, compression, output.Header{Mode: m.opt.Mode, Classes: uint32(res.BaseLen()), BuildID: idx.BuildID()})
	if err != nil {
		return err
	}
	writers := []output.BatchWriter{w}
	var samWriter *output.SAMWriter
	if m.pathSAMOut != "" {
		if samWriter, err = output.CreateSAM(output.NewPathSAM(m.pathSAMOut), idx.Refs, max(1, m.nWorker/2)); err != nil {
			w.Abort()
			return err
		}
		writers = append(writers, samWriter)
	}

	newMapper := func() (dispatch.Mapper, error) { return mapping.NewEngine(idx, res, m.opt) }
	stats, err := dispatch.Run(context.Background(), newMapper, src, writers, dopt)
	if samWriter != nil {
		if serr := samWriter.Close(); err == nil {
			err = serr
		}
		if err != nil {
			os.Remove(m.pathSAMOut)
		}
	}
	if err != nil {
		w.Abort()
		return err
	}
	if err = w.Close(res.Overlay()); err != nil {
		return err
	}
	a.log.Infof("%.1fmin - Mapped %s of %s fragments (%d new classes)", a.elapsed(), humanize.Comma(int64(stats.Mapped)), humanize.Comma(int64(stats.Fragments)), res.Overlay().Len())

	if m.pathReport != "" {
		return WriteReport(m.pathReport, newReport(stats, res.BaseLen(), res.Overlay().Len()))
	}
	return nil
}

func mapCommand(a *app, singleCell bool) *cobra.Command {
	m := &mapArgs{singleCell: singleCell, opt: mapping.DefaultOptions()}
	cmd := &cobra.Command{
		Use:   "map-bulk",
		Short: "Map bulk reads to equivalence classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(a, m)
		},
	}
	if singleCell {
		cmd.Use = "map-sc"
		cmd.Short = "Map single-cell reads to equivalence classes"
	}
	f := cmd.Flags()
	f.StringVar(&m.indexDir, "index", "", "Index directory")
	f.StringVar(&m.output, "output", "", "Output directory")
	f.StringSliceVar(&m.read1, "read1", nil, "Read 1 FASTQ file(s) (comma separated)")
	f.StringSliceVar(&m.read2, "read2", nil, "Read 2 FASTQ file(s) (comma separated)")
	if singleCell {
		f.StringVar(&m.geometry, "geometry", "", "Preset name or geometry, e.g. 1{b[16]u[12]x:}2{r:}")
	} else {
		f.StringSliceVar(&m.reads, "reads", nil, "Unpaired read FASTQ file(s) (comma separated)")
	}
	f.IntVar(&m.nWorker, "num_worker", runtime.NumCPU(), "Number of worker(s)")
	f.IntVar(&m.chunkSize, "chunk_size", dispatch.DefaultChunkSize, "Number of fragments per chunk")
	f.BoolVar(&m.opt.NoPoison, "no_poison", false, "Ignore the poison table")
	f.BoolVar(&m.opt.StructConstraints, "struct_constraints", false, "Chain hits by reference diagonal")
	f.StringVar(&m.skipping, "skipping_strategy", mapping.SkipPermissive.String(), "K-mer skipping strategy: permissive or strict")
	f.BoolVar(&m.opt.IgnoreAmbigHits, "ignore_ambig_hits", false, "Do not check highly repeated hits")
	f.IntVar(&m.opt.MaxECCard, "max_ec_card", mapping.DefaultMaxECCard, "Largest class cardinality of a checked ambiguous hit")
	f.IntVar(&m.opt.MaxHitOcc, "max_hit_occ", mapping.DefaultMaxHitOcc, "Occurrences above which a hit is ambiguous")
	f.IntVar(&m.opt.MaxHitOccRecover, "max_hit_occ_recover", mapping.DefaultMaxHitOccRecover, "Occurrences of hits used when no hit is unambiguous")
	f.IntVar(&m.opt.MaxReadOcc, "max_read_occ", mapping.DefaultMaxReadOcc, "Most mappings of a mapped read")
	f.IntVar(&m.opt.MaxFragmentLength, "max_fragment_length", mapping.DefaultMaxFragmentLength, "Longest fragment of joined mates")
	f.StringVar(&m.outputCompression, "output_compression", "none", "Record stream compression: none, lz4, lz4hc or snappy")
	f.StringVar(&m.pathSAMOut, "path_sam_out", "", "Write placements to SAM (BAM with .bam suffix)")
	f.StringVar(&m.pathReport, "path_report", "", "Write report to path (stdout with -)")
	return cmd
}
