//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package index

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"git.sr.ht/~vejnar/Pesca/lib/cdbg"
	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/kmer"
	"git.sr.ht/~vejnar/Pesca/lib/seqio"
)

// CheckReferences validates a reference set before any disk write.
func CheckReferences(refs []cdbg.Reference) error {
	if len(refs) == 0 {
		return fault.Config("empty reference set")
	}
	ids := make(map[uint32]struct{}, len(refs))
	names := make(map[string]struct{}, len(refs))
	for i, r := range refs {
		if _, ok := ids[r.ID]; ok {
			return fault.Config("duplicate reference id %d", r.ID)
		}
		ids[r.ID] = struct{}{}
		if r.ID != uint32(i) {
			return fault.Config("reference %s has id %d at position %d", r.Name, r.ID, i)
		}
		if _, ok := names[r.Name]; ok {
			return fault.Config("duplicate reference name %s", r.Name)
		}
		names[r.Name] = struct{}{}
	}
	return nil
}

func checkOutput(dir string, overwrite bool) error {
	if _, err := os.Stat(dir); err == nil {
		if !overwrite {
			return fault.Config("output %s already exists", dir)
		}
	} else if !os.IsNotExist(err) {
		return fault.IO(err, "output")
	}
	return nil
}

// BuildFromReferences compacts refs with compactor and builds the index in dir.
func BuildFromReferences(dir string, refs []cdbg.Reference, compactor cdbg.Compactor, decoys []cdbg.Reference, opt BuildOptions) (*Info, error) {
	if err := opt.Check(); err != nil {
		return nil, err
	}
	if err := CheckReferences(refs); err != nil {
		return nil, err
	}
	if err := checkOutput(dir, opt.Overwrite); err != nil {
		return nil, err
	}
	if opt.PolyAClipLength > 0 {
		for i := range refs {
			refs[i].Seq = seqio.ClipPolyA(refs[i].Seq, opt.PolyAClipLength)
			refs[i].Length = len(refs[i].Seq)
		}
	}
	timeStart := time.Now()
	g, err := compactor.Compact(refs, opt.K)
	if err != nil {
		return nil, err
	}
	opt.Log.Infof("%.1fmin - Compacted %s references into %s unitigs", time.Since(timeStart).Minutes(), humanize.Comma(int64(len(refs))), humanize.Comma(int64(len(g.Unitigs))))
	return Build(dir, g, decoys, opt)
}

// Build writes the index of graph g to dir, atomically.
func Build(dir string, g *cdbg.Graph, decoys []cdbg.Reference, opt BuildOptions) (info *Info, err error) {
	if err := opt.Check(); err != nil {
		return nil, err
	}
	if g.K != opt.K {
		return nil, fault.Config("graph k-mer length %d differs from %d", g.K, opt.K)
	}
	if err := CheckReferences(g.Refs); err != nil {
		return nil, err
	}
	if err := checkOutput(dir, opt.Overwrite); err != nil {
		return nil, err
	}
	if err := g.Check(); err != nil {
		return nil, err
	}
	timeStart := time.Now()
	buildID := uuid.New()
	info = &Info{
		MainVersion:    MainVersion,
		MinorVersion:   MinorVersion,
		BuilderVersion: BuilderVersion,
		BuildID:        buildID.String(),
		K:              opt.K,
		M:              opt.M,
		Seed:           int64(opt.Seed),
		References:     len(g.Refs),
		Unitigs:        len(g.Unitigs),
	}

	// Temporary sibling
	tmp := filepath.Clean(dir) + ".tmp-" + uuid.New().String()
	if err := os.MkdirAll(tmp, 0777); err != nil {
		return nil, fault.IO(err, "creating temporary index")
	}
	defer func() {
		if err != nil {
			os.RemoveAll(tmp)
		}
	}()

	// Minimizers
	sc := kmer.NewScorer(opt.K, opt.M, opt.Seed)
	mins := newMinimizerTable(collectMinimizers(g.Unitigs, sc, opt.Threads))
	info.Minimizers = mins.Len()
	opt.Log.Infof("%.1fmin - Indexed %s minimizers", time.Since(timeStart).Minutes(), humanize.Comma(int64(mins.Len())))
	if err = mins.write(filepath.Join(tmp, FileMinimizers)); err != nil {
		return nil, err
	}

	// Classes
	if !opt.NoECTable {
		classes, unitigClass := buildClasses(g.Unitigs)
		info.ECTable = true
		info.Classes = classes.Len()
		opt.Log.Infof("%.1fmin - Interned %s classes", time.Since(timeStart).Minutes(), humanize.Comma(int64(classes.Len())))
		if err = WriteClasses(filepath.Join(tmp, FileClasses), classes, unitigClass); err != nil {
			return nil, err
		}
	}

	// Poison
	if len(decoys) > 0 {
		idx := newIndex(*info, g.Refs, g.Unitigs, mins)
		poison := newPoisonTable(decoyKmers(idx, decoys))
		info.PoisonTable = true
		info.PoisonKmers = poison.Len()
		opt.Log.Infof("%.1fmin - Found %s poison k-mers in %d decoys", time.Since(timeStart).Minutes(), humanize.Comma(int64(poison.Len())), len(decoys))
		if err = poison.write(filepath.Join(tmp, FilePoison)); err != nil {
			return nil, err
		}
	}

	if err = writeUnitigs(filepath.Join(tmp, FileUnitigs), g.Unitigs); err != nil {
		return nil, err
	}
	if err = writeRefInfo(filepath.Join(tmp, FileRefInfo), g.Refs); err != nil {
		return nil, err
	}
	if opt.KeepIntermediate {
		prefix := filepath.Join(tmp, FileGraph)
		if err = cdbg.WriteGFA(g, prefix+cdbg.SegSuffix, prefix+cdbg.SeqSuffix); err != nil {
			return nil, err
		}
	}
	if err = writeInfo(filepath.Join(tmp, FileInfo), info); err != nil {
		return nil, err
	}
	if err = finalize(tmp, dir, opt.Overwrite); err != nil {
		return nil, err
	}
	opt.Log.Infof("%.1fmin - Index written to %s", time.Since(timeStart).Minutes(), dir)
	return info, nil
}

// decoyKmers returns the canonical k-mers of decoys absent from the graph.
func decoyKmers(idx *Index, decoys []cdbg.Reference) (kmers []uint64) {
	it := kmer.NewIterator(idx.K())
	for _, d := range decoys {
		it.Reset(d.Seq)
		for it.Next() {
			if _, ok := idx.Lookup(it.Forward(), it.Reverse()); !ok {
				cn, _ := it.Canonical()
				kmers = append(kmers, uint64(cn))
			}
		}
	}
	return
}

// finalize renames tmp onto dir. An existing dir is moved away and removed once the new index is in place.
func finalize(tmp, dir string, overwrite bool) error {
	var old string
	if _, err := os.Stat(dir); err == nil {
		if !overwrite {
			return fault.Config("output %s already exists", dir)
		}
		old = filepath.Clean(dir) + ".old-" + uuid.New().String()
		if err := os.Rename(dir, old); err != nil {
			return fault.IO(err, "moving previous index")
		}
	}
	if err := os.Rename(tmp, dir); err != nil {
		if old != "" {
			os.Rename(old, dir)
		}
		return fault.IO(err, "finalizing index")
	}
	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			return fault.IO(err, "removing previous index")
		}
	}
	return nil
}
