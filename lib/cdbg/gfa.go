//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package cdbg

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/seqio"
)

const (
	SegSuffix = ".cf_seg"
	SeqSuffix = ".cf_seq"
)

// ReadGFA reads a reduced GFA pair of files: segments (id, sequence) and tilings
// of every reference. References are numbered in tiling file order.
func ReadGFA(segPath, seqPath string, k int) (*Graph, error) {
	g := &Graph{K: k}
	segIDs := make(map[string]uint32)

	// Segments
	sfos, err := os.Open(segPath)
	if err != nil {
		return nil, fault.IO(err, "opening segments")
	}
	defer sfos.Close()
	sscanner := bufio.NewScanner(sfos)
	sscanner.Buffer(make([]byte, 1<<16), 1<<30)
	nline := 0
	for sscanner.Scan() {
		nline++
		line := sscanner.Text()
		if len(line) == 0 {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, fault.New(fault.KindParse, "%s:%d: expected 2 fields, got %d", segPath, nline, len(fields))
		}
		if _, ok := segIDs[fields[0]]; ok {
			return nil, fault.New(fault.KindParse, "%s:%d: duplicate segment %s", segPath, nline, fields[0])
		}
		segIDs[fields[0]] = uint32(len(g.Unitigs))
		g.Unitigs = append(g.Unitigs, Unitig{Seq: seqio.Normalize([]byte(fields[1]))})
	}
	if err := sscanner.Err(); err != nil {
		return nil, fault.IO(err, "reading %s", segPath)
	}

	// Tilings
	tfos, err := os.Open(seqPath)
	if err != nil {
		return nil, fault.IO(err, "opening tilings")
	}
	defer tfos.Close()
	tscanner := bufio.NewScanner(tfos)
	tscanner.Buffer(make([]byte, 1<<16), 1<<30)
	nline = 0
	for tscanner.Scan() {
		nline++
		line := tscanner.Text()
		if len(line) == 0 {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, fault.New(fault.KindParse, "%s:%d: expected 2 fields, got %d", seqPath, nline, len(fields))
		}
		ref := Reference{ID: uint32(len(g.Refs)), Name: fields[0]}
		end := 0
		first := true
		for _, token := range strings.Fields(fields[1]) {
			if token[0] == '(' {
				n, err := strconv.Atoi(strings.Trim(token, "()"))
				if err != nil || n < 0 || token[len(token)-1] != ')' {
					return nil, fault.New(fault.KindParse, "%s:%d: invalid gap %s", seqPath, nline, token)
				}
				end += n
				first = true
				continue
			}
			var strand int8
			switch token[len(token)-1] {
			case '+':
				strand = 1
			case '-':
				strand = -1
			default:
				return nil, fault.New(fault.KindParse, "%s:%d: invalid tile %s", seqPath, nline, token)
			}
			id, ok := segIDs[token[:len(token)-1]]
			if !ok {
				return nil, fault.New(fault.KindParse, "%s:%d: unknown segment %s", seqPath, nline, token[:len(token)-1])
			}
			start := end
			if !first {
				start = end - (k - 1)
			}
			g.Unitigs[id].Occs = append(g.Unitigs[id].Occs, Occurrence{Ref: ref.ID, Start: start, Strand: strand})
			end = start + len(g.Unitigs[id].Seq)
			first = false
		}
		ref.Length = end
		g.Refs = append(g.Refs, ref)
	}
	if err := tscanner.Err(); err != nil {
		return nil, fault.IO(err, "reading %s", seqPath)
	}
	return g, nil
}

// WriteGFA writes g as a reduced GFA pair of files.
func WriteGFA(g *Graph, segPath, seqPath string) error {
	sfos, err := os.Create(segPath)
	if err != nil {
		return fault.IO(err, "creating segments")
	}
	defer sfos.Close()
	sw := bufio.NewWriter(sfos)
	for i, u := range g.Unitigs {
		fmt.Fprintf(sw, "%d\t%s\n", i, u.Seq)
	}
	if err := sw.Flush(); err != nil {
		return fault.IO(err, "writing %s", segPath)
	}

	type tile struct {
		unitig uint32
		occ    Occurrence
	}
	tiles := make([][]tile, len(g.Refs))
	for i, u := range g.Unitigs {
		for _, o := range u.Occs {
			tiles[o.Ref] = append(tiles[o.Ref], tile{unitig: uint32(i), occ: o})
		}
	}
	tfos, err := os.Create(seqPath)
	if err != nil {
		return fault.IO(err, "creating tilings")
	}
	defer tfos.Close()
	tw := bufio.NewWriter(tfos)
	for r, ref := range g.Refs {
		ts := tiles[r]
		sort.Slice(ts, func(i, j int) bool { return ts[i].occ.Start < ts[j].occ.Start })
		tw.WriteString(ref.Name)
		tw.WriteByte('\t')
		end := 0
		for i, t := range ts {
			if i > 0 {
				tw.WriteByte(' ')
			}
			if i == 0 && t.occ.Start > 0 {
				fmt.Fprintf(tw, "(%d) ", t.occ.Start)
			} else if i > 0 && t.occ.Start != end-(g.K-1) {
				fmt.Fprintf(tw, "(%d) ", t.occ.Start-end)
			}
			if t.occ.Strand == 1 {
				fmt.Fprintf(tw, "%d+", t.unitig)
			} else {
				fmt.Fprintf(tw, "%d-", t.unitig)
			}
			end = t.occ.Start + len(g.Unitigs[t.unitig].Seq)
		}
		if end < ref.Length {
			if len(ts) > 0 {
				tw.WriteByte(' ')
			}
			fmt.Fprintf(tw, "(%d)", ref.Length-end)
		}
		tw.WriteByte('\n')
	}
	if err := tw.Flush(); err != nil {
		return fault.IO(err, "writing %s", seqPath)
	}
	return nil
}

// GFACompactor reads a graph produced by an external compactor from <Prefix>.cf_seg and <Prefix>.cf_seq.
type GFACompactor struct {
	Prefix string
}

// Compact reads the graph and renumbers its references to match refs by name.
func (gc GFACompactor) Compact(refs []Reference, k int) (*Graph, error) {
	gfa, err := ReadGFA(gc.Prefix+SegSuffix, gc.Prefix+SeqSuffix, k)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int, len(refs))
	for i, r := range refs {
		byName[r.Name] = i
	}
	remap := make([]uint32, len(gfa.Refs))
	seen := make([]bool, len(refs))
	for i, r := range gfa.Refs {
		j, ok := byName[r.Name]
		if !ok {
			return nil, fault.New(fault.KindIndex, "tiling of unknown reference %s", r.Name)
		}
		if r.Length != len(refs[j].Seq) && refs[j].Seq != nil {
			return nil, fault.New(fault.KindIndex, "tiling of %s spans %d bases but reference has %d", r.Name, r.Length, len(refs[j].Seq))
		}
		remap[i] = refs[j].ID
		seen[j] = true
	}
	for j, ok := range seen {
		if !ok {
			return nil, fault.New(fault.KindIndex, "no tiling for reference %s", refs[j].Name)
		}
	}
	for u := range gfa.Unitigs {
		for o := range gfa.Unitigs[u].Occs {
			gfa.Unitigs[u].Occs[o].Ref = remap[gfa.Unitigs[u].Occs[o].Ref]
		}
	}
	g := &Graph{K: k, Refs: make([]Reference, len(refs)), Unitigs: gfa.Unitigs}
	for i, r := range refs {
		g.Refs[i] = Reference{ID: r.ID, Name: r.Name, Length: len(r.Seq), Seq: r.Seq}
		if r.Seq == nil {
			g.Refs[i].Length = gfa.Refs[byNameIndex(gfa.Refs, r.Name)].Length
		}
	}
	return g, nil
}

func byNameIndex(refs []Reference, name string) int {
	for i, r := range refs {
		if r.Name == name {
			return i
		}
	}
	return -1
}
