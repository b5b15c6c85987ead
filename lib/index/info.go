//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package index

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"git.sr.ht/~vejnar/Pesca/lib/cdbg"
	"git.sr.ht/~vejnar/Pesca/lib/fault"
)

const (
	FileInfo       = "info.toml"
	FileRefInfo    = "refinfo.tsv"
	FileUnitigs    = "unitigs.ctab"
	FileMinimizers = "minimizers.mtab"
	FileClasses    = "classes.ectab"
	FilePoison     = "poison.ptab"
	FileGraph      = "cdbg"
)

// Info is the build-parameter record of an index.
type Info struct {
	MainVersion    uint8  `toml:"main-version" comment:"Index format"`
	MinorVersion   uint8  `toml:"minor-version"`
	BuilderVersion string `toml:"builder-version"`
	BuildID        string `toml:"build-id"`
	K              int    `toml:"k" comment:"k-mers and minimizers"`
	M              int    `toml:"m"`
	Seed           int64  `toml:"seed"`
	References     int    `toml:"references" comment:"Content"`
	Unitigs        int    `toml:"unitigs"`
	Minimizers     int    `toml:"minimizers"`
	Classes        int    `toml:"classes"`
	PoisonKmers    int    `toml:"poison-kmers"`
	ECTable        bool   `toml:"ec-table" comment:"Optional tables"`
	PoisonTable    bool   `toml:"poison-table"`
}

func writeInfo(path string, info *Info) error {
	data, err := toml.Marshal(info)
	if err != nil {
		return fault.Wrap(fault.KindFatal, err, "encoding index info")
	}
	if err := os.WriteFile(path, data, 0666); err != nil {
		return fault.IO(err, "writing index info")
	}
	return nil
}

// ReadInfo reads the build-parameter record at path.
func ReadInfo(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(fault.KindIndex, err, "reading index info")
	}
	info := &Info{}
	if err := toml.Unmarshal(data, info); err != nil {
		return nil, fault.Wrap(fault.KindIndex, err, "parsing %s", path)
	}
	if info.MainVersion != MainVersion {
		return nil, fault.New(fault.KindIndex, "index format version %d, expected %d", info.MainVersion, MainVersion)
	}
	return info, nil
}

func writeRefInfo(path string, refs []cdbg.Reference) error {
	f, err := os.Create(path)
	if err != nil {
		return fault.IO(err, "creating %s", path)
	}
	w := bufio.NewWriter(f)
	for _, r := range refs {
		fmt.Fprintf(w, "%s\t%d\n", r.Name, r.Length)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fault.IO(err, "writing %s", path)
	}
	return f.Close()
}

// ReadRefInfo reads reference names and lengths. Ids follow line order.
func ReadRefInfo(path string) ([]cdbg.Reference, error) {
	tfos, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(fault.KindIndex, err, "opening reference table")
	}
	defer tfos.Close()
	var refs []cdbg.Reference
	tscanner := bufio.NewScanner(tfos)
	for tscanner.Scan() {
		fields := strings.Split(tscanner.Text(), "\t")
		if len(fields) != 2 {
			return nil, fault.New(fault.KindIndex, "%s: expected 2 fields at line %d", path, len(refs)+1)
		}
		length, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fault.Wrap(fault.KindIndex, err, "%s: length at line %d", path, len(refs)+1)
		}
		refs = append(refs, cdbg.Reference{ID: uint32(len(refs)), Name: fields[0], Length: length})
	}
	if err := tscanner.Err(); err != nil {
		return nil, fault.IO(err, "reading %s", path)
	}
	return refs, nil
}
