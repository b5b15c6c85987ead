//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package seqio

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
)

var fastaSuffixes = []string{".fa", ".fasta", ".fna", ".fas"}

// IsFasta reports whether path names a FASTA file, plain or compressed.
func IsFasta(path string) bool {
	for _, z := range []string{".gz", ".xz", ".zst", ".bz2"} {
		path = strings.TrimSuffix(path, z)
	}
	for _, s := range fastaSuffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

// ReadPathList returns the paths listed one per line in path. Empty lines and lines starting with # are skipped.
func ReadPathList(path string) (paths []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.IO(err, "opening list")
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err = scanner.Err(); err != nil {
		return nil, fault.IO(err, "reading list %s", path)
	}
	return paths, nil
}

// ListFasta returns the FASTA files of dir sorted by name.
func ListFasta(dir string) (paths []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fault.IO(err, "listing %s", dir)
	}
	for _, e := range entries {
		if !e.IsDir() && IsFasta(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
