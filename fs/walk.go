// Package fs provides xattr, stat-identity, and safe link/unlink/move primitives
// on top of a local POSIX filesystem
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package fs

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"
)

// Dirent is one directory entry; IsDir follows symlinks so that a
// symlinked directory classifies as a directory (containment is
// enforced separately, before descending).
type Dirent struct {
	Name  string
	IsDir bool
}

// ReadSortedEntries returns the directory's entries sorted ascending by name.
func ReadSortedEntries(dir string) ([]Dirent, error) {
	dirents, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Dirent, 0, len(dirents))
	for _, de := range dirents {
		out = append(out, Dirent{Name: de.Name(), IsDir: isDirent(dir, de)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ScanDir streams directory entries in readdir order (unsorted); the
// fallback for directories too large to cache. The callback returns
// false to stop early.
func ScanDir(dir string, cb func(de Dirent) (bool, error)) error {
	scanner, err := godirwalk.NewScanner(dir)
	if err != nil {
		return err
	}
	for scanner.Scan() {
		de, err := scanner.Dirent()
		if err != nil {
			return err
		}
		cont, err := cb(Dirent{Name: de.Name(), IsDir: isDirent(dir, de)})
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return scanner.Err()
}

func isDirent(dir string, de *godirwalk.Dirent) bool {
	if de.IsDir() {
		return true
	}
	if de.IsSymlink() || !de.IsRegular() {
		fi, err := os.Stat(filepath.Join(dir, de.Name()))
		return err == nil && fi.IsDir()
	}
	return false
}
