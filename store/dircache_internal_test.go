// Package store projects an S3-like object namespace onto a POSIX directory tree
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/tools/tassert"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	tassert.CheckFatal(t, os.WriteFile(path, []byte("x"), 0o644))
}

func names(ents []CacheEntry) (out []string) {
	for i := range ents {
		out = append(out, ents[i].Name)
	}
	return out
}

func TestDirCacheLoadAndHit(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b", "a", "c"} {
		writeFile(t, filepath.Join(dir, n))
	}
	c := newDirCache(cmn.DefaultConfig(), false)

	ents, cached, err := c.Get(dir)
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, cached, "small dir must be cached")
	want := []string{"a", "b", "c"}
	got := names(ents)
	tassert.Errorf(t, len(got) == 3 && got[0] == want[0] && got[1] == want[1] && got[2] == want[2],
		"sorted entries: %v", got)

	// unchanged dir: second get is served from cache
	_, cached, err = c.Get(dir)
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, cached, "expected a cache hit")
}

func TestDirCacheInvalidationOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"))
	c := newDirCache(cmn.DefaultConfig(), false)

	ents, _, err := c.Get(dir)
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, len(ents) == 1, "precondition: %v", names(ents))

	// a write bumps the directory mtime; ensure it is observable
	time.Sleep(10 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "b"))

	ents, _, err = c.Get(dir)
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, len(ents) == 2, "stale listing after change: %v", names(ents))
}

func TestDirCacheTooBigFallsBack(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "only"))
	cfg := cmn.DefaultConfig()
	cfg.DirCacheMaxDirSize = 0 // every dir is too big
	c := newDirCache(cfg, false)

	ents, cached, err := c.Get(dir)
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, !cached && ents == nil, "oversized dir must not return a sorted list")
}

func TestVersionsDirCacheMerge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "key"))
	vdir := filepath.Join(dir, versionsDir)
	tassert.CheckFatal(t, os.Mkdir(vdir, 0o777))
	writeFile(t, filepath.Join(vdir, "key_mtime-100-ino-1"))
	writeFile(t, filepath.Join(vdir, "key_mtime-200-ino-2"))

	c := newDirCache(cmn.DefaultConfig(), true)
	ents, cached, err := c.Get(dir)
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, cached, "must cache")
	tassert.Fatalf(t, len(ents) == 3, "merged entries: %v", names(ents))

	// latest first, then embedded mtime descending
	tassert.Errorf(t, ents[0].Name == "key" && !ents[0].IsVersion, "latest must lead: %v", names(ents))
	tassert.Errorf(t, ents[1].Name == "key_mtime-200-ino-2", "newest version second: %v", names(ents))
	tassert.Errorf(t, ents[2].Name == "key_mtime-100-ino-1", "oldest version last: %v", names(ents))
	tassert.Errorf(t, ents[1].Key == "key" && ents[1].VersionID == "mtime-200-ino-2", "parsed entry: %+v", ents[1])
}

func TestVersionsDirCacheDetectsSidecarChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "key"))
	c := newDirCache(cmn.DefaultConfig(), true)

	ents, _, err := c.Get(dir)
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, len(ents) == 1, "precondition: %v", names(ents))

	// creating .versions does not touch the parent's entry set shape,
	// but must still invalidate the versioned cache
	vdir := filepath.Join(dir, versionsDir)
	tassert.CheckFatal(t, os.Mkdir(vdir, 0o777))
	writeFile(t, filepath.Join(vdir, "key_null"))

	ents, _, err = c.Get(dir)
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, len(ents) == 2, "sidecar change not observed: %v", names(ents))
}

func TestDirCacheEviction(t *testing.T) {
	cfg := cmn.DefaultConfig()
	cfg.DirCacheMaxTotalSize = cfg.DirCacheMinDirSize + 16 // fits one small dir
	c := newDirCache(cfg, false)

	dir1, dir2 := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(dir1, "a"))
	writeFile(t, filepath.Join(dir2, "b"))

	_, _, err := c.Get(dir1)
	tassert.CheckFatal(t, err)
	_, _, err = c.Get(dir2)
	tassert.CheckFatal(t, err)

	c.mu.Lock()
	over := c.usage > cfg.DirCacheMaxTotalSize
	c.mu.Unlock()
	tassert.Errorf(t, !over, "usage must stay within the budget")
}
