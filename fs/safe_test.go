// Package fs provides xattr, stat-identity, and safe link/unlink/move primitives
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/NVIDIA/nsfs/fs"
	"github.com/NVIDIA/nsfs/tools/tassert"
)

func mkfile(t *testing.T, path, content string) fs.FileID {
	t.Helper()
	tassert.CheckFatal(t, os.WriteFile(path, []byte(content), 0o644))
	fi, err := fs.Stat(path)
	tassert.CheckFatal(t, err)
	return fi.FileID
}

func TestSafeLink(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	id := mkfile(t, src, "payload")

	tassert.CheckFatal(t, fs.SafeLink(src, dst, id))

	got, err := os.ReadFile(dst)
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, string(got) == "payload", "linked content: %q", got)
}

func TestSafeLinkExistingDst(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	id := mkfile(t, src, "payload")
	mkfile(t, dst, "occupant")

	err := fs.SafeLink(src, dst, id)
	tassert.Fatalf(t, fs.IsRaceErr(err), "existing dst must race, got %v", err)

	got, rerr := os.ReadFile(dst)
	tassert.CheckFatal(t, rerr)
	tassert.Errorf(t, string(got) == "occupant", "occupant must survive: %q", got)
}

func TestSafeUnlink(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "tmp")
	tassert.CheckFatal(t, os.Mkdir(tmp, 0o777))
	target := filepath.Join(dir, "victim")
	id := mkfile(t, target, "bytes")

	tassert.CheckFatal(t, fs.SafeUnlink(target, tmp, id))
	_, err := os.Stat(target)
	tassert.Errorf(t, os.IsNotExist(err), "victim must be gone")

	// quarantine dir must be empty again
	ents, err := os.ReadDir(filepath.Join(tmp, fs.LostFoundDir))
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, len(ents) == 0, "quarantine leftover: %v", ents)
}

func TestSafeUnlinkIdentityMismatch(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "tmp")
	tassert.CheckFatal(t, os.Mkdir(tmp, 0o777))
	target := filepath.Join(dir, "victim")
	mkfile(t, target, "new occupant")

	stale := fs.FileID{Ino: 1, MtimeNs: 1} // identity of a file long replaced
	err := fs.SafeUnlink(target, tmp, stale)
	tassert.Fatalf(t, fs.IsRaceErr(err), "stale identity must race, got %v", err)

	// the new occupant is restored, not unlinked
	got, rerr := os.ReadFile(target)
	tassert.CheckFatal(t, rerr)
	tassert.Errorf(t, string(got) == "new occupant", "occupant content: %q", got)
}

func TestSafeMove(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "tmp")
	tassert.CheckFatal(t, os.Mkdir(tmp, 0o777))
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	id := mkfile(t, src, "moving")

	tassert.CheckFatal(t, fs.SafeMove(src, dst, tmp, id))

	_, err := os.Stat(src)
	tassert.Errorf(t, os.IsNotExist(err), "src must be gone after move")
	got, rerr := os.ReadFile(dst)
	tassert.CheckFatal(t, rerr)
	tassert.Errorf(t, string(got) == "moving", "moved content: %q", got)
}

func TestXattrRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	mkfile(t, path, "x")

	if err := fs.SetXattr(path, "user.test_attr", []byte("value")); err != nil {
		t.Skipf("filesystem without user xattr support: %v", err)
	}
	b, err := fs.GetXattr(path, "user.test_attr")
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, string(b) == "value", "xattr value: %q", b)

	all, err := fs.GetAllXattrs(path)
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, string(all["user.test_attr"]) == "value", "all xattrs: %v", all)

	tassert.CheckFatal(t, fs.RemoveXattr(path, "user.test_attr"))
	tassert.Errorf(t, !fs.IsXattrExist(path, "user.test_attr"), "xattr must be gone")
	// removing twice is quiet
	tassert.CheckFatal(t, fs.RemoveXattr(path, "user.test_attr"))
}

func TestReadSortedEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		mkfile(t, filepath.Join(dir, name), "")
	}
	tassert.CheckFatal(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o777))

	ents, err := fs.ReadSortedEntries(dir)
	tassert.CheckFatal(t, err)
	want := []string{"alpha", "mid", "subdir", "zeta"}
	tassert.Fatalf(t, len(ents) == len(want), "entry count: %d", len(ents))
	for i, e := range ents {
		tassert.Errorf(t, e.Name == want[i], "order at %d: got %q, want %q", i, e.Name, want[i])
	}
	for _, e := range ents {
		tassert.Errorf(t, e.IsDir == (e.Name == "subdir"), "classification of %q", e.Name)
	}
}
