// Package fs provides xattr, stat-identity, and safe link/unlink/move primitives
// on top of a local POSIX filesystem
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package fs

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// FileID is the (inode, mtime) identity used to detect concurrent
// writers racing on the same path.
type FileID struct {
	Ino     uint64
	MtimeNs int64
}

// Finfo is the subset of stat this store cares about.
type Finfo struct {
	FileID
	Dev    uint64
	Size   int64
	Blocks int64
	Mode   os.FileMode
	IsDir  bool
}

func fromStat(st *unix.Stat_t) *Finfo {
	return &Finfo{
		FileID: FileID{Ino: st.Ino, MtimeNs: st.Mtim.Nano()},
		Dev:    uint64(st.Dev),
		Size:   st.Size,
		Blocks: st.Blocks,
		Mode:   os.FileMode(st.Mode & 0o777),
		IsDir:  st.Mode&unix.S_IFMT == unix.S_IFDIR,
	}
}

func Stat(path string) (*Finfo, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return nil, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	return fromStat(&st), nil
}

func Lstat(path string) (*Finfo, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return nil, &os.PathError{Op: "lstat", Path: path, Err: err}
	}
	return fromStat(&st), nil
}

func Fstat(fh *os.File) (*Finfo, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(fh.Fd()), &st); err != nil {
		return nil, &os.PathError{Op: "fstat", Path: fh.Name(), Err: err}
	}
	return fromStat(&st), nil
}

// Sparse is the recall heuristic: allocated blocks cover less than the
// apparent size.
func (fi *Finfo) Sparse() bool { return fi.Blocks*512 < fi.Size }

// DirectOpen opens a file with OS caching disabled ("rd" read mode).
func DirectOpen(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, syscall.O_DIRECT|flag, perm)
}
