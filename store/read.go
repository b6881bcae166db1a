// Package store projects an S3-like object namespace onto a POSIX directory tree
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"context"
	"io"
	"os"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/fs"
)

// ReadObjectMD resolves the object (or an explicit version) and
// returns its metadata. A delete marker reads as NoSuchObject.
func (s *Store) ReadObjectMD(ctx context.Context, rctx *cmn.ReqCtx, key, versionID string) (oi *cmn.ObjectInfo, err error) {
	done := s.opTimer(rctx, "read_object_md")
	defer func() { done(err) }()

	if err = s.validateKey(key); err != nil {
		return nil, err
	}
	oi, _, err = s.readMD(ctx, key, versionID)
	return oi, err
}

// readMD is the shared resolve+stat+decode step of the read path.
func (s *Store) readMD(ctx context.Context, key, versionID string) (*cmn.ObjectInfo, *objectMD, error) {
	if err := checkCancel(ctx); err != nil {
		return nil, nil, err
	}
	path, err := s.findVersionPath(key, versionID)
	if err != nil {
		return nil, nil, err
	}
	if isDirKey(key) {
		path = trimSep(s.mdPath(key))
	}
	if err := s.checkInBucket(path); err != nil {
		return nil, nil, err
	}
	fi, err := fs.Stat(path)
	if err != nil {
		return nil, nil, cmn.TranslateFSErr(err, s.bucket, key)
	}
	md, err := loadMD(path)
	if err != nil {
		return nil, nil, cmn.TranslateFSErr(err, s.bucket, key)
	}
	switch {
	case md.DeleteMarker:
		return nil, nil, &cmn.ErrNoSuchObject{Bucket: s.bucket, Key: key, VersionID: versionID}
	case isDirKey(key) && !md.HasDirContent:
		return nil, nil, &cmn.ErrNoSuchObject{Bucket: s.bucket, Key: key}
	case !isDirKey(key) && fi.IsDir:
		// a plain key resolving to a bare directory is not an object
		return nil, nil, &cmn.ErrNoSuchObject{Bucket: s.bucket, Key: key}
	}

	e := &listEntry{key: key, versionID: versionID, isDirObj: isDirKey(key), isVersion: versionID != "" && versionID != md.VersionID}
	oi := s.objectInfo(key, fi, md, e)
	oi.IsLatest = versionID == "" || path == s.filePath(key) || (isDirKey(key) && path == trimSep(s.mdPath(key)))
	return oi, md, nil
}

// ReadObjectStream writes the byte range [start, end) of the object
// into w. end < 0 means to the end; a start at or past the size yields
// an empty, successful stream.
func (s *Store) ReadObjectStream(ctx context.Context, rctx *cmn.ReqCtx, key, versionID string, start, end int64, w io.Writer) (n int64, err error) {
	done := s.opTimer(rctx, "read_object_stream")
	defer func() { done(err) }()

	if err = s.validateKey(key); err != nil {
		return 0, err
	}
	_, md, err := s.readMD(ctx, key, versionID)
	if err != nil {
		return 0, err
	}

	path, err := s.findVersionPath(key, versionID)
	if err != nil {
		return 0, err
	}
	if isDirKey(key) {
		if md.DirContent == 0 {
			return 0, nil // empty directory object: do not even open
		}
		path = s.filePath(key) // the .folder body
	}

	fh, err := s.openRead(path)
	if err != nil {
		return 0, cmn.TranslateFSErr(err, s.bucket, key)
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && err == nil {
			err = &cmn.ErrInternal{Cause: cerr}
		}
	}()

	fi, err := fs.Fstat(fh)
	if err != nil {
		return 0, cmn.TranslateFSErr(err, s.bucket, key)
	}
	if start < 0 {
		start = 0
	}
	if end < 0 || end > fi.Size {
		end = fi.Size
	}
	if start >= end {
		return 0, nil
	}

	// a sparse (not-yet-recalled) file gets a cheap 1-byte warm-up so a
	// large pool buffer is not tied up behind a slow recall
	if s.rt.Cfg.WarmupSparseReads && fi.Sparse() {
		var warm [1]byte
		if _, err := fh.ReadAt(warm[:], start); err != nil && err != io.EOF {
			return 0, cmn.TranslateFSErr(err, s.bucket, key)
		}
	}

	buf, err := s.rt.MM.Alloc(ctx)
	if err != nil {
		return 0, err
	}
	defer s.rt.MM.Free(buf)

	pos := start
	for pos < end {
		if err := checkCancel(ctx); err != nil {
			return n, err
		}
		want := int64(len(buf))
		if left := end - pos; left < want {
			want = left
		}
		nr, rerr := fh.ReadAt(buf[:want], pos)
		if nr > 0 {
			if err := checkCancel(ctx); err != nil {
				return n, err
			}
			nw, werr := w.Write(buf[:nr]) // a blocking writer is the backpressure
			n += int64(nw)
			if werr != nil {
				return n, &cmn.ErrInternal{Cause: werr}
			}
			pos += int64(nr)
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return n, cmn.TranslateFSErr(rerr, s.bucket, key)
		}
	}
	return n, nil
}

func (s *Store) openRead(path string) (*os.File, error) {
	if s.rt.Cfg.OpenReadMode == "rd" {
		return fs.DirectOpen(path, os.O_RDONLY, 0)
	}
	return os.Open(path)
}
