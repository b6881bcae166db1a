// Package store projects an S3-like object namespace onto a POSIX directory tree
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"context"
	"os"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/cmn/cos"
	"github.com/NVIDIA/nsfs/fs"
)

// CreateULS creates the bucket's root directory.
func (s *Store) CreateULS(ctx context.Context, rctx *cmn.ReqCtx) (err error) {
	done := s.opTimer(rctx, "create_uls")
	defer func() { done(err) }()

	if err = checkCancel(ctx); err != nil {
		return err
	}
	if err = os.Mkdir(s.root, s.rt.Cfg.BaseModeDir); err != nil {
		if cos.IsErrExists(err) {
			return &cmn.ErrBucketExists{Bucket: s.bucket}
		}
		return cmn.TranslateFSErr(err, s.bucket, "")
	}
	return nil
}

// DeleteULS removes the bucket's root directory. Anything but the
// bucket's own temp dir counts as content and fails with NOT_EMPTY.
func (s *Store) DeleteULS(ctx context.Context, rctx *cmn.ReqCtx) (err error) {
	done := s.opTimer(rctx, "delete_uls")
	defer func() { done(err) }()

	if err = checkCancel(ctx); err != nil {
		return err
	}
	err = fs.ScanDir(s.root, func(de fs.Dirent) (bool, error) {
		if de.Name == s.tmpname {
			return true, nil
		}
		return false, &cmn.ErrNotEmpty{Path: s.root}
	})
	if err != nil {
		if cos.IsNotExist(err) {
			return nil // deleting a missing bucket succeeds quietly
		}
		return cmn.TranslateFSErr(err, s.bucket, "")
	}
	if err = os.RemoveAll(s.root); err != nil {
		return cmn.TranslateFSErr(err, s.bucket, "")
	}
	return nil
}

// Cleanup garbage-collects stale staging files and multipart scratch
// dirs whose mtime predates the cutoff; aborted and cancelled uploads
// leave these behind by design of the publish discipline.
func (s *Store) Cleanup(ctx context.Context, rctx *cmn.ReqCtx, cutoffNs int64) (removed int, err error) {
	done := s.opTimer(rctx, "cleanup")
	defer func() { done(err) }()

	for _, sub := range []string{uploadsDir, fs.LostFoundDir, mpuDir} {
		dir := s.tmpPath() + "/" + sub
		serr := fs.ScanDir(dir, func(de fs.Dirent) (bool, error) {
			if cerr := checkCancel(ctx); cerr != nil {
				return false, cerr
			}
			path := dir + "/" + de.Name
			fi, lerr := fs.Lstat(path)
			if lerr != nil || fi.MtimeNs >= cutoffNs {
				return true, nil
			}
			if rmErr := os.RemoveAll(path); rmErr == nil {
				removed++
			}
			return true, nil
		})
		if serr != nil && !cos.IsNotExist(serr) {
			return removed, cmn.TranslateFSErr(serr, s.bucket, "")
		}
	}
	return removed, nil
}
