// Package store projects an S3-like object namespace onto a POSIX directory tree
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/cmn/cos"
	"github.com/NVIDIA/nsfs/fs"
)

// DeleteObject removes the object (or one version). The versioning
// mode decides between plain unlink, displacement plus delete marker,
// and per-version deletion with promotion; see the mode state machine.
func (s *Store) DeleteObject(ctx context.Context, rctx *cmn.ReqCtx, p cmn.DeleteParams) (res *cmn.DeleteResult, err error) {
	done := s.opTimer(rctx, "delete_object")
	defer func() { done(err) }()

	if s.readOnly() {
		return nil, &cmn.ErrUnauthorized{What: "bucket is read-only"}
	}
	if err = s.validateKey(p.Key); err != nil {
		return nil, err
	}
	if err = s.checkInBucket(s.filePath(p.Key)); err != nil {
		return nil, err
	}
	if err = checkCancel(ctx); err != nil {
		return nil, err
	}

	switch {
	case p.VersionID != "":
		res, err = s.deleteVersion(ctx, p.Key, p.VersionID)
	case isDirKey(p.Key) || s.mode == cmn.VersioningDisabled:
		res, err = s.deleteUnversioned(p.Key)
	default:
		res, err = s.deleteLatest(ctx, p.Key)
	}
	if err != nil {
		return nil, cmn.TranslateFSErr(err, s.bucket, p.Key)
	}
	return res, nil
}

// deleteUnversioned unlinks in place and prunes emptied parents.
// A missing key succeeds quietly.
func (s *Store) deleteUnversioned(key string) (*cmn.DeleteResult, error) {
	if isDirKey(key) {
		return s.deleteDirObject(key)
	}
	if fi, err := fs.Stat(s.filePath(key)); err == nil && fi.IsDir {
		// a bare directory under a plain key is not this object
		return &cmn.DeleteResult{}, nil
	}
	if err := cos.RemoveFile(s.filePath(key)); err != nil {
		return nil, err
	}
	s.removeEmptyParents(filepath.Dir(s.filePath(key)))
	return &cmn.DeleteResult{}, nil
}

// deleteDirObject removes a directory object: the .folder body, then
// either the (now empty) directory chain, or - when real children
// remain - just the object-ness: every user.* xattr.
func (s *Store) deleteDirObject(key string) (*cmn.DeleteResult, error) {
	dir := trimSep(s.mdPath(key))
	if err := cos.RemoveFile(dir + "/" + s.rt.Cfg.FolderObjectName); err != nil &&
		!cos.IsErrNotDir(err) {
		return nil, err
	}
	if err := os.Remove(dir); err != nil {
		switch {
		case cos.IsErrNotEmpty(err):
			// still a directory with children: stop being an object
			if xerr := clearUserXattrs(dir); xerr != nil {
				return nil, xerr
			}
			return &cmn.DeleteResult{}, nil
		case cos.IsNotExist(err), cos.IsErrNotDir(err):
			return &cmn.DeleteResult{}, nil
		default:
			return nil, err
		}
	}
	s.removeEmptyParents(filepath.Dir(dir))
	return &cmn.DeleteResult{}, nil
}

// removeEmptyParents walks upward from dir to the bucket root,
// removing emptied directories; stops quietly at the first
// ENOTEMPTY / ENOENT / ENOTDIR / EACCES.
func (s *Store) removeEmptyParents(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root+"/") {
		if err := os.Remove(dir); err != nil {
			return // not empty, gone, or not ours to remove
		}
		dir = filepath.Dir(dir)
	}
}

func clearUserXattrs(path string) error {
	names, err := fs.ListXattrs(path)
	if err != nil {
		return err
	}
	for _, name := range names {
		if !strings.HasPrefix(name, xattrPrefix) {
			continue
		}
		if err := fs.RemoveXattr(path, name); err != nil {
			return err
		}
	}
	return nil
}

// DeleteMultipleObjects deletes a batch, isolating failures per entry.
// Entries are processed in order so that versions of one key act on a
// consistent view.
func (s *Store) DeleteMultipleObjects(ctx context.Context, rctx *cmn.ReqCtx, entries []cmn.DeleteParams) (out []*cmn.DeleteManyResult, err error) {
	done := s.opTimer(rctx, "delete_multiple_objects")
	defer func() { done(err) }()

	out = make([]*cmn.DeleteManyResult, 0, len(entries))
	for i := range entries {
		if err = checkCancel(ctx); err != nil {
			return out, err
		}
		res, derr := s.DeleteObject(ctx, rctx, entries[i])
		out = append(out, &cmn.DeleteManyResult{Key: entries[i].Key, Result: res, Err: derr})
	}
	return out, nil
}
