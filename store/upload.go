// Package store projects an S3-like object namespace onto a POSIX directory tree
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/cmn/cos"
	"github.com/NVIDIA/nsfs/cmn/nlog"
	"github.com/NVIDIA/nsfs/fs"
	"github.com/google/uuid"
)

// UploadObject streams the source into a staging file, commits the
// metadata as xattrs, and atomically publishes at the key path,
// displacing the previous latest per the versioning mode.
func (s *Store) UploadObject(ctx context.Context, rctx *cmn.ReqCtx, p cmn.UploadParams) (res *cmn.UploadResult, err error) {
	done := s.opTimer(rctx, "upload_object")
	defer func() { done(err) }()

	if p.Encryption != "" {
		return nil, &cmn.ErrEncryption{Algorithm: p.Encryption}
	}
	if s.readOnly() {
		return nil, &cmn.ErrUnauthorized{What: "bucket is read-only"}
	}
	if err = s.validateKey(p.Key); err != nil {
		return nil, err
	}
	if err = s.checkInBucket(s.filePath(p.Key)); err != nil {
		return nil, err
	}

	if isDirKey(p.Key) && p.Size == 0 && p.CopySource == nil {
		return s.uploadEmptyDirObject(ctx, p)
	}
	if p.CopySource != nil && isDirKey(p.CopySource.Key) {
		// copy of directory objects is left unspecified upstream
		return nil, &cmn.ErrBadRequest{What: "cannot copy a directory object"}
	}

	staging := s.stagingPath(uuid.NewString())
	if err = cos.CreateDir(filepath.Dir(staging), s.rt.Cfg.BaseModeDir); err != nil {
		return nil, &cmn.ErrInternal{Cause: err}
	}
	defer func() {
		if err != nil {
			// a cancelled/failed upload leaves no garbage at the key; its
			// staging file is removed here, and only a failed removal
			// leaves it for Cleanup
			if rmErr := cos.RemoveFile(staging); rmErr != nil {
				nlog.Warningf("cleanup staging %s: %v", staging, rmErr)
			}
		}
	}()

	var md5hex string
	copyStatus := cmn.CopyStatusNone
	if p.CopySource != nil {
		copyStatus, md5hex, err = s.serverSideCopy(ctx, &p, staging)
		if err != nil {
			return nil, err
		}
		if copyStatus == cmn.CopyStatusSameInode {
			fi, serr := fs.Stat(s.filePath(p.Key))
			if serr != nil {
				return nil, cmn.TranslateFSErr(serr, s.bucket, p.Key)
			}
			md, _ := loadMD(s.filePath(p.Key))
			return &cmn.UploadResult{
				Etag:       etagOf(md, fi.FileID),
				VersionID:  versionIDOf(md, s.mode),
				CopyStatus: copyStatus,
			}, nil
		}
	}
	if copyStatus == cmn.CopyStatusNone || copyStatus == cmn.CopyStatusFallback {
		md5hex, err = s.streamToFile(ctx, p.Reader, staging, s.wantMD5(&p))
		if err != nil {
			return nil, err
		}
	}

	if p.MD5B64 != "" {
		declared, derr := base64.StdEncoding.DecodeString(p.MD5B64)
		if derr != nil {
			return nil, &cmn.ErrBadRequest{What: "malformed content-md5"}
		}
		if hex.EncodeToString(declared) != md5hex {
			return nil, &cmn.ErrBadRequest{What: "content-md5 mismatch"}
		}
	}

	md := &objectMD{Xattr: p.Xattr, ContentType: p.ContentType, MD5: md5hex}
	etag, versionID, err := s.finishUpload(ctx, staging, p.Key, md)
	if err != nil {
		return nil, err
	}
	return &cmn.UploadResult{Etag: etag, VersionID: versionID, CopyStatus: copyStatus}, nil
}

// uploadEmptyDirObject is the size-0 directory-object fast path: the
// directory itself becomes the object, no .folder body is created.
func (s *Store) uploadEmptyDirObject(ctx context.Context, p cmn.UploadParams) (*cmn.UploadResult, error) {
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}
	dir := trimSep(s.mdPath(p.Key))
	if err := cos.CreateDir(dir, s.rt.Cfg.BaseModeDir); err != nil {
		return nil, &cmn.ErrInternal{Cause: err}
	}
	md := &objectMD{Xattr: p.Xattr, ContentType: p.ContentType, DirContent: 0, HasDirContent: true}
	if s.wantMD5(&p) {
		md.MD5 = hex.EncodeToString(md5.New().Sum(nil)) // md5 of the empty body
	}
	if err := replaceAllUserMD(dir, md); err != nil {
		return nil, cmn.TranslateFSErr(err, s.bucket, p.Key)
	}
	// dir_content=0 means no body sentinel
	if err := cos.RemoveFile(dir + "/" + s.rt.Cfg.FolderObjectName); err != nil {
		return nil, cmn.TranslateFSErr(err, s.bucket, p.Key)
	}
	fi, err := fs.Stat(dir)
	if err != nil {
		return nil, cmn.TranslateFSErr(err, s.bucket, p.Key)
	}
	return &cmn.UploadResult{Etag: etagOf(md, fi.FileID)}, nil
}

// serverSideCopy satisfies a same-bucket copy without streaming when
// it can: same-inode short circuit, then hard link into staging. Both
// require xattr copy and only apply while versioning is disabled (a
// link would alias the displaced version otherwise).
func (s *Store) serverSideCopy(ctx context.Context, p *cmn.UploadParams, staging string) (cmn.CopyStatus, string, error) {
	if err := checkCancel(ctx); err != nil {
		return cmn.CopyStatusNone, "", err
	}
	srcPath, err := s.findVersionPath(p.CopySource.Key, p.CopySource.VersionID)
	if err != nil {
		return cmn.CopyStatusNone, "", err
	}
	if err := s.checkInBucket(srcPath); err != nil {
		return cmn.CopyStatusNone, "", err
	}
	src, err := fs.Stat(srcPath)
	if err != nil {
		return cmn.CopyStatusNone, "", cmn.TranslateFSErr(err, s.bucket, p.CopySource.Key)
	}
	if dst, err := fs.Stat(s.filePath(p.Key)); err == nil {
		if dst.Dev == src.Dev && dst.Ino == src.Ino {
			return cmn.CopyStatusSameInode, "", nil
		}
	}
	srcMD, err := loadMD(srcPath)
	if err != nil {
		return cmn.CopyStatusNone, "", cmn.TranslateFSErr(err, s.bucket, p.CopySource.Key)
	}
	// the copy carries the source metadata unless the caller replaces it
	replaceMD := p.Xattr != nil || p.ContentType != ""
	if p.Xattr == nil {
		p.Xattr = srcMD.Xattr
	}
	if p.ContentType == "" {
		p.ContentType = srcMD.ContentType
	}

	// a hard link shares the source inode, xattrs included: only usable
	// when versioning is off and the metadata is copied verbatim
	if s.mode == cmn.VersioningDisabled && !replaceMD {
		if dst, err := fs.Stat(s.filePath(p.Key)); err == nil {
			if dst.Dev == src.Dev && dst.Ino == src.Ino {
				return cmn.CopyStatusSameInode, "", nil
			}
		}
		if err := os.Link(srcPath, staging); err == nil {
			return cmn.CopyStatusLinked, srcMD.MD5, nil
		}
	}
	// fall back to streaming the source bytes
	fh, err := s.openRead(srcPath)
	if err != nil {
		return cmn.CopyStatusNone, "", cmn.TranslateFSErr(err, s.bucket, p.CopySource.Key)
	}
	p.Reader = fh // streamToFile closes it
	return cmn.CopyStatusFallback, "", nil
}

func (s *Store) wantMD5(p *cmn.UploadParams) bool {
	return s.rt.Cfg.CalculateMD5 || s.forceMD5 || p.MD5B64 != ""
}

// streamToFile pipes the source into path through pool buffers with an
// optional incremental md5. One pool slot is reserved for the whole
// write to bound concurrent upload memory.
func (s *Store) streamToFile(ctx context.Context, r io.Reader, path string, calcMD5 bool) (md5hex string, err error) {
	if r == nil {
		r = bytes.NewReader(nil)
	}
	if rc, ok := r.(io.Closer); ok {
		defer rc.Close()
	}
	release, err := s.rt.MM.Reserve(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	fh, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, s.rt.Cfg.BaseModeFile)
	if err != nil {
		return "", &cmn.ErrInternal{Cause: err}
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && err == nil {
			err = &cmn.ErrInternal{Cause: cerr}
		}
	}()

	var digest hash.Hash
	if calcMD5 {
		digest = md5.New()
	}
	buf, err := s.rt.MM.Alloc(ctx)
	if err != nil {
		return "", err
	}
	defer s.rt.MM.Free(buf)

	for {
		if err := checkCancel(ctx); err != nil {
			return "", err
		}
		nr, rerr := r.Read(buf)
		if nr > 0 {
			if _, werr := fh.Write(buf[:nr]); werr != nil {
				return "", &cmn.ErrInternal{Cause: werr}
			}
			if digest != nil {
				digest.Write(buf[:nr])
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", &cmn.ErrInternal{Cause: rerr}
		}
	}
	if s.rt.Cfg.TriggerFsync {
		if err := fh.Sync(); err != nil {
			return "", &cmn.ErrInternal{Cause: err}
		}
	}
	if digest != nil {
		md5hex = hex.EncodeToString(digest.Sum(nil))
	}
	return md5hex, nil
}

// finishUpload is the atomic publish: version xattrs on the staging
// file, then the versioned move to the key path. Directory objects get
// their metadata re-applied on the directory after the move.
func (s *Store) finishUpload(ctx context.Context, staging, key string, md *objectMD) (etag, versionID string, err error) {
	fi, err := fs.Stat(staging)
	if err != nil {
		return "", "", cmn.TranslateFSErr(err, s.bucket, key)
	}
	if s.mode != cmn.VersioningDisabled && !isDirKey(key) {
		if s.mode == cmn.VersioningEnabled {
			md.VersionID = versionIDByStat(fi.FileID)
		} else {
			md.VersionID = cmn.NullVersionID
		}
		latest, verr := s.readVersionInfo(s.filePath(key))
		if verr != nil {
			return "", "", cmn.TranslateFSErr(verr, s.bucket, key)
		}
		if latest != nil {
			md.PrevVersionID = latest.versionID
		}
	}
	if err := storeMD(staging, md); err != nil {
		return "", "", cmn.TranslateFSErr(err, s.bucket, key)
	}

	if isDirKey(key) {
		if err := s.publishDirObject(ctx, staging, key, fi.Size, md); err != nil {
			return "", "", err
		}
	} else if err := s.moveToDest(ctx, staging, key); err != nil {
		return "", "", cmn.TranslateFSErr(err, s.bucket, key)
	}
	return etagOf(md, fi.FileID), md.VersionID, nil
}

// publishDirObject moves the body into <key>/.folder and commits the
// metadata (with dir_content) on the directory itself.
func (s *Store) publishDirObject(ctx context.Context, staging, key string, size int64, md *objectMD) error {
	dir := trimSep(s.mdPath(key))
	err := s.withPublishRetries(ctx, "publish "+key, func() error {
		if err := cos.CreateDir(dir, s.rt.Cfg.BaseModeDir); err != nil {
			return err
		}
		dst := dir + "/" + s.rt.Cfg.FolderObjectName
		if err := os.Rename(staging, dst); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return cmn.TranslateFSErr(err, s.bucket, key)
	}
	dirMD := &objectMD{
		Xattr:         md.Xattr,
		ContentType:   md.ContentType,
		MD5:           md.MD5,
		DirContent:    size,
		HasDirContent: true,
	}
	if err := replaceAllUserMD(dir, dirMD); err != nil {
		return cmn.TranslateFSErr(err, s.bucket, key)
	}
	return nil
}

// versionIDOf mirrors the listing's version-id derivation.
func versionIDOf(md *objectMD, mode cmn.VersioningMode) string {
	switch {
	case md != nil && md.VersionID != "":
		return md.VersionID
	case mode != cmn.VersioningDisabled:
		return cmn.NullVersionID
	default:
		return ""
	}
}
