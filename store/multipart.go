// Package store projects an S3-like object namespace onto a POSIX directory tree
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/cmn/cos"
	"github.com/NVIDIA/nsfs/fs"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

const (
	createUploadFname = "create_object_upload"
	partPrefix        = "part-"
	finalFname        = "final"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// createRequest is the persisted original request of one multipart
// upload; parts and completion read it back from the scratch dir.
type createRequest struct {
	Key         string            `json:"key"`
	ContentType string            `json:"content_type,omitempty"`
	Xattr       map[string]string `json:"xattr,omitempty"`
}

// CreateObjectUpload allocates the scratch directory of a new
// multipart upload and persists the create request.
func (s *Store) CreateObjectUpload(ctx context.Context, rctx *cmn.ReqCtx, p cmn.CreateUploadParams) (objID string, err error) {
	done := s.opTimer(rctx, "create_object_upload")
	defer func() { done(err) }()

	if s.readOnly() {
		return "", &cmn.ErrUnauthorized{What: "bucket is read-only"}
	}
	if err = s.validateKey(p.Key); err != nil {
		return "", err
	}
	if err = checkCancel(ctx); err != nil {
		return "", err
	}
	objID = uuid.NewString()
	dir := s.mpuPath(objID)
	if err = cos.CreateDir(dir, s.rt.Cfg.BaseModeDir); err != nil {
		return "", &cmn.ErrInternal{Cause: err}
	}
	req := &createRequest{Key: p.Key, ContentType: p.ContentType, Xattr: p.Xattr}
	b, err := jsonAPI.Marshal(req)
	if err != nil {
		return "", &cmn.ErrInternal{Cause: err}
	}
	if err = os.WriteFile(dir+"/"+createUploadFname, b, s.rt.Cfg.BaseModeFile); err != nil {
		return "", &cmn.ErrInternal{Cause: err}
	}
	return objID, nil
}

// validateObjID keeps caller-supplied upload ids inside the scratch tree.
func validateObjID(objID string) error {
	if objID == "" || strings.ContainsAny(objID, "/\x00") || strings.Contains(objID, "..") {
		return &cmn.ErrNoSuchUpload{ID: objID}
	}
	return nil
}

func (s *Store) loadCreateRequest(objID string) (*createRequest, error) {
	if err := validateObjID(objID); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.mpuPath(objID) + "/" + createUploadFname)
	if err != nil {
		if cos.IsNotExist(err) {
			return nil, &cmn.ErrNoSuchUpload{ID: objID}
		}
		return nil, &cmn.ErrInternal{Cause: err}
	}
	req := &createRequest{}
	if err := jsonAPI.Unmarshal(b, req); err != nil {
		return nil, &cmn.ErrInternal{Cause: err}
	}
	return req, nil
}

// UploadMultipart streams one part into part-<num>. Parts are neither
// versioned nor published.
func (s *Store) UploadMultipart(ctx context.Context, rctx *cmn.ReqCtx, objID string, num int64, r io.Reader) (etag string, err error) {
	done := s.opTimer(rctx, "upload_multipart")
	defer func() { done(err) }()

	if num < 1 {
		return "", &cmn.ErrBadRequest{What: "part number must be positive"}
	}
	if _, err = s.loadCreateRequest(objID); err != nil {
		return "", err
	}
	partPath := s.mpuPath(objID) + "/" + partPrefix + strconv.FormatInt(num, 10)
	tmp := partPath + "." + cos.GenTag()
	md5hex, err := s.streamToFile(ctx, r, tmp, true)
	if err != nil {
		return "", err
	}
	if err = fs.SetXattr(tmp, xaContentMD5, []byte(md5hex)); err != nil {
		return "", cmn.TranslateFSErr(err, s.bucket, objID)
	}
	// re-uploading a part replaces it
	if err = os.Rename(tmp, partPath); err != nil {
		return "", cmn.TranslateFSErr(err, s.bucket, objID)
	}
	return md5hex, nil
}

// ListMultiparts returns the already-uploaded parts sorted by number.
func (s *Store) ListMultiparts(ctx context.Context, rctx *cmn.ReqCtx, objID string) (parts []*cmn.MultipartInfo, err error) {
	done := s.opTimer(rctx, "list_multiparts")
	defer func() { done(err) }()

	if err = checkCancel(ctx); err != nil {
		return nil, err
	}
	if err = validateObjID(objID); err != nil {
		return nil, err
	}
	dir := s.mpuPath(objID)
	err = fs.ScanDir(dir, func(de fs.Dirent) (bool, error) {
		rest, ok := strings.CutPrefix(de.Name, partPrefix)
		if !ok || de.IsDir {
			return true, nil
		}
		num, perr := strconv.ParseInt(rest, 10, 64)
		if perr != nil {
			return true, nil // a temp part mid-rename
		}
		path := dir + "/" + de.Name
		fi, serr := fs.Stat(path)
		if serr != nil {
			return true, nil
		}
		etag := ""
		if b, xerr := fs.GetXattr(path, xaContentMD5); xerr == nil {
			etag = string(b)
		}
		parts = append(parts, &cmn.MultipartInfo{
			Num:          num,
			Size:         fi.Size,
			Etag:         etag,
			LastModified: nsToTime(fi.MtimeNs),
		})
		return true, nil
	})
	if err != nil {
		if cos.IsNotExist(err) {
			return nil, &cmn.ErrNoSuchUpload{ID: objID}
		}
		return nil, cmn.TranslateFSErr(err, s.bucket, objID)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Num < parts[j].Num })
	return parts, nil
}

// CompleteObjectUpload concatenates the named parts into the final
// body and publishes it. The etag is the md5-of-md5s form: md5 over
// the binary bytes of each part's md5, dash, part count.
func (s *Store) CompleteObjectUpload(ctx context.Context, rctx *cmn.ReqCtx, objID string, parts []cmn.CompletePart) (res *cmn.UploadResult, err error) {
	done := s.opTimer(rctx, "complete_object_upload")
	defer func() { done(err) }()

	if s.readOnly() {
		return nil, &cmn.ErrUnauthorized{What: "bucket is read-only"}
	}
	req, err := s.loadCreateRequest(objID)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, &cmn.ErrBadRequest{What: "no parts to complete"}
	}
	sorted := make([]cmn.CompletePart, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Num < sorted[j].Num })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Num == sorted[i-1].Num {
			return nil, &cmn.ErrBadRequest{What: fmt.Sprintf("duplicate part %d", sorted[i].Num)}
		}
	}

	dir := s.mpuPath(objID)
	final := dir + "/" + finalFname
	fh, err := os.OpenFile(final, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, s.rt.Cfg.BaseModeFile)
	if err != nil {
		return nil, cmn.TranslateFSErr(err, s.bucket, req.Key)
	}
	defer func() {
		if fh != nil {
			fh.Close()
		}
	}()

	buf, err := s.rt.MM.Alloc(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rt.MM.Free(buf)

	agg := md5.New()
	for _, part := range sorted {
		if err = checkCancel(ctx); err != nil {
			return nil, err
		}
		partPath := dir + "/" + partPrefix + strconv.FormatInt(part.Num, 10)
		partMD5 := ""
		if b, xerr := fs.GetXattr(partPath, xaContentMD5); xerr == nil {
			partMD5 = string(b)
		}
		if part.Etag != "" && partMD5 != "" && part.Etag != partMD5 {
			return nil, &cmn.ErrBadRequest{What: fmt.Sprintf("etag mismatch on part %d", part.Num)}
		}
		if err = s.appendPart(ctx, fh, partPath, buf); err != nil {
			return nil, err
		}
		if bin, derr := hex.DecodeString(partMD5); derr == nil {
			agg.Write(bin)
		}
	}
	if s.rt.Cfg.TriggerFsync {
		if err = fh.Sync(); err != nil {
			return nil, &cmn.ErrInternal{Cause: err}
		}
	}
	if err = fh.Close(); err != nil {
		fh = nil
		return nil, &cmn.ErrInternal{Cause: err}
	}
	fh = nil

	md := &objectMD{
		Xattr:       req.Xattr,
		ContentType: req.ContentType,
		MD5:         hex.EncodeToString(agg.Sum(nil)) + "-" + strconv.Itoa(len(sorted)),
	}
	// unlike the plain upload path, a directory key always gets its
	// .folder body here, even when the assembled size is zero
	etag, versionID, err := s.finishUpload(ctx, final, req.Key, md)
	if err != nil {
		return nil, err
	}
	if s.rt.Cfg.RemovePartsOnComplete {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			return nil, &cmn.ErrInternal{Cause: rmErr}
		}
	}
	return &cmn.UploadResult{Etag: etag, VersionID: versionID}, nil
}

func (s *Store) appendPart(ctx context.Context, dst *os.File, partPath string, buf []byte) error {
	src, err := s.openRead(partPath)
	if err != nil {
		if cos.IsNotExist(err) {
			return &cmn.ErrBadRequest{What: "missing part file " + partPath}
		}
		return cmn.TranslateFSErr(err, s.bucket, partPath)
	}
	defer src.Close()
	for {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		nr, rerr := src.Read(buf)
		if nr > 0 {
			if _, werr := dst.Write(buf[:nr]); werr != nil {
				return &cmn.ErrInternal{Cause: werr}
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return cmn.TranslateFSErr(rerr, s.bucket, partPath)
		}
	}
}

// AbortObjectUpload discards the whole scratch directory.
func (s *Store) AbortObjectUpload(ctx context.Context, rctx *cmn.ReqCtx, objID string) (err error) {
	done := s.opTimer(rctx, "abort_object_upload")
	defer func() { done(err) }()

	if err = checkCancel(ctx); err != nil {
		return err
	}
	if err = validateObjID(objID); err != nil {
		return err
	}
	if err = os.RemoveAll(s.mpuPath(objID)); err != nil && !cos.IsNotExist(err) {
		return &cmn.ErrInternal{Cause: err}
	}
	return nil
}

// ListUploads enumerates nothing: per-upload state lives in scratch
// directories keyed by ids the caller already holds.
func (s *Store) ListUploads(_ context.Context, _ *cmn.ReqCtx) (*cmn.ListUploadsResult, error) {
	return &cmn.ListUploadsResult{}, nil
}
