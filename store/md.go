// Package store projects an S3-like object namespace onto a POSIX directory tree
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"strconv"
	"strings"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/cmn/cos"
	"github.com/NVIDIA/nsfs/fs"
)

// xattr namespace: everything under "user."; the reserved keys below
// are internal and never surface in the public metadata map.
const (
	xattrPrefix = "user."

	xaContentType   = xattrPrefix + "content_type"
	xaContentMD5    = xattrPrefix + "content_md5"
	xaVersionID     = xattrPrefix + "version_id"
	xaPrevVersionID = xattrPrefix + "prev_version_id"
	xaDeleteMarker  = xattrPrefix + "delete_marker"
	xaDirContent    = xattrPrefix + "dir_content"
)

var internalXattrs = map[string]struct{}{
	xaContentType:   {},
	xaContentMD5:    {},
	xaVersionID:     {},
	xaPrevVersionID: {},
	xaDeleteMarker:  {},
	xaDirContent:    {},
}

// objectMD is the decoded metadata of one object or version.
type objectMD struct {
	Xattr         map[string]string // public user metadata, prefix stripped
	ContentType   string
	MD5           string // hex; empty when md5 was not computed
	VersionID     string // "" when never versioned
	PrevVersionID string
	DeleteMarker  bool
	DirContent    int64 // directory-object body size
	HasDirContent bool
}

// loadMD reads and decodes the full xattr set at path. Internal keys
// are split out; remaining user.* keys become the public map. Non-user
// namespaces (system., security., ...) are ignored.
func loadMD(path string) (*objectMD, error) {
	all, err := fs.GetAllXattrs(path)
	if err != nil {
		return nil, err
	}
	md := &objectMD{Xattr: make(map[string]string, len(all))}
	for name, val := range all {
		if !strings.HasPrefix(name, xattrPrefix) {
			continue
		}
		v := string(val)
		switch name {
		case xaContentType:
			md.ContentType = v
		case xaContentMD5:
			md.MD5 = v
		case xaVersionID:
			md.VersionID = v
		case xaPrevVersionID:
			md.PrevVersionID = v
		case xaDeleteMarker:
			md.DeleteMarker = v == "true"
		case xaDirContent:
			md.DirContent, _ = strconv.ParseInt(v, 10, 64)
			md.HasDirContent = true
		default:
			md.Xattr[name[len(xattrPrefix):]] = v
		}
	}
	return md, nil
}

// storeMD writes the metadata onto path. Only non-empty internal
// fields are written; dir_content is written when HasDirContent.
func storeMD(path string, md *objectMD) error {
	for k, v := range md.Xattr {
		if err := fs.SetXattr(path, xattrPrefix+k, []byte(v)); err != nil {
			return err
		}
	}
	type kv struct{ k, v string }
	for _, p := range []kv{
		{xaContentType, md.ContentType},
		{xaContentMD5, md.MD5},
		{xaVersionID, md.VersionID},
		{xaPrevVersionID, md.PrevVersionID},
	} {
		if p.v == "" {
			continue
		}
		if err := fs.SetXattr(path, p.k, []byte(p.v)); err != nil {
			return err
		}
	}
	if md.DeleteMarker {
		if err := fs.SetXattr(path, xaDeleteMarker, []byte("true")); err != nil {
			return err
		}
	}
	if md.HasDirContent {
		if err := fs.SetXattr(path, xaDirContent, []byte(strconv.FormatInt(md.DirContent, 10))); err != nil {
			return err
		}
	}
	return nil
}

// replaceAllUserMD clears every existing user.* xattr before writing
// the new set - an overwritten directory object must not keep stale
// user metadata.
func replaceAllUserMD(path string, md *objectMD) error {
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
	return storeMD(path, md)
}

//
// version ids
//

// versionIDByStat derives the version id from the file's own identity.
func versionIDByStat(id fs.FileID) string {
	return "mtime-" + cos.B36(id.MtimeNs) + "-ino-" + cos.B36(int64(id.Ino))
}

// parseVersionID accepts "null" or "mtime-<b36>-ino-<b36>"; anything
// else is a bad request. Returns the embedded mtime (0 for null).
func parseVersionID(vid string) (mtimeNs int64, err error) {
	if vid == cmn.NullVersionID {
		return 0, nil
	}
	rest, ok := strings.CutPrefix(vid, "mtime-")
	if !ok {
		return 0, &cmn.ErrBadRequest{What: "invalid version id " + vid}
	}
	mt, ino, ok := strings.Cut(rest, "-ino-")
	if !ok {
		return 0, &cmn.ErrBadRequest{What: "invalid version id " + vid}
	}
	if mtimeNs, err = cos.ParseB36(mt); err != nil {
		return 0, &cmn.ErrBadRequest{What: "invalid version id " + vid}
	}
	if _, err = cos.ParseB36(ino); err != nil {
		return 0, &cmn.ErrBadRequest{What: "invalid version id " + vid}
	}
	return mtimeNs, nil
}

// isVersionedName reports whether an entry name carries a version
// suffix, splitting it into the logical base and the version id.
func isVersionedName(name string) (base, vid string, ok bool) {
	if b, found := strings.CutSuffix(name, "_"+cmn.NullVersionID); found {
		return b, cmn.NullVersionID, true
	}
	i := strings.LastIndex(name, "_mtime-")
	if i < 0 {
		return "", "", false
	}
	vid = name[i+1:]
	if _, err := parseVersionID(vid); err != nil {
		return "", "", false
	}
	return name[:i], vid, true
}

// etag: content_md5 when known, else the stat-derived version id. A
// client interprets a dashless etag as a raw md5 and verifies it, so
// the stat form keeps its dashes.
func etagOf(md *objectMD, id fs.FileID) string {
	if md != nil && md.MD5 != "" {
		return md.MD5
	}
	return versionIDByStat(id)
}
