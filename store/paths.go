// Package store projects an S3-like object namespace onto a POSIX directory tree
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"path/filepath"
	"strings"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/cmn/cos"
)

// isDirKey: keys ending in '/' designate directory objects.
func isDirKey(key string) bool { return cos.IsLastB(key, '/') }

// validateKey rejects empty keys and any key containing "./" -
// relative escapes that path cleaning alone would not surface.
func (s *Store) validateKey(key string) error {
	if key == "" || key == "/" {
		return &cmn.ErrBadRequest{What: "empty object key"}
	}
	if strings.Contains(key, "./") || strings.HasPrefix(key, "/") {
		return &cmn.ErrBadRequest{What: "invalid object key " + key}
	}
	return nil
}

// filePath is where the object body lives: the key path itself, or
// <key>/.folder for directory objects.
func (s *Store) filePath(key string) string {
	if isDirKey(key) {
		return s.root + "/" + key + s.rt.Cfg.FolderObjectName
	}
	return s.root + "/" + key
}

// mdPath is where the object metadata lives: same as filePath except
// for directory objects, whose xattrs sit on the directory itself.
func (s *Store) mdPath(key string) string {
	if isDirKey(key) {
		return trimSep(s.root + "/" + key)
	}
	return s.root + "/" + key
}

// versionsDirOf returns "<dir(key)>/.versions" (fs path).
func (s *Store) versionsDirOf(key string) string {
	dir, _ := splitKey(key)
	return s.root + "/" + dir + versionsDir
}

// versionPath maps (key, version id) to the sidecar file.
func (s *Store) versionPath(key, versionID string) string {
	dir, base := splitKey(key)
	return s.root + "/" + dir + versionsDir + "/" + base + "_" + versionID
}

// mpuPath is the scratch directory of one multipart upload.
func (s *Store) mpuPath(objID string) string {
	return s.root + "/" + s.tmpname + "/" + mpuDir + "/" + objID
}

// stagingPath allocates a unique upload target under tmpdir/uploads.
func (s *Store) stagingPath(token string) string {
	return s.root + "/" + s.tmpname + "/" + uploadsDir + "/" + token
}

func (s *Store) tmpPath() string { return s.root + "/" + s.tmpname }

// splitKey splits a key into its directory part (empty or
// '/'-terminated) and base name, trailing '/' excluded.
func splitKey(key string) (dir, base string) {
	k := cos.TrimLastB(key, '/')
	i := strings.LastIndexByte(k, '/')
	if i < 0 {
		return "", k
	}
	return k[:i+1], k[i+1:]
}

// isInBucket reports whether path, after symlink resolution, stays
// under the bucket root. ENOENT recurses to the parent: uploads create
// new leaves under existing directories. EACCES means not-in-bucket.
func (s *Store) isInBucket(path string) (bool, error) {
	if path != s.root && !strings.HasPrefix(path, s.root+"/") {
		return false, nil
	}
	for p := path; ; {
		real, err := resolveReal(p)
		if err == nil {
			return real == s.realRoot || strings.HasPrefix(real, s.realRoot+"/"), nil
		}
		if cos.IsNotExist(err) {
			parent := filepath.Dir(p)
			if parent == p {
				return false, nil
			}
			p = parent
			continue
		}
		if cos.IsErrAccess(err) {
			return false, nil
		}
		return false, &cmn.ErrInternal{Cause: err}
	}
}

// checkInBucket enforces containment when the boundary feature is on.
func (s *Store) checkInBucket(path string) error {
	if !s.rt.Cfg.CheckBucketBoundaries {
		return nil
	}
	ok, err := s.isInBucket(path)
	if err != nil {
		return err
	}
	if !ok {
		return &cmn.ErrUnauthorized{What: "object path escapes bucket boundaries"}
	}
	return nil
}

func resolveReal(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}
