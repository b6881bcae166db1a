// Package store projects an S3-like object namespace onto a POSIX directory tree
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/tools/tassert"
)

func newBareStore(t *testing.T) *Store {
	t.Helper()
	root := filepath.Join(t.TempDir(), "bucket")
	tassert.CheckFatal(t, os.Mkdir(root, 0o777))
	s, err := New(NewRuntime(cmn.DefaultConfig()), "b", root, "id1", Options{})
	tassert.CheckFatal(t, err)
	return s
}

func TestPathMapping(t *testing.T) {
	s := newBareStore(t)
	tests := []struct {
		key      string
		filePath string // relative to root
		mdPath   string
	}{
		{"plain", "plain", "plain"},
		{"a/b/c", "a/b/c", "a/b/c"},
		{"dir/", "dir/.folder", "dir"},
		{"a/b/dir/", "a/b/dir/.folder", "a/b/dir"},
	}
	for _, tt := range tests {
		tassert.Errorf(t, s.filePath(tt.key) == s.root+"/"+tt.filePath,
			"filePath(%q): got %q", tt.key, s.filePath(tt.key))
		tassert.Errorf(t, trimSep(s.mdPath(tt.key)) == s.root+"/"+tt.mdPath,
			"mdPath(%q): got %q", tt.key, s.mdPath(tt.key))
	}

	vp := s.versionPath("a/b/key", "null")
	tassert.Errorf(t, vp == s.root+"/a/b/.versions/key_null", "versionPath: %q", vp)
}

func TestValidateKey(t *testing.T) {
	s := newBareStore(t)
	good := []string{"k", "a/b", "dir/", "deep/nested/dir/", "dots.in.name", "under_score"}
	for _, key := range good {
		tassert.CheckError(t, s.validateKey(key))
	}
	bad := []string{"", "/", "/abs", "a/./b", "./x", "../up", "a/../b", "tricky/./"}
	for _, key := range bad {
		tassert.Errorf(t, s.validateKey(key) != nil, "key %q must be rejected", key)
	}
}

func TestIsInBucket(t *testing.T) {
	s := newBareStore(t)

	ok, err := s.isInBucket(s.root + "/some/new/leaf")
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, ok, "nonexistent leaf under the root is in bucket")

	ok, err = s.isInBucket("/etc/passwd")
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, !ok, "absolute outsider")

	// a symlink pointing out of the bucket defeats the textual prefix
	outside := t.TempDir()
	link := s.root + "/escape"
	tassert.CheckFatal(t, os.Symlink(outside, link))
	ok, err = s.isInBucket(link + "/f")
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, !ok, "symlink escape must be detected")

	// a symlink staying inside is fine
	tassert.CheckFatal(t, os.Mkdir(s.root+"/real", 0o777))
	tassert.CheckFatal(t, os.Symlink(s.root+"/real", s.root+"/alias"))
	ok, err = s.isInBucket(s.root + "/alias/child")
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, ok, "internal symlink is in bucket")
}
