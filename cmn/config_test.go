// Package cmn provides common types, configuration, and the error taxonomy for nsfs
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package cmn_test

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/tools/tassert"
)

func TestConfigEnvOverride(t *testing.T) {
	t.Setenv("NSFS_CALCULATE_MD5", "true")
	t.Setenv("NSFS_RENAME_RETRIES", "3")
	t.Setenv("NSFS_FOLDER_OBJECT_NAME", ".dirbody")
	t.Setenv("NSFS_WARN_THRESHOLD_MS", "250")
	t.Setenv("NSFS_OPEN_READ_MODE", "rd")

	cfg := cmn.DefaultConfig().LoadEnv()
	tassert.Errorf(t, cfg.CalculateMD5, "NSFS_CALCULATE_MD5 override")
	tassert.Errorf(t, cfg.RenameRetries == 3, "NSFS_RENAME_RETRIES: %d", cfg.RenameRetries)
	tassert.Errorf(t, cfg.FolderObjectName == ".dirbody", "NSFS_FOLDER_OBJECT_NAME: %q", cfg.FolderObjectName)
	tassert.Errorf(t, cfg.WarnThreshold == 250*time.Millisecond, "NSFS_WARN_THRESHOLD_MS: %v", cfg.WarnThreshold)
	tassert.Errorf(t, cfg.OpenReadMode == "rd", "NSFS_OPEN_READ_MODE: %q", cfg.OpenReadMode)
}

func TestConfigBadEnvKeepsDefaults(t *testing.T) {
	t.Setenv("NSFS_BUF_SIZE", "not-a-number")
	cfg := cmn.DefaultConfig().LoadEnv()
	tassert.Errorf(t, cfg.BufSize == cmn.DefaultConfig().BufSize, "malformed env must keep the default")
}

func TestErrCodes(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{&cmn.ErrNoSuchObject{Bucket: "b", Key: "k"}, cmn.CodeNoSuchObject},
		{&cmn.ErrNoSuchUpload{ID: "u"}, cmn.CodeNoSuchUpload},
		{&cmn.ErrUnauthorized{What: "x"}, cmn.CodeUnauthorized},
		{&cmn.ErrBucketExists{Bucket: "b"}, cmn.CodeBucketExists},
		{&cmn.ErrBadRequest{What: "x"}, cmn.CodeBadRequest},
		{&cmn.ErrStreamTimeout{}, cmn.CodeStreamTimeout},
		{&cmn.ErrEncryption{Algorithm: "AES256"}, cmn.CodeEncryption},
		{&cmn.ErrNotEmpty{Path: "p"}, cmn.CodeNotEmpty},
		{&cmn.ErrUnsupported{Op: "op"}, cmn.CodeNotImplemented},
		{errors.New("anything untyped"), cmn.CodeInternal},
	}
	for _, tt := range tests {
		tassert.Errorf(t, cmn.ErrCode(tt.err) == tt.code,
			"ErrCode(%v): got %s, want %s", tt.err, cmn.ErrCode(tt.err), tt.code)
	}
}

func TestTranslateFSErr(t *testing.T) {
	tassert.Errorf(t, cmn.TranslateFSErr(nil, "b", "k") == nil, "nil passthrough")

	enoent := &os.PathError{Op: "stat", Path: "p", Err: syscall.ENOENT}
	tassert.Errorf(t, cmn.ErrCode(cmn.TranslateFSErr(enoent, "b", "k")) == cmn.CodeNoSuchObject, "ENOENT")

	eacces := &os.PathError{Op: "open", Path: "p", Err: syscall.EACCES}
	tassert.Errorf(t, cmn.ErrCode(cmn.TranslateFSErr(eacces, "b", "k")) == cmn.CodeUnauthorized, "EACCES")

	notempty := &os.PathError{Op: "rmdir", Path: "p", Err: syscall.ENOTEMPTY}
	tassert.Errorf(t, cmn.ErrCode(cmn.TranslateFSErr(notempty, "b", "k")) == cmn.CodeNotEmpty, "ENOTEMPTY")

	// an already-typed error is never re-wrapped
	typed := &cmn.ErrBadRequest{What: "x"}
	tassert.Errorf(t, cmn.TranslateFSErr(typed, "b", "k") == error(typed), "taxonomy passthrough")
}

func TestSortedKeys(t *testing.T) {
	keys := cmn.SortedKeys(map[string]string{"zz": "1", "aa": "2", "mm": "3"})
	tassert.Fatalf(t, len(keys) == 3, "got %v", keys)
	tassert.Errorf(t, keys[0] == "aa" && keys[1] == "mm" && keys[2] == "zz", "order: %v", keys)
}
