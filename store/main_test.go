// Package store_test exercises the store through its public API
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store_test

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/store"
	"github.com/NVIDIA/nsfs/tools/tassert"
)

const testBucketID = "bck1"

func newTestRuntime() *store.Runtime {
	cfg := cmn.DefaultConfig()
	cfg.CalculateMD5 = true // deterministic etags in tests
	return store.NewRuntime(cfg)
}

func newTestStore(t *testing.T, mode cmn.VersioningMode) *store.Store {
	t.Helper()
	rt := newTestRuntime()
	root := filepath.Join(t.TempDir(), "bucket")
	tassert.CheckFatal(t, os.Mkdir(root, 0o777))
	s, err := store.New(rt, "test-bucket", root, testBucketID, store.Options{Versioning: mode})
	tassert.CheckFatal(t, err)
	return s
}

func upload(t *testing.T, s *store.Store, key string, data []byte, xattr map[string]string) *cmn.UploadResult {
	t.Helper()
	res, err := s.UploadObject(context.Background(), nil, cmn.UploadParams{
		Key:    key,
		Size:   int64(len(data)),
		Reader: bytes.NewReader(data),
		Xattr:  xattr,
	})
	tassert.CheckFatal(t, err)
	return res
}

func readAll(t *testing.T, s *store.Store, key, versionID string) []byte {
	t.Helper()
	var sink bytes.Buffer
	_, err := s.ReadObjectStream(context.Background(), nil, key, versionID, 0, -1, &sink)
	tassert.CheckFatal(t, err)
	return sink.Bytes()
}

func randBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	tassert.CheckFatal(t, err)
	return b
}

func listKeys(res *cmn.ListResult) (keys []string) {
	for _, oi := range res.Objects {
		keys = append(keys, oi.Key)
	}
	return keys
}
