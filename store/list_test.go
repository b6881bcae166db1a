// Package store_test exercises the store through its public API
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store_test

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/tools/tassert"
)

func TestListDelimiter(t *testing.T) {
	s := newTestStore(t, cmn.VersioningDisabled)
	upload(t, s, "a/b/c/upload_key_1", randBytes(t, 16), nil)
	upload(t, s, "my_dir/", nil, nil)
	upload(t, s, "my_dir_0_content/", nil, nil)
	upload(t, s, "my_dir/my_dir2/", nil, nil)
	upload(t, s, "my_dir_mpu1/x", randBytes(t, 8), nil)
	upload(t, s, "my_dir_mpu2/y", randBytes(t, 8), nil)

	res, err := s.ListObjects(context.Background(), nil, cmn.ListParams{Delimiter: "/", Limit: 1000})
	tassert.CheckFatal(t, err)

	want := []string{"a/", "my_dir/", "my_dir_0_content/", "my_dir_mpu1/", "my_dir_mpu2/"}
	tassert.Errorf(t, reflect.DeepEqual(res.CommonPrefixes, want),
		"common prefixes: got %v, want %v", res.CommonPrefixes, want)
	tassert.Errorf(t, len(res.Objects) == 0, "no root-level objects expected, got %v", listKeys(res))
}

func TestListSorted(t *testing.T) {
	s := newTestStore(t, cmn.VersioningDisabled)
	keys := []string{"zz", "a/1", "a/2", "m", "a/b/c", "q/r/s", "b"}
	for _, k := range keys {
		upload(t, s, k, randBytes(t, 4), nil)
	}
	res, err := s.ListObjects(context.Background(), nil, cmn.ListParams{Limit: 1000})
	tassert.CheckFatal(t, err)

	got := listKeys(res)
	tassert.Fatalf(t, len(got) == len(keys), "got %d keys, want %d: %v", len(got), len(keys), got)
	tassert.Errorf(t, sort.StringsAreSorted(got), "keys not sorted: %v", got)
}

func TestListPrefix(t *testing.T) {
	s := newTestStore(t, cmn.VersioningDisabled)
	for _, k := range []string{"logs/2020/a", "logs/2020/b", "logs/2021/a", "data/x"} {
		upload(t, s, k, randBytes(t, 4), nil)
	}
	res, err := s.ListObjects(context.Background(), nil, cmn.ListParams{Prefix: "logs/2020/", Limit: 1000})
	tassert.CheckFatal(t, err)
	want := []string{"logs/2020/a", "logs/2020/b"}
	tassert.Errorf(t, reflect.DeepEqual(listKeys(res), want), "got %v, want %v", listKeys(res), want)

	// a prefix that stops mid-name
	res, err = s.ListObjects(context.Background(), nil, cmn.ListParams{Prefix: "logs/20", Limit: 1000})
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, len(res.Objects) == 3, "mid-name prefix: got %v", listKeys(res))
}

func TestListMarkerPagination(t *testing.T) {
	s := newTestStore(t, cmn.VersioningDisabled)
	var all []string
	for i := range 10 {
		k := fmt.Sprintf("obj-%02d", i)
		all = append(all, k)
		upload(t, s, k, randBytes(t, 4), nil)
	}

	var (
		got    []string
		marker string
	)
	for {
		res, err := s.ListObjects(context.Background(), nil, cmn.ListParams{Limit: 3, KeyMarker: marker})
		tassert.CheckFatal(t, err)
		got = append(got, listKeys(res)...)
		for _, k := range listKeys(res) {
			tassert.Errorf(t, res.NextMarker == "" || k <= res.NextMarker,
				"key %q beyond next marker %q", k, res.NextMarker)
		}
		if !res.IsTruncated {
			break
		}
		tassert.Fatalf(t, res.NextMarker != "", "truncated response without next marker")
		marker = res.NextMarker
	}
	tassert.Errorf(t, reflect.DeepEqual(got, all), "paginated: got %v, want %v", got, all)
}

func TestListMarkerIntoDirectory(t *testing.T) {
	s := newTestStore(t, cmn.VersioningDisabled)
	for _, k := range []string{"a/1", "a/2", "a/3", "b"} {
		upload(t, s, k, randBytes(t, 4), nil)
	}
	// the marker points inside directory "a", whose entry sorts before it
	res, err := s.ListObjects(context.Background(), nil, cmn.ListParams{KeyMarker: "a/1", Limit: 1000})
	tassert.CheckFatal(t, err)
	want := []string{"a/2", "a/3", "b"}
	tassert.Errorf(t, reflect.DeepEqual(listKeys(res), want), "got %v, want %v", listKeys(res), want)
}

func TestListDirObjectAppears(t *testing.T) {
	s := newTestStore(t, cmn.VersioningDisabled)
	upload(t, s, "dir/", randBytes(t, 10), nil)
	upload(t, s, "dir/child", randBytes(t, 4), nil)

	res, err := s.ListObjects(context.Background(), nil, cmn.ListParams{Limit: 1000})
	tassert.CheckFatal(t, err)
	want := []string{"dir/", "dir/child"}
	tassert.Errorf(t, reflect.DeepEqual(listKeys(res), want), "got %v, want %v", listKeys(res), want)

	// .folder is never listed as its own key
	for _, k := range listKeys(res) {
		tassert.Errorf(t, k != "dir/.folder", "sentinel leaked into listing")
	}
}

func TestListInvalidDelimiter(t *testing.T) {
	s := newTestStore(t, cmn.VersioningDisabled)
	_, err := s.ListObjects(context.Background(), nil, cmn.ListParams{Delimiter: "#", Limit: 10})
	tassert.Fatalf(t, err != nil, "delimiter other than '/' must be rejected")
	tassert.Errorf(t, cmn.ErrCode(err) == cmn.CodeBadRequest, "got %v", err)
}

func TestListZeroLimit(t *testing.T) {
	s := newTestStore(t, cmn.VersioningDisabled)
	upload(t, s, "k", randBytes(t, 4), nil)
	res, err := s.ListObjects(context.Background(), nil, cmn.ListParams{Limit: 0})
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, len(res.Objects) == 0 && !res.IsTruncated, "limit=0 must be empty and non-truncated")
}

func TestListVersionsOrder(t *testing.T) {
	s := newTestStore(t, cmn.VersioningEnabled)
	for range 3 {
		upload(t, s, "vkey", randBytes(t, 8), nil)
	}
	res, err := s.ListObjectVersions(context.Background(), nil, cmn.ListParams{Limit: 1000})
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, len(res.Objects) == 3, "expected 3 versions, got %d", len(res.Objects))

	tassert.Errorf(t, res.Objects[0].IsLatest, "first version must be the latest")
	for i := 1; i < len(res.Objects); i++ {
		prev, cur := res.Objects[i-1], res.Objects[i]
		tassert.Errorf(t, cur.Key == "vkey", "unexpected key %q", cur.Key)
		tassert.Errorf(t, !cur.Mtime.After(prev.Mtime), "versions not newest-first at %d", i)
	}
}

func TestListSkipsTempDir(t *testing.T) {
	s := newTestStore(t, cmn.VersioningDisabled)
	upload(t, s, "k", randBytes(t, 4), nil) // leaves the temp dir behind
	res, err := s.ListObjects(context.Background(), nil, cmn.ListParams{Limit: 1000})
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, reflect.DeepEqual(listKeys(res), []string{"k"}), "temp dir leaked: %v", listKeys(res))
}
