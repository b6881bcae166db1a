// Package store projects an S3-like object namespace onto a POSIX directory tree
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"context"

	"github.com/NVIDIA/nsfs/cmn"
)

// The operations below are intentionally unimplemented; the upstream
// behavior is a stub and callers depend on getting the explicit error.
// GetObjectACL is the one exception: it reports the default ACL.

// DefaultObjectACL is the one ACL this store ever reports.
const DefaultObjectACL = "private"

func (s *Store) GetObjectACL(context.Context, *cmn.ReqCtx, string) (string, error) {
	return DefaultObjectACL, nil
}

func (s *Store) PutObjectACL(context.Context, *cmn.ReqCtx, string, string) error {
	return &cmn.ErrUnsupported{Op: "put_object_acl"}
}

func (s *Store) GetObjectTagging(context.Context, *cmn.ReqCtx, string) (map[string]string, error) {
	return nil, &cmn.ErrUnsupported{Op: "get_object_tagging"}
}

func (s *Store) PutObjectTagging(context.Context, *cmn.ReqCtx, string, map[string]string) error {
	return &cmn.ErrUnsupported{Op: "put_object_tagging"}
}

func (s *Store) DeleteObjectTagging(context.Context, *cmn.ReqCtx, string) error {
	return &cmn.ErrUnsupported{Op: "delete_object_tagging"}
}

func (s *Store) GetObjectLegalHold(context.Context, *cmn.ReqCtx, string) (string, error) {
	return "", &cmn.ErrUnsupported{Op: "get_object_legal_hold"}
}

func (s *Store) PutObjectLegalHold(context.Context, *cmn.ReqCtx, string, string) error {
	return &cmn.ErrUnsupported{Op: "put_object_legal_hold"}
}

func (s *Store) GetObjectRetention(context.Context, *cmn.ReqCtx, string) (string, error) {
	return "", &cmn.ErrUnsupported{Op: "get_object_retention"}
}

func (s *Store) PutObjectRetention(context.Context, *cmn.ReqCtx, string, string) error {
	return &cmn.ErrUnsupported{Op: "put_object_retention"}
}

func (s *Store) UploadBlobBlock(context.Context, *cmn.ReqCtx) error {
	return &cmn.ErrUnsupported{Op: "upload_blob_block"}
}

func (s *Store) CommitBlobBlockList(context.Context, *cmn.ReqCtx) error {
	return &cmn.ErrUnsupported{Op: "commit_blob_block_list"}
}
