// Package cmn provides common types, configuration, and the error taxonomy for nsfs
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"errors"
	"fmt"

	"github.com/NVIDIA/nsfs/cmn/cos"
)

// surfaced error codes
const (
	CodeNoSuchObject   = "NO_SUCH_OBJECT"
	CodeNoSuchUpload   = "NO_SUCH_UPLOAD"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeBucketExists   = "BUCKET_ALREADY_EXISTS"
	CodeBadRequest     = "BAD_REQUEST"
	CodeStreamTimeout  = "IO_STREAM_ITEM_TIMEOUT"
	CodeEncryption     = "SERVER_SIDE_ENCRYPTION_CONFIGURATION_NOT_FOUND_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
	CodeNotEmpty       = "NOT_EMPTY"
	CodeNotImplemented = "NOT_IMPLEMENTED"
)

type (
	ErrNoSuchObject struct {
		Bucket, Key, VersionID string
	}
	ErrNoSuchUpload struct {
		ID string
	}
	ErrUnauthorized struct {
		What string
	}
	ErrBucketExists struct {
		Bucket string
	}
	ErrBadRequest struct {
		What string
	}
	ErrStreamTimeout struct{}
	ErrEncryption    struct {
		Algorithm string
	}
	ErrInternal struct {
		Cause error
	}
	ErrNotEmpty struct {
		Path string
	}
	ErrUnsupported struct {
		Op string
	}
)

func (e *ErrNoSuchObject) Error() string {
	if e.VersionID != "" {
		return fmt.Sprintf("object %s/%s version %s does not exist", e.Bucket, e.Key, e.VersionID)
	}
	return fmt.Sprintf("object %s/%s does not exist", e.Bucket, e.Key)
}
func (*ErrNoSuchObject) Code() string { return CodeNoSuchObject }

func (e *ErrNoSuchUpload) Error() string { return fmt.Sprintf("upload %q does not exist", e.ID) }
func (*ErrNoSuchUpload) Code() string    { return CodeNoSuchUpload }

func (e *ErrUnauthorized) Error() string { return "unauthorized: " + e.What }
func (*ErrUnauthorized) Code() string    { return CodeUnauthorized }

func (e *ErrBucketExists) Error() string { return fmt.Sprintf("bucket %q already exists", e.Bucket) }
func (*ErrBucketExists) Code() string    { return CodeBucketExists }

func (e *ErrBadRequest) Error() string { return "bad request: " + e.What }
func (*ErrBadRequest) Code() string    { return CodeBadRequest }

func (*ErrStreamTimeout) Error() string { return "io stream item timeout" }
func (*ErrStreamTimeout) Code() string  { return CodeStreamTimeout }

func (e *ErrEncryption) Error() string {
	return fmt.Sprintf("server-side encryption %q is not supported", e.Algorithm)
}
func (*ErrEncryption) Code() string { return CodeEncryption }

func (e *ErrInternal) Error() string { return "internal error: " + e.Cause.Error() }
func (*ErrInternal) Code() string    { return CodeInternal }
func (e *ErrInternal) Unwrap() error { return e.Cause }

func (e *ErrNotEmpty) Error() string { return fmt.Sprintf("directory %q is not empty", e.Path) }
func (*ErrNotEmpty) Code() string    { return CodeNotEmpty }

func (e *ErrUnsupported) Error() string { return e.Op + " is not implemented" }
func (*ErrUnsupported) Code() string    { return CodeNotImplemented }

// Coder is implemented by every taxonomy error.
type Coder interface {
	error
	Code() string
}

// ErrCode surfaces the taxonomy code; anything untyped is internal.
func ErrCode(err error) string {
	var coder Coder
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return CodeInternal
}

func IsNoSuchObject(err error) bool {
	var e *ErrNoSuchObject
	return errors.As(err, &e)
}

func IsUnauthorized(err error) bool {
	var e *ErrUnauthorized
	return errors.As(err, &e)
}

// TranslateFSErr maps a low-level fs error to the taxonomy at the
// component boundary. Taxonomy errors pass through unchanged.
func TranslateFSErr(err error, bucket, key string) error {
	if err == nil {
		return nil
	}
	var coder Coder
	if errors.As(err, &coder) {
		return err
	}
	switch {
	case cos.IsNotExist(err):
		return &ErrNoSuchObject{Bucket: bucket, Key: key}
	case cos.IsErrAccess(err):
		return &ErrUnauthorized{What: err.Error()}
	case cos.IsErrNotEmpty(err):
		return &ErrNotEmpty{Path: key}
	default:
		return &ErrInternal{Cause: err}
	}
}
