// Package cos provides common low-level types and utilities for all nsfs packages
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
)

// errno predicates; each unwraps through *os.PathError / *os.LinkError

func IsNotExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, fs.ErrNotExist)
}

func IsErrExists(err error) bool {
	return errors.Is(err, syscall.EEXIST)
}

func IsErrAccess(err error) bool {
	return errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM)
}

func IsErrNotEmpty(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY)
}

func IsErrNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}

func IsErrIsDir(err error) bool {
	return errors.Is(err, syscall.EISDIR)
}

// ENODATA on Linux, ENOATTR elsewhere
func IsErrXattrNotFound(err error) bool {
	return errors.Is(err, syscall.ENODATA)
}
