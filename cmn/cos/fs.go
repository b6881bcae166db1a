// Package cos provides common low-level types and utilities for all nsfs packages
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"fmt"
	"os"
)

// CreateDir creates the directory and all intermediates, tolerating
// concurrent creators (EEXIST and EISDIR from a racing mkdir are fine).
func CreateDir(dir string, perm os.FileMode) error {
	err := os.MkdirAll(dir, perm)
	if err == nil || IsErrExists(err) || IsErrIsDir(err) {
		return nil
	}
	return fmt.Errorf("cannot create dir %q: %w", dir, err)
}

// RemoveFile removes the file; a missing file is not an error.
func RemoveFile(path string) error {
	err := os.Remove(path)
	if err == nil || IsNotExist(err) {
		return nil
	}
	return err
}

// Stat is a presence check.
func Stat(path string) error {
	_, err := os.Stat(path)
	return err
}
