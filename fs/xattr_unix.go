// Package fs provides xattr, stat-identity, and safe link/unlink/move primitives
// on top of a local POSIX filesystem
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package fs

import (
	"github.com/NVIDIA/nsfs/cmn/cos"
	"github.com/NVIDIA/nsfs/cmn/nlog"

	"golang.org/x/sys/unix"
)

const maxAttrSize = 4096

// GetXattr gets xattr by name - see also the buffered version below
func GetXattr(path, attrName string) ([]byte, error) {
	buf := make([]byte, maxAttrSize)
	return GetXattrBuf(path, attrName, buf)
}

// GetXattrBuf gets xattr by name via provided buffer
func GetXattrBuf(path, attrName string, buf []byte) (b []byte, err error) {
	var n int
	n, err = unix.Getxattr(path, attrName, buf)
	if err == nil { // returns ERANGE if len(buf) is not enough
		b = buf[:n]
	}
	return
}

func IsXattrExist(path, attrName string) bool {
	_, err := unix.Getxattr(path, attrName, nil)
	return err == nil // note: not differentiating ENODATA vs other errors
}

// SetXattr sets xattr name = value
func SetXattr(path, attrName string, data []byte) error {
	return unix.Setxattr(path, attrName, data, 0)
}

// RemoveXattr removes xattr; a missing attr is not an error
func RemoveXattr(path, attrName string) error {
	err := unix.Removexattr(path, attrName)
	if err != nil && !cos.IsErrXattrNotFound(err) {
		nlog.Errorf("failed to remove %q from %s: %v", attrName, path, err)
		return err
	}
	return nil
}

// ListXattrs returns all xattr names set on path.
func ListXattrs(path string) ([]string, error) {
	buf := make([]byte, maxAttrSize)
	n, err := unix.Listxattr(path, buf)
	if err == unix.ERANGE {
		if n, err = unix.Listxattr(path, nil); err != nil {
			return nil, err
		}
		buf = make([]byte, n)
		n, err = unix.Listxattr(path, buf)
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, b := range splitNul(buf[:n]) {
		if b != "" {
			names = append(names, b)
		}
	}
	return names, nil
}

// GetAllXattrs reads the complete name=value xattr set.
func GetAllXattrs(path string) (map[string][]byte, error) {
	names, err := ListXattrs(path)
	if err != nil {
		return nil, err
	}
	all := make(map[string][]byte, len(names))
	buf := make([]byte, maxAttrSize)
	for _, name := range names {
		b, err := GetXattrBuf(path, name, buf)
		if err != nil {
			if cos.IsErrXattrNotFound(err) { // raced removal
				continue
			}
			return nil, err
		}
		v := make([]byte, len(b))
		copy(v, b)
		all[name] = v
	}
	return all, nil
}

func splitNul(b []byte) []string {
	var (
		out   []string
		start int
	)
	for i, c := range b {
		if c == 0 {
			out = append(out, string(b[start:i]))
			start = i + 1
		}
	}
	if start < len(b) {
		out = append(out, string(b[start:]))
	}
	return out
}
