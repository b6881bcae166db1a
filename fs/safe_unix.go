// Package fs provides xattr, stat-identity, and safe link/unlink/move primitives
// on top of a local POSIX filesystem
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/NVIDIA/nsfs/cmn/cos"
	"github.com/NVIDIA/nsfs/cmn/nlog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// LostFoundDir is the quarantine directory for safe-unlink victims,
// relative to the bucket's temp dir.
const LostFoundDir = "lost+found"

// RaceError reports a link/unlink identity mismatch: a concurrent
// writer replaced the path between stat and syscall. Retryable.
type RaceError struct {
	Op     string
	Path   string
	Expect FileID
	Got    FileID
}

func (e *RaceError) Error() string {
	return fmt.Sprintf("%s race on %q: expected (ino %d, mtime %d), found (ino %d, mtime %d)",
		e.Op, e.Path, e.Expect.Ino, e.Expect.MtimeNs, e.Got.Ino, e.Got.MtimeNs)
}

func IsRaceErr(err error) bool {
	var e *RaceError
	return errors.As(err, &e)
}

// SafeLink links src to dst and verifies that dst carries src's
// identity afterwards. A concurrent writer that renamed over dst in the
// window manifests as a mismatch; the link is torn down and a RaceError
// returned. EEXIST on the link itself is reported the same way.
func SafeLink(src, dst string, expect FileID) error {
	if err := os.Link(src, dst); err != nil {
		if cos.IsErrExists(err) {
			got, serr := Stat(dst)
			if serr != nil {
				got = &Finfo{}
			}
			return &RaceError{Op: "link", Path: dst, Expect: expect, Got: got.FileID}
		}
		return errors.Wrapf(err, "link %q -> %q", src, dst)
	}
	got, err := Stat(dst)
	if err != nil {
		return errors.Wrapf(err, "stat after link %q", dst)
	}
	if got.FileID != expect {
		if uerr := os.Remove(dst); uerr != nil && !cos.IsNotExist(uerr) {
			nlog.Errorf("failed to tear down mismatched link %q: %v", dst, uerr)
		}
		return &RaceError{Op: "link", Path: dst, Expect: expect, Got: got.FileID}
	}
	return nil
}

// SafeUnlink removes target iff it still carries the expected identity.
// The target is first renamed into a unique quarantine path under
// tmpdir/lost+found, verified there, and only then unlinked. On
// mismatch the new occupant is moved back and a RaceError returned.
func SafeUnlink(target, tmpdir string, expect FileID) error {
	qdir := filepath.Join(tmpdir, LostFoundDir)
	if err := cos.CreateDir(qdir, 0o777); err != nil {
		return err
	}
	qpath := filepath.Join(qdir, uuid.NewString())
	if err := os.Rename(target, qpath); err != nil {
		return errors.Wrapf(err, "quarantine %q", target)
	}
	got, err := Stat(qpath)
	if err != nil {
		return errors.Wrapf(err, "stat quarantined %q", qpath)
	}
	if got.FileID != expect {
		if rerr := os.Rename(qpath, target); rerr != nil {
			nlog.Errorf("failed to restore %q from quarantine: %v", target, rerr)
		}
		return &RaceError{Op: "unlink", Path: target, Expect: expect, Got: got.FileID}
	}
	if err := os.Remove(qpath); err != nil && !cos.IsNotExist(err) {
		return errors.Wrapf(err, "unlink quarantined %q", qpath)
	}
	return nil
}

// SafeMove publishes src at dst and retires src: safe_link + safe_unlink.
// expect is src's identity; dst must not pre-exist (EEXIST is a race).
func SafeMove(src, dst, tmpdir string, expect FileID) error {
	if err := SafeLink(src, dst, expect); err != nil {
		return err
	}
	return SafeUnlink(src, tmpdir, expect)
}
