// Package store projects an S3-like object namespace onto a POSIX directory tree
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/cmn/cos"
	"github.com/NVIDIA/nsfs/cmn/nlog"
	"github.com/NVIDIA/nsfs/fs"
	"github.com/google/uuid"
)

// versionInfo is the stat identity plus the version-relevant xattrs of
// one file; the unit the state machine reasons about.
type versionInfo struct {
	path         string
	id           fs.FileID
	versionID    string // xattr when present, else "null"
	prevID       string
	deleteMarker bool
}

// readVersionInfo returns nil (no error) when path does not exist. An
// object written before versioning was ever enabled carries no
// version_id xattr and counts as the null version.
func (s *Store) readVersionInfo(path string) (*versionInfo, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		if cos.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	md, err := loadMD(path)
	if err != nil {
		return nil, err
	}
	vi := &versionInfo{
		path:         path,
		id:           fi.FileID,
		versionID:    md.VersionID,
		prevID:       md.PrevVersionID,
		deleteMarker: md.DeleteMarker,
	}
	if vi.versionID == "" {
		vi.versionID = cmn.NullVersionID
	}
	return vi, nil
}

// findVersionPath resolves (key, version id) to a concrete path: the
// latest when its id matches, else the .versions/ sidecar.
func (s *Store) findVersionPath(key, versionID string) (string, error) {
	if versionID == "" {
		return s.filePath(key), nil
	}
	if _, err := parseVersionID(versionID); err != nil {
		return "", err
	}
	latest, err := s.readVersionInfo(s.filePath(key))
	if err != nil {
		return "", err
	}
	if latest != nil && latest.versionID == versionID {
		return latest.path, nil
	}
	return s.versionPath(key, versionID), nil
}

// retryable distinguishes the two benign publish races: an identity
// mismatch under a concurrent writer, and an intermediate directory
// that vanished (the caller recreates it). Anything else propagates.
func retryable(err error) bool {
	return fs.IsRaceErr(err) || cos.IsNotExist(err)
}

// withPublishRetries runs fn under the bounded retry budget.
func (s *Store) withPublishRetries(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := range s.rt.Cfg.RenameRetries {
		if err = checkCancel(ctx); err != nil {
			return err
		}
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		nlog.Warningf("%s: retrying (%d/%d): %v", op, i+1, s.rt.Cfg.RenameRetries, err)
	}
	return err
}

// moveToDest publishes the staging file at the key path, displacing
// the current latest per the versioning mode. The §4.9 table, upload
// column, as a tagged dispatch.
func (s *Store) moveToDest(ctx context.Context, staging, key string) error {
	switch s.mode {
	case cmn.VersioningDisabled:
		return s.moveDisabled(ctx, staging, key)
	default:
		return s.moveVersioned(ctx, staging, key)
	}
}

func (s *Store) moveDisabled(ctx context.Context, staging, key string) error {
	dst := s.filePath(key)
	return s.withPublishRetries(ctx, "publish "+key, func() error {
		if err := os.Rename(staging, dst); err != nil {
			if cos.IsNotExist(err) { // destination parent racily removed
				if cerr := cos.CreateDir(filepath.Dir(dst), s.rt.Cfg.BaseModeDir); cerr != nil {
					return cerr
				}
			}
			return err
		}
		return nil
	})
}

func (s *Store) moveVersioned(ctx context.Context, staging, key string) error {
	latestPath := s.filePath(key)
	suspended := s.mode == cmn.VersioningSuspended
	return s.withPublishRetries(ctx, "publish "+key, func() error {
		// the destination parent may have been racily removed
		if err := cos.CreateDir(filepath.Dir(latestPath), s.rt.Cfg.BaseModeDir); err != nil {
			return err
		}
		stagingFi, err := fs.Stat(staging)
		if err != nil {
			return err
		}
		latest, err := s.readVersionInfo(latestPath)
		if err != nil {
			return err
		}
		if suspended {
			// invariant: at most one null version per key
			if latest != nil && latest.versionID == cmn.NullVersionID {
				if err := fs.SafeUnlink(latestPath, s.tmpPath(), latest.id); err != nil {
					return err
				}
				latest = nil
			} else if err := s.dropNullSidecar(key); err != nil {
				return err
			}
		}
		if latest != nil {
			if err := s.displaceLatest(key, latest); err != nil {
				return err
			}
		}
		return fs.SafeMove(staging, latestPath, s.tmpPath(), stagingFi.FileID)
	})
}

// displaceLatest moves the current latest into .versions/ under its
// own version id.
func (s *Store) displaceLatest(key string, latest *versionInfo) error {
	if err := cos.CreateDir(s.versionsDirOf(key), s.rt.Cfg.BaseModeDir); err != nil {
		return err
	}
	return fs.SafeMove(latest.path, s.versionPath(key, latest.versionID), s.tmpPath(), latest.id)
}

// dropNullSidecar removes an existing <base>_null version, if any.
func (s *Store) dropNullSidecar(key string) error {
	p := s.versionPath(key, cmn.NullVersionID)
	fi, err := fs.Stat(p)
	if err != nil {
		if cos.IsNotExist(err) {
			return nil
		}
		return err
	}
	return fs.SafeUnlink(p, s.tmpPath(), fi.FileID)
}

// deleteLatest implements DELETE without an explicit version in
// enabled/suspended mode: displace (or drop) the latest, then leave a
// delete marker in .versions/.
func (s *Store) deleteLatest(ctx context.Context, key string) (*cmn.DeleteResult, error) {
	suspended := s.mode == cmn.VersioningSuspended
	res := &cmn.DeleteResult{}
	err := s.withPublishRetries(ctx, "delete "+key, func() error {
		latest, err := s.readVersionInfo(s.filePath(key))
		if err != nil {
			return err
		}
		var displacedID string
		if latest != nil {
			if suspended && latest.versionID == cmn.NullVersionID {
				// a null latest is dropped, not displaced
				if err := fs.SafeUnlink(latest.path, s.tmpPath(), latest.id); err != nil {
					return err
				}
			} else {
				if err := s.displaceLatest(key, latest); err != nil {
					return err
				}
				displacedID = latest.versionID
			}
		}
		markerID, err := s.createDeleteMarker(key, displacedID)
		if err != nil {
			return err
		}
		res.Created = true
		res.DeleteMarkerID = markerID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// createDeleteMarker writes a zero-byte marker version: id "null" when
// suspended, the marker file's own mtime-ino id when enabled.
func (s *Store) createDeleteMarker(key, prevID string) (string, error) {
	if err := cos.CreateDir(s.versionsDirOf(key), s.rt.Cfg.BaseModeDir); err != nil {
		return "", err
	}
	tmp := s.stagingPath(uuid.NewString())
	if err := cos.CreateDir(filepath.Dir(tmp), s.rt.Cfg.BaseModeDir); err != nil {
		return "", err
	}
	fh, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, s.rt.Cfg.BaseModeFile)
	if err != nil {
		return "", err
	}
	fh.Close()

	markerID := cmn.NullVersionID
	fi, err := fs.Stat(tmp)
	if err != nil {
		return "", err
	}
	if s.mode == cmn.VersioningEnabled {
		markerID = versionIDByStat(fi.FileID)
	}
	md := &objectMD{DeleteMarker: true, VersionID: markerID, PrevVersionID: prevID}
	if err := storeMD(tmp, md); err != nil {
		return "", err
	}
	if markerID == cmn.NullVersionID {
		// the marker becomes the one null version of this key
		if err := s.dropNullSidecar(key); err != nil {
			return "", err
		}
	}
	if err := fs.SafeMove(tmp, s.versionPath(key, markerID), s.tmpPath(), fi.FileID); err != nil {
		return "", err
	}
	return markerID, nil
}

// deleteVersion implements DELETE with an explicit version id.
// Disabled mode ignores it (empty result). Removing the latest or a
// delete marker may expose a gap; promotion then runs.
func (s *Store) deleteVersion(ctx context.Context, key, versionID string) (*cmn.DeleteResult, error) {
	if s.mode == cmn.VersioningDisabled {
		return &cmn.DeleteResult{}, nil
	}
	path, err := s.findVersionPath(key, versionID)
	if err != nil {
		return nil, err
	}
	victim, err := s.readVersionInfo(path)
	if err != nil {
		return nil, err
	}
	if victim == nil {
		return &cmn.DeleteResult{}, nil // deleting a missing version succeeds quietly
	}
	latestPath := s.filePath(key)
	wasLatest := path == latestPath
	if err := fs.SafeUnlink(path, s.tmpPath(), victim.id); err != nil {
		if fs.IsRaceErr(err) || cos.IsNotExist(err) {
			return &cmn.DeleteResult{}, nil // a concurrent writer got there first
		}
		return nil, err
	}
	res := &cmn.DeleteResult{DeletedVersion: versionID, DeletedMarker: victim.deleteMarker}
	if wasLatest || victim.deleteMarker {
		if err := s.promotePrior(ctx, key, victim); err != nil {
			return nil, err
		}
	}
	if !wasLatest {
		s.cleanupVersionsDir(key)
	}
	return res, nil
}

// promotePrior closes the gap at the latest path after a deletion:
// move the most recent surviving version back, unless a concurrent
// writer already produced a new latest or the candidate is (or is
// hidden by) a delete marker.
func (s *Store) promotePrior(ctx context.Context, key string, deleted *versionInfo) error {
	latestPath := s.filePath(key)
	return s.withPublishRetries(ctx, "promote "+key, func() error {
		latest, err := s.readVersionInfo(latestPath)
		if err != nil {
			return err
		}
		if latest != nil {
			return nil // concurrent writer won
		}
		cand, err := s.promotionCandidate(key, deleted)
		if err != nil || cand == nil {
			return err
		}
		if cand.deleteMarker {
			return nil
		}
		if deleted.deleteMarker && cand.id.MtimeNs < deleted.id.MtimeNs {
			return nil // candidate predates the deleted delete marker
		}
		err = fs.SafeMove(cand.path, latestPath, s.tmpPath(), cand.id)
		if fs.IsRaceErr(err) {
			return nil // a new latest appeared; promotion silently yields
		}
		return err
	})
}

func (s *Store) promotionCandidate(key string, deleted *versionInfo) (*versionInfo, error) {
	if deleted.prevID != "" {
		cand, err := s.readVersionInfo(s.versionPath(key, deleted.prevID))
		if err != nil {
			return nil, err
		}
		if cand != nil {
			return cand, nil
		}
	}
	return s.maxMtimeVersion(key)
}

// maxMtimeVersion scans .versions/ for the newest surviving version of key.
func (s *Store) maxMtimeVersion(key string) (*versionInfo, error) {
	var (
		_, base = splitKey(key)
		vdir    = s.versionsDirOf(key)
		best    *versionInfo
	)
	err := fs.ScanDir(vdir, func(de fs.Dirent) (bool, error) {
		if de.IsDir {
			return true, nil
		}
		b, _, ok := isVersionedName(de.Name)
		if !ok || b != base {
			return true, nil
		}
		vi, err := s.readVersionInfo(vdir + "/" + de.Name)
		if err != nil || vi == nil {
			return true, nil // raced away
		}
		if best == nil || vi.id.MtimeNs > best.id.MtimeNs {
			best = vi
		}
		return true, nil
	})
	if err != nil && !cos.IsNotExist(err) {
		return nil, err
	}
	return best, nil
}

// cleanupVersionsDir removes an emptied .versions directory, best effort.
func (s *Store) cleanupVersionsDir(key string) {
	if err := os.Remove(s.versionsDirOf(key)); err != nil &&
		!cos.IsErrNotEmpty(err) && !cos.IsNotExist(err) && !cos.IsErrAccess(err) {
		nlog.Warningf("cleanup %s: %v", s.versionsDirOf(key), err)
	}
}
