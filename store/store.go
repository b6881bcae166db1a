// Package store projects an S3-like object namespace (keys, versions,
// multipart uploads) onto a POSIX directory tree: object bodies are
// regular files, object metadata lives in extended attributes
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"context"
	"time"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/cmn/nlog"
	"github.com/NVIDIA/nsfs/memsys"
)

const (
	versionsDir = ".versions"
	uploadsDir  = "uploads"
	mpuDir      = "multipart-uploads"
)

// Runtime holds the process-wide shared resources: configuration, the
// streaming buffer pool, and the two directory caches. One Runtime
// serves all stores (buckets) of the process.
type Runtime struct {
	Cfg *cmn.Config
	MM  *memsys.Pool
	DC  *DirCache // plain listings
	VDC *DirCache // listings that fold .versions/
}

func NewRuntime(cfg *cmn.Config) *Runtime {
	rt := &Runtime{
		Cfg: cfg,
		MM:  memsys.NewPool(cfg.BufSize, cfg.BufPoolMemLimit, IOStreamItemTimeout),
	}
	rt.DC = newDirCache(cfg, false)
	rt.VDC = newDirCache(cfg, true)
	return rt
}

// IOStreamItemTimeout bounds buffer-pool acquisition.
const IOStreamItemTimeout = 20 * time.Second

// Options carries per-bucket settings.
type Options struct {
	Versioning cmn.VersioningMode
	Access     cmn.AccessMode
	Backend    string // "" | cmn.BackendGPFS
	ForceMD5   bool
}

// Store is one bucket: a root directory plus per-bucket settings.
type Store struct {
	rt       *Runtime
	bucket   string
	root     string // bucket root, absolute, no trailing separator
	realRoot string // root after symlink resolution, for containment checks
	id       string // opaque bucket id
	tmpname  string // "<TempDirName>_<id>", directly under root

	mode     cmn.VersioningMode
	access   cmn.AccessMode
	backend  string
	forceMD5 bool
}

func New(rt *Runtime, bucket, root, id string, opts Options) (*Store, error) {
	s := &Store{
		rt:       rt,
		bucket:   bucket,
		root:     trimSep(root),
		id:       id,
		tmpname:  rt.Cfg.TempDirName + "_" + id,
		mode:     opts.Versioning,
		access:   opts.Access,
		backend:  opts.Backend,
		forceMD5: opts.ForceMD5,
	}
	if s.mode == "" {
		s.mode = cmn.VersioningDisabled
	}
	if s.access == "" {
		s.access = cmn.AccessRW
	}
	real, err := resolveReal(s.root)
	if err != nil {
		return nil, &cmn.ErrInternal{Cause: err}
	}
	s.realRoot = real
	return s, nil
}

func (s *Store) Bucket() string { return s.bucket }
func (s *Store) Root() string   { return s.root }
func (s *Store) readOnly() bool { return s.access == cmn.AccessRO }

func (s *Store) VersioningMode() cmn.VersioningMode { return s.mode }

// SetBucketVersioning transitions the bucket's versioning mode.
// DISABLED is the initial state only; it cannot be re-entered.
func (s *Store) SetBucketVersioning(_ context.Context, _ *cmn.ReqCtx, mode cmn.VersioningMode) error {
	if !s.rt.Cfg.VersioningEnabled {
		return &cmn.ErrBadRequest{What: "versioning is disabled by configuration"}
	}
	switch mode {
	case cmn.VersioningEnabled, cmn.VersioningSuspended:
		s.mode = mode
		return nil
	default:
		return &cmn.ErrBadRequest{What: "invalid versioning mode " + string(mode)}
	}
}

// opTimer implements the slow-call warning and the optional stats sink.
func (s *Store) opTimer(rctx *cmn.ReqCtx, op string) func(err error) {
	started := time.Now()
	return func(err error) {
		elapsed := time.Since(started)
		warnAt := s.rt.Cfg.WarnThreshold
		if rctx != nil && rctx.WarnThreshold > 0 {
			warnAt = rctx.WarnThreshold
		}
		if warnAt > 0 && elapsed > warnAt {
			nlog.Warningf("%s %s/%s took %v", op, s.bucket, s.id, elapsed)
		}
		if rctx != nil && rctx.Stats != nil {
			rctx.Stats.Record(op, elapsed, err)
		}
	}
}

func trimSep(p string) string {
	for len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}

// checkCancel is the suspension-point cancellation check.
func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
