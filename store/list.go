// Package store projects an S3-like object namespace onto a POSIX directory tree
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/cmn/cos"
	"github.com/NVIDIA/nsfs/fs"
)

// ListObjects walks the bucket with S3 prefix/delimiter/marker
// semantics and returns latest entries only.
func (s *Store) ListObjects(ctx context.Context, rctx *cmn.ReqCtx, p cmn.ListParams) (res *cmn.ListResult, err error) {
	done := s.opTimer(rctx, "list_objects")
	res, err = s.list(ctx, rctx, p, false)
	done(err)
	return res, err
}

// ListObjectVersions additionally folds .versions/ sidecars, ordered
// per key newest-first.
func (s *Store) ListObjectVersions(ctx context.Context, rctx *cmn.ReqCtx, p cmn.ListParams) (res *cmn.ListResult, err error) {
	done := s.opTimer(rctx, "list_object_versions")
	res, err = s.list(ctx, rctx, p, true)
	done(err)
	return res, err
}

// one raw result before the final stat pass
type listEntry struct {
	key       string // logical key; dir objects and common prefixes end in '/'
	srcName   string // on-disk entry name (version suffix included); "" for synthetic entries
	srcDir    string // dir key the entry came from
	versionID string // parsed from the name; "" for latest
	mtimeNs   int64  // ordering only: latestMtime for latest entries
	isPrefix  bool
	isVersion bool
	isDirObj  bool
}

type lister struct {
	s        *Store
	ctx      context.Context
	params   cmn.ListParams
	versions bool

	limit       int
	markerMtime int64 // version-id-marker as mtime; latestMtime+? see parse below

	results   []*listEntry
	truncated bool
}

func (s *Store) list(ctx context.Context, rctx *cmn.ReqCtx, p cmn.ListParams, versions bool) (*cmn.ListResult, error) {
	if p.Delimiter != "" && p.Delimiter != "/" {
		return nil, &cmn.ErrBadRequest{What: "delimiter must be '/'"}
	}
	if p.Limit < 0 {
		return nil, &cmn.ErrBadRequest{What: "negative limit"}
	}
	if strings.Contains(p.Prefix, "./") {
		return nil, &cmn.ErrBadRequest{What: "invalid prefix " + p.Prefix}
	}
	if p.Limit == 0 {
		return &cmn.ListResult{}, nil
	}
	if p.Limit > cmn.MaxListLimit {
		p.Limit = cmn.MaxListLimit
	}

	l := &lister{s: s, ctx: ctx, params: p, versions: versions, limit: p.Limit}
	if versions && p.VersionIDMarker != "" {
		mt, err := parseVersionID(p.VersionIDMarker)
		if err != nil {
			return nil, err
		}
		if p.VersionIDMarker == cmn.NullVersionID {
			// continue after the latest group; the null marker carries no mtime
			mt = latestMtime
		}
		l.markerMtime = mt
	}

	// start at the deepest directory the prefix pins down
	dirKey := ""
	if i := strings.LastIndexByte(p.Prefix, '/'); i >= 0 {
		dirKey = p.Prefix[:i+1]
	}
	if err := l.processDir(dirKey); err != nil {
		return nil, cmn.TranslateFSErr(err, s.bucket, p.Prefix)
	}

	return l.assemble(rctx)
}

func (l *lister) processDir(dirKey string) error {
	if err := checkCancel(l.ctx); err != nil {
		return err
	}
	if hasVersionsSegment(dirKey) {
		return nil
	}
	s, p := l.s, &l.params

	// prune: the whole subtree sorts before the marker
	markerDir := p.KeyMarker
	if len(markerDir) > len(dirKey) {
		markerDir = markerDir[:len(dirKey)]
	}
	if dirKey < markerDir {
		return nil
	}
	markerCurr := ""
	if markerDir == dirKey && len(p.KeyMarker) > len(dirKey) {
		markerCurr = p.KeyMarker[len(dirKey):]
	}
	prefixEnt := ""
	if len(p.Prefix) > len(dirKey) {
		prefixEnt = p.Prefix[len(dirKey):]
	}

	dirPath := trimSep(s.root + "/" + dirKey)
	if err := s.checkInBucket(dirPath); err != nil {
		if cmn.IsUnauthorized(err) {
			return nil // skip subtrees that escape the bucket
		}
		return err
	}

	// the directory itself may be an object
	if dirKey != "" && len(dirKey) >= len(p.Prefix) && dirKey > p.KeyMarker &&
		(p.Delimiter == "" || dirKey == p.Prefix) {
		if fs.IsXattrExist(dirPath, xaDirContent) {
			l.insert(&listEntry{key: dirKey, srcDir: dirKey, mtimeNs: latestMtime, isDirObj: true})
		}
	}

	cache := s.rt.DC
	if l.versions {
		cache = s.rt.VDC
	}
	ents, cached, err := cache.Get(dirPath)
	if err != nil {
		if cos.IsNotExist(err) || cos.IsErrNotDir(err) {
			return nil
		}
		if cos.IsErrAccess(err) {
			return nil // unreadable dirs are skipped, not fatal
		}
		return err
	}
	if !cached {
		return l.streamDir(dirKey, dirPath, prefixEnt, markerCurr)
	}

	idx := sort.Search(len(ents), func(i int) bool {
		return effName(&ents[i]) >= markerCurr
	})

	// marker may point into a preceding directory that sorts before it
	if p.Delimiter == "" && idx > 0 && markerCurr != "" {
		prev := &ents[idx-1]
		if prev.IsDir && strings.HasPrefix(markerCurr, prev.Name+"/") {
			if err := l.processDir(dirKey + prev.Name + "/"); err != nil {
				return err
			}
		}
	}

	for i := idx; i < len(ents); i++ {
		stop, err := l.processEntry(dirKey, &ents[i], prefixEnt, markerCurr)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}

// streamDir is the oversized-directory fallback: readdir order, no
// sorted early-exit, results stay bounded through sorted insertion.
func (l *lister) streamDir(dirKey, dirPath, prefixEnt, markerCurr string) error {
	scan := func(dir string, versioned bool) error {
		return fs.ScanDir(dir, func(de fs.Dirent) (bool, error) {
			if err := checkCancel(l.ctx); err != nil {
				return false, err
			}
			var ent CacheEntry
			if versioned {
				if de.IsDir {
					return true, nil
				}
				ent = versionEntry(de)
			} else {
				ent = plainEntry(de)
			}
			if effName(&ent) < markerCurr {
				return true, nil
			}
			_, err := l.processEntry(dirKey, &ent, prefixEnt, markerCurr)
			// no early stop: readdir order is unsorted
			return err == nil, err
		})
	}
	if err := scan(dirPath, false); err != nil && !cos.IsNotExist(err) {
		return err
	}
	if l.versions {
		if err := scan(dirPath+"/"+versionsDir, true); err != nil && !cos.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// effName is the marker comparison name; see CacheEntry.EffKey.
func effName(e *CacheEntry) string { return e.EffKey() }

func (l *lister) processEntry(dirKey string, ent *CacheEntry, prefixEnt, markerCurr string) (stop bool, err error) {
	s, p := l.s, &l.params

	name := ent.Key
	switch {
	case dirKey == "" && ent.Name == s.tmpname:
		return false, nil
	case ent.Name == s.rt.Cfg.FolderObjectName && !ent.IsVersion:
		return false, nil // .folder is represented by its parent dir
	case ent.Name == versionsDir:
		return false, nil
	}

	// prefix filter; entries are sorted, so past-the-prefix means done
	if !strings.HasPrefix(name, prefixEnt) {
		if name < prefixEnt {
			return false, nil
		}
		return true, nil
	}

	// marker filter within the marker's own key
	eff := effName(ent)
	if eff < markerCurr {
		return false, nil
	}
	if eff == markerCurr {
		switch {
		case ent.IsDir && p.Delimiter == "/":
			return false, nil // this common prefix was the marker
		case !ent.IsDir && (!l.versions || p.VersionIDMarker == ""):
			return false, nil
		case !ent.IsDir && ent.MtimeNs >= l.markerMtime:
			return false, nil // newer than (or at) the version marker
		}
	}

	if ent.IsDir && !ent.IsVersion {
		childKey := dirKey + name + "/"
		if p.Delimiter == "/" {
			l.insert(&listEntry{key: childKey, srcDir: dirKey, mtimeNs: latestMtime, isPrefix: true})
		} else {
			if err := l.processDir(childKey); err != nil {
				return false, err
			}
		}
	} else {
		key := dirKey + name
		l.insert(&listEntry{
			key:       key,
			srcName:   ent.Name,
			srcDir:    dirKey,
			versionID: ent.VersionID,
			mtimeNs:   ent.MtimeNs,
			isVersion: ent.IsVersion,
		})
	}

	// sorted traversal may stop once the page is full and we are past it
	if l.truncated && len(l.results) > 0 && dirKey+name > l.results[len(l.results)-1].key {
		return true, nil
	}
	return false, nil
}

// insert keeps results sorted by (key asc, mtime desc) and bounded by
// the page limit; overflow marks truncation.
func (l *lister) insert(e *listEntry) {
	n := len(l.results)
	if n == 0 || resultLess(l.results[n-1], e) {
		l.results = append(l.results, e)
	} else {
		i := sort.Search(n, func(i int) bool { return !resultLess(l.results[i], e) })
		l.results = append(l.results, nil)
		copy(l.results[i+1:], l.results[i:])
		l.results[i] = e
	}
	if len(l.results) > l.limit {
		l.results = l.results[:l.limit]
		l.truncated = true
	}
}

func resultLess(a, b *listEntry) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.mtimeNs > b.mtimeNs
}

// assemble stats every non-prefix result and maps it to ObjectInfo.
func (l *lister) assemble(_ *cmn.ReqCtx) (*cmn.ListResult, error) {
	s := l.s
	res := &cmn.ListResult{IsTruncated: l.truncated}
	for _, e := range l.results {
		if err := checkCancel(l.ctx); err != nil {
			return nil, err
		}
		if e.isPrefix {
			res.CommonPrefixes = append(res.CommonPrefixes, e.key)
			continue
		}
		oi, err := l.statResult(e)
		if err != nil {
			if cos.IsNotExist(err) {
				continue // raced deletion
			}
			return nil, cmn.TranslateFSErr(err, s.bucket, e.key)
		}
		if oi == nil {
			continue
		}
		if oi.DeleteMarker && !l.versions {
			continue
		}
		res.Objects = append(res.Objects, oi)
	}
	if l.truncated && len(l.results) > 0 {
		last := l.results[len(l.results)-1]
		res.NextMarker = last.key
		if l.versions && !last.isPrefix {
			res.NextVersionIDMarker = last.versionID
			if res.NextVersionIDMarker == "" { // a latest entry
				if len(res.Objects) > 0 {
					res.NextVersionIDMarker = res.Objects[len(res.Objects)-1].VersionID
				}
			}
		}
	}
	return res, nil
}

func (l *lister) statResult(e *listEntry) (*cmn.ObjectInfo, error) {
	s := l.s

	var path string
	switch {
	case e.isDirObj:
		path = trimSep(s.root + "/" + e.key)
	case e.isVersion:
		path = s.root + "/" + e.srcDir + versionsDir + "/" + e.srcName
	default:
		path = s.root + "/" + e.key
	}

	inBucket, err := s.isInBucket(path)
	if err != nil {
		return nil, err
	}
	var fi *fs.Finfo
	if inBucket {
		fi, err = fs.Stat(path)
	} else {
		fi, err = fs.Lstat(path) // never follow links out of the bucket
	}
	if err != nil {
		return nil, err
	}
	if fi.IsDir && !e.isDirObj {
		return nil, nil // a directory won the race over a plain key
	}

	md, err := loadMD(path)
	if err != nil {
		if cos.IsErrAccess(err) {
			md = &objectMD{Xattr: map[string]string{}}
		} else {
			return nil, err
		}
	}
	return s.objectInfo(e.key, fi, md, e), nil
}

func (s *Store) objectInfo(key string, fi *fs.Finfo, md *objectMD, e *listEntry) *cmn.ObjectInfo {
	oi := &cmn.ObjectInfo{
		Bucket:        s.bucket,
		Key:           key,
		IsLatest:      !e.isVersion,
		DeleteMarker:  md.DeleteMarker,
		IsDir:         e.isDirObj,
		Size:          fi.Size,
		Mtime:         nsToTime(fi.MtimeNs),
		Etag:          etagOf(md, fi.FileID),
		ContentType:   md.ContentType,
		PrevVersionID: md.PrevVersionID,
		Xattr:         md.Xattr,
	}
	if e.isDirObj {
		oi.Size = md.DirContent
	}
	switch {
	case e.versionID != "":
		oi.VersionID = e.versionID
	case md.VersionID != "":
		oi.VersionID = md.VersionID
	case s.mode != cmn.VersioningDisabled:
		oi.VersionID = cmn.NullVersionID
	}
	return oi
}

func hasVersionsSegment(dirKey string) bool {
	for part := range strings.SplitSeq(strings.Trim(dirKey, "/"), "/") {
		if part == versionsDir {
			return true
		}
	}
	return false
}

func nsToTime(ns int64) time.Time { return time.Unix(0, ns) }
