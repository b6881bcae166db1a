// Package store projects an S3-like object namespace onto a POSIX directory tree
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"math"
	"sort"
	"sync"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/cmn/cos"
	"github.com/NVIDIA/nsfs/fs"
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

// CacheEntry is one directory listing entry as the cache and the
// listing engine see it. Entries folded in from .versions/ carry
// IsVersion plus the parsed logical key and embedded mtime; latest
// entries sort before their versions (MtimeNs = +inf).
type CacheEntry struct {
	Name      string // on-disk name (version suffix included)
	Key       string // logical name, version suffix stripped
	VersionID string // "" for latest entries
	MtimeNs   int64
	IsDir     bool
	IsVersion bool
}

const latestMtime = math.MaxInt64

// cacheVal is the cached state of one directory.
type cacheVal struct {
	id    fs.FileID // directory identity at load time
	vid   fs.FileID // .versions identity (versioned cache only)
	hasV  bool
	ents  []CacheEntry // nil when the dir exceeds the size cap
	usage int64
}

// DirCache is a process-wide, memory-bounded LRU of sorted directory
// entries, validated by (ino, mtimeNs) on every get. Oversized
// directories are remembered without their entry list; callers fall
// back to streaming. Concurrent loads of one directory collapse.
type DirCache struct {
	cfg       *cmn.Config
	versioned bool

	mu    sync.Mutex
	lru   *lru.LRU[uint64, *cacheVal]
	usage int64
	sf    singleflight.Group

	hits, misses, evictions prometheus.Counter
}

func newDirCache(cfg *cmn.Config, versioned bool) *DirCache {
	c := &DirCache{cfg: cfg, versioned: versioned}
	name := "nsfs_dircache"
	if versioned {
		name = "nsfs_versions_dircache"
	}
	c.hits = prometheus.NewCounter(prometheus.CounterOpts{Name: name + "_hits_total"})
	c.misses = prometheus.NewCounter(prometheus.CounterOpts{Name: name + "_misses_total"})
	c.evictions = prometheus.NewCounter(prometheus.CounterOpts{Name: name + "_evictions_total"})
	// the count cap is a backstop; the working bound is the memory budget
	l, _ := lru.NewLRU[uint64, *cacheVal](1<<20, func(_ uint64, v *cacheVal) {
		c.usage -= v.usage
		c.evictions.Inc()
	})
	c.lru = l
	return c
}

func (c *DirCache) RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(c.hits, c.misses, c.evictions)
}

// Get returns the directory's cached entries, reloading when the
// (ino, mtime) identity went stale. ents == nil means the directory is
// over the cache cap and the caller must stream it.
func (c *DirCache) Get(dir string) (ents []CacheEntry, cached bool, err error) {
	key := xxhash.Sum64String(dir)

	c.mu.Lock()
	v, ok := c.lru.Get(key)
	c.mu.Unlock()
	if ok && c.valid(dir, v) {
		c.hits.Inc()
		return v.ents, v.ents != nil, nil
	}
	c.misses.Inc()

	got, err, _ := c.sf.Do(dir, func() (any, error) {
		// reuse a value a concurrent caller just loaded
		c.mu.Lock()
		v, ok := c.lru.Get(key)
		c.mu.Unlock()
		if ok && c.valid(dir, v) {
			return v, nil
		}
		v, err := c.load(dir)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if old, ok := c.lru.Peek(key); ok {
			c.usage -= old.usage
		}
		c.lru.Add(key, v)
		c.usage += v.usage
		for c.usage > c.cfg.DirCacheMaxTotalSize {
			if _, _, ok := c.lru.RemoveOldest(); !ok {
				break
			}
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	v = got.(*cacheVal)
	return v.ents, v.ents != nil, nil
}

// Invalidate drops one directory; used after ENOENT during boundary checks.
func (c *DirCache) Invalidate(dir string) {
	key := xxhash.Sum64String(dir)
	c.mu.Lock()
	c.lru.Remove(key)
	c.mu.Unlock()
}

func (c *DirCache) valid(dir string, v *cacheVal) bool {
	fi, err := fs.Stat(dir)
	if err != nil || fi.FileID != v.id {
		return false
	}
	if !c.versioned {
		return true
	}
	vfi, err := fs.Stat(dir + "/" + versionsDir)
	if err != nil {
		return !v.hasV
	}
	return v.hasV && vfi.FileID == v.vid
}

func (c *DirCache) load(dir string) (*cacheVal, error) {
	fi, err := fs.Stat(dir)
	if err != nil {
		return nil, err
	}
	v := &cacheVal{id: fi.FileID}

	var vfi *fs.Finfo
	if c.versioned {
		if vfi, err = fs.Stat(dir + "/" + versionsDir); err == nil {
			v.vid, v.hasV = vfi.FileID, true
		}
	}

	// the directory file's own size is the cheap proxy for entry count
	tooBig := fi.Size > c.cfg.DirCacheMaxDirSize ||
		(vfi != nil && vfi.Size > c.cfg.DirCacheMaxDirSize)
	if tooBig {
		v.usage = c.cfg.DirCacheMinDirSize
		return v, nil
	}

	dirents, err := fs.ReadSortedEntries(dir)
	if err != nil {
		return nil, err
	}
	ents := make([]CacheEntry, 0, len(dirents))
	for _, de := range dirents {
		if c.versioned && de.Name == versionsDir {
			continue // folded below, not an entry of its own
		}
		ents = append(ents, plainEntry(de))
	}
	if v.hasV {
		vents, err := fs.ReadSortedEntries(dir + "/" + versionsDir)
		if err != nil && !cos.IsNotExist(err) {
			return nil, err
		}
		for _, de := range vents {
			if de.IsDir {
				continue
			}
			ents = append(ents, versionEntry(de))
		}
	}
	// resort by the effective (listing) order: directories compare with
	// a trailing '/', versions of one key follow their latest newest-first
	sort.SliceStable(ents, func(i, j int) bool { return entryLess(&ents[i], &ents[j]) })

	v.ents = ents
	v.usage = c.cfg.DirCacheMinDirSize
	for i := range ents {
		v.usage += int64(len(ents[i].Name)) + 4
	}
	return v, nil
}

func plainEntry(de fs.Dirent) CacheEntry {
	return CacheEntry{Name: de.Name, Key: de.Name, MtimeNs: latestMtime, IsDir: de.IsDir}
}

func versionEntry(de fs.Dirent) CacheEntry {
	e := CacheEntry{Name: de.Name, Key: de.Name, IsVersion: true}
	if base, vid, ok := isVersionedName(de.Name); ok {
		e.Key = base
		e.VersionID = vid
		e.MtimeNs, _ = parseVersionID(vid) // 0 for null
	}
	return e
}

// EffKey is the comparison key: directories carry a trailing '/' so
// that their common-prefix form orders the way listings emit it.
func (e *CacheEntry) EffKey() string {
	if e.IsDir {
		return e.Key + "/"
	}
	return e.Key
}

// entryLess orders by effective key ascending, then newest-first by
// mtime: the latest entry (+inf) leads its versions.
func entryLess(a, b *CacheEntry) bool {
	ak, bk := a.EffKey(), b.EffKey()
	if ak != bk {
		return ak < bk
	}
	return a.MtimeNs > b.MtimeNs
}
