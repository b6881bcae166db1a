// Package cmn provides common types, configuration, and the error taxonomy for nsfs
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"os"
	"time"

	"github.com/NVIDIA/nsfs/cmn/cos"
)

// Config carries every store tunable. One instance per process, read-mostly;
// administrative operations may swap individual bucket-level settings.
type Config struct {
	// md5
	CalculateMD5 bool // NSFS_CALCULATE_MD5: force md5 computation on every upload

	// layout
	FolderObjectName string // NSFS_FOLDER_OBJECT_NAME: directory-object body sentinel
	TempDirName      string // NSFS_TEMP_DIR_NAME: per-bucket temp dir, suffixed with the bucket id
	Umask            int    // NSFS_UMASK
	BaseModeFile     os.FileMode // BASE_MODE_FILE
	BaseModeDir      os.FileMode // BASE_MODE_DIR

	// buffers
	BufSize         int64 // NSFS_BUF_SIZE: streaming buffer size
	BufPoolMemLimit int64 // NSFS_BUF_POOL_MEM_LIMIT: total buffer-pool budget
	WarmupSparseReads bool // NSFS_BUF_WARMUP_SPARSE_FILE_READS: 1-byte read before borrowing a pool buffer

	// dir cache
	DirCacheMinDirSize   int64 // NSFS_DIR_CACHE_MIN_DIR_SIZE: accounting floor per cached dir
	DirCacheMaxDirSize   int64 // NSFS_DIR_CACHE_MAX_DIR_SIZE: dirs above this are not cached
	DirCacheMaxTotalSize int64 // NSFS_DIR_CACHE_MAX_TOTAL_SIZE: LRU memory budget

	// publish
	RenameRetries int  // NSFS_RENAME_RETRIES: bounded retries for racy rename/link
	TriggerFsync  bool // NSFS_TRIGGER_FSYNC: fsync staging files before publish

	// behavior toggles
	CheckBucketBoundaries bool   // NSFS_CHECK_BUCKET_BOUNDARIES: enforce symlink containment
	VersioningEnabled     bool   // NSFS_VERSIONING_ENABLED: allow enabled/suspended modes
	OpenReadMode          string // NSFS_OPEN_READ_MODE: "r" buffered | "rd" O_DIRECT
	RemovePartsOnComplete bool   // NSFS_REMOVE_PARTS_ON_COMPLETE: drop mpu scratch dir after publish

	// observability
	WarnThreshold time.Duration // NSFS_WARN_THRESHOLD_MS: slow-op warning threshold
}

func DefaultConfig() *Config {
	return &Config{
		CalculateMD5:          false,
		FolderObjectName:      ".folder",
		TempDirName:           ".nsfs-temp",
		Umask:                 0o000,
		BaseModeFile:          0o666,
		BaseModeDir:           0o777,
		BufSize:               8 * cos.MiB,
		BufPoolMemLimit:       256 * cos.MiB,
		WarmupSparseReads:     true,
		DirCacheMinDirSize:    128,
		DirCacheMaxDirSize:    512 * cos.KiB,
		DirCacheMaxTotalSize:  64 * cos.MiB,
		RenameRetries:         10,
		TriggerFsync:          true,
		CheckBucketBoundaries: true,
		VersioningEnabled:     true,
		OpenReadMode:          "r",
		RemovePartsOnComplete: true,
		WarnThreshold:         100 * time.Millisecond,
	}
}

// LoadEnv overrides defaults from the environment, same-named keys.
func (c *Config) LoadEnv() *Config {
	c.CalculateMD5 = cos.ParseBool(os.Getenv("NSFS_CALCULATE_MD5"), c.CalculateMD5)
	if v := os.Getenv("NSFS_FOLDER_OBJECT_NAME"); v != "" {
		c.FolderObjectName = v
	}
	if v := os.Getenv("NSFS_TEMP_DIR_NAME"); v != "" {
		c.TempDirName = v
	}
	c.Umask = cos.ParseInt(os.Getenv("NSFS_UMASK"), c.Umask)
	c.BaseModeFile = os.FileMode(cos.ParseInt(os.Getenv("BASE_MODE_FILE"), int(c.BaseModeFile)))
	c.BaseModeDir = os.FileMode(cos.ParseInt(os.Getenv("BASE_MODE_DIR"), int(c.BaseModeDir)))
	c.BufSize = cos.ParseI64(os.Getenv("NSFS_BUF_SIZE"), c.BufSize)
	c.BufPoolMemLimit = cos.ParseI64(os.Getenv("NSFS_BUF_POOL_MEM_LIMIT"), c.BufPoolMemLimit)
	c.WarmupSparseReads = cos.ParseBool(os.Getenv("NSFS_BUF_WARMUP_SPARSE_FILE_READS"), c.WarmupSparseReads)
	c.DirCacheMinDirSize = cos.ParseI64(os.Getenv("NSFS_DIR_CACHE_MIN_DIR_SIZE"), c.DirCacheMinDirSize)
	c.DirCacheMaxDirSize = cos.ParseI64(os.Getenv("NSFS_DIR_CACHE_MAX_DIR_SIZE"), c.DirCacheMaxDirSize)
	c.DirCacheMaxTotalSize = cos.ParseI64(os.Getenv("NSFS_DIR_CACHE_MAX_TOTAL_SIZE"), c.DirCacheMaxTotalSize)
	c.RenameRetries = cos.ParseInt(os.Getenv("NSFS_RENAME_RETRIES"), c.RenameRetries)
	c.TriggerFsync = cos.ParseBool(os.Getenv("NSFS_TRIGGER_FSYNC"), c.TriggerFsync)
	c.CheckBucketBoundaries = cos.ParseBool(os.Getenv("NSFS_CHECK_BUCKET_BOUNDARIES"), c.CheckBucketBoundaries)
	c.VersioningEnabled = cos.ParseBool(os.Getenv("NSFS_VERSIONING_ENABLED"), c.VersioningEnabled)
	if v := os.Getenv("NSFS_OPEN_READ_MODE"); v != "" {
		c.OpenReadMode = v
	}
	c.RemovePartsOnComplete = cos.ParseBool(os.Getenv("NSFS_REMOVE_PARTS_ON_COMPLETE"), c.RemovePartsOnComplete)
	if ms := cos.ParseI64(os.Getenv("NSFS_WARN_THRESHOLD_MS"), 0); ms > 0 {
		c.WarnThreshold = time.Duration(ms) * time.Millisecond
	}
	return c
}
