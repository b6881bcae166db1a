// Package cos provides common low-level types and utilities for all nsfs packages
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"strconv"
)

// B36 formats a non-negative integer in lowercase base36.
func B36(v int64) string { return strconv.FormatInt(v, 36) }

// ParseB36 parses a lowercase base36 integer.
func ParseB36(s string) (int64, error) { return strconv.ParseInt(s, 36, 64) }

func ParseBool(s string, dflt bool) bool {
	if s == "" {
		return dflt
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return dflt
	}
	return v
}

func ParseI64(s string, dflt int64) int64 {
	if s == "" {
		return dflt
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return dflt
	}
	return v
}

func ParseInt(s string, dflt int) int {
	return int(ParseI64(s, int64(dflt)))
}
