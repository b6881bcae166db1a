// Package cos provides common low-level types and utilities for all nsfs packages
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

// NOTE: BEWARE: `shortid` uses hardcoded 01/2016 as a starting timestamp
import (
	"math/rand"
	"sync"

	"github.com/teris-io/shortid"
)

const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sid    *shortid.Shortid
	sidIni sync.Once
)

// GenTag generates short unique, user-friendly ids (log tags, tie breakers).
func GenTag() string {
	sidIni.Do(func() { sid = shortid.MustNew(1 /*worker*/, uuidABC, uint64(rand.Int63())) })
	tag, err := sid.Generate()
	if err != nil || tag[0] == '-' || tag[0] == '_' {
		return RandString(9)
	}
	return tag
}

const randABC = "abcdefghijklmnopqrstuvwxyz0123456789"

func RandString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = randABC[rand.Intn(len(randABC))]
	}
	return string(b)
}
