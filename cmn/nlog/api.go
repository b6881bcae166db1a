// Package nlog - nsfs logger, provides buffering, timestamping, and severity prefixes
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

func Infoln(args ...any)                  { log(sevInfo, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, format, args...) }
func Warningln(args ...any)               { log(sevWarn, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, format, args...) }
func Errorln(args ...any)                 { log(sevErr, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, format, args...) }
