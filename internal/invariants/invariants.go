// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package invariants gates debug-only consistency checks behind the
// "invariants" and "race" build tags. In regular builds the checks compile
// to nothing so the decode and dedupe hot paths carry no cost.
package invariants

import "github.com/aotkit/stackmap/internal/buildtags"

// Enabled is true if we were built with the "invariants" or "race" build
// tags. Expensive consistency checks, like the deduper's re-decode
// comparison, run only when Enabled.
const Enabled = buildtags.Invariants || buildtags.Race

// RaceEnabled is true if we were built with the "race" build tag.
const RaceEnabled = buildtags.Race

// Integer is a constraint that permits any integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}
