// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scrub implements the daemon's output scrubber: byte-level
// replacement of secret values — and their common encodings — with
// opaque markers before any command output leaves the daemon.
//
// A [Scrubber] is an immutable snapshot of one secret map. It is
// rebuilt, never mutated, whenever the map changes (initial load,
// rotation); see lib/daemon for the atomic (map, scrubber) swap.
package scrub
