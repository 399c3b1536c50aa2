// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for secret-keeper
// binaries. It centralizes the one legitimate raw I/O pattern that
// exists before the structured logger is available: reporting a fatal
// startup error to stderr and exiting with a non-zero status.
package process
