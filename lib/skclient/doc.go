// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package skclient is the daemon's client library: it resolves which
// socket to dial (project-scoped if a local vault exists at the
// caller's working directory, else global) and performs a single
// connect-send-receive round trip per call. There is no persistent
// connection and no retry logic — callers that need resilience build
// it on top.
package skclient
