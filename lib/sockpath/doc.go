// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sockpath computes the filesystem locations of the daemon's
// Unix sockets and the project fingerprint that names a project-scoped
// socket. Both lib/daemon (the listener) and lib/skclient (the dialer)
// import this package so the two sides can never disagree about where
// to find each other.
package sockpath
