// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package skipc defines the JSON-encoded message types for the
// secret-keeper daemon's Unix socket protocol. lib/daemon (the server
// side) and lib/skclient (the client side) both import this package so
// the wire types are defined once rather than mirrored.
//
// One request, one response, one connection: the client writes a
// single JSON object and half-closes its write side, the server reads
// until it has a complete object, writes a single JSON object back,
// and closes the connection.
package skipc
