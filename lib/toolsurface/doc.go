// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package toolsurface exposes the daemon to an AI host over the Model
// Context Protocol. It is a thin forwarder: every tool call dials the
// daemon through lib/skclient, forwards one request, and wraps the
// response as a tool result. It never holds a vault handle or a
// secret value of its own — the daemon remains the only process that
// ever sees plaintext.
package toolsurface
