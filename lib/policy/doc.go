// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy implements the daemon's command allow/deny filter.
// [Validate] inspects a command string before it is ever spawned and
// rejects commands whose observable purpose looks like environment
// exfiltration.
//
// The filter is deliberately syntactic, conservative, and imperfect —
// it is defense-in-depth behind lib/scrub's byte-level redaction, not
// a substitute for it. A command that slips past Validate still has
// every secret value stripped from its output before a caller ever
// sees it.
package policy
