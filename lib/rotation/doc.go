// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rotation implements secret rotation: the uniform [Provider]
// capability set (custom shell commands, and reachability-check stubs
// for openai, aws, and github), the [Manager] that drives a single
// rotation against the vault, and the [Scheduler] that wakes
// periodically and runs whatever is due.
package rotation
