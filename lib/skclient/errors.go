// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package skclient

import "errors"

// ErrDaemonNotRunning is returned when the target socket does not
// exist, or a connection to it is refused.
var ErrDaemonNotRunning = errors.New("skclient: daemon is not running")
