// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"fmt"
	"os"
	"time"

	"github.com/secretkeeper/secretkeeper/lib/rotation"
)

// appendRotationLog appends one line per result to the daemon's
// rotation log: "RFC3339 timestamp, secret name, provider tag, status,
// error-or-empty". A missing RotationLogPath is a silent no-op — the
// log is a convenience, not part of the vault's durable state.
func (d *Daemon) appendRotationLog(results []rotation.Result) {
	if d.rotationLogPath == "" {
		return
	}

	f, err := os.OpenFile(d.rotationLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		d.logger.Warn("opening rotation log", "path", d.rotationLogPath, "error", err)
		return
	}
	defer f.Close()

	for _, r := range results {
		_, err := fmt.Fprintf(f, "%s, %s, %s, %s, %s\n",
			r.Timestamp.UTC().Format(time.RFC3339), r.SecretName, r.ProviderTag, r.Status, r.Error)
		if err != nil {
			d.logger.Warn("writing rotation log", "path", d.rotationLogPath, "error", err)
			return
		}
	}
}
