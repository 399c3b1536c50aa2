// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SchemaVersion is the schema version string written to a freshly
// initialized vault's metadata row.
const SchemaVersion = "2"

// currentSchema creates the five relations at their current shape.
// Running this against an already-current database is a no-op — every
// statement is IF NOT EXISTS.
const currentSchema = `
CREATE TABLE IF NOT EXISTS vault_metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS secrets (
	name        TEXT PRIMARY KEY,
	ciphertext  TEXT NOT NULL,
	description TEXT,
	tags        TEXT NOT NULL DEFAULT '[]',
	sensitivity TEXT NOT NULL DEFAULT 'sensitive',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp  TEXT NOT NULL,
	action     TEXT NOT NULL,
	secret_name TEXT,
	detail     TEXT
);

CREATE TABLE IF NOT EXISTS rotation_config (
	secret_name   TEXT PRIMARY KEY REFERENCES secrets(name) ON DELETE CASCADE,
	provider_tag  TEXT NOT NULL,
	schedule_days INTEGER NOT NULL,
	last_rotated  TEXT,
	next_rotation TEXT,
	enabled       INTEGER NOT NULL DEFAULT 1,
	config        TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS rotation_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	secret_name  TEXT NOT NULL,
	timestamp    TEXT NOT NULL,
	status       TEXT NOT NULL,
	provider_tag TEXT NOT NULL,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_rotation_history_secret ON rotation_history(secret_name, timestamp);
`

// ensureSchema creates every table at its current shape and then lazily
// migrates a schema-v1 database forward: the only structural change
// between v1 and v2 is the addition of the secrets.sensitivity column
// (v1 rows have no concept of sensitivity and default to "sensitive").
// The legacy v1 password-verifier row in vault_metadata, if present, is
// left untouched and simply never read.
func ensureSchema(conn *sqlite.Conn) error {
	if err := sqlitex.ExecuteScript(conn, currentSchema, nil); err != nil {
		return fmt.Errorf("vault: creating schema: %w", err)
	}

	hasSensitivity, err := hasColumn(conn, "secrets", "sensitivity")
	if err != nil {
		return err
	}
	if !hasSensitivity {
		err := sqlitex.ExecuteTransient(conn,
			`ALTER TABLE secrets ADD COLUMN sensitivity TEXT NOT NULL DEFAULT 'sensitive'`, nil)
		if err != nil {
			return fmt.Errorf("vault: adding sensitivity column: %w", err)
		}
	}

	return nil
}

// hasColumn reports whether table has a column named column, using
// PRAGMA table_info.
func hasColumn(conn *sqlite.Conn, table, column string) (bool, error) {
	found := false
	err := sqlitex.ExecuteTransient(conn, fmt.Sprintf("PRAGMA table_info(%s)", table), &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if stmt.GetText("name") == column {
				found = true
			}
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("vault: inspecting %s columns: %w", table, err)
	}
	return found, nil
}
