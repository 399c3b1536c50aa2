// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// RotationConfig is one secret's rotation configuration row.
type RotationConfig struct {
	SecretName   string
	ProviderTag  string
	ScheduleDays int
	LastRotated  *time.Time
	NextRotation *time.Time
	Enabled      bool
	Config       json.RawMessage
}

// RotationHistoryEntry is one append-only rotation attempt record.
type RotationHistoryEntry struct {
	ID          int64
	SecretName  string
	Timestamp   time.Time
	Status      string // "success" | "failed"
	ProviderTag string
	Error       string
}

// SetRotationConfig creates or replaces the rotation configuration for
// cfg.SecretName. next_rotation is derived as
// last_rotated + schedule_days whenever last_rotated is non-nil;
// otherwise it is left nil (meaning "due immediately").
func (v *Vault) SetRotationConfig(ctx context.Context, cfg RotationConfig) error {
	if !nameRe.MatchString(cfg.SecretName) {
		return fmt.Errorf("%w: %q", ErrInvalidSecretName, cfg.SecretName)
	}
	if cfg.ScheduleDays < 1 {
		return fmt.Errorf("vault: schedule_days must be >= 1, got %d", cfg.ScheduleDays)
	}
	if cfg.Config == nil {
		cfg.Config = json.RawMessage("{}")
	}

	conn, err := v.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer v.pool.Put(conn)

	next := cfg.NextRotation
	if cfg.LastRotated != nil {
		derived := cfg.LastRotated.AddDate(0, 0, cfg.ScheduleDays)
		next = &derived
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO rotation_config (secret_name, provider_tag, schedule_days, last_rotated, next_rotation, enabled, config)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(secret_name) DO UPDATE SET
			provider_tag = excluded.provider_tag,
			schedule_days = excluded.schedule_days,
			last_rotated = excluded.last_rotated,
			next_rotation = excluded.next_rotation,
			enabled = excluded.enabled,
			config = excluded.config
	`, &sqlitex.ExecOptions{Args: []any{
		cfg.SecretName, cfg.ProviderTag, cfg.ScheduleDays,
		optionalTimeArg(cfg.LastRotated), optionalTimeArg(next), boolToInt(cfg.Enabled), string(cfg.Config),
	}})
	if err != nil {
		return fmt.Errorf("vault: configuring rotation for %q: %w", cfg.SecretName, err)
	}
	return nil
}

// GetRotationConfig returns the rotation configuration for secretName.
func (v *Vault) GetRotationConfig(ctx context.Context, secretName string) (*RotationConfig, error) {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer v.pool.Put(conn)

	var cfg *RotationConfig
	var rowErr error
	err = sqlitex.Execute(conn,
		`SELECT secret_name, provider_tag, schedule_days, last_rotated, next_rotation, enabled, config
		 FROM rotation_config WHERE secret_name = ?`,
		&sqlitex.ExecOptions{Args: []any{secretName}, ResultFunc: func(stmt *sqlite.Stmt) error {
			c, err := scanRotationConfig(stmt)
			if err != nil {
				rowErr = err
				return err
			}
			cfg = c
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("vault: fetching rotation config for %q: %w", secretName, err)
	}
	if rowErr != nil {
		return nil, rowErr
	}
	if cfg == nil {
		return nil, ErrRotationConfigNotFound
	}
	return cfg, nil
}

// ListRotationConfigs returns every rotation configuration.
func (v *Vault) ListRotationConfigs(ctx context.Context) ([]RotationConfig, error) {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer v.pool.Put(conn)

	var configs []RotationConfig
	var rowErr error
	err = sqlitex.ExecuteTransient(conn,
		`SELECT secret_name, provider_tag, schedule_days, last_rotated, next_rotation, enabled, config
		 FROM rotation_config ORDER BY secret_name`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			c, err := scanRotationConfig(stmt)
			if err != nil {
				rowErr = err
				return err
			}
			configs = append(configs, *c)
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("vault: listing rotation configs: %w", err)
	}
	return configs, rowErr
}

// DueRotationConfigs returns every enabled rotation configuration whose
// next_rotation is null or at or before now, ordered by ascending
// next_rotation (null first).
func (v *Vault) DueRotationConfigs(ctx context.Context, now time.Time) ([]RotationConfig, error) {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer v.pool.Put(conn)

	var configs []RotationConfig
	var rowErr error
	err = sqlitex.Execute(conn, `
		SELECT secret_name, provider_tag, schedule_days, last_rotated, next_rotation, enabled, config
		FROM rotation_config
		WHERE enabled = 1 AND (next_rotation IS NULL OR next_rotation <= ?)
		ORDER BY next_rotation IS NOT NULL, next_rotation ASC
	`, &sqlitex.ExecOptions{Args: []any{now.UTC().Format(time.RFC3339)}, ResultFunc: func(stmt *sqlite.Stmt) error {
		c, err := scanRotationConfig(stmt)
		if err != nil {
			rowErr = err
			return err
		}
		configs = append(configs, *c)
		return nil
	}})
	if err != nil {
		return nil, fmt.Errorf("vault: listing due rotations: %w", err)
	}
	return configs, rowErr
}

// EnableRotation sets the enabled flag for secretName's rotation
// configuration.
func (v *Vault) EnableRotation(ctx context.Context, secretName string, enabled bool) error {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer v.pool.Put(conn)

	changes, err := execWithChanges(conn,
		`UPDATE rotation_config SET enabled = ? WHERE secret_name = ?`, boolToInt(enabled), secretName)
	if err != nil {
		return fmt.Errorf("vault: updating rotation enabled flag for %q: %w", secretName, err)
	}
	if changes == 0 {
		return ErrRotationConfigNotFound
	}
	return nil
}

// DeleteRotationConfig removes secretName's rotation configuration.
// Its rotation history, being append-only, is left in place.
func (v *Vault) DeleteRotationConfig(ctx context.Context, secretName string) error {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer v.pool.Put(conn)

	changes, err := execWithChanges(conn, `DELETE FROM rotation_config WHERE secret_name = ?`, secretName)
	if err != nil {
		return fmt.Errorf("vault: deleting rotation config for %q: %w", secretName, err)
	}
	if changes == 0 {
		return ErrRotationConfigNotFound
	}
	return nil
}

// RecordRotationSuccess updates secretName's last_rotated to at and
// derives next_rotation as at + schedule_days.
func (v *Vault) RecordRotationSuccess(ctx context.Context, secretName string, at time.Time) error {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer v.pool.Put(conn)

	var scheduleDays int
	found := false
	err = sqlitex.Execute(conn, `SELECT schedule_days FROM rotation_config WHERE secret_name = ?`,
		&sqlitex.ExecOptions{Args: []any{secretName}, ResultFunc: func(stmt *sqlite.Stmt) error {
			scheduleDays = int(stmt.GetInt64("schedule_days"))
			found = true
			return nil
		}})
	if err != nil {
		return fmt.Errorf("vault: recording rotation success for %q: %w", secretName, err)
	}
	if !found {
		return ErrRotationConfigNotFound
	}

	next := at.AddDate(0, 0, scheduleDays)
	err = sqlitex.Execute(conn,
		`UPDATE rotation_config SET last_rotated = ?, next_rotation = ? WHERE secret_name = ?`,
		&sqlitex.ExecOptions{Args: []any{
			at.UTC().Format(time.RFC3339), next.UTC().Format(time.RFC3339), secretName,
		}})
	if err != nil {
		return fmt.Errorf("vault: recording rotation success for %q: %w", secretName, err)
	}
	return nil
}

// AppendRotationHistory appends one rotation-attempt record. Never
// mutated or deleted afterward by the core.
func (v *Vault) AppendRotationHistory(ctx context.Context, entry RotationHistoryEntry) error {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer v.pool.Put(conn)

	var errArg any
	if entry.Error != "" {
		errArg = entry.Error
	}
	err = sqlitex.Execute(conn, `
		INSERT INTO rotation_history (secret_name, timestamp, status, provider_tag, error)
		VALUES (?, ?, ?, ?, ?)
	`, &sqlitex.ExecOptions{Args: []any{
		entry.SecretName, entry.Timestamp.UTC().Format(time.RFC3339), entry.Status, entry.ProviderTag, errArg,
	}})
	if err != nil {
		return fmt.Errorf("vault: appending rotation history for %q: %w", entry.SecretName, err)
	}
	return nil
}

// ListRotationHistory returns every history entry for secretName,
// newest first.
func (v *Vault) ListRotationHistory(ctx context.Context, secretName string) ([]RotationHistoryEntry, error) {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer v.pool.Put(conn)

	var entries []RotationHistoryEntry
	var rowErr error
	err = sqlitex.Execute(conn, `
		SELECT id, secret_name, timestamp, status, provider_tag, error
		FROM rotation_history WHERE secret_name = ? ORDER BY id DESC
	`, &sqlitex.ExecOptions{Args: []any{secretName}, ResultFunc: func(stmt *sqlite.Stmt) error {
		ts, err := parseTime(stmt.GetText("timestamp"))
		if err != nil {
			rowErr = err
			return err
		}
		entries = append(entries, RotationHistoryEntry{
			ID:          stmt.GetInt64("id"),
			SecretName:  stmt.GetText("secret_name"),
			Timestamp:   ts,
			Status:      stmt.GetText("status"),
			ProviderTag: stmt.GetText("provider_tag"),
			Error:       stmt.GetText("error"),
		})
		return nil
	}})
	if err != nil {
		return nil, fmt.Errorf("vault: listing rotation history for %q: %w", secretName, err)
	}
	return entries, rowErr
}

func scanRotationConfig(stmt *sqlite.Stmt) (*RotationConfig, error) {
	cfg := &RotationConfig{
		SecretName:   stmt.GetText("secret_name"),
		ProviderTag:  stmt.GetText("provider_tag"),
		ScheduleDays: int(stmt.GetInt64("schedule_days")),
		Enabled:      stmt.GetInt64("enabled") != 0,
		Config:       json.RawMessage(stmt.GetText("config")),
	}
	if raw := stmt.GetText("last_rotated"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return nil, err
		}
		cfg.LastRotated = &t
	}
	if raw := stmt.GetText("next_rotation"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return nil, err
		}
		cfg.NextRotation = &t
	}
	return cfg, nil
}

func optionalTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
