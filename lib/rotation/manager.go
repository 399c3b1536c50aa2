// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/secretkeeper/secretkeeper/lib/vault"
)

// Result records the outcome of one RotateNow or RunDue attempt.
type Result struct {
	SecretName  string
	ProviderTag string
	Status      string // "success" | "failed"
	Error       string
	Timestamp   time.Time
}

// Manager drives rotation configuration and rotation attempts against
// a vault, dispatching to the registered [Provider] for each secret's
// provider_tag.
type Manager struct {
	vault     *vault.Vault
	providers map[string]Provider
	logger    *slog.Logger
}

// NewManager returns a Manager backed by v, using the built-in
// provider registry. logger may be nil, in which case log output is
// discarded.
func NewManager(v *vault.Vault, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{vault: v, providers: Providers(), logger: logger}
}

// Configure validates the provider config against its registered
// provider and writes the rotation_config row. now is supplied by the
// caller (see lib/clock) rather than read from the wall clock.
func (m *Manager) Configure(ctx context.Context, secretName, providerTag string, scheduleDays int, config json.RawMessage) error {
	provider, ok := m.providers[providerTag]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, providerTag)
	}
	if config == nil {
		config = json.RawMessage("{}")
	}
	if !provider.ValidateConfig(config) {
		return fmt.Errorf("%w for provider %q", ErrInvalidProviderConfig, providerTag)
	}

	existing, err := m.vault.GetRotationConfig(ctx, secretName)
	if err != nil && !errors.Is(err, vault.ErrRotationConfigNotFound) {
		return err
	}

	cfg := vault.RotationConfig{
		SecretName:   secretName,
		ProviderTag:  providerTag,
		ScheduleDays: scheduleDays,
		Enabled:      true,
		Config:       config,
	}
	if existing != nil {
		cfg.LastRotated = existing.LastRotated
	}
	return m.vault.SetRotationConfig(ctx, cfg)
}

// Enable turns on scheduled rotation for secretName.
func (m *Manager) Enable(ctx context.Context, secretName string) error {
	return m.vault.EnableRotation(ctx, secretName, true)
}

// Disable turns off scheduled rotation for secretName without
// deleting its configuration or history.
func (m *Manager) Disable(ctx context.Context, secretName string) error {
	return m.vault.EnableRotation(ctx, secretName, false)
}

// Delete removes secretName's rotation configuration. Its history
// remains, since it is append-only.
func (m *Manager) Delete(ctx context.Context, secretName string) error {
	return m.vault.DeleteRotationConfig(ctx, secretName)
}

// Get returns secretName's rotation configuration.
func (m *Manager) Get(ctx context.Context, secretName string) (*vault.RotationConfig, error) {
	return m.vault.GetRotationConfig(ctx, secretName)
}

// List returns every rotation configuration.
func (m *Manager) List(ctx context.Context) ([]vault.RotationConfig, error) {
	return m.vault.ListRotationConfigs(ctx)
}

// DueNow returns every enabled rotation configuration that is due as
// of now, ordered by ascending next_rotation.
func (m *Manager) DueNow(ctx context.Context, now time.Time) ([]vault.RotationConfig, error) {
	return m.vault.DueRotationConfigs(ctx, now)
}

// RotateNow is the hot path: it reads secretName's current value,
// invokes its provider, and on success writes the new value back and
// records a success history row. On failure the old value is left
// intact and a failed history row is recorded; the error is also
// returned to the caller.
func (m *Manager) RotateNow(ctx context.Context, secretName string, now time.Time) (*Result, error) {
	cfg, err := m.vault.GetRotationConfig(ctx, secretName)
	if err != nil {
		return nil, err
	}
	provider, ok := m.providers[cfg.ProviderTag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.ProviderTag)
	}

	current, err := m.vault.GetSecret(ctx, secretName)
	if err != nil {
		return nil, err
	}

	result := &Result{SecretName: secretName, ProviderTag: cfg.ProviderTag, Timestamp: now}

	newValue, rotateErr := provider.Rotate(ctx, cfg.Config, current)
	if rotateErr != nil {
		result.Status = "failed"
		result.Error = rotateErr.Error()
		m.logger.Warn("rotation failed", "secret", secretName, "provider", cfg.ProviderTag, "error", rotateErr)
		m.recordHistory(ctx, *result)
		return result, &RotationError{SecretName: secretName, Err: rotateErr}
	}

	if err := m.vault.AddSecret(ctx, secretName, newValue, vault.AddSecretOptions{}); err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		m.recordHistory(ctx, *result)
		return result, fmt.Errorf("rotation of %s succeeded but writing the new value failed: %w", secretName, err)
	}
	if err := m.vault.RecordRotationSuccess(ctx, secretName, now); err != nil {
		m.logger.Warn("recording rotation success", "secret", secretName, "error", err)
	}

	result.Status = "success"
	m.logger.Info("rotation succeeded", "secret", secretName, "provider", cfg.ProviderTag)
	m.recordHistory(ctx, *result)
	return result, nil
}

// Test performs a dry run of secretName's rotation without mutating
// anything.
func (m *Manager) Test(ctx context.Context, secretName string) (bool, error) {
	cfg, err := m.vault.GetRotationConfig(ctx, secretName)
	if err != nil {
		return false, err
	}
	provider, ok := m.providers[cfg.ProviderTag]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.ProviderTag)
	}
	current, err := m.vault.GetSecret(ctx, secretName)
	if err != nil {
		return false, err
	}
	return provider.TestRotate(ctx, cfg.Config, current), nil
}

// RunDue rotates every currently due configuration, one at a time —
// never in parallel, since some providers (aws) perform non-idempotent
// multi-step operations that must not overlap. A failure in one
// rotation does not stop the rest from running.
func (m *Manager) RunDue(ctx context.Context, now time.Time) []Result {
	due, err := m.vault.DueRotationConfigs(ctx, now)
	if err != nil {
		m.logger.Error("listing due rotations", "error", err)
		return nil
	}

	results := make([]Result, 0, len(due))
	for _, cfg := range due {
		result, err := m.RotateNow(ctx, cfg.SecretName, now)
		if result == nil {
			result = &Result{SecretName: cfg.SecretName, ProviderTag: cfg.ProviderTag, Status: "failed", Timestamp: now}
			if err != nil {
				result.Error = err.Error()
			}
		}
		results = append(results, *result)
	}
	return results
}

func (m *Manager) recordHistory(ctx context.Context, result Result) {
	err := m.vault.AppendRotationHistory(ctx, vault.RotationHistoryEntry{
		SecretName:  result.SecretName,
		Timestamp:   result.Timestamp,
		Status:      result.Status,
		ProviderTag: result.ProviderTag,
		Error:       result.Error,
	})
	if err != nil {
		m.logger.Warn("appending rotation history", "secret", result.SecretName, "error", err)
	}
}
