// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rotation_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/secretkeeper/secretkeeper/lib/rotation"
	secret "github.com/secretkeeper/secretkeeper/lib/secretmem"
	"github.com/secretkeeper/secretkeeper/lib/vault"
)

func openTestVault(t *testing.T) *vault.Vault {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secret-keeper", "secrets.db")
	v, err := vault.Open(vault.Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { v.Close() })

	key, err := secret.NewFromBytes([]byte("test-key"))
	if err != nil {
		t.Fatalf("secret.NewFromBytes: %v", err)
	}
	if err := v.Initialize(context.Background(), key); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return v
}

func TestManagerConfigureRejectsUnknownProvider(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	m := rotation.NewManager(v, nil)

	if err := v.AddSecret(ctx, "S", "value", vault.AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}

	err := m.Configure(ctx, "S", "not-a-real-provider", 30, nil)
	if !errors.Is(err, rotation.ErrUnknownProvider) {
		t.Fatalf("Configure = %v, want ErrUnknownProvider", err)
	}
}

func TestManagerConfigureRejectsInvalidProviderConfig(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	m := rotation.NewManager(v, nil)
	if err := v.AddSecret(ctx, "S", "value", vault.AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}

	err := m.Configure(ctx, "S", "custom", 30, json.RawMessage(`{}`))
	if !errors.Is(err, rotation.ErrInvalidProviderConfig) {
		t.Fatalf("Configure = %v, want ErrInvalidProviderConfig", err)
	}
}

func TestManagerRotateNowWritesNewValueAndHistory(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	m := rotation.NewManager(v, nil)

	if err := v.AddSecret(ctx, "S", "old-value", vault.AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}
	cfg, _ := json.Marshal(map[string]string{"rotate_command": `echo "new-$CURRENT_SECRET_VALUE"`})
	if err := m.Configure(ctx, "S", "custom", 30, cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	now := time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)
	result, err := m.RotateNow(ctx, "S", now)
	if err != nil {
		t.Fatalf("RotateNow: %v", err)
	}
	if result.Status != "success" {
		t.Fatalf("result.Status = %q", result.Status)
	}

	value, err := v.GetSecret(ctx, "S")
	if err != nil {
		t.Fatalf("GetSecret: %v", err)
	}
	if value != "new-old-value" {
		t.Errorf("GetSecret = %q, want %q", value, "new-old-value")
	}

	history, err := v.ListRotationHistory(ctx, "S")
	if err != nil {
		t.Fatalf("ListRotationHistory: %v", err)
	}
	if len(history) != 1 || history[0].Status != "success" {
		t.Fatalf("ListRotationHistory = %+v", history)
	}
}

func TestManagerRotateNowLeavesOldValueOnFailure(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	m := rotation.NewManager(v, nil)

	if err := v.AddSecret(ctx, "S", "old-value", vault.AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}
	cfg, _ := json.Marshal(map[string]string{"rotate_command": `exit 1`})
	if err := m.Configure(ctx, "S", "custom", 30, cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	now := time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)
	result, err := m.RotateNow(ctx, "S", now)
	if err == nil {
		t.Fatal("RotateNow should return an error when the provider fails")
	}
	if result == nil || result.Status != "failed" {
		t.Fatalf("result = %+v", result)
	}

	value, getErr := v.GetSecret(ctx, "S")
	if getErr != nil {
		t.Fatalf("GetSecret: %v", getErr)
	}
	if value != "old-value" {
		t.Errorf("GetSecret = %q, want unchanged %q", value, "old-value")
	}

	history, histErr := v.ListRotationHistory(ctx, "S")
	if histErr != nil {
		t.Fatalf("ListRotationHistory: %v", histErr)
	}
	if len(history) != 1 || history[0].Status != "failed" {
		t.Fatalf("ListRotationHistory = %+v", history)
	}
}

func TestManagerDueNowOrdersBySchedule(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	m := rotation.NewManager(v, nil)

	for _, name := range []string{"A", "B"} {
		if err := v.AddSecret(ctx, name, "v", vault.AddSecretOptions{}); err != nil {
			t.Fatalf("AddSecret %s: %v", name, err)
		}
		cfg, _ := json.Marshal(map[string]string{"rotate_command": "echo x"})
		if err := m.Configure(ctx, name, "custom", 30, cfg); err != nil {
			t.Fatalf("Configure %s: %v", name, err)
		}
	}

	now := time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)
	due, err := m.DueNow(ctx, now)
	if err != nil {
		t.Fatalf("DueNow: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("DueNow = %+v, want 2 entries", due)
	}
}

func TestManagerRunDueRotatesSequentiallyAndContinuesOnFailure(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	m := rotation.NewManager(v, nil)

	if err := v.AddSecret(ctx, "GOOD", "old", vault.AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret GOOD: %v", err)
	}
	if err := v.AddSecret(ctx, "BAD", "old", vault.AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret BAD: %v", err)
	}
	goodCfg, _ := json.Marshal(map[string]string{"rotate_command": "echo new-good"})
	badCfg, _ := json.Marshal(map[string]string{"rotate_command": "exit 1"})
	if err := m.Configure(ctx, "GOOD", "custom", 30, goodCfg); err != nil {
		t.Fatalf("Configure GOOD: %v", err)
	}
	if err := m.Configure(ctx, "BAD", "custom", 30, badCfg); err != nil {
		t.Fatalf("Configure BAD: %v", err)
	}

	now := time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)
	results := m.RunDue(ctx, now)
	if len(results) != 2 {
		t.Fatalf("RunDue = %+v, want 2 results", results)
	}

	byName := map[string]rotation.Result{}
	for _, r := range results {
		byName[r.SecretName] = r
	}
	if byName["GOOD"].Status != "success" {
		t.Errorf("GOOD result = %+v", byName["GOOD"])
	}
	if byName["BAD"].Status != "failed" {
		t.Errorf("BAD result = %+v", byName["BAD"])
	}

	value, err := v.GetSecret(ctx, "GOOD")
	if err != nil {
		t.Fatalf("GetSecret GOOD: %v", err)
	}
	if value != "new-good" {
		t.Errorf("GOOD value = %q", value)
	}
}

func TestManagerTestDoesNotMutateSecret(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	m := rotation.NewManager(v, nil)

	if err := v.AddSecret(ctx, "S", "old-value", vault.AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}
	cfg, _ := json.Marshal(map[string]string{"rotate_command": "echo ignored"})
	if err := m.Configure(ctx, "S", "custom", 30, cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	ok, err := m.Test(ctx, "S")
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if !ok {
		t.Error("Test should succeed for a valid rotate_command")
	}

	value, err := v.GetSecret(ctx, "S")
	if err != nil {
		t.Fatalf("GetSecret: %v", err)
	}
	if value != "old-value" {
		t.Errorf("GetSecret = %q, Test must not mutate the secret", value)
	}
}
