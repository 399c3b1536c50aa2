// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vault_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/secretkeeper/secretkeeper/lib/vault"
)

func TestDueRotationConfigs(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	if err := v.Initialize(ctx, newKey(t, "k")); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	for _, name := range []string{"DUE_NEVER_ROTATED", "NOT_DUE", "DISABLED"} {
		if err := v.AddSecret(ctx, name, "value", vault.AddSecretOptions{}); err != nil {
			t.Fatalf("AddSecret %s: %v", name, err)
		}
	}

	now := time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(10, 0, 0)

	if err := v.SetRotationConfig(ctx, vault.RotationConfig{
		SecretName: "DUE_NEVER_ROTATED", ProviderTag: "custom", ScheduleDays: 30, Enabled: true,
	}); err != nil {
		t.Fatalf("SetRotationConfig DUE_NEVER_ROTATED: %v", err)
	}
	if err := v.SetRotationConfig(ctx, vault.RotationConfig{
		SecretName: "NOT_DUE", ProviderTag: "custom", ScheduleDays: 30, Enabled: true, LastRotated: &future,
	}); err != nil {
		t.Fatalf("SetRotationConfig NOT_DUE: %v", err)
	}
	if err := v.SetRotationConfig(ctx, vault.RotationConfig{
		SecretName: "DISABLED", ProviderTag: "custom", ScheduleDays: 30, Enabled: false,
	}); err != nil {
		t.Fatalf("SetRotationConfig DISABLED: %v", err)
	}

	due, err := v.DueRotationConfigs(ctx, now)
	if err != nil {
		t.Fatalf("DueRotationConfigs: %v", err)
	}
	if len(due) != 1 || due[0].SecretName != "DUE_NEVER_ROTATED" {
		t.Fatalf("DueRotationConfigs = %+v, want only DUE_NEVER_ROTATED", due)
	}
}

func TestSetRotationConfigDerivesNextRotation(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	if err := v.Initialize(ctx, newKey(t, "k")); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := v.AddSecret(ctx, "S", "v", vault.AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}

	lastRotated := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := v.SetRotationConfig(ctx, vault.RotationConfig{
		SecretName: "S", ProviderTag: "custom", ScheduleDays: 30, Enabled: true, LastRotated: &lastRotated,
	}); err != nil {
		t.Fatalf("SetRotationConfig: %v", err)
	}

	cfg, err := v.GetRotationConfig(ctx, "S")
	if err != nil {
		t.Fatalf("GetRotationConfig: %v", err)
	}
	want := lastRotated.AddDate(0, 0, 30)
	if cfg.NextRotation == nil || !cfg.NextRotation.Equal(want) {
		t.Errorf("NextRotation = %v, want %v", cfg.NextRotation, want)
	}
}

func TestRecordRotationSuccessAndHistory(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	if err := v.Initialize(ctx, newKey(t, "k")); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := v.AddSecret(ctx, "S", "v", vault.AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}
	if err := v.SetRotationConfig(ctx, vault.RotationConfig{
		SecretName: "S", ProviderTag: "custom", ScheduleDays: 7, Enabled: true,
	}); err != nil {
		t.Fatalf("SetRotationConfig: %v", err)
	}

	rotatedAt := time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)
	if err := v.RecordRotationSuccess(ctx, "S", rotatedAt); err != nil {
		t.Fatalf("RecordRotationSuccess: %v", err)
	}
	if err := v.AppendRotationHistory(ctx, vault.RotationHistoryEntry{
		SecretName: "S", Timestamp: rotatedAt, Status: "success", ProviderTag: "custom",
	}); err != nil {
		t.Fatalf("AppendRotationHistory: %v", err)
	}

	cfg, err := v.GetRotationConfig(ctx, "S")
	if err != nil {
		t.Fatalf("GetRotationConfig: %v", err)
	}
	if cfg.LastRotated == nil || !cfg.LastRotated.Equal(rotatedAt) {
		t.Errorf("LastRotated = %v, want %v", cfg.LastRotated, rotatedAt)
	}
	wantNext := rotatedAt.AddDate(0, 0, 7)
	if cfg.NextRotation == nil || !cfg.NextRotation.Equal(wantNext) {
		t.Errorf("NextRotation = %v, want %v", cfg.NextRotation, wantNext)
	}

	history, err := v.ListRotationHistory(ctx, "S")
	if err != nil {
		t.Fatalf("ListRotationHistory: %v", err)
	}
	if len(history) != 1 || history[0].Status != "success" {
		t.Fatalf("ListRotationHistory = %+v", history)
	}
}

func TestDeleteRotationConfigNotFound(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	if err := v.Initialize(ctx, newKey(t, "k")); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := v.DeleteRotationConfig(ctx, "MISSING"); !errors.Is(err, vault.ErrRotationConfigNotFound) {
		t.Fatalf("DeleteRotationConfig: got %v, want ErrRotationConfigNotFound", err)
	}
}

func TestRotationConfigCarriesProviderConfig(t *testing.T) {
	ctx := context.Background()
	v := openTestVault(t)
	if err := v.Initialize(ctx, newKey(t, "k")); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := v.AddSecret(ctx, "S", "v", vault.AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}

	raw, _ := json.Marshal(map[string]string{"rotate_command": "echo new"})
	if err := v.SetRotationConfig(ctx, vault.RotationConfig{
		SecretName: "S", ProviderTag: "custom", ScheduleDays: 1, Enabled: true, Config: raw,
	}); err != nil {
		t.Fatalf("SetRotationConfig: %v", err)
	}

	cfg, err := v.GetRotationConfig(ctx, "S")
	if err != nil {
		t.Fatalf("GetRotationConfig: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(cfg.Config, &decoded); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	if decoded["rotate_command"] != "echo new" {
		t.Errorf("config = %v", decoded)
	}
}
