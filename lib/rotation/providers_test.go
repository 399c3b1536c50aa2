// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rotation

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestCustomProviderRotatesUsingStdout(t *testing.T) {
	p := &customProvider{}
	cfg, _ := json.Marshal(customConfig{RotateCommand: `echo "new-$CURRENT_SECRET_VALUE"`})

	newValue, err := p.Rotate(context.Background(), cfg, "old")
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if newValue != "new-old" {
		t.Errorf("Rotate = %q, want %q", newValue, "new-old")
	}
}

func TestCustomProviderRejectsEmptyStdout(t *testing.T) {
	p := &customProvider{}
	cfg, _ := json.Marshal(customConfig{RotateCommand: `true`})

	if _, err := p.Rotate(context.Background(), cfg, "old"); err == nil {
		t.Fatal("Rotate with empty stdout should fail")
	}
}

func TestCustomProviderRunsValidateCommand(t *testing.T) {
	p := &customProvider{}
	cfg, _ := json.Marshal(customConfig{
		RotateCommand:   `echo new-value`,
		ValidateCommand: `test "$SECRET_VALUE" = "new-value"`,
	})

	newValue, err := p.Rotate(context.Background(), cfg, "old")
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if newValue != "new-value" {
		t.Errorf("Rotate = %q", newValue)
	}
}

func TestCustomProviderAbortsOnFailingValidateCommand(t *testing.T) {
	p := &customProvider{}
	cfg, _ := json.Marshal(customConfig{
		RotateCommand:   `echo new-value`,
		ValidateCommand: `false`,
	})

	if _, err := p.Rotate(context.Background(), cfg, "old"); err == nil {
		t.Fatal("Rotate should fail when validate_command exits non-zero")
	}
}

func TestCustomProviderTestRotateSetsDryRun(t *testing.T) {
	p := &customProvider{}
	cfg, _ := json.Marshal(customConfig{RotateCommand: `test "$DRY_RUN" = "1"`})

	if !p.TestRotate(context.Background(), cfg, "old") {
		t.Error("TestRotate should see DRY_RUN=1")
	}
}

func TestCustomProviderValidateConfigRequiresRotateCommand(t *testing.T) {
	p := &customProvider{}
	if p.ValidateConfig(json.RawMessage(`{}`)) {
		t.Error("ValidateConfig should reject a config with no rotate_command")
	}
	cfg, _ := json.Marshal(customConfig{RotateCommand: "echo hi"})
	if !p.ValidateConfig(cfg) {
		t.Error("ValidateConfig should accept a config with rotate_command set")
	}
}

func TestOpenAIProviderAlwaysFailsRotate(t *testing.T) {
	p := &openAIProvider{}
	_, err := p.Rotate(context.Background(), json.RawMessage(`{}`), "sk-fake")
	if err == nil {
		t.Fatal("openai Rotate should always fail")
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Errorf("error = %v, want explanation of unsupported rotation", err)
	}
}

func TestGithubProviderAlwaysFailsRotate(t *testing.T) {
	p := &githubProvider{}
	_, err := p.Rotate(context.Background(), json.RawMessage(`{}`), "ghp_fake")
	if err == nil {
		t.Fatal("github Rotate should always fail")
	}
}

func TestProvidersRegistryHasFourTags(t *testing.T) {
	providers := Providers()
	for _, tag := range []string{"custom", "openai", "aws", "github"} {
		if _, ok := providers[tag]; !ok {
			t.Errorf("Providers() missing tag %q", tag)
		}
	}
	if len(providers) != 4 {
		t.Errorf("Providers() has %d entries, want 4", len(providers))
	}
}

func TestAWSProviderValidateConfig(t *testing.T) {
	p := &awsProvider{}
	if p.ValidateConfig(json.RawMessage(`{}`)) {
		t.Error("ValidateConfig should reject an empty config")
	}
	cfg, _ := json.Marshal(awsConfig{
		AccessKeyIDSecretName:     "AWS_ACCESS_KEY_ID",
		SecretAccessKeySecretName: "AWS_SECRET_ACCESS_KEY",
	})
	if !p.ValidateConfig(cfg) {
		t.Error("ValidateConfig should accept a fully populated config")
	}
}

func TestAWSProviderRotateRejectsMalformedCurrentValue(t *testing.T) {
	p := &awsProvider{}
	if _, err := p.Rotate(context.Background(), json.RawMessage(`{}`), "not-json"); err == nil {
		t.Fatal("Rotate should reject a current value that isn't a serialized key pair")
	}
}
