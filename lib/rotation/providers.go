// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rotation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Provider is the uniform capability set every rotation backend
// implements. config is the provider-specific JSON blob stored
// alongside the rotation_config row.
type Provider interface {
	// Tag identifies the provider in a rotation_config row.
	Tag() string

	// DisplayName is a short human-readable label.
	DisplayName() string

	// Rotate produces a new secret value given the current one. On
	// failure the caller discards the returned string and leaves the
	// old value in place.
	Rotate(ctx context.Context, config json.RawMessage, current string) (string, error)

	// ValidateConfig reports whether config is well-formed for this
	// provider, independent of any live rotation attempt.
	ValidateConfig(config json.RawMessage) bool

	// TestRotate performs a dry run: it exercises as much of Rotate's
	// path as it safely can without mutating the secret, and reports
	// whether that path succeeded.
	TestRotate(ctx context.Context, config json.RawMessage, current string) bool
}

// Providers is the tag-indexed registry of every built-in provider.
// Configuring a rotation with an unregistered tag is a fail-fast
// configuration error (see [ErrUnknownProvider]).
func Providers() map[string]Provider {
	return map[string]Provider{
		customProviderTag: &customProvider{},
		openAIProviderTag: &openAIProvider{},
		awsProviderTag:    &awsProvider{},
		githubProviderTag: &githubProvider{},
	}
}

// --- custom -----------------------------------------------------------

const customProviderTag = "custom"

// customConfig is the provider_config payload for the custom provider.
type customConfig struct {
	RotateCommand   string `json:"rotate_command"`
	ValidateCommand string `json:"validate_command,omitempty"`
}

// customProvider rotates a secret by running an arbitrary shell
// command and capturing its trimmed stdout as the new value.
type customProvider struct{}

func (*customProvider) Tag() string         { return customProviderTag }
func (*customProvider) DisplayName() string { return "Custom shell command" }

func (*customProvider) ValidateConfig(config json.RawMessage) bool {
	var c customConfig
	if err := json.Unmarshal(config, &c); err != nil {
		return false
	}
	return strings.TrimSpace(c.RotateCommand) != ""
}

func (p *customProvider) Rotate(ctx context.Context, config json.RawMessage, current string) (string, error) {
	var c customConfig
	if err := json.Unmarshal(config, &c); err != nil {
		return "", fmt.Errorf("custom: decoding config: %w", err)
	}
	if strings.TrimSpace(c.RotateCommand) == "" {
		return "", fmt.Errorf("custom: rotate_command is empty")
	}

	out, err := runShell(ctx, c.RotateCommand, map[string]string{"CURRENT_SECRET_VALUE": current})
	if err != nil {
		return "", fmt.Errorf("custom: rotate_command: %w", err)
	}
	newValue := strings.TrimSpace(out)
	if newValue == "" {
		return "", fmt.Errorf("custom: rotate_command produced empty output")
	}

	if c.ValidateCommand != "" {
		if _, err := runShell(ctx, c.ValidateCommand, map[string]string{"SECRET_VALUE": newValue}); err != nil {
			return "", fmt.Errorf("custom: validate_command rejected new value: %w", err)
		}
	}
	return newValue, nil
}

func (p *customProvider) TestRotate(ctx context.Context, config json.RawMessage, current string) bool {
	var c customConfig
	if err := json.Unmarshal(config, &c); err != nil {
		return false
	}
	if strings.TrimSpace(c.RotateCommand) == "" {
		return false
	}
	_, err := runShell(ctx, c.RotateCommand, map[string]string{
		"CURRENT_SECRET_VALUE": current,
		"DRY_RUN":              "1",
	})
	return err == nil
}

// --- openai -------------------------------------------------------------

const openAIProviderTag = "openai"

type openAIConfig struct {
	APIKeySecretName string `json:"api_key_secret_name"`
}

// openAIProvider cannot create keys programmatically — the public API
// has no such endpoint — so Rotate only ever verifies reachability and
// then fails with an explanation. TestRotate is the same reachability
// check without the guaranteed failure.
type openAIProvider struct{}

func (*openAIProvider) Tag() string         { return openAIProviderTag }
func (*openAIProvider) DisplayName() string { return "OpenAI API key (reachability only)" }

func (*openAIProvider) ValidateConfig(config json.RawMessage) bool {
	var c openAIConfig
	if err := json.Unmarshal(config, &c); err != nil {
		return false
	}
	return strings.TrimSpace(c.APIKeySecretName) != ""
}

func (p *openAIProvider) Rotate(ctx context.Context, config json.RawMessage, current string) (string, error) {
	if err := checkBearerReachable(ctx, "https://api.openai.com/v1/models", current); err != nil {
		return "", fmt.Errorf("openai: key reachability check failed: %w", err)
	}
	return "", fmt.Errorf("openai: programmatic key rotation is not supported by the upstream API; rotate manually and use the custom provider to automate the swap")
}

func (p *openAIProvider) TestRotate(ctx context.Context, config json.RawMessage, current string) bool {
	return checkBearerReachable(ctx, "https://api.openai.com/v1/models", current) == nil
}

// --- github ---------------------------------------------------------------

const githubProviderTag = "github"

type githubConfig struct {
	TokenSecretName string `json:"token_secret_name"`
}

// githubProvider is, like openai, a reachability-check-only provider
// included for parity with the upstream tooling it was ported from.
type githubProvider struct{}

func (*githubProvider) Tag() string         { return githubProviderTag }
func (*githubProvider) DisplayName() string { return "GitHub token (reachability only)" }

func (*githubProvider) ValidateConfig(config json.RawMessage) bool {
	var c githubConfig
	if err := json.Unmarshal(config, &c); err != nil {
		return false
	}
	return strings.TrimSpace(c.TokenSecretName) != ""
}

func (p *githubProvider) Rotate(ctx context.Context, config json.RawMessage, current string) (string, error) {
	if err := checkBearerReachable(ctx, "https://api.github.com/user", current); err != nil {
		return "", fmt.Errorf("github: token reachability check failed: %w", err)
	}
	return "", fmt.Errorf("github: programmatic token rotation is not supported here; use the custom provider")
}

func (p *githubProvider) TestRotate(ctx context.Context, config json.RawMessage, current string) bool {
	return checkBearerReachable(ctx, "https://api.github.com/user", current) == nil
}

// --- aws --------------------------------------------------------------

const awsProviderTag = "aws"

type awsConfig struct {
	AccessKeyIDSecretName     string `json:"access_key_id_secret_name"`
	SecretAccessKeySecretName string `json:"secret_access_key_secret_name"`
}

// awsKeyPair is the serialized new-value payload aws.Rotate returns on
// success, ready to be split back into the two secrets it describes.
type awsKeyPair struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
}

// awsPropagationDelay is how long Rotate waits after creating a new
// access key before relying on it, since IAM key propagation is
// eventually consistent across regions.
const awsPropagationDelay = 10 * time.Second

// awsProvider rotates an IAM access key pair by shelling out to the
// platform CLI: verify current credentials, create a replacement pair,
// wait for propagation, verify the replacement, then delete the old
// key. current is expected to be the serialized awsKeyPair of the
// credentials being rotated.
type awsProvider struct{}

func (*awsProvider) Tag() string         { return awsProviderTag }
func (*awsProvider) DisplayName() string { return "AWS IAM access key" }

func (*awsProvider) ValidateConfig(config json.RawMessage) bool {
	var c awsConfig
	if err := json.Unmarshal(config, &c); err != nil {
		return false
	}
	return strings.TrimSpace(c.AccessKeyIDSecretName) != "" && strings.TrimSpace(c.SecretAccessKeySecretName) != ""
}

func (p *awsProvider) Rotate(ctx context.Context, config json.RawMessage, current string) (string, error) {
	var pair awsKeyPair
	if err := json.Unmarshal([]byte(current), &pair); err != nil {
		return "", fmt.Errorf("aws: current value is not a serialized key pair: %w", err)
	}

	userName, err := awsCallerIdentityUser(ctx, pair)
	if err != nil {
		return "", fmt.Errorf("aws: verifying current credentials: %w", err)
	}

	newPair, err := awsCreateAccessKey(ctx, pair, userName)
	if err != nil {
		return "", fmt.Errorf("aws: creating replacement key: %w", err)
	}

	select {
	case <-time.After(awsPropagationDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if _, err := awsCallerIdentityUser(ctx, *newPair); err != nil {
		_ = awsDeleteAccessKey(ctx, pair, newPair.AccessKeyID)
		return "", fmt.Errorf("aws: new key failed verification, deleted: %w", err)
	}

	if err := awsDeleteAccessKey(ctx, pair, pair.AccessKeyID); err != nil {
		return "", fmt.Errorf("aws: new key is live but deleting old key %s failed, remove it manually: %w", pair.AccessKeyID, err)
	}

	out, err := json.Marshal(newPair)
	if err != nil {
		return "", fmt.Errorf("aws: serializing new key pair: %w", err)
	}
	return string(out), nil
}

func (p *awsProvider) TestRotate(ctx context.Context, config json.RawMessage, current string) bool {
	var pair awsKeyPair
	if err := json.Unmarshal([]byte(current), &pair); err != nil {
		return false
	}
	_, err := awsCallerIdentityUser(ctx, pair)
	return err == nil
}

// awsCallerIdentityUser runs `aws sts get-caller-identity` under the
// given credentials and extracts the IAM user name from the ARN
// (arn:aws:iam::<account>:user/<name>).
func awsCallerIdentityUser(ctx context.Context, pair awsKeyPair) (string, error) {
	out, err := runAWSCLI(ctx, pair, "sts", "get-caller-identity", "--output", "json")
	if err != nil {
		return "", err
	}
	var identity struct {
		Arn string `json:"Arn"`
	}
	if err := json.Unmarshal([]byte(out), &identity); err != nil {
		return "", fmt.Errorf("parsing caller-identity output: %w", err)
	}
	idx := strings.LastIndex(identity.Arn, "/user/")
	if idx < 0 {
		idx = strings.LastIndex(identity.Arn, "/")
	}
	if idx < 0 || idx+1 >= len(identity.Arn) {
		return "", fmt.Errorf("could not extract IAM user name from ARN %q", identity.Arn)
	}
	return identity.Arn[idx+1:], nil
}

func awsCreateAccessKey(ctx context.Context, pair awsKeyPair, userName string) (*awsKeyPair, error) {
	out, err := runAWSCLI(ctx, pair, "iam", "create-access-key", "--user-name", userName, "--output", "json")
	if err != nil {
		return nil, err
	}
	// The CLI's field names (AccessKeyId) differ from our serialized
	// form (accessKeyId); decode with the CLI's own casing.
	var raw struct {
		AccessKey struct {
			AccessKeyID     string `json:"AccessKeyId"`
			SecretAccessKey string `json:"SecretAccessKey"`
		} `json:"AccessKey"`
	}
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("parsing create-access-key output: %w", err)
	}
	return &awsKeyPair{
		AccessKeyID:     raw.AccessKey.AccessKeyID,
		SecretAccessKey: raw.AccessKey.SecretAccessKey,
	}, nil
}

func awsDeleteAccessKey(ctx context.Context, pair awsKeyPair, accessKeyID string) error {
	_, err := runAWSCLI(ctx, pair, "iam", "delete-access-key", "--access-key-id", accessKeyID)
	return err
}

func runAWSCLI(ctx context.Context, pair awsKeyPair, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "aws", args...)
	cmd.Env = append(cmd.Env,
		"AWS_ACCESS_KEY_ID="+pair.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY="+pair.SecretAccessKey,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("aws %s: %w (stderr: %s)", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// --- shared helpers -----------------------------------------------------

// checkBearerReachable issues a GET against url with current as a
// bearer token and treats any 2xx response as reachable.
func checkBearerReachable(ctx context.Context, url, current string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+current)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

// runShell runs command through sh -c with extra merged into its
// environment, in its own process group so a future timeout can kill
// the whole tree, and returns stdout.
func runShell(ctx context.Context, command string, extra map[string]string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = append([]string{}, os.Environ()...)
	for k, v := range extra {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
