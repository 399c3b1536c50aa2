// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// sensitiveTokens mark a secret name as sensitive (masked in listings)
// when any appears as a substring of the name, case-insensitively.
var sensitiveTokens = []string{
	"SECRET", "KEY", "TOKEN", "PASSWORD", "PASS", "PWD", "CREDENTIAL",
	"PRIVATE", "AUTH", "API_KEY", "APIKEY", "ACCESS_KEY", "ACCESSKEY",
	"CLIENT_SECRET",
}

// configTokens mark a non-sensitive name as config-looking. When
// [ImportOptions.SecretsOnly] is set, names matching any of these are
// skipped rather than imported.
var configTokens = []string{
	"URL", "HOST", "PORT", "ENDPOINT", "DOMAIN", "REGION", "ZONE",
	"ENV", "MODE", "DEBUG", "LOG", "TIMEOUT", "USERNAME", "USER",
	"EMAIL", "ID", "PROJECT", "BUCKET", "DATABASE", "DB_NAME", "TABLE",
}

// ImportOptions controls [Vault.ImportFromEnv].
type ImportOptions struct {
	// SecretsOnly, when true, skips names that look like ordinary
	// configuration (see [configTokens]) rather than storing them as
	// visible credentials.
	SecretsOnly bool
}

// ImportResult reports the classification outcome of
// [Vault.ImportFromEnv] per name.
type ImportResult struct {
	Secrets     []string
	Credentials []string
	Skipped     []string
}

// ImportFromEnv parses .env-style content — comments (`#`) and blank
// lines are skipped, `KEY=VALUE` pairs are extracted, and a single
// layer of matching quotes around VALUE is stripped — and stores each
// parsed entry as a secret. Names containing a sensitive token are
// stored with [SensitivitySecret]; others are stored with
// [SensitivityCredential] unless opts.SecretsOnly is set and the name
// also looks like configuration, in which case the entry is skipped
// entirely.
func (v *Vault) ImportFromEnv(ctx context.Context, content string, opts ImportOptions) (ImportResult, error) {
	var result ImportResult

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, value, ok := splitEnvLine(line)
		if !ok {
			continue
		}

		if containsAnyToken(name, sensitiveTokens) {
			if err := v.AddSecret(ctx, name, value, AddSecretOptions{Sensitivity: SensitivitySecret}); err != nil {
				return result, fmt.Errorf("vault: importing %q: %w", name, err)
			}
			result.Secrets = append(result.Secrets, name)
			continue
		}

		if opts.SecretsOnly && containsAnyToken(name, configTokens) {
			result.Skipped = append(result.Skipped, name)
			continue
		}

		if err := v.AddSecret(ctx, name, value, AddSecretOptions{Sensitivity: SensitivityCredential}); err != nil {
			return result, fmt.Errorf("vault: importing %q: %w", name, err)
		}
		result.Credentials = append(result.Credentials, name)
	}

	return result, nil
}

// splitEnvLine splits a KEY=VALUE line, stripping one layer of
// matching surrounding single or double quotes from VALUE.
func splitEnvLine(line string) (name, value string, ok bool) {
	idx := strings.IndexByte(line, '=')
	if idx <= 0 {
		return "", "", false
	}

	name = strings.TrimSpace(line[:idx])
	if !nameRe.MatchString(name) {
		return "", "", false
	}

	value = strings.TrimSpace(line[idx+1:])
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			value = value[1 : len(value)-1]
		}
	}

	return name, value, true
}

// containsAnyToken reports whether name contains any of tokens as a
// case-insensitive substring.
func containsAnyToken(name string, tokens []string) bool {
	upper := strings.ToUpper(name)
	for _, token := range tokens {
		if strings.Contains(upper, token) {
			return true
		}
	}
	return false
}
