// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the secret-keeper
// daemon.
//
// Configuration is optional: [Default] returns a complete, usable
// configuration on its own. A YAML file, when present, overrides
// individual fields on top of the default. The file path comes from
// the SECRET_KEEPER_CONFIG environment variable or an explicit path
// passed to [LoadFile]; there is no automatic discovery beyond that.
package config
