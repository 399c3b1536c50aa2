// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Decision is the closed-set outcome of [Validate]: a command is
// either allowed, or blocked with a human-readable reason. There is no
// third state.
type Decision struct {
	blocked bool
	reason  string
}

// Allowed reports whether the command may be executed.
func (d Decision) Allowed() bool { return !d.blocked }

// Blocked reports whether the command was rejected.
func (d Decision) Blocked() bool { return d.blocked }

// Reason returns why the command was blocked. Empty when Allowed.
func (d Decision) Reason() string { return d.reason }

func allow() Decision { return Decision{} }

func block(format string, args ...any) Decision {
	return Decision{blocked: true, reason: fmt.Sprintf(format, args...)}
}

// blockedCommands is the closed set of program names whose invocation
// is rejected outright, regardless of arguments.
var blockedCommands = map[string]bool{
	"env":      true,
	"printenv": true,
	"export":   true,
	"set":      true,
	"xxd":      true,
	"hexdump":  true,
	"od":       true,
	"base64":   true,
	"history":  true,
}

// varToken matches a single $VAR or ${VAR} reference, optionally
// wrapped in one layer of matching quotes.
const varToken = `"?'?\$\{?[A-Za-z_][A-Za-z0-9_]*\}?'?"?`

// bareEcho and barePrintf match a command segment whose entire purpose
// is dumping one environment variable's raw value — "echo $SECRET" or
// "printf '%s' "$SECRET"" — as opposed to a variable merely
// interpolated into ordinary text ("echo hello $NAME"), which is the
// documented happy path for exec.
var (
	bareEcho    = regexp.MustCompile(`(?i)^echo\s+(-[a-zA-Z]+\s+)*` + varToken + `$`)
	barePrintf  = regexp.MustCompile(`(?i)^printf\s+(['"]%s['"]\s+)?` + varToken + `$`)
	procEnviron = regexp.MustCompile(`\bcat\b[^|&;]*\/proc\/\d+\/environ\b`)
	varPiped    = regexp.MustCompile(`\$\{?[A-Za-z_][A-Za-z0-9_]*\}?\s*(\||>>?)`)
	devTCP      = regexp.MustCompile(`\/dev\/tcp\/`)
	literalLeak = regexp.MustCompile(`(?i)\bexport\b|\bprintenv\b|\bcompgen\s+-e\b|\bdeclare\s+-x\b`)
)

// segmentSeparators splits a compound command into the individual
// commands a shell would run it as, so that a leak attempt chained
// after a benign command (`echo hi; echo $SECRET`) is still caught.
var segmentSeparators = regexp.MustCompile(`\|\||&&|[;|\n]`)

// Validate decides whether command may be spawned by the daemon's exec
// action. It never raises — every outcome is a [Decision].
func Validate(command string) Decision {
	if firstToken := firstCommandToken(command); firstToken != "" && blockedCommands[firstToken] {
		return block("Command '%s' is blocked for security", firstToken)
	}

	if procEnviron.MatchString(command) {
		return block("Command matches a blocked pattern for security")
	}
	if varPiped.MatchString(command) {
		return block("Command matches a blocked pattern for security")
	}
	if devTCP.MatchString(command) {
		return block("Command matches a blocked pattern for security")
	}
	if literalLeak.MatchString(command) {
		return block("Command matches a blocked pattern for security")
	}

	for _, segment := range segmentSeparators.Split(command, -1) {
		trimmed := strings.TrimSpace(segment)
		if bareEcho.MatchString(trimmed) || barePrintf.MatchString(trimmed) {
			return block("Command matches a blocked pattern for security")
		}
	}

	return allow()
}

// firstCommandToken returns the first whitespace-delimited token of
// command, with any leading directory components stripped (so
// "/usr/bin/env" is recognized the same as "env").
func firstCommandToken(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return filepath.Base(fields[0])
}
