// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/secretkeeper/secretkeeper/lib/policy"
	"github.com/secretkeeper/secretkeeper/lib/skipc"
)

// handleExec runs req.Command through the policy filter and, if
// allowed, spawns it as "sh -c <command>" with the current epoch's
// decrypted secrets merged into its environment. It holds no lock
// across the spawn — concurrent exec requests run their children in
// parallel.
func (d *Daemon) handleExec(ctx context.Context, req skipc.Request) skipc.Response {
	decision := policy.Validate(req.Command)
	if decision.Blocked() {
		return skipc.Response{
			ExitCode:    1,
			Blocked:     true,
			BlockReason: decision.Reason(),
			Stderr:      "BLOCKED: " + decision.Reason(),
		}
	}

	timeoutSeconds := req.TimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = skipc.DefaultExecTimeoutSeconds
	}
	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	ep := d.current.Load()

	cmd := exec.CommandContext(execCtx, "sh", "-c", req.Command)
	cmd.Dir = req.Cwd
	cmd.Env = mergeSecretEnv(os.Environ(), ep.secrets)

	// Own process group so a timeout kill reaches every descendant the
	// shell spawned, not just the shell itself.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			if code := exitErr.ExitCode(); code >= 0 {
				exitCode = code
			} else {
				// Negative ExitCode means the child was terminated by
				// a signal (including our own timeout kill).
				exitCode = 1
			}
		} else {
			exitCode = 1
		}
	}

	return skipc.Response{
		ExitCode: exitCode,
		Stdout:   ep.scrubber.Scrub(stdout.String()),
		Stderr:   ep.scrubber.Scrub(stderr.String()),
	}
}

// mergeSecretEnv appends secrets to base as NAME=VALUE pairs. Go's
// exec package keeps only the last occurrence of a duplicate key, so
// appending after base means secrets override any same-named variable
// already present in the process environment.
func mergeSecretEnv(base []string, secrets map[string]string) []string {
	env := make([]string, len(base), len(base)+len(secrets))
	copy(env, base)
	for name, value := range secrets {
		env = append(env, name+"="+value)
	}
	return env
}
