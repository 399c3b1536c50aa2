// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolsurface

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/secretkeeper/secretkeeper/lib/skclient"
)

// handleListSecrets forwards to the daemon's list action.
func (s *Server) handleListSecrets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.client.List(ctx)
	if err != nil {
		return s.daemonUnreachable(err), nil
	}
	return marshalResult(map[string]any{"secrets": resp.Secrets})
}

// handleExecute forwards to the daemon's exec action and re-wraps the
// result rather than trusting the daemon's response verbatim — the
// daemon has already scrubbed the bytes, but this is the last point
// before they reach the model, so the shape of what's returned is
// built explicitly here instead of passing the raw Response through.
func (s *Server) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError("command is required"), nil
	}
	cwd := req.GetString("cwd", "")
	timeoutSeconds := req.GetInt("timeout_seconds", 0)

	resp, err := s.client.Exec(ctx, command, cwd, timeoutSeconds)
	if err != nil {
		return s.daemonUnreachable(err), nil
	}

	if resp.Blocked {
		return marshalResult(map[string]any{
			"blocked":      true,
			"block_reason": resp.BlockReason,
		})
	}

	return marshalResult(map[string]any{
		"exit_code": resp.ExitCode,
		"stdout":    resp.Stdout,
		"stderr":    resp.Stderr,
	})
}

// handleCheckDaemon forwards to the daemon's ping action.
func (s *Server) handleCheckDaemon(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.client.Ping(ctx)
	if err != nil {
		if err == skclient.ErrDaemonNotRunning {
			return marshalResult(map[string]any{"running": false})
		}
		return s.daemonUnreachable(err), nil
	}
	return marshalResult(map[string]any{
		"running":        true,
		"secrets_loaded": resp.SecretsLoaded,
	})
}

// daemonUnreachable logs and reports a failure to reach the daemon at
// all, as distinct from a command that ran but was blocked or
// exited non-zero.
func (s *Server) daemonUnreachable(err error) *mcp.CallToolResult {
	s.logger.Warn("tool call could not reach daemon", "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("daemon unreachable: %v", err))
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
