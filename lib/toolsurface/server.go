// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolsurface

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/secretkeeper/secretkeeper/lib/skclient"
)

// Deps holds the dependencies for constructing a Server.
type Deps struct {
	// Client forwards requests to the daemon. Required.
	Client *skclient.Client

	// Logger receives a record for every tool call that errors before
	// reaching the daemon (e.g. the daemon is not running). Nil
	// disables logging.
	Logger *slog.Logger
}

// Server wraps an MCP server exposing the daemon's three external
// operations: list_secrets, execute, and check_daemon.
type Server struct {
	client    *skclient.Client
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// New constructs a Server with all three tools registered.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		client: deps.Client,
		logger: logger,
	}

	mcpSrv := server.NewMCPServer(
		"secretkeeper",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("secretkeeper mediates access to locally stored credentials. "+
			"Use execute to run a command with secrets injected into its environment — the daemon "+
			"redacts any secret value from the returned output before it reaches you. Use list_secrets "+
			"to see which names are available (never their values). Use check_daemon to confirm the "+
			"daemon is reachable before relying on it."),
	)
	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled
// or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCP server, for tests or custom
// transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: listSecretsTool(), Handler: s.handleListSecrets},
		{Tool: executeTool(), Handler: s.handleExecute},
		{Tool: checkDaemonTool(), Handler: s.handleCheckDaemon},
	}
}

func listSecretsTool() mcp.Tool {
	return mcp.NewTool("list_secrets",
		mcp.WithDescription("List the names of secrets currently loaded by the daemon. Never returns values."),
	)
}

func executeTool() mcp.Tool {
	return mcp.NewTool("execute",
		mcp.WithDescription("Run a shell command with the loaded secrets injected as environment variables. "+
			"The command is checked against a policy filter before it runs, and every byte of its output "+
			"is redacted for known secret values before being returned."),
		mcp.WithString("command", mcp.Required(), mcp.Description("The shell command to run")),
		mcp.WithString("cwd", mcp.Description("Working directory for the command; defaults to the daemon's own")),
		mcp.WithNumber("timeout_seconds", mcp.Description("Maximum seconds to allow the command to run before it is killed")),
	)
}

func checkDaemonTool() mcp.Tool {
	return mcp.NewTool("check_daemon",
		mcp.WithDescription("Check whether the secret daemon is running and report how many secrets it has loaded."),
	)
}
