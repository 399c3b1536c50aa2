// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package skclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/secretkeeper/secretkeeper/lib/skipc"
)

// DefaultDialTimeout bounds how long Send waits to establish the
// connection before giving up. It does not bound how long the daemon
// takes to answer — a slow exec is the daemon's concern, not the
// client's.
const DefaultDialTimeout = 2 * time.Second

// Client dials a single daemon socket, one request at a time. It holds
// no persistent connection and performs no retries.
type Client struct {
	socketPath  string
	dialTimeout time.Duration
}

// New returns a Client that dials socketPath.
func New(socketPath string) *Client {
	return &Client{socketPath: socketPath, dialTimeout: DefaultDialTimeout}
}

// SocketPath returns the path this client dials.
func (c *Client) SocketPath() string { return c.socketPath }

// Send performs one connect-send-receive round trip: dial, write req
// as JSON, half-close the write side, and wait for either a complete
// JSON response or the server closing the connection. Partial data on
// close without a complete object is returned as an error.
func (c *Client) Send(ctx context.Context, req skipc.Request) (*skipc.Response, error) {
	if _, err := os.Stat(c.socketPath); err != nil {
		return nil, ErrDaemonNotRunning
	}

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, ErrDaemonNotRunning
		}
		return nil, fmt.Errorf("skclient: connecting to %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("skclient: encoding request: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("skclient: sending request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		if err := unixConn.CloseWrite(); err != nil {
			return nil, fmt.Errorf("skclient: half-closing connection: %w", err)
		}
	}

	respData, err := io.ReadAll(io.LimitReader(conn, skipc.MaxMessageSize+1))
	if err != nil {
		return nil, fmt.Errorf("skclient: reading response: %w", err)
	}

	var resp skipc.Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("skclient: incomplete or malformed response: %w", err)
	}
	return &resp, nil
}

// Ping checks that the daemon is alive and reports how many secrets
// are currently loaded.
func (c *Client) Ping(ctx context.Context) (*skipc.Response, error) {
	return c.Send(ctx, skipc.Request{Action: skipc.ActionPing})
}

// List returns the names of every secret currently loaded.
func (c *Client) List(ctx context.Context) (*skipc.Response, error) {
	return c.Send(ctx, skipc.Request{Action: skipc.ActionList})
}

// Exec runs command through the daemon's policy filter and output
// scrubber. cwd and timeoutSeconds are optional; zero values let the
// daemon apply its own defaults.
func (c *Client) Exec(ctx context.Context, command, cwd string, timeoutSeconds int) (*skipc.Response, error) {
	return c.Send(ctx, skipc.Request{
		Action:         skipc.ActionExec,
		Command:        command,
		Cwd:            cwd,
		TimeoutSeconds: timeoutSeconds,
	})
}

// Shutdown asks the daemon to acknowledge and then tear itself down.
func (c *Client) Shutdown(ctx context.Context) (*skipc.Response, error) {
	return c.Send(ctx, skipc.Request{Action: skipc.ActionShutdown})
}
