// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/secretkeeper/secretkeeper/lib/clock"
	"github.com/secretkeeper/secretkeeper/lib/rotation"
	"github.com/secretkeeper/secretkeeper/lib/scrub"
	"github.com/secretkeeper/secretkeeper/lib/skipc"
	"github.com/secretkeeper/secretkeeper/lib/vault"
)

// epoch is the atomically-swapped snapshot of the daemon's decrypted
// secret map and the scrubber built from it. A rotation replaces the
// pointer in one store; every in-flight request reads one consistent
// epoch for its whole lifetime.
type epoch struct {
	secrets  map[string]string
	scrubber *scrub.Scrubber
}

// Config holds the parameters for [New].
type Config struct {
	// Vault is the opened, key-loaded vault the daemon serves secrets
	// from. Required.
	Vault *vault.Vault

	// SocketPath is the Unix socket the daemon listens on. Its parent
	// directory is created with mode 0700 if absent; the socket file
	// itself is chmod 0600 once bound. Required.
	SocketPath string

	// RotationLogPath is the append-only log the daemon writes one
	// line to per rotation attempt. Required for rotation logging to
	// take effect; a zero value silently skips log writes.
	RotationLogPath string

	// RotationTick is the scheduler's poll interval. Zero means
	// [rotation.DefaultTick].
	RotationTick time.Duration

	// Clock abstracts time for the rotation scheduler. Nil means
	// [clock.Real].
	Clock clock.Clock

	// Logger receives operational messages. Nil means a no-op logger.
	Logger *slog.Logger
}

// Daemon is the Unix-socket server that mediates all access to a
// vault's decrypted secrets: it answers ping/list/exec/shutdown
// requests, enforces the command policy filter, scrubs command output,
// and runs the rotation scheduler.
type Daemon struct {
	vault           *vault.Vault
	manager         *rotation.Manager
	scheduler       *rotation.Scheduler
	clock           clock.Clock
	logger          *slog.Logger
	socketPath      string
	rotationLogPath string

	current atomic.Pointer[epoch]

	mu       sync.Mutex
	listener net.Listener
	running  bool

	wg           sync.WaitGroup
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New constructs a Daemon from cfg. It does not bind the socket or
// start the scheduler — call [Daemon.Run] for that.
func New(cfg Config) (*Daemon, error) {
	if cfg.Vault == nil {
		return nil, fmt.Errorf("daemon: Vault is required")
	}
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("daemon: SocketPath is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	manager := rotation.NewManager(cfg.Vault, logger)
	d := &Daemon{
		vault:           cfg.Vault,
		manager:         manager,
		clock:           clk,
		logger:          logger,
		socketPath:      cfg.SocketPath,
		rotationLogPath: cfg.RotationLogPath,
		shutdownCh:      make(chan struct{}),
	}
	d.scheduler = rotation.NewScheduler(manager, clk, cfg.RotationTick, d.onRotationResults, logger)
	return d, nil
}

// Manager returns the rotation manager backing this daemon, so callers
// (the CLI's rotation subcommands) can configure rotations against the
// same vault without opening a second connection pool.
func (d *Daemon) Manager() *rotation.Manager { return d.manager }

// IsRunning reports whether the daemon currently holds its listener
// open. It reflects server state only — a client should not rely on
// this from another process; use a ping request instead.
func (d *Daemon) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Run binds the socket, removes any stale socket file at the same
// path, starts the rotation scheduler and the accept loop, and blocks
// until ctx is canceled or a shutdown request is received, then tears
// everything down. Run returns nil on a clean shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.reloadSecrets(ctx); err != nil {
		return fmt.Errorf("daemon: loading secrets: %w", err)
	}

	socketDir := filepath.Dir(d.socketPath)
	if err := os.MkdirAll(socketDir, 0o700); err != nil {
		return fmt.Errorf("daemon: creating socket directory %s: %w", socketDir, err)
	}
	if err := os.Remove(d.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("daemon: removing stale socket %s: %w", d.socketPath, err)
	}

	listener, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return fmt.Errorf("daemon: binding %s: %w", d.socketPath, err)
	}
	if err := os.Chmod(d.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("daemon: setting socket permissions: %w", err)
	}

	d.mu.Lock()
	d.listener = listener
	d.running = true
	d.mu.Unlock()

	d.logger.Info("daemon listening", "socket", d.socketPath, "secrets", len(d.current.Load().secrets))

	d.scheduler.Start(ctx)
	go d.acceptLoop(ctx)

	select {
	case <-ctx.Done():
	case <-d.shutdownCh:
	}

	d.teardown()
	return nil
}

// RequestShutdown triggers the same graceful teardown a "shutdown"
// request over the socket would, without requiring a client
// connection. Safe to call more than once or concurrently.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdownCh) })
}

func (d *Daemon) teardown() {
	d.scheduler.Stop()

	d.mu.Lock()
	if d.listener != nil {
		d.listener.Close()
	}
	d.running = false
	d.mu.Unlock()

	d.wg.Wait()

	os.Remove(d.socketPath)

	// Best-effort memory hygiene: drop the in-memory secret map and
	// scrubber. Go strings are immutable so their backing bytes cannot
	// be overwritten from here; this does not defend against a memory
	// dump of a live process, only against the map outliving shutdown.
	d.current.Store(&epoch{secrets: map[string]string{}, scrubber: scrub.New(nil)})

	if err := d.vault.Close(); err != nil {
		d.logger.Warn("closing vault", "error", err)
	}
	d.logger.Info("daemon stopped")
}

func (d *Daemon) acceptLoop(ctx context.Context) {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-d.shutdownCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			d.logger.Error("accept connection", "error", err)
			return
		}

		d.wg.Add(1)
		go d.handleConn(ctx, conn)
	}
}

// handleConn serves exactly one request on conn: read a complete JSON
// object (bounded by [skipc.MaxMessageSize]), dispatch it, write
// exactly one JSON response, close the connection.
func (d *Daemon) handleConn(ctx context.Context, conn net.Conn) {
	defer d.wg.Done()
	defer conn.Close()

	data, err := io.ReadAll(io.LimitReader(conn, skipc.MaxMessageSize+1))
	if err != nil {
		d.logger.Warn("reading request", "error", err)
		return
	}

	var resp skipc.Response
	shutdownRequested := false

	switch {
	case len(data) > skipc.MaxMessageSize:
		resp = skipc.Response{Error: "request exceeds maximum message size"}
	default:
		var req skipc.Request
		if err := json.Unmarshal(data, &req); err != nil {
			resp = skipc.Response{Error: fmt.Sprintf("invalid request: %v", err)}
		} else if req.Action == skipc.ActionShutdown {
			resp = skipc.Response{Status: "ok"}
			shutdownRequested = true
		} else {
			resp = d.dispatch(ctx, req)
		}
	}

	if err := writeResponse(conn, resp); err != nil {
		d.logger.Warn("writing response", "error", err)
	}

	if shutdownRequested {
		d.RequestShutdown()
	}
}

func (d *Daemon) dispatch(ctx context.Context, req skipc.Request) skipc.Response {
	switch req.Action {
	case skipc.ActionPing:
		return skipc.Response{Status: "ok", SecretsLoaded: len(d.current.Load().secrets)}
	case skipc.ActionList:
		ep := d.current.Load()
		names := make([]string, 0, len(ep.secrets))
		for name := range ep.secrets {
			names = append(names, name)
		}
		sort.Strings(names)
		return skipc.Response{Secrets: names}
	case skipc.ActionExec:
		return d.handleExec(ctx, req)
	default:
		return skipc.Response{Error: fmt.Sprintf("unknown action %q", req.Action)}
	}
}

func writeResponse(conn net.Conn, resp skipc.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}
	_, err = conn.Write(data)
	return err
}

// reloadSecrets rebuilds the (secretMap, scrubber) pair from the vault
// and stores it as the new current epoch in a single atomic store.
func (d *Daemon) reloadSecrets(ctx context.Context) error {
	secrets, err := d.vault.GetAllSecrets(ctx)
	if err != nil {
		return err
	}
	d.current.Store(&epoch{secrets: secrets, scrubber: scrub.New(secrets)})
	return nil
}

// onRotationResults is the scheduler's callback: it reloads the secret
// map and scrubber from the vault (picking up any rotated value) and
// appends one line per attempt to the rotation log.
func (d *Daemon) onRotationResults(results []rotation.Result) {
	if len(results) == 0 {
		return
	}
	if err := d.reloadSecrets(context.Background()); err != nil {
		d.logger.Error("reloading secrets after rotation", "error", err)
	}
	d.appendRotationLog(results)
}
