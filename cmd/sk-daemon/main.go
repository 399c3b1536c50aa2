// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Sk-daemon is the long-lived process that holds decrypted secrets in
// memory and mediates every command an AI assistant wants run with
// those secrets injected into its environment. It also doubles as the
// vault's command-line front door for the handful of operations that
// don't belong behind the daemon's socket (initializing a vault,
// adding a secret, configuring rotation) — the interactive UI, rich
// flag parsing, and help text around these are an external concern;
// this binary exposes just enough of a dispatcher to drive them from
// scripts and from the daemon's own startup path.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/secretkeeper/secretkeeper/lib/config"
	"github.com/secretkeeper/secretkeeper/lib/cryptoseal"
	"github.com/secretkeeper/secretkeeper/lib/daemon"
	secret "github.com/secretkeeper/secretkeeper/lib/secretmem"
	"github.com/secretkeeper/secretkeeper/lib/sockpath"
	"github.com/secretkeeper/secretkeeper/lib/vault"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	subcommand := os.Args[1]
	switch subcommand {
	case "run":
		return runDaemon(os.Args[2:])
	case "init":
		return runInit(os.Args[2:])
	case "add":
		return runAdd(os.Args[2:])
	case "list":
		return runList(os.Args[2:])
	case "keygen":
		return runKeygen()
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", subcommand)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: sk-daemon <subcommand> [flags]

Subcommands:
  run      Start the daemon, serving its Unix socket until signaled
  init     Initialize a new vault with a generated or supplied master key
  add      Add a secret to the vault
  list     List secret names currently in the vault
  keygen   Generate a master key token and print it to stdout

Run 'sk-daemon <subcommand> -h' for subcommand flags.
`)
}

// loadMasterKey resolves the vault's master key: SECRET_KEEPER_PASSWORD
// takes precedence; otherwise the generated-key workflow's keyfile
// next to the vault is read.
func loadMasterKey(vaultPath string) (*secret.Buffer, error) {
	if password := os.Getenv("SECRET_KEEPER_PASSWORD"); password != "" {
		return secret.NewFromBytes([]byte(password))
	}
	return secret.ReadFromPath(vault.KeyfilePath(vaultPath))
}

func resolveVaultPath(cfg *config.Config, projectPath string, forceLocal bool) (string, error) {
	if cfg.VaultPath != "" {
		return cfg.VaultPath, nil
	}
	return vault.ResolvePath(projectPath, forceLocal)
}

// runDaemon starts the daemon and blocks until SIGINT/SIGTERM or an
// ActionShutdown request.
func runDaemon(args []string) error {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		configPath  string
		projectPath string
		forceLocal  bool
	)
	flags.StringVar(&configPath, "config", "", "path to a YAML config file (overrides SECRET_KEEPER_CONFIG)")
	flags.StringVar(&projectPath, "project", "", "project root to root a project-scoped vault at")
	flags.BoolVar(&forceLocal, "local", false, "force a project-scoped vault rooted at the current directory")
	flags.Parse(args)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	vaultPath, err := resolveVaultPath(cfg, projectPath, forceLocal)
	if err != nil {
		return fmt.Errorf("resolving vault path: %w", err)
	}

	v, err := vault.Open(vault.Config{Path: vaultPath, Logger: logger})
	if err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}
	defer v.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	key, err := loadMasterKey(vaultPath)
	if err != nil {
		return fmt.Errorf("loading master key: %w", err)
	}
	defer key.Close()
	if err := v.LoadKey(ctx, key); err != nil {
		return fmt.Errorf("unlocking vault: %w", err)
	}

	isProjectVault := projectPath != "" || forceLocal
	socketPath := sockpath.GlobalSocket(cfg.SocketDir)
	if isProjectVault {
		socketPath = sockpath.ProjectSocket(cfg.SocketDir, filepath.Dir(filepath.Dir(vaultPath)))
	}

	d, err := daemon.New(daemon.Config{
		Vault:           v,
		SocketPath:      socketPath,
		RotationLogPath: sockpath.RotationLog(cfg.SocketDir),
		RotationTick:    cfg.RotationTick,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("constructing daemon: %w", err)
	}

	logger.Info("starting", "socket", socketPath, "vault", vaultPath)
	return d.Run(ctx)
}

func runInit(args []string) error {
	flags := flag.NewFlagSet("init", flag.ExitOnError)
	var (
		projectPath string
		forceLocal  bool
		keyfile     bool
	)
	flags.StringVar(&projectPath, "project", "", "project root to root a project-scoped vault at")
	flags.BoolVar(&forceLocal, "local", false, "force a project-scoped vault rooted at the current directory")
	flags.BoolVar(&keyfile, "keyfile", false, "generate a master key and write it to a keyfile alongside the vault")
	flags.Parse(args)

	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	vaultPath, err := resolveVaultPath(cfg, projectPath, forceLocal)
	if err != nil {
		return fmt.Errorf("resolving vault path: %w", err)
	}
	if err := vault.EnsureDir(vaultPath, projectPath != "" || forceLocal); err != nil {
		return err
	}

	var key *secret.Buffer
	if keyfile {
		token, err := cryptoseal.GenerateToken()
		if err != nil {
			return fmt.Errorf("generating master key: %w", err)
		}
		if err := vault.WriteKeyfile(vault.KeyfilePath(vaultPath), token); err != nil {
			return fmt.Errorf("writing keyfile: %w", err)
		}
		key, err = secret.NewFromBytes([]byte(token))
		if err != nil {
			return err
		}
	} else {
		key, err = loadMasterKey(vaultPath)
		if err != nil {
			return fmt.Errorf("loading master key: %w (pass --keyfile to generate one)", err)
		}
	}
	defer key.Close()

	v, err := vault.Open(vault.Config{Path: vaultPath})
	if err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}
	defer v.Close()

	if err := v.Initialize(context.Background(), key); err != nil {
		return fmt.Errorf("initializing vault: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Initialized vault at %s\n", vaultPath)
	return nil
}

func runAdd(args []string) error {
	flags := flag.NewFlagSet("add", flag.ExitOnError)
	var (
		name        string
		description string
		sensitivity string
		valueFile   string
	)
	flags.StringVar(&name, "name", "", "secret name (required)")
	flags.StringVar(&description, "description", "", "human-readable description")
	flags.StringVar(&sensitivity, "sensitivity", "sensitive", "\"sensitive\" or \"credential\"")
	flags.StringVar(&valueFile, "value-file", "-", "path to read the value from, or \"-\" for stdin")
	flags.Parse(args)

	if name == "" {
		flags.Usage()
		return fmt.Errorf("--name is required")
	}

	value, err := secret.ReadFromPath(valueFile)
	if err != nil {
		return fmt.Errorf("reading value: %w", err)
	}
	defer value.Close()

	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	vaultPath, err := resolveVaultPath(cfg, "", false)
	if err != nil {
		return err
	}
	v, key, err := openUnlockedVault(vaultPath)
	if err != nil {
		return err
	}
	defer key.Close()
	defer v.Close()

	ctx := context.Background()
	if err := v.LoadKey(ctx, key); err != nil {
		return fmt.Errorf("unlocking vault: %w", err)
	}

	err = v.AddSecret(ctx, name, value.String(), vault.AddSecretOptions{
		Description: description,
		Sensitivity: vault.Sensitivity(sensitivity),
	})
	if err != nil {
		return fmt.Errorf("adding secret: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Added secret %q\n", name)
	return nil
}

func runList(args []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	vaultPath, err := resolveVaultPath(cfg, "", false)
	if err != nil {
		return err
	}
	v, key, err := openUnlockedVault(vaultPath)
	if err != nil {
		return err
	}
	defer key.Close()
	defer v.Close()

	ctx := context.Background()
	if err := v.LoadKey(ctx, key); err != nil {
		return fmt.Errorf("unlocking vault: %w", err)
	}

	metas, err := v.ListSecrets(ctx)
	if err != nil {
		return fmt.Errorf("listing secrets: %w", err)
	}

	out := make([]map[string]any, 0, len(metas))
	for _, meta := range metas {
		out = append(out, map[string]any{
			"name":        meta.Name,
			"description": meta.Description,
			"tags":        meta.Tags,
			"sensitivity": meta.Sensitivity,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runKeygen() error {
	token, err := cryptoseal.GenerateToken()
	if err != nil {
		return fmt.Errorf("generating master key: %w", err)
	}
	fmt.Println(token)
	return nil
}

func openUnlockedVault(vaultPath string) (*vault.Vault, *secret.Buffer, error) {
	v, err := vault.Open(vault.Config{Path: vaultPath})
	if err != nil {
		return nil, nil, fmt.Errorf("opening vault: %w", err)
	}
	key, err := loadMasterKey(vaultPath)
	if err != nil {
		v.Close()
		return nil, nil, fmt.Errorf("loading master key: %w", err)
	}
	return v, key, nil
}

func loadConfig(explicitPath string) (*config.Config, error) {
	if explicitPath != "" {
		return config.LoadFile(explicitPath)
	}
	return config.Load()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
