// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/secretkeeper/secretkeeper/lib/cryptoseal"
	secret "github.com/secretkeeper/secretkeeper/lib/secretmem"
	"github.com/secretkeeper/secretkeeper/lib/sqlitepool"
)

// nameRe is the required shape of a secret name: an ASCII identifier.
var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Sensitivity controls whether a secret's value is masked by listing
// UIs. It never affects how the value is stored — every secret is
// encrypted regardless.
type Sensitivity string

const (
	// SensitivitySecret marks a value that must be masked in any UI
	// listing. The default for new secrets and for legacy rows.
	SensitivitySecret Sensitivity = "sensitive"

	// SensitivityCredential marks a value that is visible in listings
	// but still stored encrypted.
	SensitivityCredential Sensitivity = "credential"
)

// SecretMeta describes a secret without its value.
type SecretMeta struct {
	Name        string
	Description string
	Tags        []string
	Sensitivity Sensitivity
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AddSecretOptions carries the optional fields for [Vault.AddSecret].
type AddSecretOptions struct {
	Description string
	Tags        []string
	Sensitivity Sensitivity // zero value defaults to SensitivitySecret
}

// Vault is an encrypted secret store backed by SQLite. A Vault must be
// opened with [Open], initialized once with [Initialize], and have a
// master key loaded with [LoadKey] before any secret operation.
//
// A Vault is safe for concurrent use by multiple goroutines: all state
// mutation goes through sqlitepool, which serializes access to the
// underlying connections, and the in-memory master key is read-only
// after LoadKey.
type Vault struct {
	pool   *sqlitepool.Pool
	path   string
	logger *slog.Logger
	key    *secret.Buffer
}

// Config holds the parameters for [Open].
type Config struct {
	// Path is the vault's SQLite database file path, typically
	// produced by [ResolvePath].
	Path string

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Open opens (creating if absent) the SQLite database at cfg.Path and
// ensures its schema is at the current version, adding any tables or
// columns missing from an older schema. It does not initialize vault
// metadata — call [Vault.Initialize] for that — and does not load a
// master key.
func Open(cfg Config) (*Vault, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("vault: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := EnsureDir(cfg.Path, false); err != nil {
		return nil, err
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   cfg.Path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return ensureSchema(conn)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vault: opening %s: %w", cfg.Path, err)
	}

	return &Vault{pool: pool, path: cfg.Path, logger: logger}, nil
}

// Close releases the vault's connection pool and zeroes any loaded
// master key.
func (v *Vault) Close() error {
	if v.key != nil {
		v.key.Close()
		v.key = nil
	}
	return v.pool.Close()
}

// Path returns the filesystem path this vault was opened at.
func (v *Vault) Path() string { return v.path }

// IsInitialized reports whether [Vault.Initialize] has been called on
// this path.
func (v *Vault) IsInitialized(ctx context.Context) (bool, error) {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return false, err
	}
	defer v.pool.Put(conn)

	found := false
	err = sqlitex.ExecuteTransient(conn,
		`SELECT value FROM vault_metadata WHERE key = 'created_at'`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			return nil
		}})
	if err != nil {
		return false, fmt.Errorf("vault: checking initialization: %w", err)
	}
	return found, nil
}

// Initialize creates the vault's metadata row and loads key as the
// active master key. A vault is created once per path; calling
// Initialize on an already-initialized vault returns
// [ErrVaultAlreadyInitialized].
func (v *Vault) Initialize(ctx context.Context, key *secret.Buffer) error {
	initialized, err := v.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if initialized {
		return ErrVaultAlreadyInitialized
	}

	conn, err := v.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer v.pool.Put(conn)

	now := nowString()
	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("vault: initialize: begin transaction: %w", err)
	}
	defer endTx(&err)

	err = sqlitex.Execute(conn,
		`INSERT INTO vault_metadata (key, value) VALUES ('created_at', ?), ('version', ?)`,
		&sqlitex.ExecOptions{Args: []any{now, SchemaVersion}})
	if err != nil {
		return fmt.Errorf("vault: writing metadata: %w", err)
	}

	if err = v.appendAudit(conn, "vault_initialized", "", ""); err != nil {
		return err
	}

	v.key = key
	return nil
}

// LoadKey sets key as the vault's active master key for this process.
// If the vault already holds at least one secret, LoadKey validates
// the key by attempting to decrypt one of them; a failure returns
// [ErrInvalidKey] and the key is not retained. An empty vault accepts
// any key — there is no password verifier to check against, by design
// (see spec.md §3's Vault metadata note on the retired verifier
// column).
func (v *Vault) LoadKey(ctx context.Context, key *secret.Buffer) error {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer v.pool.Put(conn)

	var sampleBlob string
	err = sqlitex.ExecuteTransient(conn, `SELECT ciphertext FROM secrets LIMIT 1`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			sampleBlob = stmt.GetText("ciphertext")
			return nil
		}})
	if err != nil {
		return fmt.Errorf("vault: load key: %w", err)
	}

	if sampleBlob != "" {
		plaintext, err := cryptoseal.Decrypt(sampleBlob, key)
		if err != nil {
			return ErrInvalidKey
		}
		plaintext.Close()
	}

	v.key = key
	v.appendAuditBestEffort(ctx, "vault_unlocked", "", "")
	return nil
}

// Lock discards the in-memory master key, zeroing it first.
func (v *Vault) Lock() {
	if v.key != nil {
		v.key.Close()
		v.key = nil
	}
}

// AddSecret encrypts value under the active master key and stores it,
// creating the row on first add or updating it in place on subsequent
// calls. name must match `[A-Za-z_][A-Za-z0-9_]*`.
func (v *Vault) AddSecret(ctx context.Context, name, value string, opts AddSecretOptions) error {
	if v.key == nil {
		return ErrVaultLocked
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSecretName, name)
	}

	sensitivity := opts.Sensitivity
	if sensitivity == "" {
		sensitivity = SensitivitySecret
	}
	tags := opts.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("vault: marshaling tags: %w", err)
	}

	ciphertext, err := cryptoseal.Encrypt([]byte(value), v.key)
	if err != nil {
		return fmt.Errorf("vault: encrypting secret %q: %w", name, err)
	}

	conn, err := v.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer v.pool.Put(conn)

	now := nowString()
	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("vault: add secret: begin transaction: %w", err)
	}
	defer endTx(&err)

	err = sqlitex.Execute(conn, `
		INSERT INTO secrets (name, ciphertext, description, tags, sensitivity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			ciphertext = excluded.ciphertext,
			description = excluded.description,
			tags = excluded.tags,
			sensitivity = excluded.sensitivity,
			updated_at = excluded.updated_at
	`, &sqlitex.ExecOptions{Args: []any{
		name, ciphertext, opts.Description, string(tagsJSON), string(sensitivity), now, now,
	}})
	if err != nil {
		return fmt.Errorf("vault: storing secret %q: %w", name, err)
	}

	if err = v.appendAudit(conn, "secret_added", name, ""); err != nil {
		return err
	}

	return nil
}

// GetSecret decrypts and returns the value of the named secret.
func (v *Vault) GetSecret(ctx context.Context, name string) (string, error) {
	if v.key == nil {
		return "", ErrVaultLocked
	}

	conn, err := v.pool.Take(ctx)
	if err != nil {
		return "", err
	}
	defer v.pool.Put(conn)

	ciphertext, found, err := v.fetchCiphertext(conn, name)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrSecretNotFound
	}

	plaintext, err := cryptoseal.Decrypt(ciphertext, v.key)
	if err != nil {
		return "", ErrInvalidKey
	}
	defer plaintext.Close()
	return plaintext.String(), nil
}

// GetAllSecrets decrypts and returns every secret as a name-to-value
// map.
func (v *Vault) GetAllSecrets(ctx context.Context) (map[string]string, error) {
	if v.key == nil {
		return nil, ErrVaultLocked
	}

	conn, err := v.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer v.pool.Put(conn)

	type row struct{ name, ciphertext string }
	var rows []row
	err = sqlitex.ExecuteTransient(conn, `SELECT name, ciphertext FROM secrets`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			rows = append(rows, row{stmt.GetText("name"), stmt.GetText("ciphertext")})
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("vault: listing secrets: %w", err)
	}

	result := make(map[string]string, len(rows))
	for _, r := range rows {
		plaintext, err := cryptoseal.Decrypt(r.ciphertext, v.key)
		if err != nil {
			return nil, ErrInvalidKey
		}
		result[r.name] = plaintext.String()
		plaintext.Close()
	}
	return result, nil
}

// ListSecrets returns every secret's metadata. Values are never
// included.
func (v *Vault) ListSecrets(ctx context.Context) ([]SecretMeta, error) {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer v.pool.Put(conn)

	var metas []SecretMeta
	var rowErr error
	err = sqlitex.ExecuteTransient(conn, `
		SELECT name, description, tags, sensitivity, created_at, updated_at FROM secrets ORDER BY name
	`, &sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
		var tags []string
		if err := json.Unmarshal([]byte(stmt.GetText("tags")), &tags); err != nil {
			rowErr = fmt.Errorf("vault: parsing tags for %q: %w", stmt.GetText("name"), err)
			return rowErr
		}
		createdAt, err := parseTime(stmt.GetText("created_at"))
		if err != nil {
			rowErr = err
			return rowErr
		}
		updatedAt, err := parseTime(stmt.GetText("updated_at"))
		if err != nil {
			rowErr = err
			return rowErr
		}
		metas = append(metas, SecretMeta{
			Name:        stmt.GetText("name"),
			Description: stmt.GetText("description"),
			Tags:        tags,
			Sensitivity: Sensitivity(stmt.GetText("sensitivity")),
			CreatedAt:   createdAt,
			UpdatedAt:   updatedAt,
		})
		return nil
	}})
	if err != nil {
		return nil, fmt.Errorf("vault: listing secrets: %w", err)
	}
	if rowErr != nil {
		return nil, rowErr
	}
	return metas, nil
}

// DeleteSecret removes the named secret. Its rotation configuration,
// if any, is removed along with it (ON DELETE CASCADE). Rotation
// history rows are left in place — they are append-only and never
// pruned by the core.
func (v *Vault) DeleteSecret(ctx context.Context, name string) error {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer v.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("vault: delete secret: begin transaction: %w", err)
	}
	defer endTx(&err)

	changes, err := execWithChanges(conn, `DELETE FROM secrets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("vault: deleting secret %q: %w", name, err)
	}
	if changes == 0 {
		return ErrSecretNotFound
	}

	if err = v.appendAudit(conn, "secret_deleted", name, ""); err != nil {
		return err
	}
	return nil
}

// CountSecrets returns the number of secrets currently stored.
func (v *Vault) CountSecrets(ctx context.Context) (int, error) {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer v.pool.Put(conn)

	count := 0
	err = sqlitex.ExecuteTransient(conn, `SELECT COUNT(*) AS n FROM secrets`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			count = int(stmt.GetInt64("n"))
			return nil
		}})
	if err != nil {
		return 0, fmt.Errorf("vault: counting secrets: %w", err)
	}
	return count, nil
}

// ChangeMasterKey re-encrypts every secret under newKey within a
// single transaction. If decrypting any row under oldKey or
// re-encrypting it under newKey fails, the entire transaction is
// rolled back and the old key remains authoritative over every row.
// On success, newKey becomes the vault's active key.
func (v *Vault) ChangeMasterKey(ctx context.Context, oldKey, newKey *secret.Buffer) (err error) {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer v.pool.Put(conn)

	type row struct{ name, ciphertext string }
	var rows []row
	err = sqlitex.ExecuteTransient(conn, `SELECT name, ciphertext FROM secrets`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			rows = append(rows, row{stmt.GetText("name"), stmt.GetText("ciphertext")})
			return nil
		}})
	if err != nil {
		return fmt.Errorf("vault: change master key: listing secrets: %w", err)
	}

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("vault: change master key: begin transaction: %w", err)
	}
	defer endTx(&err)

	now := nowString()
	for _, r := range rows {
		plaintext, decErr := cryptoseal.Decrypt(r.ciphertext, oldKey)
		if decErr != nil {
			return fmt.Errorf("vault: change master key: decrypting %q: %w", r.name, ErrInvalidKey)
		}
		newBlob, encErr := cryptoseal.Encrypt(plaintext.Bytes(), newKey)
		plaintext.Close()
		if encErr != nil {
			return fmt.Errorf("vault: change master key: re-encrypting %q: %w", r.name, encErr)
		}
		execErr := sqlitex.Execute(conn, `UPDATE secrets SET ciphertext = ?, updated_at = ? WHERE name = ?`,
			&sqlitex.ExecOptions{Args: []any{newBlob, now, r.name}})
		if execErr != nil {
			return fmt.Errorf("vault: change master key: updating %q: %w", r.name, execErr)
		}
	}

	if err = v.appendAudit(conn, "master_key_changed", "", ""); err != nil {
		return err
	}

	v.key = newKey
	return nil
}

// fetchCiphertext returns the raw ciphertext blob for name.
func (v *Vault) fetchCiphertext(conn *sqlite.Conn, name string) (string, bool, error) {
	var ciphertext string
	found := false
	err := sqlitex.Execute(conn, `SELECT ciphertext FROM secrets WHERE name = ?`,
		&sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ciphertext = stmt.GetText("ciphertext")
				found = true
				return nil
			},
		})
	if err != nil {
		return "", false, fmt.Errorf("vault: fetching %q: %w", name, err)
	}
	return ciphertext, found, nil
}

// appendAudit appends one row to the audit log using conn, which must
// already be inside the caller's transaction (or not, for read-only
// best-effort calls — the audit log has no foreign keys to violate).
func (v *Vault) appendAudit(conn *sqlite.Conn, action, secretName, detail string) error {
	var secretNameArg any
	if secretName != "" {
		secretNameArg = secretName
	}
	var detailArg any
	if detail != "" {
		detailArg = detail
	}
	err := sqlitex.Execute(conn,
		`INSERT INTO audit_log (timestamp, action, secret_name, detail) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{nowString(), action, secretNameArg, detailArg}})
	if err != nil {
		return fmt.Errorf("vault: appending audit entry: %w", err)
	}
	return nil
}

// appendAuditBestEffort appends an audit row outside of any write
// transaction the caller otherwise needs, logging (not returning) a
// failure. Used for operations like LoadKey, where audit failure
// should not block unlocking an otherwise-valid vault.
func (v *Vault) appendAuditBestEffort(ctx context.Context, action, secretName, detail string) {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		v.logger.Warn("audit log unavailable", "action", action, "error", err)
		return
	}
	defer v.pool.Put(conn)
	if err := v.appendAudit(conn, action, secretName, detail); err != nil {
		v.logger.Warn("audit log append failed", "action", action, "error", err)
	}
}

// AuditEntry is one append-only row from the audit log.
type AuditEntry struct {
	ID         int64
	Timestamp  time.Time
	Action     string
	SecretName string
	Detail     string
}

// ListAudit returns every audit entry, oldest first.
func (v *Vault) ListAudit(ctx context.Context) ([]AuditEntry, error) {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer v.pool.Put(conn)

	var entries []AuditEntry
	var rowErr error
	err = sqlitex.ExecuteTransient(conn,
		`SELECT id, timestamp, action, secret_name, detail FROM audit_log ORDER BY id`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			ts, err := parseTime(stmt.GetText("timestamp"))
			if err != nil {
				rowErr = err
				return err
			}
			entries = append(entries, AuditEntry{
				ID:         stmt.GetInt64("id"),
				Timestamp:  ts,
				Action:     stmt.GetText("action"),
				SecretName: stmt.GetText("secret_name"),
				Detail:     stmt.GetText("detail"),
			})
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("vault: listing audit log: %w", err)
	}
	return entries, rowErr
}

// execWithChanges executes query and returns the number of rows it
// changed.
func execWithChanges(conn *sqlite.Conn, query string, args ...any) (int, error) {
	if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args}); err != nil {
		return 0, err
	}
	return conn.Changes(), nil
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("vault: parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
