package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

const ensureLogPrefix = "db:ensure"

// safeIdent matches allowed database, table and extension names.
var safeIdent = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// EnsureResult reports what EnsureDatabase found and changed.
type EnsureResult struct {
	Database   string
	Created    bool
	Extensions []string
}

// String summarises the result for command output.
func (r *EnsureResult) String() string {
	state := "exists"
	if r.Created {
		state = "created"
	}
	if len(r.Extensions) == 0 {
		return fmt.Sprintf("database %s %s", r.Database, state)
	}
	return fmt.Sprintf("database %s %s, extensions %s", r.Database, state, strings.Join(r.Extensions, ", "))
}

// EnsureDatabase creates the database named in databaseURL through the server's
// "postgres" maintenance database when it is missing, then enables extensions
// in it. Names are checked before any connection is made.
func EnsureDatabase(ctx context.Context, databaseURL string, extensions ...string) (*EnsureResult, error) {
	name, maintenanceURL, err := targetDatabase(databaseURL)
	if err != nil {
		return nil, err
	}
	for _, ext := range extensions {
		if !safeIdent.MatchString(ext) {
			return nil, fmt.Errorf("%s - extension name %q contains invalid characters", ensureLogPrefix, ext)
		}
	}

	result := &EnsureResult{Database: name}
	result.Created, err = createIfMissing(ctx, maintenanceURL, name)
	if err != nil {
		return nil, err
	}
	if len(extensions) > 0 {
		if err := enableExtensions(ctx, databaseURL, extensions); err != nil {
			return nil, err
		}
		result.Extensions = append(result.Extensions, extensions...)
	}

	slog.Info(fmt.Sprintf("%s - %s", ensureLogPrefix, result))
	return result, nil
}

// targetDatabase returns the database name of databaseURL and the URL of the
// maintenance database on the same server.
func targetDatabase(databaseURL string) (string, string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", fmt.Errorf("%s - invalid database URL: %w", ensureLogPrefix, err)
	}
	name := strings.TrimSpace(strings.TrimPrefix(u.Path, "/"))
	if name == "" {
		return "", "", fmt.Errorf("%s - database name empty in URL", ensureLogPrefix)
	}
	if !safeIdent.MatchString(name) {
		return "", "", fmt.Errorf("%s - database name %q contains invalid characters", ensureLogPrefix, name)
	}
	maintenance := *u
	maintenance.Path = "/postgres"
	return name, maintenance.String(), nil
}

func createIfMissing(ctx context.Context, maintenanceURL, name string) (bool, error) {
	conn, err := connectSimple(ctx, maintenanceURL)
	if err != nil {
		return false, err
	}
	defer conn.Close(ctx)

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s - failed to check database %q: %w", ensureLogPrefix, name, err)
	}
	if exists {
		return false, nil
	}
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+quoteIdent(name)); err != nil {
		return false, fmt.Errorf("%s - CREATE DATABASE %q failed: %w", ensureLogPrefix, name, err)
	}
	return true, nil
}

func enableExtensions(ctx context.Context, databaseURL string, extensions []string) error {
	conn, err := connectSimple(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	for _, ext := range extensions {
		if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS "+quoteIdent(ext)); err != nil {
			return fmt.Errorf("%s - CREATE EXTENSION %s failed: %w", ensureLogPrefix, ext, err)
		}
	}
	return nil
}

// connectSimple opens a single connection using the simple protocol, which
// CREATE DATABASE needs outside a transaction.
func connectSimple(ctx context.Context, connString string) (*pgx.Conn, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse connection string: %w", ensureLogPrefix, err)
	}
	cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to %s/%s: %w", ensureLogPrefix, cfg.Host, cfg.Database, err)
	}
	return conn, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
