package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearTables truncates tables. Schema is preserved; RESTART IDENTITY resets sequences.
func ClearTables(ctx context.Context, pool *pgxpool.Pool, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	quoted := make([]string, 0, len(tables))
	for _, t := range tables {
		if !safeIdent.MatchString(t) {
			return fmt.Errorf("%s - table name %q contains invalid characters", clearLogPrefix, t)
		}
		quoted = append(quoted, quoteIdent(t))
	}
	slog.Info(fmt.Sprintf("%s - Clearing tables %s", clearLogPrefix, strings.Join(tables, ", ")))

	if _, err := pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(quoted, ", ")+" RESTART IDENTITY CASCADE"); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}
	return nil
}
