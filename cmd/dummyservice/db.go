package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/morezero/components/internal/config"
	"github.com/morezero/components/internal/dummy"
	"github.com/morezero/components/pkg/db"
)

func newMigrateCmd() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	migrate.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withPool(cmd.Context(), func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
					migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
					if err != nil {
						return fmt.Errorf("load migrations: %w", err)
					}
					if err := db.RunMigrations(ctx, pool, migrations); err != nil {
						return fmt.Errorf("run migrations: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migrations.\n", len(migrations))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show which migrations are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withPool(cmd.Context(), func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
					migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
					if err != nil {
						return fmt.Errorf("load migrations: %w", err)
					}
					states, err := db.MigrationStatus(ctx, pool, migrations)
					if err != nil {
						return err
					}
					for _, s := range states {
						mark := "pending"
						if s.Applied {
							mark = "applied"
						}
						fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", mark, s.Name)
					}
					return nil
				})
			},
		},
	)
	return migrate
}

func newEnsureDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-db [name]",
		Short: "Create the database if missing (default ENSURE_DB_NAME) on the DATABASE_URL host and enable DB_EXTENSIONS",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadDBConfig()
			if err != nil {
				return err
			}
			dbName := cfg.EnsureDBName
			if len(args) > 0 && args[0] != "" {
				dbName = args[0]
			}
			targetURL, err := withDatabaseName(cfg.DatabaseURL, dbName)
			if err != nil {
				return err
			}
			result, err := db.EnsureDatabase(cmd.Context(), targetURL, cfg.DBExtensions...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ready: %s.\n", result)
			return nil
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every dummy; the schema is preserved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
				if err := dummy.NewPostgresPersistenceWithPool(pool).Clear(ctx); err != nil {
					return fmt.Errorf("clear dummies: %w", err)
				}
				return nil
			})
		},
	}
}

// withDatabaseName replaces the database in a Postgres URL, keeping host, user and query.
func withDatabaseName(databaseURL, name string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	u.Path = "/" + name
	return u.String(), nil
}

func loadDBConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withPool(ctx context.Context, fn func(context.Context, *config.Config, *pgxpool.Pool) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}
