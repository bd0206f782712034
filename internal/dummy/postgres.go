package dummy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/db"
)

const postgresLogPrefix = "dummy:postgres"

// TableName is the table holding dummies.
const TableName = "dummies"

const uniqueViolation = "23505"

// PostgresPersistence stores dummies in the dummies table.
//
// Configuration keys: connection.uri (a postgres URL) and migrations_path; when
// migrations_path is set, pending migrations run on Open.
type PostgresPersistence struct {
	databaseURL    string
	migrationsPath string

	pool     *pgxpool.Pool
	ownsPool bool
}

// NewPostgresPersistence creates a persistence that connects on Open.
func NewPostgresPersistence() *PostgresPersistence {
	return &PostgresPersistence{}
}

// NewPostgresPersistenceWithPool uses an existing pool. Close leaves it open.
func NewPostgresPersistenceWithPool(pool *pgxpool.Pool) *PostgresPersistence {
	return &PostgresPersistence{pool: pool}
}

// Configure reads connection.uri and migrations_path.
func (p *PostgresPersistence) Configure(params config.Params) error {
	p.databaseURL = params.GetStringWithDefault("connection.uri", p.databaseURL)
	p.migrationsPath = params.GetStringWithDefault("migrations_path", p.migrationsPath)
	return nil
}

// IsOpen reports whether the pool is connected.
func (p *PostgresPersistence) IsOpen() bool {
	return p.pool != nil
}

// Open connects the pool and applies migrations when migrations_path is set.
func (p *PostgresPersistence) Open(ctx context.Context, traceID string) error {
	if p.pool != nil {
		return nil
	}
	if p.databaseURL == "" {
		return apperr.NewConfigError(traceID, "NO_DATABASE_URL", "connection.uri is not set for postgres persistence")
	}
	pool, err := db.NewPool(ctx, p.databaseURL)
	if err != nil {
		return apperr.NewConnectionError(traceID, "CANNOT_CONNECT", "Connecting to postgres failed").WithCause(err)
	}
	if p.migrationsPath != "" {
		migrations, err := db.LoadMigrationFiles(p.migrationsPath)
		if err == nil {
			err = db.RunMigrations(ctx, pool, migrations)
		}
		if err != nil {
			pool.Close()
			return err
		}
	}
	p.pool = pool
	p.ownsPool = true
	slog.Info(fmt.Sprintf("%s - persistence opened trace_id=%s", postgresLogPrefix, traceID))
	return nil
}

// Close releases the pool if this persistence created it.
func (p *PostgresPersistence) Close(_ context.Context, _ string) error {
	if p.ownsPool && p.pool != nil {
		p.pool.Close()
	}
	p.pool = nil
	p.ownsPool = false
	return nil
}

// Clear removes every dummy.
func (p *PostgresPersistence) Clear(ctx context.Context) error {
	return db.ClearTables(ctx, p.pool, TableName)
}

// List runs one page query, plus a count when paging.Total is set.
func (p *PostgresPersistence) List(ctx context.Context, traceID string, filter Filter, paging Paging) (*Page, error) {
	where := `($1 = '' OR key = $1) AND (cardinality($2::text[]) = 0 OR id = ANY($2))`
	ids := filter.IDs
	if ids == nil {
		ids = []string{}
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, key, content FROM dummies WHERE `+where+` ORDER BY id OFFSET $3 LIMIT $4`,
		filter.Key, ids, paging.Skip, paging.take())
	if err != nil {
		return nil, p.failure(traceID, "list", err)
	}
	data, err := pgx.CollectRows(rows, pgx.RowToStructByName[Dummy])
	if err != nil {
		return nil, p.failure(traceID, "list", err)
	}

	page := &Page{Data: data}
	if paging.Total {
		var total int64
		if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM dummies WHERE `+where, filter.Key, ids).Scan(&total); err != nil {
			return nil, p.failure(traceID, "count", err)
		}
		page.Total = &total
	}
	return page, nil
}

// GetByID returns the row with id, or nil.
func (p *PostgresPersistence) GetByID(ctx context.Context, traceID, id string) (*Dummy, error) {
	rows, _ := p.pool.Query(ctx, `SELECT id, key, content FROM dummies WHERE id = $1`, id)
	return p.one(traceID, "get", rows)
}

// Create inserts d. A duplicate id fails with DUMMY_EXISTS.
func (p *PostgresPersistence) Create(ctx context.Context, traceID string, d Dummy) (*Dummy, error) {
	rows, _ := p.pool.Query(ctx,
		`INSERT INTO dummies (id, key, content) VALUES ($1, $2, $3) RETURNING id, key, content`,
		d.ID, d.Key, d.Content)
	created, err := p.one(traceID, "create", rows)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, apperr.NewConflictError(traceID, "DUMMY_EXISTS", "Dummy already exists").
			WithDetails("id", d.ID)
	}
	return created, err
}

// Update rewrites key and content of an existing row.
func (p *PostgresPersistence) Update(ctx context.Context, traceID string, d Dummy) (*Dummy, error) {
	rows, _ := p.pool.Query(ctx,
		`UPDATE dummies SET key = $2, content = $3, updated_at = now() WHERE id = $1 RETURNING id, key, content`,
		d.ID, d.Key, d.Content)
	return p.one(traceID, "update", rows)
}

// DeleteByID deletes the row with id and returns it, or nil.
func (p *PostgresPersistence) DeleteByID(ctx context.Context, traceID, id string) (*Dummy, error) {
	rows, _ := p.pool.Query(ctx, `DELETE FROM dummies WHERE id = $1 RETURNING id, key, content`, id)
	return p.one(traceID, "delete", rows)
}

func (p *PostgresPersistence) one(traceID, op string, rows pgx.Rows) (*Dummy, error) {
	d, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Dummy])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, p.failure(traceID, op, err)
	}
	return &d, nil
}

func (p *PostgresPersistence) failure(traceID, op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return err
	}
	slog.Error(fmt.Sprintf("%s - %s failed: %v", postgresLogPrefix, op, err))
	return apperr.NewInternalError(traceID, "DB_FAILED", fmt.Sprintf("Dummy %s failed", op)).WithCause(err)
}
