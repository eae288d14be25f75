package store

import (
	"context"
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
)

//go:embed migrations
var migrationsFS embed.FS

// PG is the Postgres-backed Store. One table holds every entity; btree
// indexes on the GSI columns emulate the secondary indices, and expired rows
// are filtered at read time.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG connects to Postgres, runs pending migrations, and returns the store.
func NewPG(ctx context.Context, cfg Config) (*PG, error) {
	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PG{pool: pool}, nil
}

// runMigrations applies the embedded SQL migrations through database/sql;
// the pool is opened separately afterwards.
func runMigrations(cfg Config) error {
	db, err := stdsql.Open("pgx", cfg.DSN())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, cfg.Database, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return source.Close()
}

const itemColumns = `pk, sk, gsi1pk, gsi1sk, gsi2pk, gsi2sk, attrs, version, expires_at, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	var gsi1pk, gsi1sk, gsi2pk, gsi2sk *string
	err := row.Scan(&it.PK, &it.SK, &gsi1pk, &gsi1sk, &gsi2pk, &gsi2sk,
		&it.Attrs, &it.Version, &it.ExpiresAt, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if gsi1pk != nil {
		it.GSI1PK = *gsi1pk
	}
	if gsi1sk != nil {
		it.GSI1SK = *gsi1sk
	}
	if gsi2pk != nil {
		it.GSI2PK = *gsi2pk
	}
	if gsi2sk != nil {
		it.GSI2SK = *gsi2sk
	}
	return &it, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Get implements Store.
func (p *PG) Get(ctx context.Context, pk, sk string) (*Item, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE pk = $1 AND sk = $2 AND (expires_at IS NULL OR expires_at > now())`,
		pk, sk)
	return scanItem(row)
}

// Put implements Store.
func (p *PG) Put(ctx context.Context, item *Item) error {
	row := p.pool.QueryRow(ctx,
		`INSERT INTO items (pk, sk, gsi1pk, gsi1sk, gsi2pk, gsi2sk, attrs, version, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, now(), now())
		 ON CONFLICT (pk, sk) DO UPDATE SET
		   gsi1pk = EXCLUDED.gsi1pk, gsi1sk = EXCLUDED.gsi1sk,
		   gsi2pk = EXCLUDED.gsi2pk, gsi2sk = EXCLUDED.gsi2sk,
		   attrs = EXCLUDED.attrs, version = items.version + 1,
		   expires_at = EXCLUDED.expires_at, updated_at = now()
		 RETURNING version`,
		item.PK, item.SK, nullable(item.GSI1PK), nullable(item.GSI1SK),
		nullable(item.GSI2PK), nullable(item.GSI2SK), item.Attrs, item.ExpiresAt)
	return row.Scan(&item.Version)
}

// PutIfAbsent implements Store.
func (p *PG) PutIfAbsent(ctx context.Context, item *Item) error {
	// An expired row under the same key is overwritten.
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO items (pk, sk, gsi1pk, gsi1sk, gsi2pk, gsi2sk, attrs, version, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, now(), now())
		 ON CONFLICT (pk, sk) DO UPDATE SET
		   gsi1pk = EXCLUDED.gsi1pk, gsi1sk = EXCLUDED.gsi1sk,
		   gsi2pk = EXCLUDED.gsi2pk, gsi2sk = EXCLUDED.gsi2sk,
		   attrs = EXCLUDED.attrs, version = 1,
		   expires_at = EXCLUDED.expires_at, created_at = now(), updated_at = now()
		 WHERE items.expires_at IS NOT NULL AND items.expires_at <= now()`,
		item.PK, item.SK, nullable(item.GSI1PK), nullable(item.GSI1SK),
		nullable(item.GSI2PK), nullable(item.GSI2SK), item.Attrs, item.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConditionFailed
	}
	item.Version = 1
	return nil
}

// UpdateVersioned implements Store.
func (p *PG) UpdateVersioned(ctx context.Context, item *Item, expected int64) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE items SET
		   gsi1pk = $3, gsi1sk = $4, gsi2pk = $5, gsi2sk = $6,
		   attrs = $7, version = version + 1, expires_at = $8, updated_at = now()
		 WHERE pk = $1 AND sk = $2 AND version = $9
		   AND (expires_at IS NULL OR expires_at > now())`,
		item.PK, item.SK, nullable(item.GSI1PK), nullable(item.GSI1SK),
		nullable(item.GSI2PK), nullable(item.GSI2SK), item.Attrs, item.ExpiresAt, expected)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		item.Version = expected + 1
		return nil
	}
	if _, err := p.Get(ctx, item.PK, item.SK); errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return ErrConditionFailed
}

func (p *PG) queryItems(ctx context.Context, sql string, args ...any) ([]*Item, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Query implements Store.
func (p *PG) Query(ctx context.Context, pk, skPrefix string) ([]*Item, error) {
	return p.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE pk = $1 AND sk LIKE $2 || '%'
		   AND (expires_at IS NULL OR expires_at > now())
		 ORDER BY sk ASC`, pk, skPrefix)
}

// QueryGSI1 implements Store.
func (p *PG) QueryGSI1(ctx context.Context, gsi1pk, prefix string) ([]*Item, error) {
	return p.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE gsi1pk = $1 AND gsi1sk LIKE $2 || '%'
		   AND (expires_at IS NULL OR expires_at > now())
		 ORDER BY gsi1sk ASC`, gsi1pk, prefix)
}

// QueryGSI2 implements Store.
func (p *PG) QueryGSI2(ctx context.Context, gsi2pk, prefix string) ([]*Item, error) {
	return p.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE gsi2pk = $1 AND gsi2sk LIKE $2 || '%'
		   AND (expires_at IS NULL OR expires_at > now())
		 ORDER BY gsi2sk ASC`, gsi2pk, prefix)
}

// Delete implements Store.
func (p *PG) Delete(ctx context.Context, pk, sk string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM items WHERE pk = $1 AND sk = $2`, pk, sk)
	return err
}

// Close implements Store.
func (p *PG) Close() error {
	p.pool.Close()
	return nil
}

// Health pings the database with a short deadline.
func (p *PG) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.pool.Ping(ctx)
}
