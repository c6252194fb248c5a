// Package repomanager provides RepositoryManager implementations for
// PostgreSQL and for the in-memory store, wiring together repository
// constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/videotube/internal/dbx"
	"github.com/dmitrijs2005/videotube/internal/server/migrations"
	"github.com/dmitrijs2005/videotube/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/videotube/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	db *sql.DB
}

// dbRepositories binds repositories to a DBTX (the pool or a transaction).
type dbRepositories struct {
	db dbx.DBTX
}

func (r dbRepositories) Users() users.Repository {
	return users.NewPostgresRepository(r.db)
}

func (r dbRepositories) RefreshTokens() refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(r.db)
}

// Users returns a users.Repository bound to the connection pool.
func (m *PostgresRepositoryManager) Users() users.Repository {
	return dbRepositories{db: m.db}.Users()
}

// RefreshTokens returns a refreshtokens.Repository bound to the connection pool.
func (m *PostgresRepositoryManager) RefreshTokens() refreshtokens.Repository {
	return dbRepositories{db: m.db}.RefreshTokens()
}

func (m *PostgresRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, dbRepositories{db: tx})
	})
}

func (m *PostgresRepositoryManager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the managed database.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// NewPostgresRepositoryManager opens a pgx-backed pool for dsn.
func NewPostgresRepositoryManager(dsn string) (RepositoryManager, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresRepositoryManager{db: db}, nil
}
