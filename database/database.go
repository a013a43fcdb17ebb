// Package database opens the bun connection for a DATABASE_URL and runs the
// embedded goose migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-task-auth"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// gooseDialect is the name goose expects for d
func (d Dialect) gooseDialect() string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// ParseURL returns the dialect, driver and dsn for url. Accepted schemes
// are sqlite://, postgres://, postgresql:// and postgresql+asyncpg://.
func ParseURL(url string) (Dialect, string, string, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(url), "://")
	if !ok {
		return "", "", "", errors.New("invalid database url", errors.CategoryValidation).
			WithMetadata(map[string]any{"reason": "missing scheme"})
	}

	switch strings.ToLower(scheme) {
	case "sqlite", "sqlite3":
		if rest == "" {
			return "", "", "", errors.New("invalid database url", errors.CategoryValidation).
				WithMetadata(map[string]any{"reason": "empty sqlite path"})
		}
		return DialectSQLite, sqliteshim.ShimName, rest, nil
	case "postgres", "postgresql", "postgresql+asyncpg", "postgresql+psycopg2":
		return DialectPostgres, "pgx", "postgres://" + rest, nil
	default:
		return "", "", "", errors.New(fmt.Sprintf("unsupported database scheme %q", scheme), errors.CategoryValidation)
	}
}

// Open connects to url. The connection is not used until the first query;
// call Ping to check it.
func Open(url string) (*bun.DB, Dialect, error) {
	dialect, driver, dsn, err := ParseURL(url)
	if err != nil {
		return nil, "", err
	}

	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.CategoryInternal, "failed to open database")
	}

	switch dialect {
	case DialectSQLite:
		// a single connection keeps in memory databases alive and avoids
		// SQLITE_BUSY on writes
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), dialect, nil
	default:
		return bun.NewDB(sqldb, pgdialect.New()), dialect, nil
	}
}

var gooseMu sync.Mutex

// Migrate applies the embedded migrations for dialect
func Migrate(ctx context.Context, db *bun.DB, dialect Dialect) error {
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return errors.New(fmt.Sprintf("unsupported dialect %q", dialect), errors.CategoryValidation)
	}

	fsys, err := auth.DialectMigrations(string(dialect))
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to load migrations")
	}

	// goose keeps its base fs and dialect in package state
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect.gooseDialect()); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to set migration dialect")
	}

	if err := goose.UpContext(ctx, db.DB, "."); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to run migrations").
			WithMetadata(map[string]any{"dialect": string(dialect)})
	}

	return nil
}

// Version reports the current migration version
func Version(ctx context.Context, db *bun.DB, dialect Dialect) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(dialect.gooseDialect()); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db.DB)
}
