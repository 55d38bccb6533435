package sqlite

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/pkg/errors"
	// Import the pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/watchtrail/watchtrail/internal/profile"
	"github.com/watchtrail/watchtrail/store"
)

//go:embed migration/LATEST.sql
var latestSchema string

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database at the profile DSN and ensures the schema
// exists. The connection pool is capped at one writer; a local single-user
// tracker never needs more.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("sqlite", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}
	db.SetMaxOpenConns(1)

	d := &DB{db: db, profile: profile}
	if err := d.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return d, nil
}

func (d *DB) migrate(ctx context.Context) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := d.db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to apply %q", pragma)
		}
	}
	if _, err := d.db.ExecContext(ctx, latestSchema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	return nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'watch_record'`,
	).Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "failed to check initialization")
	}
	return count > 0, nil
}

// SizeBytes estimates the on-disk size from the page count and page size.
func (d *DB) SizeBytes(ctx context.Context) (int64, error) {
	var size int64
	err := d.db.QueryRowContext(ctx,
		`SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()`,
	).Scan(&size)
	if err != nil {
		return 0, errors.Wrap(err, "failed to estimate database size")
	}
	return size, nil
}
