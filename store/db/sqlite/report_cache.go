package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/watchtrail/watchtrail/store"
)

func (d *DB) GetReportCache(ctx context.Context) (*store.ReportCache, error) {
	var cache store.ReportCache
	err := d.db.QueryRowContext(ctx,
		`SELECT content, generated_at FROM report_cache WHERE id = 1`,
	).Scan(&cache.Content, &cache.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report cache: %w", err)
	}
	return &cache, nil
}

func (d *DB) UpsertReportCache(ctx context.Context, upsert *store.ReportCache) (*store.ReportCache, error) {
	stmt := `INSERT INTO report_cache (id, content, generated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			generated_at = excluded.generated_at`

	if _, err := d.db.ExecContext(ctx, stmt, upsert.Content, upsert.GeneratedAt); err != nil {
		return nil, fmt.Errorf("failed to upsert report cache: %w", err)
	}
	return d.GetReportCache(ctx)
}

func (d *DB) DeleteReportCache(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM report_cache WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to delete report cache: %w", err)
	}
	return nil
}
