package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/watchtrail/watchtrail/store"
)

const watchRecordFields = `media_id, title, source_name, source_id, thumbnail_url,
		watched_at, watched_duration, total_duration, watch_percent,
		autoplay, rewatch_count, category, category_confidence`

func (d *DB) UpsertWatchRecord(ctx context.Context, upsert *store.WatchRecord) (*store.WatchRecord, error) {
	stmt := `INSERT INTO watch_record (` + watchRecordFields + `)
		VALUES (` + placeholders(13) + `)
		ON CONFLICT(media_id) DO UPDATE SET
			title = excluded.title,
			source_name = excluded.source_name,
			source_id = excluded.source_id,
			thumbnail_url = excluded.thumbnail_url,
			watched_at = excluded.watched_at,
			watched_duration = excluded.watched_duration,
			total_duration = excluded.total_duration,
			watch_percent = excluded.watch_percent,
			autoplay = excluded.autoplay,
			rewatch_count = watch_record.rewatch_count + 1,
			category = excluded.category,
			category_confidence = excluded.category_confidence
		RETURNING ` + watchRecordFields

	record, err := scanWatchRecord(d.db.QueryRowContext(ctx, stmt, upsertArgs(upsert)...))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert watch record: %w", err)
	}
	return record, nil
}

func (d *DB) MergeImportWatchRecord(ctx context.Context, merge *store.WatchRecord) (*store.WatchRecord, error) {
	stmt := `INSERT INTO watch_record (` + watchRecordFields + `)
		VALUES (` + placeholders(13) + `)
		ON CONFLICT(media_id) DO UPDATE SET
			title = excluded.title,
			source_name = excluded.source_name,
			source_id = excluded.source_id,
			thumbnail_url = excluded.thumbnail_url,
			watched_at = excluded.watched_at,
			watched_duration = excluded.watched_duration,
			total_duration = excluded.total_duration,
			watch_percent = excluded.watch_percent,
			autoplay = excluded.autoplay,
			rewatch_count = MAX(watch_record.rewatch_count, excluded.rewatch_count),
			category = excluded.category,
			category_confidence = excluded.category_confidence
		RETURNING ` + watchRecordFields

	record, err := scanWatchRecord(d.db.QueryRowContext(ctx, stmt, upsertArgs(merge)...))
	if err != nil {
		return nil, fmt.Errorf("failed to merge imported watch record: %w", err)
	}
	return record, nil
}

func upsertArgs(record *store.WatchRecord) []any {
	var category, confidence sql.NullString
	if record.Category != "" {
		category = sql.NullString{String: record.Category, Valid: true}
	}
	if record.CategoryConfidence != "" {
		confidence = sql.NullString{String: string(record.CategoryConfidence), Valid: true}
	}
	rewatchCount := record.RewatchCount
	if rewatchCount < 1 {
		rewatchCount = 1
	}
	return []any{
		record.MediaID, record.Title, record.SourceName, record.SourceID, record.ThumbnailURL,
		record.WatchedAt, record.WatchedDuration, record.TotalDuration, record.WatchPercent,
		record.Autoplay, rewatchCount, category, confidence,
	}
}

func (d *DB) ListWatchRecords(ctx context.Context, find *store.FindWatchRecord) ([]*store.WatchRecord, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.MediaID; v != nil {
		where, args = append(where, "watch_record.media_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.WatchedAfter; v != nil {
		where, args = append(where, "watch_record.watched_at >= "+placeholder(len(args)+1)), append(args, *v)
	}
	if find.Uncategorized {
		where = append(where, "(watch_record.category IS NULL OR watch_record.category = 'Uncategorized')")
	}

	// rowid ordering preserves insertion order, which callers rely on for
	// first-encountered tie-breaks.
	query := `SELECT ` + watchRecordFields + `
		FROM watch_record
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY watch_record.rowid ASC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query watch records: %w", err)
	}
	defer rows.Close()

	list := make([]*store.WatchRecord, 0)
	for rows.Next() {
		record, err := scanWatchRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watch record: %w", err)
		}
		list = append(list, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watch records: %w", err)
	}
	return list, nil
}

func (d *DB) UpdateWatchRecord(ctx context.Context, update *store.UpdateWatchRecord) error {
	set, args := []string{}, []any{}

	if v := update.Title; v != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.SourceName; v != nil {
		set, args = append(set, "source_name = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.ThumbnailURL; v != nil {
		set, args = append(set, "thumbnail_url = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Category; v != nil {
		set, args = append(set, "category = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.CategoryConfidence; v != nil {
		set, args = append(set, "category_confidence = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, update.MediaID)
	stmt := `UPDATE watch_record SET ` + strings.Join(set, ", ") + ` WHERE media_id = ` + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to update watch record: %w", err)
	}
	return nil
}

func (d *DB) DeleteWatchRecord(ctx context.Context, delete *store.DeleteWatchRecord) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM watch_record WHERE media_id = ?`, delete.MediaID); err != nil {
		return fmt.Errorf("failed to delete watch record: %w", err)
	}
	return nil
}

func (d *DB) DeleteWatchRecordsBefore(ctx context.Context, cutoff int64) (int64, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM watch_record WHERE watched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune watch records: %w", err)
	}
	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned watch records: %w", err)
	}
	return pruned, nil
}

func (d *DB) ReplaceAllWatchRecords(ctx context.Context, records []*store.WatchRecord) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM watch_record`); err != nil {
		return fmt.Errorf("failed to clear watch records: %w", err)
	}
	stmt := `INSERT INTO watch_record (` + watchRecordFields + `) VALUES (` + placeholders(13) + `)`
	for _, record := range records {
		if _, err := tx.ExecContext(ctx, stmt, upsertArgs(record)...); err != nil {
			return fmt.Errorf("failed to insert watch record %s: %w", record.MediaID, err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatchRecord(row rowScanner) (*store.WatchRecord, error) {
	var record store.WatchRecord
	var category, confidence sql.NullString

	if err := row.Scan(
		&record.MediaID,
		&record.Title,
		&record.SourceName,
		&record.SourceID,
		&record.ThumbnailURL,
		&record.WatchedAt,
		&record.WatchedDuration,
		&record.TotalDuration,
		&record.WatchPercent,
		&record.Autoplay,
		&record.RewatchCount,
		&category,
		&confidence,
	); err != nil {
		return nil, err
	}

	if category.Valid {
		record.Category = category.String
	}
	if confidence.Valid {
		record.CategoryConfidence = store.ConfidenceLevel(confidence.String)
	}
	return &record, nil
}
