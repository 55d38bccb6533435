package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/watchtrail/watchtrail/store"
)

func (d *DB) GetSettings(ctx context.Context) (*store.Settings, error) {
	var settings store.Settings
	var retention string

	err := d.db.QueryRowContext(ctx, `
		SELECT
			min_watch_percent, min_watch_time_seconds, track_autoplay,
			count_hidden_time, data_retention, ai_features_enabled,
			api_key, tracking_enabled
		FROM settings WHERE id = 1`,
	).Scan(
		&settings.MinWatchPercent,
		&settings.MinWatchTimeSeconds,
		&settings.TrackAutoplay,
		&settings.CountHiddenTime,
		&retention,
		&settings.AIFeaturesEnabled,
		&settings.APIKey,
		&settings.TrackingEnabled,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	settings.DataRetention = store.RetentionPolicy(retention)
	return &settings, nil
}

func (d *DB) UpsertSettings(ctx context.Context, upsert *store.Settings) (*store.Settings, error) {
	stmt := `INSERT INTO settings (
			id, min_watch_percent, min_watch_time_seconds, track_autoplay,
			count_hidden_time, data_retention, ai_features_enabled,
			api_key, tracking_enabled
		)
		VALUES (1, ` + placeholders(8) + `)
		ON CONFLICT(id) DO UPDATE SET
			min_watch_percent = excluded.min_watch_percent,
			min_watch_time_seconds = excluded.min_watch_time_seconds,
			track_autoplay = excluded.track_autoplay,
			count_hidden_time = excluded.count_hidden_time,
			data_retention = excluded.data_retention,
			ai_features_enabled = excluded.ai_features_enabled,
			api_key = excluded.api_key,
			tracking_enabled = excluded.tracking_enabled`

	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.MinWatchPercent,
		upsert.MinWatchTimeSeconds,
		upsert.TrackAutoplay,
		upsert.CountHiddenTime,
		string(upsert.DataRetention),
		upsert.AIFeaturesEnabled,
		upsert.APIKey,
		upsert.TrackingEnabled,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert settings: %w", err)
	}
	return d.GetSettings(ctx)
}
