package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// WatchRecord model related methods.
	//
	// UpsertWatchRecord merges by media identity: on conflict the incoming
	// fields win and the stored rewatch count is incremented by one.
	UpsertWatchRecord(ctx context.Context, upsert *WatchRecord) (*WatchRecord, error)
	// MergeImportWatchRecord merges an imported record by media identity: on
	// conflict the incoming fields win and the rewatch count becomes the
	// maximum of both sides, so a rewatch reflected in both exports is not
	// double-counted.
	MergeImportWatchRecord(ctx context.Context, merge *WatchRecord) (*WatchRecord, error)
	ListWatchRecords(ctx context.Context, find *FindWatchRecord) ([]*WatchRecord, error)
	UpdateWatchRecord(ctx context.Context, update *UpdateWatchRecord) error
	DeleteWatchRecord(ctx context.Context, delete *DeleteWatchRecord) error
	// DeleteWatchRecordsBefore removes records with watched_at older than the
	// cutoff and returns how many were removed.
	DeleteWatchRecordsBefore(ctx context.Context, cutoff int64) (int64, error)
	ReplaceAllWatchRecords(ctx context.Context, records []*WatchRecord) error

	// Settings model related methods.
	GetSettings(ctx context.Context) (*Settings, error)
	UpsertSettings(ctx context.Context, upsert *Settings) (*Settings, error)

	// ReportCache model related methods.
	GetReportCache(ctx context.Context) (*ReportCache, error)
	UpsertReportCache(ctx context.Context, upsert *ReportCache) (*ReportCache, error)
	DeleteReportCache(ctx context.Context) error

	// SizeBytes estimates the on-disk size of the database.
	SizeBytes(ctx context.Context) (int64, error)
}
