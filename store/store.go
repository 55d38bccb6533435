package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/watchtrail/watchtrail/internal/profile"
)

// softStorageCeiling is the advisory on-disk size above which the store
// starts warning. It never blocks writes.
const softStorageCeiling = 64 << 20

// Store provides database access to all raw objects.
type Store struct {
	profile  *profile.Profile
	driver   Driver
	notifier *Notifier

	// Now is the clock used for retention cutoffs. Overridable in tests.
	Now func() time.Time
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:   driver,
		profile:  profile,
		notifier: NewNotifier(),
		Now:      time.Now,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Notifier returns the change-notification hub for this store.
func (s *Store) Notifier() *Notifier {
	return s.notifier
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// UpsertWatchRecord merges a qualifying watch event by media identity.
// A re-qualification of a known media increments its rewatch count.
func (s *Store) UpsertWatchRecord(ctx context.Context, upsert *WatchRecord) (*WatchRecord, error) {
	record, err := s.driver.UpsertWatchRecord(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(SectionVideos)
	s.checkStorageSize(ctx)
	return record, nil
}

// UpdateWatchRecord applies a partial update. Absent media IDs are a no-op,
// not an error: classification results may race a deletion.
func (s *Store) UpdateWatchRecord(ctx context.Context, update *UpdateWatchRecord) error {
	if err := s.driver.UpdateWatchRecord(ctx, update); err != nil {
		return err
	}
	s.notifier.Publish(SectionVideos)
	return nil
}

func (s *Store) ListWatchRecords(ctx context.Context, find *FindWatchRecord) ([]*WatchRecord, error) {
	return s.driver.ListWatchRecords(ctx, find)
}

func (s *Store) DeleteWatchRecord(ctx context.Context, delete *DeleteWatchRecord) error {
	if err := s.driver.DeleteWatchRecord(ctx, delete); err != nil {
		return err
	}
	s.notifier.Publish(SectionVideos)
	return nil
}

// FindUncategorized returns records the classifier has not yet labeled.
func (s *Store) FindUncategorized(ctx context.Context) ([]*WatchRecord, error) {
	return s.driver.ListWatchRecords(ctx, &FindWatchRecord{Uncategorized: true})
}

// ApplyRetention prunes records older than the configured retention window
// and returns how many were removed. RetentionAll is a no-op.
func (s *Store) ApplyRetention(ctx context.Context, settings *Settings) (int64, error) {
	days := settings.DataRetention.RetentionDays()
	if days == 0 {
		return 0, nil
	}
	cutoff := s.Now().AddDate(0, 0, -days).Unix()
	pruned, err := s.driver.DeleteWatchRecordsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		slog.Info("retention pruned watch records", "pruned", pruned, "policy", settings.DataRetention)
		s.notifier.Publish(SectionVideos)
	}
	return pruned, nil
}

// ReplaceAllWatchRecords replaces the whole collection wholesale.
func (s *Store) ReplaceAllWatchRecords(ctx context.Context, records []*WatchRecord) error {
	if err := s.driver.ReplaceAllWatchRecords(ctx, records); err != nil {
		return err
	}
	s.notifier.Publish(SectionVideos)
	s.checkStorageSize(ctx)
	return nil
}

// ImportMergeWatchRecords merges incoming records by media identity.
// Records without a media ID are skipped silently. On conflict the rewatch
// count becomes the max of both sides, never the sum. Returns how many
// records were merged and how many were skipped.
func (s *Store) ImportMergeWatchRecords(ctx context.Context, incoming []*WatchRecord) (merged int, skipped int, err error) {
	for _, record := range incoming {
		if record == nil || record.MediaID == "" {
			skipped++
			continue
		}
		if record.RewatchCount < 1 {
			record.RewatchCount = 1
		}
		if _, err := s.driver.MergeImportWatchRecord(ctx, record); err != nil {
			return merged, skipped, err
		}
		merged++
	}
	if merged > 0 {
		s.notifier.Publish(SectionVideos)
		s.checkStorageSize(ctx)
	}
	return merged, skipped, nil
}

// WatchStats aggregates over the full collection. Ties for the most
// rewatched record are broken by first-encountered order.
func (s *Store) WatchStats(ctx context.Context) (*WatchStats, error) {
	records, err := s.driver.ListWatchRecords(ctx, &FindWatchRecord{})
	if err != nil {
		return nil, err
	}

	stats := &WatchStats{TotalCount: len(records)}
	if len(records) == 0 {
		return stats, nil
	}

	percentSum := 0
	for _, record := range records {
		stats.TotalWatchSeconds += int64(record.WatchedDuration)
		percentSum += record.WatchPercent
		if stats.MostRewatched == nil || record.RewatchCount > stats.MostRewatched.RewatchCount {
			stats.MostRewatched = record
		}
	}
	stats.AvgWatchPercent = int(float64(percentSum)/float64(len(records)) + 0.5)
	return stats, nil
}

// GetSettings reads the settings row, seeding defaults on first run.
func (s *Store) GetSettings(ctx context.Context) (*Settings, error) {
	settings, err := s.driver.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return s.driver.UpsertSettings(ctx, DefaultSettings())
	}
	return settings, nil
}

// UpdateSettings sanitizes incoming values against the previously stored
// settings and persists the result. Invalid fields keep their prior value.
func (s *Store) UpdateSettings(ctx context.Context, incoming *Settings) (*Settings, error) {
	prev, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	sanitized := incoming.Sanitize(prev)
	updated, err := s.driver.UpsertSettings(ctx, sanitized)
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(SectionSettings)
	return updated, nil
}

func (s *Store) GetReportCache(ctx context.Context) (*ReportCache, error) {
	return s.driver.GetReportCache(ctx)
}

// SetReportCache overwrites the cached weekly report wholesale.
func (s *Store) SetReportCache(ctx context.Context, cache *ReportCache) (*ReportCache, error) {
	updated, err := s.driver.UpsertReportCache(ctx, cache)
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(SectionReport)
	return updated, nil
}

func (s *Store) ClearReportCache(ctx context.Context) error {
	if err := s.driver.DeleteReportCache(ctx); err != nil {
		return err
	}
	s.notifier.Publish(SectionReport)
	return nil
}

// ClearData removes all watch records and the cached report. Settings survive.
func (s *Store) ClearData(ctx context.Context) error {
	if err := s.driver.ReplaceAllWatchRecords(ctx, nil); err != nil {
		return err
	}
	if err := s.driver.DeleteReportCache(ctx); err != nil {
		return err
	}
	s.notifier.Publish(SectionVideos)
	s.notifier.Publish(SectionReport)
	return nil
}

// checkStorageSize warns when the database approaches the soft ceiling.
// Advisory only; writes are never blocked.
func (s *Store) checkStorageSize(ctx context.Context) {
	size, err := s.driver.SizeBytes(ctx)
	if err != nil {
		slog.Warn("failed to estimate storage size", "error", err)
		return
	}
	if size > softStorageCeiling*9/10 {
		slog.Warn("storage approaching soft ceiling", "size_bytes", size, "ceiling_bytes", int64(softStorageCeiling))
	}
}
