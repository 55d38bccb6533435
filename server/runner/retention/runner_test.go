package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/watchtrail/watchtrail/store"
	"github.com/watchtrail/watchtrail/store/test"
)

func TestRunOncePrunesPerPolicy(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)

	settings, err := ts.GetSettings(ctx)
	require.NoError(t, err)
	settings.DataRetention = store.RetentionThreeMonths
	_, err = ts.UpdateSettings(ctx, settings)
	require.NoError(t, err)

	now := time.Now()
	for mediaID, age := range map[string]int{"old": 100, "recent": 10} {
		_, err := ts.UpsertWatchRecord(ctx, &store.WatchRecord{
			MediaID:         mediaID,
			Title:           mediaID,
			WatchedAt:       now.AddDate(0, 0, -age).Unix(),
			WatchedDuration: 60,
			TotalDuration:   120,
			WatchPercent:    50,
			RewatchCount:    1,
		})
		require.NoError(t, err)
	}

	NewRunner(ts).RunOnce(ctx)

	records, err := ts.ListWatchRecords(ctx, &store.FindWatchRecord{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "recent", records[0].MediaID)
}

func TestRunOnceKeepsEverythingOnRetentionAll(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)

	_, err := ts.UpsertWatchRecord(ctx, &store.WatchRecord{
		MediaID:         "ancient",
		WatchedAt:       time.Now().AddDate(-2, 0, 0).Unix(),
		WatchedDuration: 60,
		TotalDuration:   120,
		WatchPercent:    50,
		RewatchCount:    1,
	})
	require.NoError(t, err)

	NewRunner(ts).RunOnce(ctx)

	records, err := ts.ListWatchRecords(ctx, &store.FindWatchRecord{})
	require.NoError(t, err)
	require.Len(t, records, 1)
}
