package report

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/watchtrail/watchtrail/internal/errors"
	"github.com/watchtrail/watchtrail/store"
)

func record(mediaID, source string, watchedAt time.Time, watchedSeconds int) *store.WatchRecord {
	return &store.WatchRecord{
		MediaID:         mediaID,
		Title:           "title " + mediaID,
		SourceName:      source,
		WatchedAt:       watchedAt.Unix(),
		WatchedDuration: watchedSeconds,
		TotalDuration:   watchedSeconds * 2,
		WatchPercent:    50,
		RewatchCount:    1,
	}
}

func TestBuildSummaryEmptyWindow(t *testing.T) {
	_, err := BuildSummary(nil)
	require.Error(t, err)
	require.True(t, errors.IsCode(err, errors.ErrCodeNoRecentHistory))
}

func TestBuildSummaryAggregates(t *testing.T) {
	// Monday 2023-11-20 21:xx local-independent base.
	base := time.Date(2023, 11, 20, 21, 15, 0, 0, time.UTC)

	a := record("a", "Alpha", base, 1800)
	a.Category = "Music"
	b := record("b", "Beta", base.Add(30*time.Minute), 600)
	b.Category = "Music"
	c := record("c", "Alpha", base.Add(48*time.Hour), 900)
	c.RewatchCount = 4

	summary, err := BuildSummary([]*store.WatchRecord{a, b, c})
	require.NoError(t, err)

	require.Contains(t, summary, "Videos watched: 3")
	// 3300s total = 55m.
	require.Contains(t, summary, "Total watch time: 55m")
	// Alpha 2700s=45m ahead of Beta 600s=10m.
	alphaIdx := strings.Index(summary, "- Alpha (45m)")
	betaIdx := strings.Index(summary, "- Beta (10m)")
	require.GreaterOrEqual(t, alphaIdx, 0)
	require.GreaterOrEqual(t, betaIdx, 0)
	require.Less(t, alphaIdx, betaIdx)

	require.Contains(t, summary, "- Music: 2")
	require.Contains(t, summary, "- Uncategorized: 1")
	require.Contains(t, summary, "Most rewatched: title c (4 times)")
	require.Contains(t, summary, "Average watch percent: 50%")
}

func TestBuildSummaryHourFormatting(t *testing.T) {
	at := time.Date(2023, 11, 20, 9, 5, 0, 0, time.Local)
	summary, err := BuildSummary([]*store.WatchRecord{record("a", "Alpha", at, 60)})
	require.NoError(t, err)
	require.Contains(t, summary, "Most active hour: 09:00")
	require.Contains(t, summary, fmt.Sprintf("Most active day: %s", at.Weekday()))
}

func TestBuildSummaryDayHourTieBreakFirstSeen(t *testing.T) {
	// Two records on Monday 21:00, two on Wednesday 09:00: equal counts,
	// first-seen wins for both day and hour.
	monday := time.Date(2023, 11, 20, 21, 0, 0, 0, time.Local)
	wednesday := time.Date(2023, 11, 22, 9, 0, 0, 0, time.Local)

	summary, err := BuildSummary([]*store.WatchRecord{
		record("a", "Alpha", monday, 60),
		record("b", "Beta", wednesday, 60),
		record("c", "Gamma", monday.Add(time.Minute), 60),
		record("d", "Delta", wednesday.Add(time.Minute), 60),
	})
	require.NoError(t, err)
	require.Contains(t, summary, fmt.Sprintf("Most active day: %s", monday.Weekday()))
	require.Contains(t, summary, "Most active hour: 21:00")
}

func TestBuildSummaryMostRewatchedTieBreakFirstInOrder(t *testing.T) {
	at := time.Date(2023, 11, 20, 12, 0, 0, 0, time.Local)
	first := record("first", "Alpha", at, 60)
	first.RewatchCount = 2
	second := record("second", "Beta", at, 60)
	second.RewatchCount = 2

	summary, err := BuildSummary([]*store.WatchRecord{first, second})
	require.NoError(t, err)
	require.Contains(t, summary, "Most rewatched: title first (2 times)")
}

func TestBuildSummaryTopSourcesCapped(t *testing.T) {
	at := time.Date(2023, 11, 20, 12, 0, 0, 0, time.Local)
	records := make([]*store.WatchRecord, 0, 7)
	for i := 0; i < 7; i++ {
		r := record(fmt.Sprintf("v%d", i), fmt.Sprintf("Source%d", i), at, (i+1)*60)
		records = append(records, r)
	}

	summary, err := BuildSummary(records)
	require.NoError(t, err)
	// Only the five largest sources are listed.
	require.NotContains(t, summary, "- Source0 (")
	require.NotContains(t, summary, "- Source1 (")
	require.Contains(t, summary, "- Source6 (7m)")
	require.Contains(t, summary, "- Source2 (3m)")
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "0m", formatDuration(30))
	require.Equal(t, "59m", formatDuration(3599))
	require.Equal(t, "1h 0m", formatDuration(3600))
	require.Equal(t, "2h 5m", formatDuration(7500))
}
