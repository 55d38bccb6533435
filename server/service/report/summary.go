// Package report builds the textual feature summary the classifier turns
// into weekly report prose.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/watchtrail/watchtrail/internal/errors"
	"github.com/watchtrail/watchtrail/store"
)

// topSourceCount is how many channels the summary lists.
const topSourceCount = 5

// BuildSummary aggregates a 7-day window of watch records into the feature
// summary consumed by the classifier. The caller restricts the window and
// must not pass an empty slice; report generation checks for recent history
// first and fails with a distinct error.
func BuildSummary(records []*store.WatchRecord) (string, error) {
	if len(records) == 0 {
		return "", errors.NoRecentHistory("no watch history in the past 7 days")
	}

	var totalSeconds int64
	percentSum := 0

	// First-seen order decides every tie, so all aggregation happens in one
	// left-to-right scan with insertion-ordered keys.
	sourceSeconds := map[string]int64{}
	sourceOrder := []string{}
	categoryCounts := map[string]int{}
	categoryOrder := []string{}
	dayCounts := map[time.Weekday]int{}
	dayOrder := []time.Weekday{}
	hourCounts := map[int]int{}
	hourOrder := []int{}

	var mostRewatched *store.WatchRecord

	for _, record := range records {
		totalSeconds += int64(record.WatchedDuration)
		percentSum += record.WatchPercent

		if _, ok := sourceSeconds[record.SourceName]; !ok {
			sourceOrder = append(sourceOrder, record.SourceName)
		}
		sourceSeconds[record.SourceName] += int64(record.WatchedDuration)

		category := record.Category
		if category == "" {
			category = store.CategoryUncategorized
		}
		if _, ok := categoryCounts[category]; !ok {
			categoryOrder = append(categoryOrder, category)
		}
		categoryCounts[category]++

		watchedAt := time.Unix(record.WatchedAt, 0)
		day := watchedAt.Weekday()
		if _, ok := dayCounts[day]; !ok {
			dayOrder = append(dayOrder, day)
		}
		dayCounts[day]++

		hour := watchedAt.Hour()
		if _, ok := hourCounts[hour]; !ok {
			hourOrder = append(hourOrder, hour)
		}
		hourCounts[hour]++

		if mostRewatched == nil || record.RewatchCount > mostRewatched.RewatchCount {
			mostRewatched = record
		}
	}

	topDay := dayOrder[0]
	for _, day := range dayOrder[1:] {
		if dayCounts[day] > dayCounts[topDay] {
			topDay = day
		}
	}
	topHour := hourOrder[0]
	for _, hour := range hourOrder[1:] {
		if hourCounts[hour] > hourCounts[topHour] {
			topHour = hour
		}
	}

	// Stable sort keeps first-seen order among equal watch times.
	topSources := append([]string{}, sourceOrder...)
	sort.SliceStable(topSources, func(i, j int) bool {
		return sourceSeconds[topSources[i]] > sourceSeconds[topSources[j]]
	})
	if len(topSources) > topSourceCount {
		topSources = topSources[:topSourceCount]
	}

	avgPercent := int(float64(percentSum)/float64(len(records)) + 0.5)

	var b strings.Builder
	fmt.Fprintf(&b, "Videos watched: %d\n", len(records))
	fmt.Fprintf(&b, "Total watch time: %s\n", formatDuration(totalSeconds))
	b.WriteString("Top channels:\n")
	for _, source := range topSources {
		fmt.Fprintf(&b, "- %s (%dm)\n", source, sourceSeconds[source]/60)
	}
	b.WriteString("Category breakdown:\n")
	for _, category := range categoryOrder {
		fmt.Fprintf(&b, "- %s: %d\n", category, categoryCounts[category])
	}
	fmt.Fprintf(&b, "Most rewatched: %s (%d times)\n", mostRewatched.Title, mostRewatched.RewatchCount)
	fmt.Fprintf(&b, "Average watch percent: %d%%\n", avgPercent)
	fmt.Fprintf(&b, "Most active day: %s\n", topDay)
	fmt.Fprintf(&b, "Most active hour: %02d:00\n", topHour)

	return b.String(), nil
}

func formatDuration(totalSeconds int64) string {
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
