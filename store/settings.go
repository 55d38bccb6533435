package store

// RetentionPolicy is the configured maximum age of stored records.
type RetentionPolicy string

const (
	RetentionAll         RetentionPolicy = "all"
	RetentionThreeMonths RetentionPolicy = "3m"
	RetentionSixMonths   RetentionPolicy = "6m"
	RetentionOneYear     RetentionPolicy = "1y"
)

// RetentionDays returns the window size in days, or 0 for RetentionAll.
func (p RetentionPolicy) RetentionDays() int {
	switch p {
	case RetentionThreeMonths:
		return 90
	case RetentionSixMonths:
		return 182
	case RetentionOneYear:
		return 365
	}
	return 0
}

// IsValid reports whether p is a known retention policy.
func (p RetentionPolicy) IsValid() bool {
	switch p {
	case RetentionAll, RetentionThreeMonths, RetentionSixMonths, RetentionOneYear:
		return true
	}
	return false
}

// Settings is the process-wide mutable configuration, persisted as a single row.
type Settings struct {
	MinWatchPercent     int             `json:"minWatchPercent"`
	MinWatchTimeSeconds int             `json:"minWatchTimeSeconds"`
	TrackAutoplay       bool            `json:"trackAutoplay"`
	CountHiddenTime     bool            `json:"countHiddenTime"`
	DataRetention       RetentionPolicy `json:"dataRetention"`
	AIFeaturesEnabled   bool            `json:"aiFeaturesEnabled"`
	APIKey              string          `json:"apiKey"`
	TrackingEnabled     bool            `json:"trackingEnabled"`
}

const (
	minWatchPercentFloor = 10
	minWatchPercentCeil  = 80
	minWatchTimeFloor    = 60
)

// DefaultSettings seeds the settings row on first run.
func DefaultSettings() *Settings {
	return &Settings{
		MinWatchPercent:     30,
		MinWatchTimeSeconds: 180,
		TrackAutoplay:       false,
		CountHiddenTime:     false,
		DataRetention:       RetentionAll,
		AIFeaturesEnabled:   false,
		APIKey:              "",
		TrackingEnabled:     true,
	}
}

// Sanitize validates incoming values against their allowed ranges. An
// out-of-range value falls back to the corresponding value in prev, not to
// the hardcoded default. prev must itself be valid (it is either the seeded
// default or the output of an earlier Sanitize).
func (s *Settings) Sanitize(prev *Settings) *Settings {
	if prev == nil {
		prev = DefaultSettings()
	}
	out := *s
	if out.MinWatchPercent < minWatchPercentFloor || out.MinWatchPercent > minWatchPercentCeil {
		out.MinWatchPercent = prev.MinWatchPercent
	}
	// The time floor has no upper bound; any watch-time threshold of at
	// least a minute is accepted.
	if out.MinWatchTimeSeconds < minWatchTimeFloor {
		out.MinWatchTimeSeconds = prev.MinWatchTimeSeconds
	}
	if !out.DataRetention.IsValid() {
		out.DataRetention = prev.DataRetention
	}
	return &out
}

// AIReady reports whether classification can attempt a network call.
func (s *Settings) AIReady() bool {
	return s.AIFeaturesEnabled && s.APIKey != ""
}
