package store

// ConfidenceLevel is the classifier's self-reported confidence for a category.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// IsValidConfidence reports whether s is a known confidence level.
func IsValidConfidence(s string) bool {
	switch ConfidenceLevel(s) {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// CategoryUncategorized is the default category for records the classifier
// has not processed or could not classify.
const CategoryUncategorized = "Uncategorized"

// Categories is the closed set of categories the classifier may assign.
var Categories = []string{
	"Education",
	"Entertainment",
	"Music",
	"Gaming",
	"News",
	"Sports",
	"Technology",
	"Science",
	"Cooking",
	"Travel",
	"Fitness",
	"Comedy",
	"Documentary",
	"Vlogs",
	"Reviews",
	"Tutorials",
	"Kids",
	"Other",
	CategoryUncategorized,
}

// IsValidCategory reports whether s is a member of the closed category set.
func IsValidCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}

// WatchRecord is one qualifying watch per distinct media identity.
// MediaID is the immutable unique key; re-qualification merges into the
// existing record instead of creating a duplicate.
type WatchRecord struct {
	MediaID            string          `json:"mediaId"`
	Title              string          `json:"title"`
	SourceName         string          `json:"sourceName"`
	SourceID           string          `json:"sourceId"`
	ThumbnailURL       string          `json:"thumbnailUrl"`
	WatchedAt          int64           `json:"watchedAt"` // unix seconds of most recent qualifying watch
	WatchedDuration    int             `json:"watchedDuration"`
	TotalDuration      int             `json:"totalDuration"`
	WatchPercent       int             `json:"watchPercent"`
	Autoplay           bool            `json:"autoplay"`
	RewatchCount       int             `json:"rewatchCount"`
	Category           string          `json:"category,omitempty"`
	CategoryConfidence ConfidenceLevel `json:"categoryConfidence,omitempty"`
}

// FindWatchRecord specifies the conditions for listing watch records.
type FindWatchRecord struct {
	MediaID *string
	// WatchedAfter restricts to records with WatchedAt >= the given unix timestamp.
	WatchedAfter *int64
	// Uncategorized restricts to records with no category or CategoryUncategorized.
	Uncategorized bool
	Limit         *int
}

// UpdateWatchRecord specifies a partial update of an existing record.
// Nil fields are left untouched. Updating an absent MediaID is a no-op:
// classification write-backs may race a deletion.
type UpdateWatchRecord struct {
	MediaID            string
	Title              *string
	SourceName         *string
	ThumbnailURL       *string
	Category           *string
	CategoryConfidence *ConfidenceLevel
}

// DeleteWatchRecord specifies the record to delete.
type DeleteWatchRecord struct {
	MediaID string
}

// WatchStats is the aggregate view over all stored records.
type WatchStats struct {
	TotalCount        int          `json:"totalCount"`
	TotalWatchSeconds int64        `json:"totalWatchSeconds"`
	AvgWatchPercent   int          `json:"avgWatchPercent"`
	MostRewatched     *WatchRecord `json:"mostRewatched,omitempty"`
}
