package store

// ReportCache is the single cached weekly report. It is overwritten wholesale
// on each successful generation and cleared on bulk clear.
type ReportCache struct {
	Content     string `json:"content"`
	GeneratedAt int64  `json:"generatedAt"` // unix seconds
}
