package v1

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/watchtrail/watchtrail/internal/errors"
	"github.com/watchtrail/watchtrail/internal/observability"
	"github.com/watchtrail/watchtrail/plugin/ai"
	"github.com/watchtrail/watchtrail/server/runner/categorize"
	"github.com/watchtrail/watchtrail/server/service/report"
	"github.com/watchtrail/watchtrail/store"
)

// Command is the closed set of operations the UI surface may invoke.
type Command string

const (
	CmdVideoWatched         Command = "VIDEO_WATCHED"
	CmdGetSettings          Command = "GET_SETTINGS"
	CmdUpdateSettings       Command = "UPDATE_SETTINGS"
	CmdGenerateWeeklyReport Command = "GENERATE_WEEKLY_REPORT"
	CmdGetReportCache       Command = "GET_REPORT_CACHE"
	CmdTestAPIKey           Command = "TEST_API_KEY"
	CmdCategorizePending    Command = "CATEGORIZE_PENDING"
	CmdClearData            Command = "CLEAR_DATA"
	CmdGetHistory           Command = "GET_HISTORY"
	CmdDeleteHistoryEntry   Command = "DELETE_HISTORY_ENTRY"
	CmdImportHistory        Command = "IMPORT_HISTORY"
	CmdExportHistory        Command = "EXPORT_HISTORY"
	CmdGetStats             Command = "GET_STATS"
)

// Result is the uniform envelope every command returns. No error crosses the
// message boundary without being converted into one of these.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(data any) Result {
	return Result{Success: true, Data: data}
}

func fail(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// skipped marks an event the orchestrator deliberately ignored.
const skipped = "skipped"

// ClassifierService is the slice of the classifier the dispatcher needs.
type ClassifierService interface {
	Categorize(ctx context.Context, title, sourceName string) (*ai.Classification, error)
	WeeklyReport(ctx context.Context, summary string) (string, error)
	VerifyKey(ctx context.Context) error
}

// reportWindow is how far back weekly report generation looks.
const reportWindow = 7 * 24 * time.Hour

// Dispatcher routes commands to store, queue and classifier.
type Dispatcher struct {
	store *store.Store
	queue *categorize.Runner
	// classifierFor builds a classifier bound to an API key; nil disables
	// every network-backed command.
	classifierFor func(apiKey string) ClassifierService
	logger        *slog.Logger

	// runCtx outlives individual requests; background draining started from
	// a request must not die with it.
	runCtx context.Context

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewDispatcher creates a command dispatcher.
func NewDispatcher(
	runCtx context.Context,
	st *store.Store,
	queue *categorize.Runner,
	classifierFor func(apiKey string) ClassifierService,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:         st,
		queue:         queue,
		classifierFor: classifierFor,
		logger:        logger,
		runCtx:        runCtx,
		now:           time.Now,
	}
}

// Handle executes one command. The switch is exhaustive over Command; an
// unknown tag is an invalid argument, never a panic.
func (d *Dispatcher) Handle(ctx context.Context, command Command, payload json.RawMessage) Result {
	reqCtx := observability.NewRequestContext(d.logger, string(command))

	var result Result
	switch command {
	case CmdVideoWatched:
		result = d.handleVideoWatched(ctx, payload)
	case CmdGetSettings:
		result = d.handleGetSettings(ctx)
	case CmdUpdateSettings:
		result = d.handleUpdateSettings(ctx, payload)
	case CmdGenerateWeeklyReport:
		result = d.handleGenerateWeeklyReport(ctx)
	case CmdGetReportCache:
		result = d.handleGetReportCache(ctx)
	case CmdTestAPIKey:
		result = d.handleTestAPIKey(ctx, payload)
	case CmdCategorizePending:
		result = d.handleCategorizePending(ctx)
	case CmdClearData:
		result = d.handleClearData(ctx)
	case CmdGetHistory:
		result = d.handleGetHistory(ctx)
	case CmdDeleteHistoryEntry:
		result = d.handleDeleteHistoryEntry(ctx, payload)
	case CmdImportHistory:
		result = d.handleImportHistory(ctx, payload)
	case CmdExportHistory:
		result = d.handleExportHistory(ctx)
	case CmdGetStats:
		result = d.handleGetStats(ctx)
	default:
		result = fail(errors.InvalidArgument("unknown command: " + string(command)))
	}

	if result.Success {
		reqCtx.Info("command handled", slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	} else {
		reqCtx.Warn("command failed",
			slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
			slog.String("error", result.Error))
	}
	return result
}

func (d *Dispatcher) handleVideoWatched(ctx context.Context, payload json.RawMessage) Result {
	settings, err := d.store.GetSettings(ctx)
	if err != nil {
		return fail(errors.StorageFailure("failed to read settings", err))
	}
	if !settings.TrackingEnabled {
		return ok(skipped)
	}

	var event store.WatchRecord
	if err := json.Unmarshal(payload, &event); err != nil {
		return fail(errors.InvalidArgument("malformed watch event"))
	}
	if event.MediaID == "" {
		return fail(errors.InvalidArgument("watch event missing media id"))
	}
	if event.Autoplay && !settings.TrackAutoplay {
		return ok(skipped)
	}

	if event.WatchedAt == 0 {
		event.WatchedAt = d.now().Unix()
	}
	// Classification always starts blank; the queue fills it in later.
	event.Category = ""
	event.CategoryConfidence = ""

	record, err := d.store.UpsertWatchRecord(ctx, &event)
	if err != nil {
		return fail(errors.StorageFailure("failed to save watch record", err))
	}

	if settings.AIReady() {
		d.queue.Enqueue(&categorize.Job{
			MediaID:    record.MediaID,
			Title:      record.Title,
			SourceName: record.SourceName,
		})
		d.queue.Start(d.runCtx)
	}

	return ok(record)
}

func (d *Dispatcher) handleGetSettings(ctx context.Context) Result {
	settings, err := d.store.GetSettings(ctx)
	if err != nil {
		return fail(errors.StorageFailure("failed to read settings", err))
	}
	return ok(settings)
}

func (d *Dispatcher) handleUpdateSettings(ctx context.Context, payload json.RawMessage) Result {
	var incoming store.Settings
	if err := json.Unmarshal(payload, &incoming); err != nil {
		return fail(errors.InvalidArgument("malformed settings"))
	}
	updated, err := d.store.UpdateSettings(ctx, &incoming)
	if err != nil {
		return fail(errors.StorageFailure("failed to save settings", err))
	}
	return ok(updated)
}

func (d *Dispatcher) handleGenerateWeeklyReport(ctx context.Context) Result {
	settings, err := d.store.GetSettings(ctx)
	if err != nil {
		return fail(errors.StorageFailure("failed to read settings", err))
	}
	if !settings.AIReady() || d.classifierFor == nil {
		return fail(errors.AIDisabled("AI features are disabled or no API key is configured"))
	}

	cutoff := d.now().Add(-reportWindow).Unix()
	records, err := d.store.ListWatchRecords(ctx, &store.FindWatchRecord{WatchedAfter: &cutoff})
	if err != nil {
		return fail(errors.StorageFailure("failed to read watch history", err))
	}

	// The no-history check runs before any classifier work.
	summary, err := report.BuildSummary(records)
	if err != nil {
		return fail(err)
	}

	prose, err := d.classifierFor(settings.APIKey).WeeklyReport(ctx, summary)
	if err != nil {
		// There is no safe textual default for a report.
		return fail(errors.ClassifierUnavailable("failed to generate weekly report", err))
	}

	cache, err := d.store.SetReportCache(ctx, &store.ReportCache{
		Content:     prose,
		GeneratedAt: d.now().Unix(),
	})
	if err != nil {
		return fail(errors.StorageFailure("failed to cache report", err))
	}
	return ok(cache)
}

func (d *Dispatcher) handleGetReportCache(ctx context.Context) Result {
	cache, err := d.store.GetReportCache(ctx)
	if err != nil {
		return fail(errors.StorageFailure("failed to read report cache", err))
	}
	// Absent cache resolves successfully with empty data.
	return ok(cache)
}

func (d *Dispatcher) handleTestAPIKey(ctx context.Context, payload json.RawMessage) Result {
	var body struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Key == "" {
		return fail(errors.InvalidArgument("missing API key"))
	}
	if d.classifierFor == nil {
		return fail(errors.AIDisabled("classifier is not configured"))
	}
	if err := d.classifierFor(body.Key).VerifyKey(ctx); err != nil {
		return fail(errors.ClassifierUnavailable("API key verification failed", err))
	}
	return ok("valid")
}

func (d *Dispatcher) handleCategorizePending(ctx context.Context) Result {
	added, err := d.queue.EnqueuePending(ctx)
	if err != nil {
		return fail(errors.StorageFailure("failed to scan for uncategorized records", err))
	}
	d.queue.Start(d.runCtx)
	return ok(map[string]int{"queued": added, "pending": d.queue.Len()})
}

func (d *Dispatcher) handleClearData(ctx context.Context) Result {
	if err := d.store.ClearData(ctx); err != nil {
		return fail(errors.StorageFailure("failed to clear data", err))
	}
	return ok("cleared")
}

func (d *Dispatcher) handleGetHistory(ctx context.Context) Result {
	records, err := d.store.ListWatchRecords(ctx, &store.FindWatchRecord{})
	if err != nil {
		return fail(errors.StorageFailure("failed to read watch history", err))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].WatchedAt > records[j].WatchedAt
	})
	return ok(records)
}

func (d *Dispatcher) handleDeleteHistoryEntry(ctx context.Context, payload json.RawMessage) Result {
	var body struct {
		MediaID string `json:"mediaId"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.MediaID == "" {
		return fail(errors.InvalidArgument("missing media id"))
	}
	if err := d.store.DeleteWatchRecord(ctx, &store.DeleteWatchRecord{MediaID: body.MediaID}); err != nil {
		return fail(errors.StorageFailure("failed to delete watch record", err))
	}
	return ok("deleted")
}

func (d *Dispatcher) handleImportHistory(ctx context.Context, payload json.RawMessage) Result {
	var incoming []*store.WatchRecord
	if err := json.Unmarshal(payload, &incoming); err != nil {
		// A malformed payload is rejected as a whole, never partially applied.
		return fail(errors.InvalidArgument("import payload must be a JSON array of watch records"))
	}
	merged, skippedCount, err := d.store.ImportMergeWatchRecords(ctx, incoming)
	if err != nil {
		return fail(errors.StorageFailure("failed to import watch records", err))
	}
	return ok(map[string]int{"imported": merged, "skipped": skippedCount})
}

func (d *Dispatcher) handleExportHistory(ctx context.Context) Result {
	records, err := d.store.ListWatchRecords(ctx, &store.FindWatchRecord{})
	if err != nil {
		return fail(errors.StorageFailure("failed to read watch history", err))
	}
	return ok(records)
}

func (d *Dispatcher) handleGetStats(ctx context.Context) Result {
	stats, err := d.store.WatchStats(ctx)
	if err != nil {
		return fail(errors.StorageFailure("failed to compute stats", err))
	}
	return ok(stats)
}
