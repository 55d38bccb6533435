// Package categorize drains pending classification jobs against the external
// classifier, one at a time, paced by calendar time.
package categorize

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/watchtrail/watchtrail/internal/observability"
	"github.com/watchtrail/watchtrail/plugin/ai"
	"github.com/watchtrail/watchtrail/store"
)

// Categorizer is the slice of the classifier the queue needs.
type Categorizer interface {
	Categorize(ctx context.Context, title, sourceName string) (*ai.Classification, error)
}

// Job is one pending classification request. Jobs are in-memory only and are
// lost on restart; EnqueuePending rebuilds them from the store.
type Job struct {
	MediaID    string
	Title      string
	SourceName string
}

// Runner owns the job queue and the single worker loop that drains it.
type Runner struct {
	store *store.Store
	// classifierFor builds a categorizer bound to an API key. Settings may
	// change between enqueue and dequeue, so the key is resolved per job.
	classifierFor func(apiKey string) Categorizer

	// limiter paces dispatches at one job per second to respect the
	// external rate limit.
	limiter *rate.Limiter

	mu      sync.Mutex
	pending []*Job
	queued  map[string]struct{}
	running bool
}

// NewRunner creates a categorization queue runner.
func NewRunner(st *store.Store, classifierFor func(apiKey string) Categorizer) *Runner {
	return &Runner{
		store:         st,
		classifierFor: classifierFor,
		limiter:       rate.NewLimiter(rate.Every(time.Second), 1),
		queued:        make(map[string]struct{}),
	}
}

// Enqueue appends a job unless one with the same media identity is already
// queued. Returns whether the job was added.
func (r *Runner) Enqueue(job *Job) bool {
	if job == nil || job.MediaID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.queued[job.MediaID]; ok {
		return false
	}
	r.queued[job.MediaID] = struct{}{}
	r.pending = append(r.pending, job)
	return true
}

// Len returns the number of pending jobs.
func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// EnqueuePending scans the store for records with no category or the
// Uncategorized default and enqueues each. Returns how many were added.
func (r *Runner) EnqueuePending(ctx context.Context) (int, error) {
	records, err := r.store.FindUncategorized(ctx)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, record := range records {
		if r.Enqueue(&Job{MediaID: record.MediaID, Title: record.Title, SourceName: record.SourceName}) {
			added++
		}
	}
	return added, nil
}

// Start launches the worker loop. Exactly one loop runs at a time; calling
// Start while one is already draining is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.drain(ctx)
}

func (r *Runner) drain(ctx context.Context) {
	for {
		job := r.pop()
		if job == nil {
			return
		}

		if err := r.limiter.Wait(ctx); err != nil {
			slog.Info("categorization queue stopped", observability.LogFieldQueueLen, r.Len())
			r.stop()
			return
		}

		r.process(ctx, job)
	}
}

// pop dequeues the oldest job, flipping running off when the queue is empty.
func (r *Runner) pop() *Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		r.running = false
		return nil
	}
	job := r.pending[0]
	r.pending = r.pending[1:]
	delete(r.queued, job.MediaID)
	return job
}

func (r *Runner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
}

// process classifies one job. Every failure path degrades to the
// Uncategorized/low default; the queue never stops draining because of one
// bad job.
func (r *Runner) process(ctx context.Context, job *Job) {
	settings, err := r.store.GetSettings(ctx)
	if err != nil {
		slog.Error("failed to read settings for classification", observability.LogFieldMediaID, job.MediaID, "error", err)
		r.writeBack(ctx, job, store.CategoryUncategorized, store.ConfidenceLow)
		return
	}

	// Settings may have changed since enqueue: short-circuit without a
	// network call when AI is off or no key is configured.
	if !settings.AIReady() || r.classifierFor == nil {
		r.writeBack(ctx, job, store.CategoryUncategorized, store.ConfidenceLow)
		return
	}

	classifier := r.classifierFor(settings.APIKey)
	classification, err := classifier.Categorize(ctx, job.Title, job.SourceName)
	if err != nil {
		slog.Warn("classification failed, using default", observability.LogFieldMediaID, job.MediaID, "error", err)
		r.writeBack(ctx, job, store.CategoryUncategorized, store.ConfidenceLow)
		return
	}

	slog.Debug("video classified",
		observability.LogFieldMediaID, job.MediaID,
		"category", classification.Category,
		"confidence", classification.Confidence)
	r.writeBack(ctx, job, classification.Category, classification.Confidence)
}

// writeBack stores the classification result. The record may have been
// deleted meanwhile; the update is then a no-op.
func (r *Runner) writeBack(ctx context.Context, job *Job, category string, confidence store.ConfidenceLevel) {
	err := r.store.UpdateWatchRecord(ctx, &store.UpdateWatchRecord{
		MediaID:            job.MediaID,
		Category:           &category,
		CategoryConfidence: &confidence,
	})
	if err != nil {
		slog.Error("failed to write back classification", observability.LogFieldMediaID, job.MediaID, "error", err)
	}
}
