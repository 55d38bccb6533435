// Package detector decides, once per media identity, whether a playback
// session counts as an intentional watch.
package detector

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/watchtrail/watchtrail/internal/observability"
	"github.com/watchtrail/watchtrail/store"
)

// PlayerObservation is one sample of the abstract player capability. The
// detector never touches a real media element; whatever hosts it supplies
// observations at a fixed cadence.
type PlayerObservation struct {
	MediaID      string
	Title        string
	SourceName   string
	SourceID     string
	ThumbnailURL string

	CurrentTime float64 // seconds into the media
	Duration    float64 // total seconds; 0 while unknown
	Paused      bool
	Ended       bool
	// Hidden reports whether the hosting page is not visible.
	Hidden bool
	// UserInteracted reports whether a pointer or key gesture has been
	// captured since session start.
	UserInteracted bool
}

// WatchEvent is the single qualifying event emitted per media identity.
type WatchEvent struct {
	MediaID         string
	Title           string
	SourceName      string
	SourceID        string
	ThumbnailURL    string
	WatchedAt       time.Time
	WatchedDuration int
	TotalDuration   int
	WatchPercent    int
	Autoplay        bool
	RewatchCount    int
}

// Sampler supplies player observations. A nil observation means no media
// element is available yet.
type Sampler interface {
	Sample(ctx context.Context) (*PlayerObservation, error)
}

// autoplayWindow is how long after arming a playback start may still count
// as autoplay when no user gesture was captured.
const autoplayWindow = 2 * time.Second

// sampleInterval is the production polling cadence. Accumulation assumes one
// sample per second.
const sampleInterval = time.Second

type state int

const (
	stateIdle state = iota
	stateArmed
	stateSampling
	stateQualified
)

// Detector runs the per-media qualification state machine:
// Idle → Armed → Sampling → Qualified (terminal, emits once).
type Detector struct {
	settingsFn func(ctx context.Context) (*store.Settings, error)
	emit       func(ctx context.Context, event *WatchEvent) error

	// now is the clock, overridable in tests.
	now func() time.Time

	state    state
	mediaID  string
	armedAt  time.Time
	settings *store.Settings

	watchedSeconds int
	autoplay       bool
	autoplaySet    bool
}

// New creates a detector. settingsFn supplies the settings snapshot taken
// when a new media identity is armed; emit delivers the qualifying event.
func New(
	settingsFn func(ctx context.Context) (*store.Settings, error),
	emit func(ctx context.Context, event *WatchEvent) error,
) *Detector {
	return &Detector{
		settingsFn: settingsFn,
		emit:       emit,
		now:        time.Now,
		state:      stateIdle,
	}
}

// Run polls the sampler at the fixed cadence until ctx is done.
func (d *Detector) Run(ctx context.Context, sampler Sampler) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			obs, err := sampler.Sample(ctx)
			if err != nil {
				slog.Warn("player sample failed", "error", err)
				continue
			}
			d.Observe(ctx, obs)
		case <-ctx.Done():
			slog.Info("detector stopped")
			return
		}
	}
}

// Observe feeds one sample through the state machine. It returns the emitted
// event when this sample qualified the session, nil otherwise. A nil
// observation means no player is available and leaves the state untouched.
func (d *Detector) Observe(ctx context.Context, obs *PlayerObservation) *WatchEvent {
	if obs == nil || obs.MediaID == "" {
		return nil
	}

	if obs.MediaID != d.mediaID {
		d.arm(ctx, obs.MediaID)
	}

	if d.state == stateArmed && obs.Duration > 0 {
		d.state = stateSampling
	}

	// Autoplay one-shot: fixed at the first playing transition, immutable after.
	if !d.autoplaySet && playing(obs) {
		d.autoplaySet = true
		d.autoplay = !obs.UserInteracted && d.now().Sub(d.armedAt) <= autoplayWindow
	}

	if d.state != stateSampling {
		return nil
	}

	if d.accumulates(obs) {
		d.watchedSeconds++
	}

	return d.evaluate(ctx, obs)
}

// arm resets all counters for a new media identity and snapshots settings.
func (d *Detector) arm(ctx context.Context, mediaID string) {
	d.state = stateArmed
	d.mediaID = mediaID
	d.armedAt = d.now()
	d.watchedSeconds = 0
	d.autoplay = false
	d.autoplaySet = false

	settings, err := d.settingsFn(ctx)
	if err != nil || settings == nil {
		slog.Warn("failed to snapshot settings, using defaults", "error", err)
		settings = store.DefaultSettings()
	}
	d.settings = settings
}

// accumulates reports whether this sample advances watched time. Hidden
// samples are dropped entirely when hidden time does not count; the player's
// own position may still advance, which percent qualification accepts as an
// approximation.
func (d *Detector) accumulates(obs *PlayerObservation) bool {
	if obs.Paused || obs.Ended || obs.Duration <= 0 {
		return false
	}
	if obs.Hidden && !d.settings.CountHiddenTime {
		return false
	}
	return true
}

// evaluate checks both qualification branches and emits at most once.
func (d *Detector) evaluate(ctx context.Context, obs *PlayerObservation) *WatchEvent {
	// Duration can drop back to 0 mid-session while the player reloads
	// metadata; such samples carry no usable position.
	if obs.Duration <= 0 {
		return nil
	}

	percent := math.Min(100, obs.CurrentTime/obs.Duration*100)

	qualifiesByPercent := percent >= float64(d.settings.MinWatchPercent)
	qualifiesByTime := d.watchedSeconds >= d.settings.MinWatchTimeSeconds
	if !qualifiesByPercent && !qualifiesByTime {
		return nil
	}

	d.state = stateQualified

	event := &WatchEvent{
		MediaID:         obs.MediaID,
		Title:           obs.Title,
		SourceName:      obs.SourceName,
		SourceID:        obs.SourceID,
		ThumbnailURL:    obs.ThumbnailURL,
		WatchedAt:       d.now(),
		WatchedDuration: int(math.Min(obs.CurrentTime, obs.Duration)),
		TotalDuration:   int(obs.Duration),
		WatchPercent:    int(percent + 0.5),
		Autoplay:        d.autoplay,
		RewatchCount:    1,
	}

	if err := d.emit(ctx, event); err != nil {
		// No retry: one undeliverable event never blocks future detection.
		slog.Error("failed to deliver watch event", observability.LogFieldMediaID, event.MediaID, "error", err)
	}
	return event
}

func playing(obs *PlayerObservation) bool {
	return !obs.Paused && !obs.Ended && obs.Duration > 0
}
