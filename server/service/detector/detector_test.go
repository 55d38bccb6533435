package detector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/watchtrail/watchtrail/store"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type capture struct {
	events []*WatchEvent
	fail   bool
}

func (c *capture) emit(_ context.Context, event *WatchEvent) error {
	if c.fail {
		return errors.New("collaborator unavailable")
	}
	c.events = append(c.events, event)
	return nil
}

func newTestDetector(t *testing.T, settings *store.Settings) (*Detector, *capture, *fakeClock) {
	t.Helper()
	if settings == nil {
		settings = store.DefaultSettings()
	}
	sink := &capture{}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	d := New(
		func(context.Context) (*store.Settings, error) { return settings, nil },
		sink.emit,
	)
	d.now = clock.Now
	return d, sink, clock
}

// sample builds a visible, playing, user-initiated observation.
func sample(mediaID string, current, duration float64) *PlayerObservation {
	return &PlayerObservation{
		MediaID:        mediaID,
		Title:          "title",
		SourceName:     "source",
		CurrentTime:    current,
		Duration:       duration,
		UserInteracted: true,
	}
}

// play advances the session one second at a time from the current position.
func play(ctx context.Context, d *Detector, clock *fakeClock, mediaID string, from, seconds int, duration float64) *WatchEvent {
	var emitted *WatchEvent
	for i := 1; i <= seconds; i++ {
		clock.Advance(time.Second)
		if event := d.Observe(ctx, sample(mediaID, float64(from+i), duration)); event != nil && emitted == nil {
			emitted = event
		}
	}
	return emitted
}

func thresholds(percent, seconds int) *store.Settings {
	s := store.DefaultSettings()
	s.MinWatchPercent = percent
	s.MinWatchTimeSeconds = seconds
	return s
}

func TestQualifiesByPercent(t *testing.T) {
	ctx := context.Background()
	d, sink, clock := newTestDetector(t, thresholds(40, 300))

	// 245s of a 600s video is 40.8% >= 40%.
	event := play(ctx, d, clock, "vid", 0, 245, 600)
	require.NotNil(t, event)
	require.Len(t, sink.events, 1)
	require.Equal(t, "vid", event.MediaID)
	require.Equal(t, 245, event.WatchedDuration)
	require.Equal(t, 600, event.TotalDuration)
	require.Equal(t, 41, event.WatchPercent)
	require.Equal(t, 1, event.RewatchCount)
}

func TestBelowBothThresholdsDoesNotQualify(t *testing.T) {
	ctx := context.Background()
	d, sink, clock := newTestDetector(t, thresholds(40, 300))

	// 239s is 39.8% and under the 300s floor.
	event := play(ctx, d, clock, "vid", 0, 239, 600)
	require.Nil(t, event)
	require.Empty(t, sink.events)
}

func TestQualifiesByTimeBranch(t *testing.T) {
	ctx := context.Background()
	d, sink, clock := newTestDetector(t, thresholds(40, 300))

	// A very long video: 300 watched seconds is only 10% of the duration but
	// crosses the absolute time floor.
	event := play(ctx, d, clock, "vid", 0, 300, 3000)
	require.NotNil(t, event)
	require.Len(t, sink.events, 1)
	require.Equal(t, 10, event.WatchPercent)
}

func TestAtMostOnceQualification(t *testing.T) {
	ctx := context.Background()
	d, sink, clock := newTestDetector(t, thresholds(40, 300))

	require.NotNil(t, play(ctx, d, clock, "vid", 0, 245, 600))
	// Keep crossing the threshold; no further events.
	play(ctx, d, clock, "vid", 245, 200, 600)
	clock.Advance(time.Second)
	d.Observe(ctx, &PlayerObservation{MediaID: "vid", CurrentTime: 600, Duration: 600, Ended: true, UserInteracted: true})
	require.Len(t, sink.events, 1)
}

func TestIdentityChangeResetsSession(t *testing.T) {
	ctx := context.Background()
	d, sink, clock := newTestDetector(t, thresholds(40, 300))

	require.NotNil(t, play(ctx, d, clock, "first", 0, 245, 600))
	// A new media identity re-arms and can qualify again.
	require.NotNil(t, play(ctx, d, clock, "second", 0, 245, 600))
	require.Len(t, sink.events, 2)
	require.Equal(t, "first", sink.events[0].MediaID)
	require.Equal(t, "second", sink.events[1].MediaID)
}

func TestQualifiesOnEndedEvent(t *testing.T) {
	ctx := context.Background()
	d, sink, clock := newTestDetector(t, thresholds(40, 300))

	play(ctx, d, clock, "vid", 0, 100, 600)
	require.Empty(t, sink.events)

	// A seek to the end followed by the terminal ended event evaluates the
	// percent branch even though no time accumulated at that position.
	clock.Advance(time.Second)
	event := d.Observe(ctx, &PlayerObservation{
		MediaID: "vid", CurrentTime: 600, Duration: 600, Ended: true, UserInteracted: true,
	})
	require.NotNil(t, event)
	require.Equal(t, 100, event.WatchPercent)
	require.Equal(t, 600, event.WatchedDuration)
}

func TestHiddenSamplesDroppedWhenHiddenTimeDisabled(t *testing.T) {
	ctx := context.Background()
	settings := thresholds(80, 120)
	settings.CountHiddenTime = false
	d, sink, clock := newTestDetector(t, settings)

	// 150 hidden seconds: position advances but no time accumulates and 25%
	// stays below the percent threshold.
	for i := 1; i <= 150; i++ {
		clock.Advance(time.Second)
		obs := sample("vid", float64(i), 600)
		obs.Hidden = true
		d.Observe(ctx, obs)
	}
	require.Empty(t, sink.events)
	require.Zero(t, d.watchedSeconds)

	// Back to visible: accumulation resumes and the time branch fires.
	event := play(ctx, d, clock, "vid", 150, 120, 600)
	require.NotNil(t, event)
	require.Len(t, sink.events, 1)
}

func TestHiddenSamplesCountWhenHiddenTimeEnabled(t *testing.T) {
	ctx := context.Background()
	settings := thresholds(80, 120)
	settings.CountHiddenTime = true
	d, sink, clock := newTestDetector(t, settings)

	for i := 1; i <= 120; i++ {
		clock.Advance(time.Second)
		obs := sample("vid", float64(i), 600)
		obs.Hidden = true
		d.Observe(ctx, obs)
	}
	require.Len(t, sink.events, 1)
}

func TestPausedSamplesDoNotAccumulate(t *testing.T) {
	ctx := context.Background()
	d, _, clock := newTestDetector(t, thresholds(40, 300))

	for i := 0; i < 50; i++ {
		clock.Advance(time.Second)
		obs := sample("vid", 10, 600)
		obs.Paused = true
		d.Observe(ctx, obs)
	}
	require.Zero(t, d.watchedSeconds)
}

func TestAutoplayFlaggedWithinWindow(t *testing.T) {
	ctx := context.Background()
	d, sink, clock := newTestDetector(t, thresholds(10, 60))

	// First playing sample arrives 1s after arming with no user gesture.
	clock.Advance(time.Second)
	obs := sample("vid", 1, 10)
	obs.UserInteracted = false
	d.Observe(ctx, obs)

	for i := 2; i <= 5; i++ {
		clock.Advance(time.Second)
		next := sample("vid", float64(i), 10)
		next.UserInteracted = false
		d.Observe(ctx, next)
	}
	require.Len(t, sink.events, 1)
	require.True(t, sink.events[0].Autoplay)
}

func TestAutoplayNotFlaggedAfterWindow(t *testing.T) {
	ctx := context.Background()
	d, sink, clock := newTestDetector(t, thresholds(10, 60))

	// Arm with an unplayable sample, then start playing 5s later.
	d.Observe(ctx, &PlayerObservation{MediaID: "vid"})
	clock.Advance(5 * time.Second)
	obs := sample("vid", 1, 10)
	obs.UserInteracted = false
	d.Observe(ctx, obs)

	play(ctx, d, clock, "vid", 1, 4, 10)
	require.Len(t, sink.events, 1)
	require.False(t, sink.events[0].Autoplay)
}

func TestAutoplayNotFlaggedWithUserGesture(t *testing.T) {
	ctx := context.Background()
	d, sink, clock := newTestDetector(t, thresholds(10, 60))

	clock.Advance(time.Second)
	d.Observe(ctx, sample("vid", 1, 10))
	play(ctx, d, clock, "vid", 1, 4, 10)
	require.Len(t, sink.events, 1)
	require.False(t, sink.events[0].Autoplay)
}

func TestAutoplayFlagImmutableAfterFirstPlay(t *testing.T) {
	ctx := context.Background()
	d, _, clock := newTestDetector(t, thresholds(99, 9999))

	clock.Advance(time.Second)
	obs := sample("vid", 1, 600)
	obs.UserInteracted = false
	d.Observe(ctx, obs)
	require.True(t, d.autoplay)

	// Later interaction does not clear the flag.
	clock.Advance(time.Second)
	d.Observe(ctx, sample("vid", 2, 600))
	require.True(t, d.autoplay)
}

func TestEmitFailureIsDroppedNotRetried(t *testing.T) {
	ctx := context.Background()
	d, sink, clock := newTestDetector(t, thresholds(40, 300))
	sink.fail = true

	event := play(ctx, d, clock, "vid", 0, 245, 600)
	require.NotNil(t, event) // qualification happened
	require.Empty(t, sink.events)

	// Detection of a new identity is not blocked by the dropped event.
	sink.fail = false
	require.NotNil(t, play(ctx, d, clock, "next", 0, 245, 600))
	require.Len(t, sink.events, 1)
}

func TestDurationLostMidSessionDoesNotQualify(t *testing.T) {
	ctx := context.Background()
	d, sink, clock := newTestDetector(t, thresholds(40, 300))

	play(ctx, d, clock, "vid", 0, 10, 600)
	require.Equal(t, stateSampling, d.state)

	// The player reloads and briefly reports no duration while the position
	// survives. No event, no spurious 100% qualification.
	clock.Advance(time.Second)
	event := d.Observe(ctx, &PlayerObservation{
		MediaID: "vid", CurrentTime: 11, Duration: 0, UserInteracted: true,
	})
	require.Nil(t, event)
	require.Empty(t, sink.events)

	// The session still qualifies once metadata is back.
	event = play(ctx, d, clock, "vid", 11, 235, 600)
	require.NotNil(t, event)
	require.Len(t, sink.events, 1)
	require.Equal(t, 600, event.TotalDuration)
}

func TestNilObservationLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDetector(t, nil)

	require.Nil(t, d.Observe(ctx, nil))
	require.Equal(t, stateIdle, d.state)
}

func TestArmedWaitsForKnownDuration(t *testing.T) {
	ctx := context.Background()
	d, _, clock := newTestDetector(t, thresholds(10, 60))

	// Media identity known but duration not yet available.
	d.Observe(ctx, &PlayerObservation{MediaID: "vid"})
	require.Equal(t, stateArmed, d.state)

	clock.Advance(time.Second)
	d.Observe(ctx, sample("vid", 1, 600))
	require.Equal(t, stateSampling, d.state)
}
