package store

import (
	"sync"
)

// Section identifies a storage section for change notification.
type Section string

const (
	SectionVideos   Section = "videos"
	SectionSettings Section = "settings"
	SectionReport   Section = "report"
)

// Notifier fans out change notifications keyed by storage section, so
// readers react to writes made by another context instead of polling.
// Notifications are best-effort: a subscriber that is not draining its
// channel misses intermediate signals but always observes the latest one.
type Notifier struct {
	mu   sync.Mutex
	subs map[Section]map[int]chan struct{}
	next int
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		subs: make(map[Section]map[int]chan struct{}),
	}
}

// Subscribe registers interest in a section. The returned channel receives a
// signal after every successful mutation of that section. The cancel func
// must be called to release the subscription.
func (n *Notifier) Subscribe(section Section) (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs[section] == nil {
		n.subs[section] = make(map[int]chan struct{})
	}
	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	n.subs[section][id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs[section], id)
	}
	return ch, cancel
}

// Publish signals all subscribers of a section without blocking.
func (n *Notifier) Publish(section Section) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs[section] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
