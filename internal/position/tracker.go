package position

import (
	"sync"

	"github.com/yegors/superplane/pkg/logger"
)

// Tracker holds the best fix seen since it was last started. Sources deliver
// fixes through Update from their own goroutines.
type Tracker struct {
	sources []Source

	// lifecycleMu serializes Start and Stop
	lifecycleMu sync.Mutex

	// acceptMu serializes accept+notify so observers see fixes in acceptance order
	acceptMu sync.Mutex

	mu           sync.Mutex
	started      bool
	best         *Fix
	observers    []observer
	nextObserver int

	logger *logger.Logger
}

type observer struct {
	id int
	fn func(Fix)
}

// NewTracker creates a tracker fed by the given sources
func NewTracker(logger *logger.Logger, sources ...Source) *Tracker {
	return &Tracker{
		sources: sources,
		logger:  logger.Named("tracker"),
	}
}

// Start clears the held fix and subscribes to every source. Calling Start on a
// started tracker does nothing.
func (t *Tracker) Start() {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()

	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.best = nil
	t.mu.Unlock()

	for _, src := range t.sources {
		if err := src.Subscribe(t.deliver); err != nil {
			// A dead source only means fewer fixes, never a tracker failure
			t.logger.Warn("Failed to subscribe to position source",
				logger.String("source", src.Name()),
				logger.Error(err))
			continue
		}
		t.logger.Debug("Subscribed to position source", logger.String("source", src.Name()))
	}
}

// Stop unsubscribes from every source. The held fix stays readable.
func (t *Tracker) Stop() {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()

	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return
	}
	t.started = false
	t.mu.Unlock()

	for _, src := range t.sources {
		src.Unsubscribe()
	}

	if best, ok := t.Current(); ok {
		t.logger.Debug("Tracker stopped",
			logger.String("source", best.Source),
			logger.Float64("accuracy_m", best.Accuracy))
	} else {
		t.logger.Debug("Tracker stopped without a fix")
	}
}

// Reset drops the held fix without touching subscriptions
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.best = nil
	t.mu.Unlock()
}

// Running reports whether the tracker is subscribed to its sources
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// Update offers a fix to the tracker. It returns true if the fix became the new
// best fix. Fixes offered while the tracker is stopped are ignored.
// Safe for concurrent use. Observers run on the caller's goroutine and must not
// call Update themselves.
func (t *Tracker) Update(fix Fix) bool {
	t.acceptMu.Lock()
	defer t.acceptMu.Unlock()

	t.mu.Lock()
	if !t.started || !IsBetter(fix, t.best) {
		t.mu.Unlock()
		return false
	}
	accepted := fix
	t.best = &accepted
	observers := make([]observer, len(t.observers))
	copy(observers, t.observers)
	t.mu.Unlock()

	for _, o := range observers {
		o.fn(accepted)
	}
	return true
}

func (t *Tracker) deliver(fix Fix) {
	if t.Update(fix) {
		t.logger.Debug("Better fix accepted",
			logger.String("source", fix.Source),
			logger.Float64("accuracy_m", fix.Accuracy),
			logger.Time("time", fix.Time))
	}
}

// Current returns the held fix, if any
func (t *Tracker) Current() (Fix, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.best == nil {
		return Fix{}, false
	}
	return *t.best, true
}

// Observe registers fn to be called with every newly accepted fix. The
// returned function removes the registration.
func (t *Tracker) Observe(fn func(Fix)) (cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextObserver
	t.nextObserver++
	t.observers = append(t.observers, observer{id: id, fn: fn})

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, o := range t.observers {
			if o.id == id {
				t.observers = append(t.observers[:i:i], t.observers[i+1:]...)
				return
			}
		}
	}
}
