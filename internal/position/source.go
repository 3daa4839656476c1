package position

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yegors/superplane/pkg/logger"
)

// ErrSourceClosed is returned when subscribing to a source that has been closed
var ErrSourceClosed = errors.New("position source closed")

// Source delivers position fixes at its own cadence
type Source interface {
	// Name identifies the source in logs and on the fixes it produces
	Name() string

	// Subscribe starts delivering fixes to fn. A second Subscribe replaces the
	// previous callback.
	Subscribe(fn func(Fix)) error

	// Unsubscribe stops delivery. No callback runs after it returns.
	Unsubscribe()
}

// StaticSource reports a fixed, preconfigured position, e.g. the station a
// receiver is installed at. The first fix is delivered immediately on
// subscription, then once per interval.
type StaticSource struct {
	name      string
	latitude  float64
	longitude float64
	accuracy  float64
	interval  time.Duration
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool

	logger *logger.Logger
}

// NewStaticSource creates a source that always reports the same coordinates
func NewStaticSource(name string, lat, lon, accuracyM float64, interval time.Duration, logger *logger.Logger) *StaticSource {
	if interval <= 0 {
		interval = time.Second
	}
	return &StaticSource{
		name:      name,
		latitude:  lat,
		longitude: lon,
		accuracy:  accuracyM,
		interval:  interval,
		now:       time.Now,
		logger:    logger.Named("static-source"),
	}
}

// Name returns the source identifier
func (s *StaticSource) Name() string {
	return s.name
}

// Subscribe starts the delivery goroutine
func (s *StaticSource) Subscribe(fn func(Fix)) error {
	s.Unsubscribe()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSourceClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.run(ctx, done, fn)
	return nil
}

func (s *StaticSource) run(ctx context.Context, done chan struct{}, fn func(Fix)) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		fn(s.fix())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *StaticSource) fix() Fix {
	return Fix{
		Latitude:  s.latitude,
		Longitude: s.longitude,
		Accuracy:  s.accuracy,
		Time:      s.now(),
		Source:    s.name,
	}
}

// Unsubscribe stops the delivery goroutine and waits for it to exit
func (s *StaticSource) Unsubscribe() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close unsubscribes and refuses further subscriptions
func (s *StaticSource) Close() {
	s.Unsubscribe()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// PushSource relays fixes handed to it from outside, such as a client device
// reporting its own position over the API.
type PushSource struct {
	name string
	now  func() time.Time

	mu sync.RWMutex
	fn func(Fix)

	logger *logger.Logger
}

// NewPushSource creates a push-driven source
func NewPushSource(name string, logger *logger.Logger) *PushSource {
	return &PushSource{
		name:   name,
		now:    time.Now,
		logger: logger.Named("push-source"),
	}
}

// Name returns the source identifier
func (p *PushSource) Name() string {
	return p.name
}

// Subscribe sets the callback that receives pushed fixes
func (p *PushSource) Subscribe(fn func(Fix)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fn = fn
	return nil
}

// Unsubscribe drops the callback; later pushes are discarded
func (p *PushSource) Unsubscribe() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fn = nil
}

// Push delivers fix to the subscriber. A missing timestamp is set to now and a
// missing source identifier to the source name. It reports whether anyone was
// listening.
func (p *PushSource) Push(fix Fix) bool {
	if fix.Time.IsZero() {
		fix.Time = p.now()
	}
	if fix.Source == "" {
		fix.Source = p.name
	}

	// Holding the read lock across fn keeps Unsubscribe from returning while a
	// delivery is still in progress
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.fn == nil {
		p.logger.Debug("Dropping fix pushed while unsubscribed", logger.String("source", fix.Source))
		return false
	}
	p.fn(fix)
	return true
}
