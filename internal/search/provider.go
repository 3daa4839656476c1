package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yegors/superplane/pkg/logger"
)

// RadiusSource supplies the user's configured search radius
type RadiusSource interface {
	SearchRadiusKm(ctx context.Context) (float64, error)
}

// HistoryRecorder persists finished searches
type HistoryRecorder interface {
	RecordOutcome(ctx context.Context, outcome Outcome) error
}

// ErrProviderClosed is returned by Start after Close
var ErrProviderClosed = errors.New("search provider closed")

const recordTimeout = 5 * time.Second

// Provider owns the search tasks for one tracker. At most one task runs at a
// time.
type Provider struct {
	tracker  PositionTracker
	feed     Feed
	defaults TaskConfig
	radius   RadiusSource
	history  HistoryRecorder

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	current   *Task
	last      *Outcome
	listeners []func(Outcome)
	closed    bool

	logger *logger.Logger
}

// NewProvider creates a provider. Tasks run under ctx, so cancelling it aborts
// any running search.
func NewProvider(ctx context.Context, tracker PositionTracker, feed Feed, defaults TaskConfig, logger *logger.Logger) *Provider {
	ctx, cancel := context.WithCancel(ctx)
	return &Provider{
		tracker:  tracker,
		feed:     feed,
		defaults: defaults,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.Named("search"),
	}
}

// SetRadiusSource makes every new task read its radius from r. The default
// radius is used when r fails.
func (p *Provider) SetRadiusSource(r RadiusSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.radius = r
}

// SetHistory records every outcome into h
func (p *Provider) SetHistory(h HistoryRecorder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = h
}

// OnOutcome registers fn to be called with the outcome of every task
func (p *Provider) OnOutcome(fn func(Outcome)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Start launches a new search. When one is already running it is returned
// with started set to false. A cancelled task no longer counts as running,
// even before it has reported.
func (p *Provider) Start(ctx context.Context) (task *Task, started bool, err error) {
	cfg := p.taskConfig(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, false, ErrProviderClosed
	}
	if p.current != nil && p.current.running() {
		return p.current, false, nil
	}

	task = NewTask(p.tracker, p.feed, cfg, p.logger)
	task.OnOutcome(p.report)
	p.current = task
	task.Start(p.ctx)
	return task, true, nil
}

func (p *Provider) taskConfig(ctx context.Context) TaskConfig {
	cfg := p.defaults

	p.mu.Lock()
	radius := p.radius
	p.mu.Unlock()

	if radius == nil {
		return cfg
	}
	km, err := radius.SearchRadiusKm(ctx)
	if err != nil {
		p.logger.Warn("Failed to read search radius, using default",
			logger.Error(err),
			logger.Float64("radius_km", cfg.RadiusKm))
		return cfg
	}
	if km > 0 {
		cfg.RadiusKm = km
	}
	return cfg
}

// Abort cancels the running search, if any
func (p *Provider) Abort() bool {
	p.mu.Lock()
	task := p.current
	p.mu.Unlock()

	if task == nil {
		return false
	}
	return task.Cancel()
}

// Active returns the running task, or nil
func (p *Provider) Active() *Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && p.current.running() {
		return p.current
	}
	return nil
}

// Last returns the most recent outcome
func (p *Provider) Last() (Outcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Outcome{}, false
	}
	return *p.last, true
}

func (p *Provider) report(o Outcome) {
	p.mu.Lock()
	history := p.history
	p.mu.Unlock()

	// Recorded before it becomes visible through Last
	if history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := history.RecordOutcome(ctx, o); err != nil {
			p.logger.Error("Failed to record search outcome",
				logger.Error(err),
				logger.String("task_id", o.TaskID))
		}
		cancel()
	}

	p.mu.Lock()
	p.last = &o
	listeners := append([]func(Outcome){}, p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(o)
	}
}

// Close aborts any running search and waits for it to report, or for ctx
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	task := p.current
	p.mu.Unlock()

	p.cancel()
	if task == nil {
		return nil
	}
	select {
	case <-task.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
