package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/superplane/internal/adsb"
	"github.com/yegors/superplane/internal/position"
	"github.com/yegors/superplane/pkg/logger"
)

// Feed returns the aircraft within radiusKm of a position
type Feed interface {
	FetchCandidates(ctx context.Context, fix position.Fix, radiusKm float64) ([]adsb.Candidate, error)
}

// PositionTracker is the part of position.Tracker a task drives
type PositionTracker interface {
	Start()
	Stop()
	Reset()
	Current() (position.Fix, bool)
}

// State is a task lifecycle state
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TaskConfig holds the per-run search parameters
type TaskConfig struct {
	Settle       time.Duration
	RadiusKm     float64
	FetchTimeout time.Duration // zero means no deadline beyond the feed's own
}

// Task is a single closest-aircraft search. It runs at most once and reports
// exactly one Outcome.
type Task struct {
	id      string
	tracker PositionTracker
	feed    Feed
	config  TaskConfig

	mu        sync.Mutex
	state     State
	cancelled bool
	stop      context.CancelFunc
	onOutcome []func(Outcome)
	outcome   Outcome
	startedAt time.Time

	result   chan Outcome
	finished chan struct{}

	logger *logger.Logger
}

// NewTask creates an idle task
func NewTask(tracker PositionTracker, feed Feed, config TaskConfig, log *logger.Logger) *Task {
	id := uuid.NewString()
	return &Task{
		id:       id,
		tracker:  tracker,
		feed:     feed,
		config:   config,
		result:   make(chan Outcome, 1),
		finished: make(chan struct{}),
		logger:   log.Named("search-task").With(logger.String("task_id", id)),
	}
}

// ID returns the task identifier
func (t *Task) ID() string {
	return t.id
}

// State returns the current lifecycle state
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// OnOutcome registers fn to be called once with the outcome, from the task's
// goroutine. Registrations after the task finished are called immediately.
func (t *Task) OnOutcome(fn func(Outcome)) {
	t.mu.Lock()
	if t.state == StateCompleted || t.state == StateCancelled {
		o := t.outcome
		t.mu.Unlock()
		fn(o)
		return
	}
	t.onOutcome = append(t.onOutcome, fn)
	t.mu.Unlock()
}

// Start resets and starts the tracker and runs the search in the background.
// It returns false, doing nothing, unless the task is idle. Cancelling ctx
// cancels the task.
func (t *Task) Start(ctx context.Context) bool {
	t.mu.Lock()
	if t.state != StateIdle {
		t.mu.Unlock()
		return false
	}
	runCtx, stop := context.WithCancel(ctx)
	t.state = StateRunning
	t.stop = stop
	t.startedAt = time.Now()
	t.tracker.Stop()
	t.tracker.Reset()
	t.tracker.Start()
	t.mu.Unlock()

	t.logger.Info("Search started",
		logger.Duration("settle", t.config.Settle),
		logger.Float64("radius_km", t.config.RadiusKm))

	go t.run(runCtx)
	return true
}

// Cancel requests cancellation and stops the tracker. It is observed after the
// settle wait and after the fetch; once Cancel returns true the task reports
// Cancelled and nothing else, and no longer touches the tracker. It is a no-op
// unless the task is running.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	if t.state != StateRunning || t.cancelled {
		t.mu.Unlock()
		return false
	}
	t.cancelled = true
	t.tracker.Stop()
	stop := t.stop
	t.mu.Unlock()

	t.logger.Info("Search cancellation requested")
	stop()
	return true
}

// Result delivers the outcome once. Use Wait when more than one goroutine
// needs it.
func (t *Task) Result() <-chan Outcome {
	return t.result
}

// Done is closed once the outcome has been reported
func (t *Task) Done() <-chan struct{} {
	return t.finished
}

// Wait blocks until the task reports or ctx is done
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.finished:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Outcome returns the reported outcome, if the task has finished
func (t *Task) Outcome() (Outcome, bool) {
	select {
	case <-t.finished:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.outcome, true
	default:
		return Outcome{}, false
	}
}

// running reports whether the task is running and has not been cancelled
func (t *Task) running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateRunning && !t.cancelled
}

// releaseTracker stops the tracker unless the task was cancelled, in which
// case the tracker may already belong to a newer task.
func (t *Task) releaseTracker() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.cancelled {
		t.tracker.Stop()
	}
}

func (t *Task) isCancelled(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled || ctx.Err() != nil
}

func (t *Task) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.releaseTracker()
			t.logger.Error("Search panicked", logger.Any("panic", r))
			fix, _ := t.tracker.Current()
			t.finish(NetworkFailure(fix, fmt.Errorf("search panicked: %v", r)))
		}
	}()

	// Settle: give the sources time to deliver
	timer := time.NewTimer(t.config.Settle)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}
	t.releaseTracker()

	if t.isCancelled(ctx) {
		t.finish(Cancelled())
		return
	}

	fix, ok := t.tracker.Current()
	if !ok {
		t.logger.Info("No position fix arrived during the settle window")
		t.finish(NotFound(nil))
		return
	}

	fetchCtx := ctx
	if t.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, t.config.FetchTimeout)
		defer cancel()
	}

	t.logger.Debug("Fetching candidates",
		logger.Float64("latitude", fix.Latitude),
		logger.Float64("longitude", fix.Longitude),
		logger.Float64("accuracy_m", fix.Accuracy),
		logger.String("source", fix.Source))

	candidates, err := t.feed.FetchCandidates(fetchCtx, fix, t.config.RadiusKm)

	// The fetch can take a while, check again before doing any more work
	if t.isCancelled(ctx) {
		t.finish(Cancelled())
		return
	}

	if err != nil {
		t.logger.Warn("Aircraft feed failed", logger.Error(err))
		t.finish(NetworkFailure(fix, err))
		return
	}
	if len(candidates) == 0 {
		t.finish(NotFound(&fix))
		return
	}

	nearest, dist, ok := adsb.ResolveNearest(fix, candidates)
	if !ok {
		t.logger.Warn("No candidate had a usable position", logger.Int("candidates", len(candidates)))
		t.finish(NotFound(&fix))
		return
	}
	t.finish(Found(nearest, dist, fix))
}

// finish records and reports o. A cancellation that raced past the last
// checkpoint still wins.
func (t *Task) finish(o Outcome) {
	t.mu.Lock()
	if t.state != StateRunning {
		t.mu.Unlock()
		return
	}
	if t.cancelled && o.Kind != OutcomeCancelled {
		o = Cancelled()
	}
	o.TaskID = t.id
	o.StartedAt = t.startedAt
	o.FinishedAt = time.Now()
	if o.Kind == OutcomeCancelled {
		t.state = StateCancelled
	} else {
		t.state = StateCompleted
	}
	t.outcome = o
	listeners := t.onOutcome
	t.onOutcome = nil
	stop := t.stop
	t.mu.Unlock()

	stop()
	t.result <- o
	close(t.result)
	close(t.finished)

	fields := []logger.Field{logger.String("outcome", o.Kind.String())}
	if o.Aircraft != nil {
		fields = append(fields,
			logger.String("icao", o.Aircraft.ICAO),
			logger.String("callsign", o.Aircraft.Callsign),
			logger.Float64("distance_km", o.DistanceKm))
	}
	t.logger.Info("Search finished", fields...)

	for _, fn := range listeners {
		fn(o)
	}
}
