package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hazz-dev/watchdog/internal/config"
	"github.com/hazz-dev/watchdog/internal/probe"
	"github.com/hazz-dev/watchdog/internal/storage"
)

// Store defines the storage operations required by the scheduler.
type Store interface {
	Append(ctx context.Context, r probe.Result) error
	Latest(ctx context.Context, target string) (*probe.Result, error)
}

// record tracks the schedule state of one target. Records are owned
// exclusively by the loop goroutine; dispatch goroutines report back through
// the completed channel instead of touching them.
type record struct {
	target  config.Target
	nextDue time.Time
	running bool
}

// Scheduler triggers probes from a single tick loop, each target on its own
// interval. A target with a probe still in flight is skipped on subsequent
// ticks, so no target ever has two concurrent probes and no two results share
// a (target, probed_at) key.
type Scheduler struct {
	records    []*record
	store      Store
	prober     probe.Prober
	tick       time.Duration
	onResult   func(probe.Result, *probe.Outcome)
	onStoreErr func(error)
	logger     *slog.Logger
	completed  chan int
	wg         sync.WaitGroup
}

// New creates a new Scheduler. Pass nil logger to use the default logger.
func New(targets []config.Target, store Store, prober probe.Prober, tick time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if tick <= 0 {
		tick = time.Second
	}
	records := make([]*record, len(targets))
	for i, t := range targets {
		records[i] = &record{target: t}
	}
	return &Scheduler{
		records: records,
		store:   store,
		prober:  prober,
		tick:    tick,
		logger:  logger,
		// Buffered to one slot per target: with at most one probe in flight
		// per target, completion sends never block, even after the loop exits.
		completed: make(chan int, len(targets)),
	}
}

// SetOnResult sets the callback invoked after each recorded probe.
// result is the current probe result; prev is the previous outcome (nil on
// first probe of a target).
func (s *Scheduler) SetOnResult(fn func(probe.Result, *probe.Outcome)) {
	s.onResult = fn
}

// SetOnStoreError sets the callback invoked when persisting a result fails.
func (s *Scheduler) SetOnStoreError(fn func(error)) {
	s.onStoreErr = fn
}

// Start launches the tick loop. It is non-blocking; cancel ctx to stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Wait blocks until the loop and all in-flight probes have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	// Every target starts due, so the first pass probes immediately.
	s.dispatchDue(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case i := <-s.completed:
			s.records[i].running = false
		case now := <-ticker.C:
			s.dispatchDue(ctx, now)
		}
	}
}

// dispatchDue fires a probe for every idle target whose due time has passed.
// The next due time advances from the probe start, not its completion, so a
// probe slower than its interval costs at most one missed cycle.
func (s *Scheduler) dispatchDue(ctx context.Context, now time.Time) {
	for i, rec := range s.records {
		if rec.running || now.Before(rec.nextDue) {
			continue
		}
		rec.running = true
		rec.nextDue = now.Add(rec.target.Interval.Duration)
		s.wg.Add(1)
		go s.runProbe(ctx, i, rec.target)
	}
}

func (s *Scheduler) runProbe(ctx context.Context, idx int, t config.Target) {
	defer s.wg.Done()
	defer func() { s.completed <- idx }()

	// Fetch the previous outcome before probing, for the onResult callback.
	prev, err := s.store.Latest(ctx, t.Name)
	if err != nil {
		s.logger.Warn("fetching previous result", "target", t.Name, "error", err)
	}

	result := s.prober.Probe(ctx, t)

	if ctx.Err() != nil {
		// Shutdown raced the probe. Drop the result rather than record an
		// outcome the target did not earn.
		s.logger.Info("probe cancelled, result dropped", "target", t.Name)
		return
	}

	s.logger.Info("probe result",
		"target", t.Name,
		"outcome", result.Outcome,
		"latency", result.Latency,
		"detail", result.Detail,
	)

	if err := s.store.Append(ctx, result); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// Only possible if the one-in-flight invariant broke.
			s.logger.Error("duplicate result rejected by store", "target", t.Name, "error", err)
		} else {
			// Lost result; the target is retried on its next cycle.
			s.logger.Error("storing result", "target", t.Name, "error", err)
		}
		if s.onStoreErr != nil {
			s.onStoreErr(err)
		}
		return
	}

	if s.onResult != nil {
		var prevOutcome *probe.Outcome
		if prev != nil {
			o := prev.Outcome
			prevOutcome = &o
		}
		s.onResult(result, prevOutcome)
	}
}
