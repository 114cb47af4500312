// Package status computes the read-side view of target health from stored
// probe history. It performs no writes and triggers no probes.
package status

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hazz-dev/watchdog/internal/config"
	"github.com/hazz-dev/watchdog/internal/probe"
)

// maxWindowSamples bounds the history read used for latency percentiles.
const maxWindowSamples = 5000

// Store defines the storage queries the status service needs.
type Store interface {
	History(ctx context.Context, target string, since time.Time, limit int) ([]probe.Result, error)
	UptimeSince(ctx context.Context, target string, since time.Time) (float64, int, error)
}

// TargetStatus is the derived view of one target. It is computed on read and
// never persisted. Latest is nil when the target has never been probed, which
// is a distinct state from a target whose last probe failed.
type TargetStatus struct {
	Target              string
	Latest              *probe.Result
	ConsecutiveFailures int
	SuccessRatio        float64       // percent over the most recent Window results
	Window              int
	Uptime24h           float64       // percent
	Uptime7d            float64       // percent
	P95Latency          time.Duration // zero when no successful samples in 24h
	Samples24h          int
	Score               float64
	Grade               string
}

// Service answers status queries over the configured target set.
type Service struct {
	store   Store
	targets []config.Target
	window  int
}

// New creates a status service. window is the rolling success-ratio window.
func New(store Store, targets []config.Target, window int) *Service {
	if window <= 0 {
		window = 20
	}
	return &Service{store: store, targets: targets, window: window}
}

// Window returns the rolling success-ratio window size.
func (s *Service) Window() int {
	return s.window
}

// Status returns the current status of one target, or nil if no target with
// that name is configured.
func (s *Service) Status(ctx context.Context, name string) (*TargetStatus, error) {
	for _, t := range s.targets {
		if t.Name == name {
			st, err := s.compute(ctx, t)
			if err != nil {
				return nil, err
			}
			return st, nil
		}
	}
	return nil, nil
}

// All returns the status of every configured target, in configuration order.
func (s *Service) All(ctx context.Context) ([]TargetStatus, error) {
	statuses := make([]TargetStatus, 0, len(s.targets))
	for _, t := range s.targets {
		st, err := s.compute(ctx, t)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, *st)
	}
	return statuses, nil
}

func (s *Service) compute(ctx context.Context, t config.Target) (*TargetStatus, error) {
	st := &TargetStatus{
		Target: t.Name,
		Window: s.window,
	}

	recent, err := s.store.History(ctx, t.Name, time.Time{}, s.window)
	if err != nil {
		return nil, fmt.Errorf("reading recent history for %q: %w", t.Name, err)
	}
	if len(recent) == 0 {
		// Never probed.
		return st, nil
	}

	latest := recent[0]
	st.Latest = &latest

	successes := 0
	for _, r := range recent {
		if r.Outcome == probe.OutcomeSuccess {
			successes++
		}
	}
	st.SuccessRatio = float64(successes) / float64(len(recent)) * 100

	// Scan newest-first until the first success or the window bound.
	for _, r := range recent {
		if r.Outcome == probe.OutcomeSuccess {
			break
		}
		st.ConsecutiveFailures++
	}

	now := time.Now()
	since24h := now.Add(-24 * time.Hour)
	since7d := now.Add(-7 * 24 * time.Hour)

	up24, samples24, err := s.store.UptimeSince(ctx, t.Name, since24h)
	if err != nil {
		return nil, fmt.Errorf("computing 24h uptime for %q: %w", t.Name, err)
	}
	st.Uptime24h = up24
	st.Samples24h = samples24

	up7, _, err := s.store.UptimeSince(ctx, t.Name, since7d)
	if err != nil {
		return nil, fmt.Errorf("computing 7d uptime for %q: %w", t.Name, err)
	}
	st.Uptime7d = up7

	window24, err := s.store.History(ctx, t.Name, since24h, maxWindowSamples)
	if err != nil {
		return nil, fmt.Errorf("reading 24h history for %q: %w", t.Name, err)
	}
	var latencies []float64
	for _, r := range window24 {
		if r.Outcome == probe.OutcomeSuccess {
			latencies = append(latencies, float64(r.Latency)/float64(time.Millisecond))
		}
	}
	p95, hasP95 := percentile(latencies, 95)
	if hasP95 {
		st.P95Latency = time.Duration(p95 * float64(time.Millisecond))
	}

	st.Score, st.Grade = scoreAndGrade(up24, p95, hasP95)
	return st, nil
}

// percentile computes the p-th percentile of values with linear interpolation
// between closest ranks. The second return is false when values is empty.
func percentile(values []float64, p float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	k := float64(len(sorted)-1) * p / 100
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return sorted[int(k)], true
	}
	return sorted[int(f)]*(c-k) + sorted[int(c)]*(k-f), true
}

// scoreAndGrade blends uptime and p95 latency (milliseconds) into a 0-100
// score and a letter grade. Uptime weighs 70%, latency 30%; latency scores
// 100 at or under 300ms and 0 at or over 3000ms, linear in between.
func scoreAndGrade(uptimePct, p95Ms float64, hasP95 bool) (float64, string) {
	uptimeScore := math.Max(0, math.Min(100, uptimePct))

	latencyScore := 0.0
	if hasP95 {
		switch {
		case p95Ms <= 300:
			latencyScore = 100
		case p95Ms >= 3000:
			latencyScore = 0
		default:
			latencyScore = 100 * (3000 - p95Ms) / (3000 - 300)
		}
	}

	score := 0.7*uptimeScore + 0.3*latencyScore

	var grade string
	switch {
	case score >= 97:
		grade = "A+"
	case score >= 93:
		grade = "A"
	case score >= 90:
		grade = "A-"
	case score >= 87:
		grade = "B+"
	case score >= 83:
		grade = "B"
	case score >= 80:
		grade = "B-"
	case score >= 77:
		grade = "C+"
	case score >= 73:
		grade = "C"
	case score >= 70:
		grade = "C-"
	case score >= 60:
		grade = "D"
	default:
		grade = "F"
	}
	return score, grade
}
