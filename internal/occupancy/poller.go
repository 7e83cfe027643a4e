package occupancy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/logging"
)

// Poller defaults.
const (
	DefaultPollInterval     = 5 * time.Second
	DefaultProbeTimeout     = 5 * time.Second
	DefaultProbeConcurrency = 4
)

// PollerConfig configures a Poller.
type PollerConfig struct {
	Interval     time.Duration
	ProbeTimeout time.Duration

	// Concurrency caps simultaneous probes within one cycle.
	Concurrency int
}

// CycleResult summarises one poll cycle.
type CycleResult struct {
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Duration time.Duration `json:"duration_ns"`
	Probed   int           `json:"probed"`
	Present  int           `json:"present"`
	Failed   int           `json:"failed"`
}

// Poller periodically probes every seat with a registered address and
// writes the reconciled status.
//
// Each cycle lists addressed seats, probes them with at most Concurrency
// probes in flight, and writes one row per seat. A failed listing aborts the
// cycle; a failed write affects only its own seat. After a cycle completes,
// the Poller sleeps Interval before starting the next one.
type Poller struct {
	store  Store
	prober Prober
	sink   Sink
	cfg    PollerConfig
	logger *logging.Logger
	now    func() time.Time

	cycles atomic.Uint64

	mu   sync.RWMutex
	last CycleResult
}

// NewPoller creates a poller. Zero config values take the defaults.
func NewPoller(store Store, prober Prober, cfg PollerConfig, logger *logging.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultProbeConcurrency
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Poller{
		store:  store,
		prober: prober,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetSink sets where committed changes are delivered. Must be called before Run.
func (p *Poller) SetSink(sink Sink) {
	p.sink = sink
}

// Run polls until ctx is cancelled. It always returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poll loop started",
		"interval", p.cfg.Interval,
		"probe_timeout", p.cfg.ProbeTimeout,
		"concurrency", p.cfg.Concurrency,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poll loop stopped", "cycles", p.cycles.Load())
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := p.RunCycle(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("poll cycle aborted", "error", err)
		}

		timer.Reset(p.cfg.Interval)
	}
}

// RunCycle performs one poll cycle. An error is returned only when the seat
// listing fails; per-seat failures are counted in the result.
func (p *Poller) RunCycle(ctx context.Context) (CycleResult, error) {
	result := CycleResult{Started: p.now()}

	seats, err := p.store.ListAddressed(ctx)
	if err != nil {
		return result, fmt.Errorf("listing addressed seats: %w", err)
	}

	var present, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for _, seat := range seats {
		g.Go(func() error {
			status, err := p.pollSeat(gctx, seat)
			if err != nil {
				failed.Add(1)
				if !errors.Is(err, context.Canceled) {
					p.logger.Warn("seat update failed", "seat", seat.Name, "error", err)
				}
				return nil
			}
			if status.IsPresent() {
				present.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	result.Finished = p.now()
	result.Duration = result.Finished.Sub(result.Started)
	result.Probed = len(seats)
	result.Present = int(present.Load())
	result.Failed = int(failed.Load())

	p.cycles.Add(1)
	p.mu.Lock()
	p.last = result
	p.mu.Unlock()

	p.logger.Debug("poll cycle complete",
		"probed", result.Probed,
		"present", result.Present,
		"failed", result.Failed,
		"duration", result.Duration,
	)

	return result, nil
}

func (p *Poller) pollSeat(ctx context.Context, seat AddressedSeat) (Status, error) {
	reachable := p.prober.Probe(ctx, seat.Address, p.cfg.ProbeTimeout)
	status := Reconcile(reachable, nil, 0)

	if err := ctx.Err(); err != nil {
		return status, err
	}

	updated, err := p.store.WriteStatus(ctx, seat.Name, status, status.IsPresent())
	if err != nil {
		return status, err
	}

	if p.sink != nil {
		p.sink.SeatUpdated(ctx, Change{
			Seat:      updated,
			Source:    SourcePoll,
			Reachable: reachable,
			At:        p.now(),
		})
	}

	return status, nil
}

// LastCycle returns the result of the most recently completed cycle.
// The zero value means no cycle has completed yet.
func (p *Poller) LastCycle() CycleResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Cycles returns the number of completed cycles.
func (p *Poller) Cycles() uint64 {
	return p.cycles.Load()
}
