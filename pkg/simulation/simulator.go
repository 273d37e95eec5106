package simulation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ardalan-sia/lanesim/pkg/demand"
	"github.com/ardalan-sia/lanesim/pkg/metrics"
	"github.com/ardalan-sia/lanesim/pkg/telemetry"
	"github.com/ardalan-sia/lanesim/pkg/traffic"
)

// DefaultTick is the driver period.
const DefaultTick = 500 * time.Millisecond

// LaneRenderer displays the occupancy buffer.
type LaneRenderer interface {
	Render(cells []traffic.Cell) error
}

// Simulator is the driver: it owns the road and the lifetimes of the
// demand signal and the telemetry recorder.
type Simulator struct {
	Road     *traffic.Road
	Density  *demand.Density
	Demand   *demand.Signal
	Recorder *telemetry.Recorder
	Renderer LaneRenderer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Tick     time.Duration

	ticks   atomic.Uint64
	closers []func()
}

// NewSimulator wires a road to a density with the default tick and no
// background tasks.
func NewSimulator(road *traffic.Road, density *demand.Density) *Simulator {
	return &Simulator{Road: road, Density: density, Tick: DefaultTick}
}

func (s *Simulator) log() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

// Step runs one tick: show the current lane, then clear, update, spawn
// and recompute occupancy.
func (s *Simulator) Step() traffic.TickResult {
	if s.Renderer != nil {
		if err := s.Renderer.Render(s.Road.Occupancy()); err != nil {
			s.log().Debug("render failed", "error", err)
		}
	}

	res := s.Road.Tick()
	n := s.ticks.Add(1)
	s.Metrics.Tick()

	if res.Spawned != nil || len(res.Removed) > 0 {
		s.log().Debug("tick",
			"tick", n,
			"spawned", res.Spawned != nil,
			"removed", len(res.Removed),
		)
	}
	return res
}

// Ticks is the number of completed steps.
func (s *Simulator) Ticks() uint64 { return s.ticks.Load() }

// Snapshot delegates to the road.
func (s *Simulator) Snapshot() traffic.Snapshot { return s.Road.Snapshot() }

// DensityPercent is the spawn probability currently in force.
func (s *Simulator) DensityPercent() int {
	if s.Density == nil {
		return 0
	}
	return s.Density.Percent()
}

// Run starts the demand signal and the recorder, then steps every Tick
// until ctx is cancelled. Cancellation is a clean stop and returns nil.
func (s *Simulator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if s.Demand != nil {
		g.Go(func() error { return s.Demand.Run(gctx) })
	}
	if s.Recorder != nil {
		g.Go(func() error { return s.Recorder.Run(gctx) })
	}
	g.Go(func() error { return s.loop(gctx) })

	s.log().Info("simulation started", "tick", s.Tick.String(), "length", s.Road.Length)
	err := g.Wait()
	s.log().Info("simulation stopped", "ticks", s.Ticks())

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Close releases resources held by the sinks.
func (s *Simulator) Close() {
	for _, c := range s.closers {
		c()
	}
	s.closers = nil
}

func (s *Simulator) loop(ctx context.Context) error {
	tick := s.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		s.Step()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
