package demand

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ardalan-sia/lanesim/pkg/metrics"
)

// Defaults of the square-wave demand signal.
const (
	DefaultLow   = 10
	DefaultHigh  = 50
	DefaultPhase = 5 * time.Second
)

// Density is the shared spawn probability in percent. Safe for concurrent use.
type Density struct {
	v atomic.Int32
}

// NewDensity returns a Density holding percent.
func NewDensity(percent int) *Density {
	d := &Density{}
	d.Set(percent)
	return d
}

// Set stores percent clamped to 0..100.
func (d *Density) Set(percent int) {
	d.v.Store(int32(min(max(percent, 0), 100)))
}

// Percent satisfies traffic.DensitySource.
func (d *Density) Percent() int { return int(d.v.Load()) }

// Signal alternates the density between Low and High every Phase.
type Signal struct {
	Low, High int
	Phase     time.Duration
	Density   *Density

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// NewSignal returns a signal with the default duty cycle writing into d.
func NewSignal(d *Density) *Signal {
	return &Signal{Low: DefaultLow, High: DefaultHigh, Phase: DefaultPhase, Density: d}
}

// Run drives the square wave until ctx is done and returns ctx.Err().
func (s *Signal) Run(ctx context.Context) error {
	log := s.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	for phase := 0; ; phase++ {
		level := s.Low
		if phase%2 == 1 {
			level = s.High
		}
		s.publish(log, level)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.Phase):
		}
	}
}

func (s *Signal) publish(log *slog.Logger, level int) {
	s.Density.Set(level)
	s.Metrics.SetDensity(s.Density.Percent())
	log.Debug("demand changed", "density", s.Density.Percent())
}
