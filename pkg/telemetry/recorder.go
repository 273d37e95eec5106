package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/ardalan-sia/lanesim/pkg/metrics"
	"github.com/ardalan-sia/lanesim/pkg/traffic"
)

// DefaultInterval is the period between telemetry records.
const DefaultInterval = 500 * time.Millisecond

// Snapshotter hands out consistent copies of the lane.
type Snapshotter interface {
	Snapshot() traffic.Snapshot
}

// Recorder periodically snapshots the road and fans the record out to its
// sinks. One Recorder is created at startup and lives until its context
// is cancelled; it has nothing to tear down.
type Recorder struct {
	Road     Snapshotter
	Sinks    []Sink
	Interval time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Now is the clock used for timestamps. Defaults to time.Now.
	Now func() time.Time
}

// NewRecorder returns a recorder with the default interval.
func NewRecorder(road Snapshotter, sinks ...Sink) *Recorder {
	return &Recorder{Road: road, Sinks: sinks, Interval: DefaultInterval}
}

// Run records every Interval until ctx is done and returns ctx.Err().
// Sink failures are logged and counted, never returned.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.RecordOnce(ctx)
		}
	}
}

// RecordOnce takes one snapshot and writes it to every sink. The returned
// error joins the sink failures and is informational only.
func (r *Recorder) RecordOnce(ctx context.Context) (Record, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	log := r.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	rec := NewRecord(now(), r.Road.Snapshot())

	var errs []error
	for _, s := range r.Sinks {
		err := s.Write(ctx, rec)
		r.Metrics.TelemetryWrite(s.Name(), err)
		if err != nil {
			log.Warn("telemetry write dropped", "sink", s.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return rec, errors.Join(errs...)
}
