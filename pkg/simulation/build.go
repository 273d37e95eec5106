package simulation

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/ardalan-sia/lanesim/pkg/config"
	"github.com/ardalan-sia/lanesim/pkg/demand"
	"github.com/ardalan-sia/lanesim/pkg/metrics"
	"github.com/ardalan-sia/lanesim/pkg/render"
	"github.com/ardalan-sia/lanesim/pkg/telemetry"
	"github.com/ardalan-sia/lanesim/pkg/traffic"
)

// Options carries the per-process inputs that are not configuration.
type Options struct {
	RunID string
	// Start names the telemetry file. Defaults to time.Now().
	Start time.Time
	// Output receives the lane display; nil disables rendering.
	Output io.Writer
	Logger *slog.Logger
}

// FromConfig assembles a simulator and its background tasks. Call Close
// when the simulator is no longer needed.
func FromConfig(cfg config.Config, opts Options) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.RunID != "" {
		log = log.With("run_id", opts.RunID)
	}
	start := opts.Start
	if start.IsZero() {
		start = time.Now()
	}

	m := metrics.New()
	density := demand.NewDensity(cfg.Demand.Initial)
	m.SetDensity(density.Percent())

	roadOpts := []traffic.Option{
		traffic.WithLength(cfg.Road.Length),
		traffic.WithSpawnGate(cfg.Road.SpawnGate),
		traffic.WithDensity(density),
		traffic.WithLogger(log.With("component", "road")),
		traffic.WithMetrics(m),
	}
	if cfg.Road.Seed != 0 {
		roadOpts = append(roadOpts, traffic.WithRand(rand.New(rand.NewPCG(cfg.Road.Seed, cfg.Road.Seed))))
	}
	road := traffic.New(roadOpts...)

	sim := NewSimulator(road, density)
	sim.Tick = cfg.Road.Tick
	sim.Metrics = m
	sim.Logger = log.With("component", "driver")
	sim.Demand = &demand.Signal{
		Low:     cfg.Demand.Low,
		High:    cfg.Demand.High,
		Phase:   cfg.Demand.Phase,
		Density: density,
		Logger:  log.With("component", "demand"),
		Metrics: m,
	}

	if err := os.MkdirAll(cfg.Telemetry.Dir, 0755); err != nil {
		// Writes to the file will fail and be dropped.
		log.Warn("telemetry directory unavailable", "dir", cfg.Telemetry.Dir, "error", err)
	}
	csvPath := telemetry.FileName(cfg.Telemetry.Dir, start)
	sinks := []telemetry.Sink{telemetry.NewCSVSink(csvPath)}
	if cfg.Influx.Enabled {
		influx := telemetry.NewInfluxSink(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket, opts.RunID)
		sinks = append(sinks, influx)
		sim.closers = append(sim.closers, influx.Close)
	}
	sim.Recorder = telemetry.NewRecorder(road, sinks...)
	sim.Recorder.Interval = cfg.Telemetry.Interval
	sim.Recorder.Logger = log.With("component", "telemetry")
	sim.Recorder.Metrics = m
	log.Info("telemetry file", "path", csvPath, "influx", cfg.Influx.Enabled)

	if opts.Output != nil {
		sim.Renderer = render.New(opts.Output)
	}
	return sim, nil
}
