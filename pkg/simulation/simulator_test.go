package simulation

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardalan-sia/lanesim/pkg/config"
	"github.com/ardalan-sia/lanesim/pkg/demand"
	"github.com/ardalan-sia/lanesim/pkg/telemetry"
	"github.com/ardalan-sia/lanesim/pkg/traffic"
)

type recordingRenderer struct {
	mu    sync.Mutex
	lanes []string
}

func (r *recordingRenderer) Render(cells []traffic.Cell) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lanes = append(r.lanes, traffic.FormatLane(cells))
	return nil
}

func (r *recordingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lanes)
}

func TestStepRendersBeforeUpdating(t *testing.T) {
	density := demand.NewDensity(0)
	sim := NewSimulator(traffic.New(traffic.WithLength(8), traffic.WithDensity(density)), density)
	rr := &recordingRenderer{}
	sim.Renderer = rr

	sim.Step()
	sim.Step()

	require.Len(t, rr.lanes, 2)
	assert.Equal(t, "_ _ _ _ _ _ _ _ ", rr.lanes[0], "nothing computed before the first tick")
	assert.Equal(t, "_ _ C _ _ _ _ _ ", rr.lanes[1], "second tick shows the first tick's result")
	assert.Equal(t, "_ _ _ _ C _ _ _ ", traffic.FormatLane(sim.Road.Occupancy()))
	assert.Equal(t, uint64(2), sim.Ticks())
}

func TestSingleVehicleEndToEnd(t *testing.T) {
	density := demand.NewDensity(0)
	sim := NewSimulator(traffic.New(traffic.WithDensity(density)), density)

	res := sim.Step()

	assert.Nil(t, res.Spawned)
	assert.Empty(t, res.Removed)
	s := sim.Snapshot()
	require.Len(t, s.Vehicles, 1)
	assert.Equal(t, 2, s.Vehicles[0].Position)
	assert.Equal(t, 2.0, s.Vehicles[0].Speed)
}

func TestZeroDensityAcrossManyTicks(t *testing.T) {
	density := demand.NewDensity(0)
	sim := NewSimulator(traffic.New(traffic.WithDensity(density)), density)
	for i := 0; i < 500; i++ {
		require.Nil(t, sim.Step().Spawned)
	}
	assert.Zero(t, sim.Road.Len())
	assert.Zero(t, sim.DensityPercent())
}

func TestRunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telemetry.csv")
	density := demand.NewDensity(0)
	road := traffic.New(traffic.WithDensity(density))

	sim := NewSimulator(road, density)
	sim.Tick = 5 * time.Millisecond
	sim.Demand = &demand.Signal{Low: 10, High: 50, Phase: 15 * time.Millisecond, Density: density}
	sim.Recorder = telemetry.NewRecorder(road, telemetry.NewCSVSink(path))
	sim.Recorder.Interval = 5 * time.Millisecond
	rr := &recordingRenderer{}
	sim.Renderer = rr

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()

	assert.Eventually(t, func() bool { return sim.Ticks() >= 5 }, 2*time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return density.Percent() == 50 }, 2*time.Second, time.Millisecond)
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && strings.Count(string(data), "\n") >= 2
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.GreaterOrEqual(t, rr.count(), 5)
}

func TestRunWithDeadline(t *testing.T) {
	density := demand.NewDensity(0)
	sim := NewSimulator(traffic.New(traffic.WithDensity(density)), density)
	sim.Tick = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	assert.NoError(t, sim.Run(ctx))
	assert.Positive(t, sim.Ticks())
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Road.Tick = 2 * time.Millisecond
	cfg.Road.Seed = 11
	cfg.Demand.Phase = 10 * time.Millisecond
	cfg.Telemetry.Dir = filepath.Join(t.TempDir(), "logs")
	cfg.Telemetry.Interval = 5 * time.Millisecond

	var out bytes.Buffer
	var mu sync.Mutex
	start := time.Date(2026, time.March, 15, 9, 30, 0, 0, time.UTC)

	sim, err := FromConfig(cfg, Options{RunID: "test-run", Start: start, Output: &lockedWriter{mu: &mu, w: &out}})
	require.NoError(t, err)
	defer sim.Close()

	assert.Equal(t, 10, sim.DensityPercent())
	assert.Equal(t, 75, sim.Road.Length)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	require.NoError(t, sim.Run(ctx))

	data, err := os.ReadFile(filepath.Join(cfg.Telemetry.Dir, "Telemetry_Sun Mar 15 09:30:00 2026.csv"))
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	mu.Lock()
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	mu.Unlock()
	require.NotEmpty(t, lines)
	for _, l := range lines {
		assert.Len(t, l, 2*cfg.Road.Length)
	}

	assert.Equal(t, float64(sim.Ticks()), testutil.ToFloat64(sim.Metrics.Ticks))
}

func TestFromConfigRejectsInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.Demand.High = 500
	_, err := FromConfig(cfg, Options{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
