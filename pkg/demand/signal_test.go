package demand

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardalan-sia/lanesim/pkg/metrics"
)

func TestDensityClamps(t *testing.T) {
	d := NewDensity(10)
	assert.Equal(t, 10, d.Percent())

	d.Set(-5)
	assert.Equal(t, 0, d.Percent())
	d.Set(250)
	assert.Equal(t, 100, d.Percent())
}

func TestDensityConcurrentAccess(t *testing.T) {
	d := NewDensity(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(p int) {
			defer wg.Done()
			d.Set(p)
		}(i * 10)
		go func() {
			defer wg.Done()
			p := d.Percent()
			assert.True(t, p >= 0 && p <= 100)
		}()
	}
	wg.Wait()
}

func TestSignalStartsLowAndStopsOnCancel(t *testing.T) {
	d := NewDensity(99)
	s := NewSignal(d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, DefaultLow, d.Percent())
}

func TestSignalAlternates(t *testing.T) {
	m := metrics.New()
	d := NewDensity(0)
	s := &Signal{Low: 10, High: 50, Phase: 20 * time.Millisecond, Density: d, Metrics: m}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return d.Percent() == 50 }, time.Second, 2*time.Millisecond)
	assert.Eventually(t, func() bool { return d.Percent() == 10 }, time.Second, 2*time.Millisecond)
	assert.Eventually(t, func() bool { return d.Percent() == 50 }, time.Second, 2*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("signal did not stop after cancel")
	}

	v := testutil.ToFloat64(m.Density)
	assert.Contains(t, []float64{10, 50}, v)
}

func TestDefaults(t *testing.T) {
	s := NewSignal(NewDensity(0))
	assert.Equal(t, 10, s.Low)
	assert.Equal(t, 50, s.High)
	assert.Equal(t, 5*time.Second, s.Phase)
}
