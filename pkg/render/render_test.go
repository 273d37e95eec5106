package render

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardalan-sia/lanesim/pkg/traffic"
)

func TestRenderPlain(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	cells := []traffic.Cell{
		{Occupied: true, Symbol: 'C'},
		{},
		{Occupied: true, Symbol: 'T'},
		{},
	}
	require.NoError(t, r.Render(cells))
	assert.Equal(t, "C _ T _ \n", buf.String())
	assert.Equal(t, traffic.FormatLane(cells)+"\n", buf.String())
}

func TestRenderFullLane(t *testing.T) {
	var buf bytes.Buffer
	road := traffic.New()
	road.ComputeOccupancy()

	require.NoError(t, New(&buf).Render(road.Occupancy()))
	out := buf.String()
	assert.Len(t, out, traffic.DefaultLength*2+1)
	assert.Equal(t, "C _ ", out[:4])
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestRenderWriteError(t *testing.T) {
	err := New(brokenWriter{}).Render([]traffic.Cell{{}})
	assert.Error(t, err)
}
