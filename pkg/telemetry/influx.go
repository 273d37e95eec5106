package telemetry

import (
	"context"
	"fmt"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const influxMeasurement = "vehicle"

// PointWriter is the part of api.WriteAPIBlocking the sink uses.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink writes one point per vehicle, tagged with the run id.
type InfluxSink struct {
	RunID string

	writer PointWriter
	client influxdb2.Client
}

// NewInfluxSink connects a blocking writer to org/bucket at url.
func NewInfluxSink(url, token, org, bucket, runID string) *InfluxSink {
	client := influxdb2.NewClient(url, token)
	return &InfluxSink{
		RunID:  runID,
		writer: client.WriteAPIBlocking(org, bucket),
		client: client,
	}
}

// NewInfluxSinkWithWriter wraps an existing writer.
func NewInfluxSinkWithWriter(w PointWriter, runID string) *InfluxSink {
	return &InfluxSink{RunID: runID, writer: w}
}

func (s *InfluxSink) Name() string { return "influx" }

func (s *InfluxSink) Write(ctx context.Context, rec Record) error {
	if len(rec.Vehicles) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(rec.Vehicles))
	for _, v := range rec.Vehicles {
		points = append(points, influxdb2.NewPoint(
			influxMeasurement,
			map[string]string{
				"run_id":     s.RunID,
				"vehicle_id": strconv.FormatUint(v.ID, 10),
				"kind":       v.KindName,
			},
			map[string]interface{}{
				"position": v.Position,
				"speed":    v.Speed,
			},
			rec.Time,
		))
	}
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write influx points: %w", err)
	}
	return nil
}

// Close releases the client, if the sink owns one.
func (s *InfluxSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
