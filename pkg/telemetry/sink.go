package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Sink receives telemetry records.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec Record) error
}

// CSVSink appends each record to a file, opening and closing it on every
// write so a row is on disk independently of the ones before and after.
type CSVSink struct {
	Path string
}

func NewCSVSink(path string) *CSVSink { return &CSVSink{Path: path} }

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Write(_ context.Context, rec Record) error {
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open telemetry file: %w", err)
	}
	_, werr := f.WriteString(rec.CSVLine())
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return fmt.Errorf("append telemetry record: %w", err)
	}
	return nil
}
