package telemetry

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ardalan-sia/lanesim/pkg/traffic"
)

// Record is one telemetry row: a timestamp and every vehicle on the lane.
type Record struct {
	Time      time.Time
	Timestamp string
	Vehicles  []traffic.VehicleState
}

// NewRecord builds a record from a road snapshot taken at t.
func NewRecord(t time.Time, s traffic.Snapshot) Record {
	return Record{Time: t, Timestamp: Stamp(t), Vehicles: s.Vehicles}
}

// CSVLine formats the record as "<ts>,<id>,<pos>,<speed>,...\n".
func (r Record) CSVLine() string {
	var b strings.Builder
	b.WriteString(r.Timestamp)
	for _, v := range r.Vehicles {
		b.WriteByte(',')
		b.WriteString(strconv.FormatUint(v.ID, 10))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(v.Position))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(v.Speed, 'f', 6, 64))
	}
	b.WriteByte('\n')
	return b.String()
}

// SanitizeTimestamp drops every control character from s.
func SanitizeTimestamp(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// Stamp renders t in ctime form ("Mon Jan _2 15:04:05 2006") without control characters.
func Stamp(t time.Time) string {
	return SanitizeTimestamp(t.Format(time.ANSIC))
}

// FileName is the telemetry file for a run started at start.
func FileName(dir string, start time.Time) string {
	return filepath.Join(dir, "Telemetry_"+Stamp(start)+".csv")
}
