package traffic

import (
	"strings"
	"time"

	"github.com/ardalan-sia/lanesim/pkg/vehicle"
)

// VehicleState is a copy of one vehicle taken under the road's read lock.
type VehicleState struct {
	ID          uint64       `json:"id"`
	Kind        vehicle.Kind `json:"-"`
	KindName    string       `json:"kind"`
	Position    int          `json:"position"`
	Speed       float64      `json:"speed"`
	TargetSpeed float64      `json:"target_speed"`
	PreviousGap int          `json:"previous_gap"`
}

// Snapshot is an immutable view of the lane.
type Snapshot struct {
	Taken    time.Time      `json:"taken"`
	Length   int            `json:"length"`
	Vehicles []VehicleState `json:"vehicles"`
	Cells    []Cell         `json:"-"`
}

// Snapshot copies the vehicle collection and occupancy buffer.
// It never observes a tick half applied.
func (r *Road) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		Taken:    time.Now(),
		Length:   r.Length,
		Vehicles: make([]VehicleState, 0, len(r.vehicles)),
		Cells:    append([]Cell(nil), r.cells...),
	}
	for _, v := range r.vehicles {
		s.Vehicles = append(s.Vehicles, VehicleState{
			ID:          v.ID,
			Kind:        v.Kind,
			KindName:    v.Kind.String(),
			Position:    v.Position,
			Speed:       v.CurrentSpeed,
			TargetSpeed: v.TargetSpeed,
			PreviousGap: v.PreviousGap,
		})
	}
	return s
}

// Lane renders the occupancy cells as "<symbol> " or "_ " left to right.
func (s Snapshot) Lane() string { return FormatLane(s.Cells) }

// FormatLane renders cells the way the terminal sink prints them.
func FormatLane(cells []Cell) string {
	var b strings.Builder
	b.Grow(len(cells) * 2)
	for _, c := range cells {
		if c.Occupied {
			b.WriteRune(c.Symbol)
		} else {
			b.WriteByte('_')
		}
		b.WriteByte(' ')
	}
	return b.String()
}
