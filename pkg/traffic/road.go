package traffic

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/ardalan-sia/lanesim/pkg/metrics"
	"github.com/ardalan-sia/lanesim/pkg/vehicle"
)

const (
	// DefaultLength is the number of cells on the lane.
	DefaultLength = 75
	// DefaultSpawnGate is the position the back-most vehicle must reach
	// before another vehicle may enter.
	DefaultSpawnGate = 3

	// Congestion threshold for the car-following rule, in free cells.
	congestedGap = 2
)

// DensitySource yields the current spawn probability in percent.
type DensitySource interface {
	Percent() int
}

// FixedDensity is a constant DensitySource.
type FixedDensity int

func (d FixedDensity) Percent() int { return int(d) }

// RandSource draws uniform integers in [0,n). *rand.Rand satisfies it.
type RandSource interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Cell is one lane cell of the occupancy buffer.
type Cell struct {
	Occupied bool `json:"occupied"`
	Symbol   rune `json:"symbol,omitempty"`
}

// Road owns the ordered vehicle collection of a single lane.
// vehicles[0] is furthest along; the last element was spawned most recently.
type Road struct {
	Length    int
	SpawnGate int

	mu       sync.RWMutex
	vehicles []*vehicle.Vehicle
	cells    []Cell

	factory *vehicle.Factory
	density DensitySource
	rng     RandSource
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Road.
type Option func(*Road)

func WithLength(n int) Option { return func(r *Road) { r.Length = n } }
func WithSpawnGate(n int) Option { return func(r *Road) { r.SpawnGate = n } }
func WithFactory(f *vehicle.Factory) Option {
	return func(r *Road) { r.factory = f }
}
func WithDensity(d DensitySource) Option { return func(r *Road) { r.density = d } }
func WithRand(src RandSource) Option { return func(r *Road) { r.rng = src } }
func WithLogger(l *slog.Logger) Option { return func(r *Road) { r.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(r *Road) { r.metrics = m } }

// New builds a road and places the lead car at position 0.
func New(opts ...Option) *Road {
	r := &Road{
		Length:    DefaultLength,
		SpawnGate: DefaultSpawnGate,
		density:   FixedDensity(0),
		rng:       globalRand{},
	}
	for _, o := range opts {
		o(r)
	}
	if r.factory == nil {
		r.factory = vehicle.NewFactory()
	}
	if r.log == nil {
		r.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r.cells = make([]Cell, r.Length)

	lead := r.factory.CreateLead()
	r.vehicles = append(r.vehicles, lead)
	r.metrics.VehicleSpawned(lead.Kind.String())
	r.metrics.SetRoadVehicles(len(r.vehicles))
	r.log.Debug("lead vehicle placed", "vehicle_id", lead.ID)
	return r
}

// Len is the number of vehicles on the lane.
func (r *Road) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.vehicles)
}

// AttemptSpawn applies the spawn gate and, if open, the spawn draw.
func (r *Road) AttemptSpawn() (*vehicle.Vehicle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attemptSpawn()
}

func (r *Road) attemptSpawn() (*vehicle.Vehicle, bool) {
	if n := len(r.vehicles); n > 0 && r.vehicles[n-1].Position < r.SpawnGate {
		return nil, false
	}
	return r.spawnVehicle()
}

// spawnVehicle draws against the density and, on success, draws the kind.
func (r *Road) spawnVehicle() (*vehicle.Vehicle, bool) {
	if r.rng.IntN(100) >= r.density.Percent() {
		return nil, false
	}
	kind := vehicle.KindFromDraw(r.rng.IntN(3) + 1)
	v := r.factory.Create(kind, 0)
	r.vehicles = append(r.vehicles, v)

	r.metrics.VehicleSpawned(kind.String())
	r.metrics.SetRoadVehicles(len(r.vehicles))
	r.log.Debug("vehicle spawned", "vehicle_id", v.ID, "kind", kind.String())
	return v, true
}

// Update runs car-following, advances every vehicle and drops those past
// the end of the lane. It returns the removed vehicles in lane order.
func (r *Road) Update() []*vehicle.Vehicle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update()
}

func (r *Road) update() []*vehicle.Vehicle {
	r.follow()
	for _, v := range r.vehicles {
		v.Advance()
	}
	return r.removeBeyond()
}

// follow walks adjacent pairs from the back of the lane toward the front.
// A follower mirrors its leader only when the gap is small and has not
// grown since the last tick; otherwise it accelerates toward its target.
func (r *Road) follow() {
	for i := len(r.vehicles) - 1; i >= 1; i-- {
		lead, follower := r.vehicles[i-1], r.vehicles[i]

		gap := lead.Position - follower.Position - 1
		if gap <= follower.PreviousGap && gap <= congestedGap {
			follower.CurrentSpeed = lead.CurrentSpeed
		} else if follower.CurrentSpeed < follower.TargetSpeed {
			follower.CurrentSpeed++
		}
		follower.PreviousGap = gap
	}
}

func (r *Road) removeBeyond() []*vehicle.Vehicle {
	var removed []*vehicle.Vehicle
	kept := r.vehicles[:0]
	for _, v := range r.vehicles {
		if v.IsBeyondRoad(r.Length) {
			removed = append(removed, v)
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(r.vehicles); i++ {
		r.vehicles[i] = nil
	}
	r.vehicles = kept

	for _, v := range removed {
		r.metrics.VehicleExited(v.Kind.String())
		r.log.Debug("vehicle exited", "vehicle_id", v.ID, "kind", v.Kind.String())
	}
	r.metrics.SetRoadVehicles(len(r.vehicles))
	return removed
}

// ClearOccupancy empties the occupancy buffer.
func (r *Road) ClearOccupancy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearOccupancy()
}

func (r *Road) clearOccupancy() {
	clear(r.cells)
}

// ComputeOccupancy rebuilds the occupancy buffer from vehicle positions.
func (r *Road) ComputeOccupancy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.computeOccupancy()
}

func (r *Road) computeOccupancy() {
	r.clearOccupancy()
	for _, v := range r.vehicles {
		if v.Position < 0 || v.Position >= len(r.cells) {
			continue
		}
		r.cells[v.Position] = Cell{Occupied: true, Symbol: v.Symbol()}
	}
}

// Occupancy returns a copy of the occupancy buffer.
func (r *Road) Occupancy() []Cell {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Cell(nil), r.cells...)
}

// TickResult reports what changed during one Tick.
type TickResult struct {
	Removed []*vehicle.Vehicle
	Spawned *vehicle.Vehicle
}

// Tick clears the occupancy buffer, updates, attempts a spawn and
// recomputes occupancy, all under one write lock.
func (r *Road) Tick() TickResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clearOccupancy()
	res := TickResult{Removed: r.update()}
	if v, ok := r.attemptSpawn(); ok {
		res.Spawned = v
	}
	r.computeOccupancy()
	return res
}
