package vehicle

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Kind is one of the fixed vehicle categories.
type Kind uint8

const (
	Bike Kind = iota
	Car
	Truck

	kindCount
)

// Characteristics are the per-kind constants.
type Characteristics struct {
	Symbol       rune
	InitialSpeed float64
	TargetSpeed  float64
}

var kinds = [kindCount]Characteristics{
	Bike:  {Symbol: 'B', InitialSpeed: 1, TargetSpeed: 2},
	Car:   {Symbol: 'C', InitialSpeed: 1, TargetSpeed: 3},
	Truck: {Symbol: 'T', InitialSpeed: 1, TargetSpeed: 1},
}

// Speeds of the road's initial lead car.
const (
	LeadCurrentSpeed = 2
	LeadTargetSpeed  = 2
)

// Kinds lists every valid kind.
func Kinds() []Kind { return []Kind{Bike, Car, Truck} }

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool { return k < kindCount }

func (k Kind) String() string {
	switch k {
	case Bike:
		return "bike"
	case Car:
		return "car"
	case Truck:
		return "truck"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Characteristics returns the table entry for k. Panics on an invalid kind.
func (k Kind) Characteristics() Characteristics {
	if !k.Valid() {
		panic(fmt.Sprintf("vehicle: invalid kind %d", uint8(k)))
	}
	return kinds[k]
}

// Symbol is the display character for k.
func (k Kind) Symbol() rune { return k.Characteristics().Symbol }

// KindFromDraw maps a draw in {1,2,3} to Truck, Bike, Car.
func KindFromDraw(v int) Kind {
	switch v {
	case 1:
		return Truck
	case 2:
		return Bike
	case 3:
		return Car
	}
	panic(fmt.Sprintf("vehicle: draw %d outside 1..3", v))
}

// Vehicle models one entity on the lane.
type Vehicle struct {
	ID   uint64
	Kind Kind

	Position     int
	CurrentSpeed float64
	TargetSpeed  float64

	// PreviousGap is the gap to the vehicle ahead recorded on the last update.
	PreviousGap int
}

// Symbol is the vehicle's display character.
func (v *Vehicle) Symbol() rune { return v.Kind.Symbol() }

// Advance moves the vehicle forward by its speed rounded half up.
func (v *Vehicle) Advance() {
	v.Position += Cells(v.CurrentSpeed)
}

// IsBeyondRoad reports whether the vehicle has left a road of the given length.
func (v *Vehicle) IsBeyondRoad(length int) bool { return v.Position >= length }

// Cells converts a speed into whole cells per tick (round half up).
func Cells(speed float64) int { return int(math.Floor(speed + 0.5)) }

// Factory builds vehicles and hands out ids. The zero value is ready to use.
type Factory struct {
	issued atomic.Uint64
}

// NewFactory returns a factory whose first id is 0.
func NewFactory() *Factory { return &Factory{} }

func (f *Factory) nextID() uint64 { return f.issued.Add(1) - 1 }

// Create returns a vehicle of kind k at position with the table's speeds.
// An undefined kind is a programming error and panics.
func (f *Factory) Create(k Kind, position int) *Vehicle {
	c := k.Characteristics()
	return &Vehicle{
		ID:           f.nextID(),
		Kind:         k,
		Position:     position,
		CurrentSpeed: c.InitialSpeed,
		TargetSpeed:  c.TargetSpeed,
	}
}

// CreateLead returns the road's initial car at position 0.
func (f *Factory) CreateLead() *Vehicle {
	v := f.Create(Car, 0)
	v.CurrentSpeed = LeadCurrentSpeed
	v.TargetSpeed = LeadTargetSpeed
	return v
}

// Issued is the number of ids handed out so far.
func (f *Factory) Issued() uint64 { return f.issued.Load() }
