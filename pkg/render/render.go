package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/ardalan-sia/lanesim/pkg/traffic"
	"github.com/ardalan-sia/lanesim/pkg/vehicle"
)

// clearScreen homes the cursor and erases the display.
const clearScreen = "\x1b[H\x1b[2J"

var kindColors = map[vehicle.Kind]lipgloss.Color{
	vehicle.Bike:  lipgloss.Color("#2CD7C7"),
	vehicle.Car:   lipgloss.Color("#F4D03F"),
	vehicle.Truck: lipgloss.Color("#E74C3C"),
}

// Renderer prints the lane once per tick.
type Renderer struct {
	w        io.Writer
	terminal bool

	symbols map[rune]lipgloss.Style
	empty   lipgloss.Style
}

// New returns a renderer for w. Clearing and colours are only used when w
// is a terminal; anything else gets the plain "<symbol> " / "_ " cells.
func New(w io.Writer) *Renderer {
	r := &Renderer{w: w, terminal: isTerminal(w), symbols: map[rune]lipgloss.Style{}}

	lr := lipgloss.NewRenderer(w)
	for kind, color := range kindColors {
		r.symbols[kind.Symbol()] = lr.NewStyle().Foreground(color).Bold(true)
	}
	r.empty = lr.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
	return r
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Render clears the display and prints every cell left to right.
func (r *Renderer) Render(cells []traffic.Cell) error {
	var b strings.Builder
	if r.terminal {
		b.WriteString(clearScreen)
	}
	for _, c := range cells {
		b.WriteString(r.cell(c))
		b.WriteByte(' ')
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(r.w, b.String()); err != nil {
		return fmt.Errorf("render lane: %w", err)
	}
	return nil
}

func (r *Renderer) cell(c traffic.Cell) string {
	if !c.Occupied {
		if r.terminal {
			return r.empty.Render("_")
		}
		return "_"
	}
	sym := string(c.Symbol)
	if style, ok := r.symbols[c.Symbol]; ok && r.terminal {
		return style.Render(sym)
	}
	return sym
}
