package lattice

import "fmt"

// Grid is a recombining triangular lattice: row step holds step+1
// entries, one per node level, for step in [0, Steps]. Storage is a
// single flat slice indexed by row offset, so an N-step grid costs
// (N+1)(N+2)/2 float64s and row access never allocates. A Grid is
// immutable once returned by a builder.
type Grid struct {
	steps int
	data  []float64
}

// NewGrid allocates a zeroed triangular grid. It panics on negative
// steps: grid shape is decided by code that has already validated the
// request, so a bad value here is a programming error.
func NewGrid(steps int) *Grid {
	if steps < 0 {
		panic(fmt.Sprintf("lattice: negative grid steps %d", steps))
	}
	return &Grid{
		steps: steps,
		data:  make([]float64, (steps+1)*(steps+2)/2),
	}
}

// rowOffset is the flat index of node (step, 0).
func rowOffset(step int) int { return step * (step + 1) / 2 }

// Steps returns the highest step index; rows run 0..Steps inclusive.
func (g *Grid) Steps() int { return g.steps }

// NodeCount returns the total number of nodes stored.
func (g *Grid) NodeCount() int { return len(g.data) }

// At returns the entry at (step, level). Level counts up-moves from
// the bottom of the row, so level 0 is the lowest node and level==step
// the highest. Panics on out-of-range coordinates.
func (g *Grid) At(step, level int) float64 {
	if step < 0 || step > g.steps || level < 0 || level > step {
		panic(fmt.Sprintf("lattice: node (%d,%d) outside %d-step grid", step, level, g.steps))
	}
	return g.data[rowOffset(step)+level]
}

// Row returns the step-th row. The slice aliases the grid's backing
// storage: callers must treat it as read-only.
func (g *Grid) Row(step int) []float64 {
	if step < 0 || step > g.steps {
		panic(fmt.Sprintf("lattice: row %d outside %d-step grid", step, g.steps))
	}
	off := rowOffset(step)
	return g.data[off : off+step+1]
}

// Terminal returns the last row, the expiry slice of the lattice.
func (g *Grid) Terminal() []float64 { return g.Row(g.steps) }

// Root returns the single time-zero entry.
func (g *Grid) Root() float64 { return g.data[0] }

// Rows copies the grid into a fresh [][]float64, one inner slice per
// row. Use it when handing the grid to serializers or renderers that
// may retain or reshape the data.
func (g *Grid) Rows() [][]float64 {
	rows := make([][]float64, g.steps+1)
	for step := 0; step <= g.steps; step++ {
		row := make([]float64, step+1)
		copy(row, g.Row(step))
		rows[step] = row
	}
	return rows
}
