package lattice

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPriceTreeScenario(t *testing.T) {
	p := scenarioParams()
	d, err := p.Derive()
	require.NoError(t, err)

	g, err := BuildPriceTree(p.Spot, d.U, d.D, p.Steps)
	require.NoError(t, err)
	require.Equal(t, p.Steps, g.Steps())

	if got := g.At(0, 0); got != 40.0 {
		t.Errorf("At(0,0) = %v, want exactly 40", got)
	}
	if got, want := g.At(101, 101), 40*math.Pow(d.U, 101); got != want {
		t.Errorf("At(101,101) = %v, want %v", got, want)
	}
	if got, want := g.At(101, 0), 40*math.Pow(d.D, 101); got != want {
		t.Errorf("At(101,0) = %v, want %v", got, want)
	}
}

func TestBuildPriceTreeClosedForm(t *testing.T) {
	g, err := BuildPriceTree(40, 1.1, 1/1.1, 60)
	require.NoError(t, err)

	// One up then one down recombines to spot since u*d == 1.
	assert.InEpsilon(t, 40.0, g.At(2, 1), 1e-12)
	assert.InEpsilon(t, 40.0, g.At(10, 5), 1e-12)
	assert.InEpsilon(t, 40*1.1, g.At(1, 1), 1e-12)
	assert.InEpsilon(t, 40/1.1, g.At(1, 0), 1e-12)
}

func TestBuildPriceTreeMonotonic(t *testing.T) {
	g, err := BuildPriceTree(40, 1.1, 1/1.1, 60)
	require.NoError(t, err)

	for step := 1; step <= g.Steps(); step++ {
		if !(g.At(step, 0) < g.At(step-1, 0)) {
			t.Fatalf("bottom branch not strictly decreasing at step %d", step)
		}
		if !(g.At(step, step) > g.At(step-1, step-1)) {
			t.Fatalf("top branch not strictly increasing at step %d", step)
		}
		row := g.Row(step)
		for j := 1; j < len(row); j++ {
			if !(row[j] > row[j-1]) {
				t.Fatalf("row %d not strictly increasing at level %d", step, j)
			}
		}
	}
}

func TestBuildPriceTreeSingleNode(t *testing.T) {
	g, err := BuildPriceTree(40, 1.1, 1/1.1, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Steps())
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, 40.0, g.Root())
}

func TestBuildPriceTreeRejects(t *testing.T) {
	tests := []struct {
		name  string
		spot  float64
		u, d  float64
		steps int
	}{
		{"zero spot", 0, 1.1, 0.9, 3},
		{"negative spot", -40, 1.1, 0.9, 3},
		{"negative steps", 40, 1.1, 0.9, -1},
		{"zero u", 40, 0, 0.9, 3},
		{"zero d", 40, 1.1, 0, 3},
		{"degenerate", 40, 1.1, 1.1, 3},
		{"inverted factors", 40, 0.9, 1.1, 3},
		{"nan u", 40, math.NaN(), 0.9, 3},
		{"inf spot", math.Inf(1), 1.1, 0.9, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := BuildPriceTree(tt.spot, tt.u, tt.d, tt.steps)
			if g != nil {
				t.Error("got a grid, want nil on invalid input")
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
		})
	}
}
