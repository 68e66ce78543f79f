package lattice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDerived builds consistent per-step quantities from an up factor
// and a per-step growth, the way Derive would.
func testDerived(u, growth float64) Derived {
	d := Derived{U: u, D: 1 / u, Growth: growth, Discount: 1 / growth}
	d.P = (d.Growth - d.D) / (d.U - d.D)
	return d
}

func TestInduceTerminalPayoff(t *testing.T) {
	terminal := []float64{30, 35, 40, 45, 50}
	d := testDerived(1.2, 1.01)

	calls, err := InduceValues(context.Background(), terminal, 40, Call, d, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 5, 10}, calls.Terminal())

	puts, err := InduceValues(context.Background(), terminal, 40, Put, d, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 5, 0, 0, 0}, puts.Terminal())
}

// TestInduceChildOrder pins the up/down wiring: with u=2, d=0.5 and
// zero rate, p = 1/3, so a 100-strike call on spot 100 must be worth
// exactly 100/3 one step out. Swapped children would give 200/3.
func TestInduceChildOrder(t *testing.T) {
	d := testDerived(2, 1)
	assert.InDelta(t, 1.0/3, d.P, 1e-15)

	g, err := InduceValues(context.Background(), []float64{50, 200}, 100, Call, d, 1)
	require.NoError(t, err)
	assert.InDelta(t, 100.0/3, g.Root(), 1e-12)
}

func TestInduceTwoStepByHand(t *testing.T) {
	// u=1.25, d=0.8, r=0: p = 4/9. Terminal call payoffs on spot 100,
	// strike 100 are [0, 0, 56.25], so node (1,1) is 4/9*56.25 = 25
	// and the root is 4/9*25 = 100/9.
	d := Derived{U: 1.25, D: 0.8, Growth: 1, Discount: 1}
	d.P = (d.Growth - d.D) / (d.U - d.D)

	g, err := InduceValues(context.Background(), []float64{64, 100, 156.25}, 100, Call, d, 1)
	require.NoError(t, err)

	assert.InDelta(t, 25, g.At(1, 1), 1e-12)
	assert.InDelta(t, 0, g.At(1, 0), 1e-12)
	assert.InDelta(t, 100.0/9, g.Root(), 1e-12)
}

func TestInduceShapeAndFloor(t *testing.T) {
	p := scenarioParams()
	d, err := p.Derive()
	require.NoError(t, err)
	prices, err := BuildPriceTree(p.Spot, d.U, d.D, p.Steps)
	require.NoError(t, err)

	for _, kind := range []Kind{Call, Put} {
		values, err := InduceValues(context.Background(), prices.Terminal(), p.Strike, kind, d, 1)
		require.NoError(t, err)
		require.Equal(t, prices.Steps(), values.Steps())

		for step := 0; step <= values.Steps(); step++ {
			for _, v := range values.Row(step) {
				if v < 0 {
					t.Fatalf("%v value below zero at step %d: %v", kind, step, v)
				}
			}
		}
	}
}

// TestInducePutCallParity checks C - P == S0 - K*DF^N at the root.
// Both walks share the lattice and the relation is linear, so it holds
// to float precision; it would break if the interior floor ever turned
// into an early-exercise comparison.
func TestInducePutCallParity(t *testing.T) {
	p := scenarioParams()
	d, err := p.Derive()
	require.NoError(t, err)
	prices, err := BuildPriceTree(p.Spot, d.U, d.D, p.Steps)
	require.NoError(t, err)

	call, err := InduceValues(context.Background(), prices.Terminal(), p.Strike, Call, d, 1)
	require.NoError(t, err)
	put, err := InduceValues(context.Background(), prices.Terminal(), p.Strike, Put, d, 1)
	require.NoError(t, err)

	df := 1.0
	for i := 0; i < p.Steps; i++ {
		df *= d.Discount
	}
	want := p.Spot - p.Strike*df
	assert.InDelta(t, want, call.Root()-put.Root(), 1e-9)
}

func TestInduceParallelMatchesSerial(t *testing.T) {
	p := scenarioParams()
	p.Steps = 600
	d, err := p.Derive()
	require.NoError(t, err)
	prices, err := BuildPriceTree(p.Spot, d.U, d.D, p.Steps)
	require.NoError(t, err)

	serial, err := InduceValues(context.Background(), prices.Terminal(), p.Strike, Call, d, 1)
	require.NoError(t, err)
	parallel, err := InduceValues(context.Background(), prices.Terminal(), p.Strike, Call, d, 8)
	require.NoError(t, err)

	// Same arithmetic per node, so the grids match bit for bit.
	require.Equal(t, serial.Rows(), parallel.Rows())
}

func TestInduceCanceled(t *testing.T) {
	p := scenarioParams()
	p.Steps = 400
	d, err := p.Derive()
	require.NoError(t, err)
	prices, err := BuildPriceTree(p.Spot, d.U, d.D, p.Steps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := InduceValues(ctx, prices.Terminal(), p.Strike, Call, d, 4)
	if g != nil {
		t.Error("got a grid from a canceled walk, want nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestInduceSingleNode(t *testing.T) {
	// One-entry terminal row: the walk never consults Derived.
	g, err := InduceValues(context.Background(), []float64{40}, 30, Call, Derived{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, g.Root())

	g, err = InduceValues(context.Background(), []float64{40}, 50, Call, Derived{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, g.Root())

	g, err = InduceValues(context.Background(), []float64{40}, 50, Put, Derived{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, g.Root())
}

func TestInduceRejects(t *testing.T) {
	ctx := context.Background()
	ok := testDerived(1.2, 1.01)

	var vErr *ValidationError
	_, err := InduceValues(ctx, nil, 40, Call, ok, 1)
	require.ErrorAs(t, err, &vErr)

	_, err = InduceValues(ctx, []float64{30, 50}, 0, Call, ok, 1)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "strike", vErr.Field)

	_, err = InduceValues(ctx, []float64{30, 50}, 40, Kind(9), ok, 1)
	require.ErrorAs(t, err, &vErr)

	degenerate := Derived{U: 1.1, D: 1.1, Growth: 1, Discount: 1, P: 0.5}
	_, err = InduceValues(ctx, []float64{30, 50}, 40, Call, degenerate, 1)
	require.ErrorAs(t, err, &vErr)

	var aErr *ArbitrageError
	arb := Derived{U: 1.2, D: 0.8, Growth: 1.5, Discount: 0.9, P: 1.75}
	_, err = InduceValues(ctx, []float64{30, 50}, 40, Call, arb, 1)
	require.ErrorAs(t, err, &aErr)
	assert.Equal(t, 1.75, aErr.P)
}
