package lattice

import (
	"context"
	"runtime"
	"time"
)

// PricerConfig tunes the pricing pipeline.
type PricerConfig struct {
	// Workers bounds the fan-out inside one induction row.
	// 0 picks GOMAXPROCS, 1 forces the serial walk.
	Workers int
}

// Pricer runs the full pipeline: validate, derive, build the price
// tree, induce values. A Pricer holds no request state and is safe for
// concurrent use from multiple goroutines.
type Pricer struct {
	workers int
}

// NewPricer builds a Pricer, applying defaults to the zero config.
func NewPricer(cfg PricerConfig) *Pricer {
	w := cfg.Workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	return &Pricer{workers: w}
}

// Result is the immutable outcome of one pricing request. Derived is
// the zero value when Params.Steps == 0, since a single-node lattice
// has nothing to derive.
type Result struct {
	Params  Parameters
	Derived Derived
	Prices  *Grid
	Values  *Grid
	Root    float64
	Elapsed time.Duration
}

// Price prices one European option. Failure is atomic: on any error
// the result is nil and no partially built grid escapes. Validation
// and arbitrage screening run before the O(N^2) grid work starts.
func (pr *Pricer) Price(ctx context.Context, p Parameters) (*Result, error) {
	start := time.Now()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if p.Steps == 0 {
		// Expiry is now: one node holding spot, worth intrinsic.
		prices := NewGrid(0)
		prices.Row(0)[0] = p.Spot
		values, err := InduceValues(ctx, prices.Terminal(), p.Strike, p.Payoff, Derived{}, 1)
		if err != nil {
			return nil, err
		}
		return &Result{
			Params:  p,
			Prices:  prices,
			Values:  values,
			Root:    values.Root(),
			Elapsed: time.Since(start),
		}, nil
	}

	d, err := p.Derive()
	if err != nil {
		return nil, err
	}
	prices, err := BuildPriceTree(p.Spot, d.U, d.D, p.Steps)
	if err != nil {
		return nil, err
	}
	values, err := InduceValues(ctx, prices.Terminal(), p.Strike, p.Payoff, d, pr.workers)
	if err != nil {
		return nil, err
	}
	return &Result{
		Params:  p,
		Derived: d,
		Prices:  prices,
		Values:  values,
		Root:    values.Root(),
		Elapsed: time.Since(start),
	}, nil
}
