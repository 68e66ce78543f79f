package lattice

import (
	"context"
	"math"
	"sync"
)

// minParallelRow is the shortest row worth fanning out: below this the
// goroutine handoff costs more than the row itself.
const minParallelRow = 256

// InduceValues walks option values backward from the terminal stock
// prices to the root. terminal is the last price-tree row (steps+1
// entries for a steps-step lattice); the result has the same
// triangular shape as the price tree that produced it, every entry is
// non-negative, and the root entry is the option price.
//
// The walk is level-synchronous: row step is fully written before row
// step-1 starts. Nodes within a row read only the row below, so long
// rows fan out across workers with a barrier before descending.
// ctx is polled between rows, never inside one, so cancellation never
// yields a torn row; a canceled walk returns the context error and no
// grid.
//
// A single-entry terminal row is the Steps == 0 case: the result is
// the intrinsic value at the root and derived quantities are not
// consulted at all.
func InduceValues(ctx context.Context, terminal []float64, strike float64, kind Kind, d Derived, workers int) (*Grid, error) {
	if len(terminal) == 0 {
		return nil, &ValidationError{Field: "terminal", Value: len(terminal), Reason: "terminal price row must not be empty"}
	}
	if !isFinite(strike) || strike <= 0 {
		return nil, &ValidationError{Field: "strike", Value: strike, Reason: "must be > 0 and finite"}
	}
	if !kind.Valid() {
		return nil, &ValidationError{Field: "payoff", Value: kind, Reason: "must be call or put"}
	}
	steps := len(terminal) - 1
	if steps > 0 {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}

	g := NewGrid(steps)
	expiry := g.Row(steps)
	for i, s := range terminal {
		expiry[i] = kind.Intrinsic(s, strike)
	}

	for step := steps - 1; step >= 0; step-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		induceRow(g.Row(step), g.Row(step+1), d, workers)
	}
	return g, nil
}

// induceRow fills dst from the already-complete row below it;
// len(src) == len(dst)+1. Short rows stay serial.
func induceRow(dst, src []float64, d Derived, workers int) {
	if workers <= 1 || len(dst) < minParallelRow {
		induceSpan(dst, src, d)
		return
	}
	span := (len(dst) + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < len(dst); lo += span {
		hi := lo + span
		if hi > len(dst) {
			hi = len(dst)
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			induceSpan(dst[lo:hi], src[lo:hi+1], d)
		}(lo, hi)
	}
	wg.Wait()
}

// induceSpan computes one contiguous span of a row. Each node holds
// the discounted risk-neutral expectation of its two children; src[j]
// is the down child of dst[j] and src[j+1] the up child. The max(0, .)
// floor only absorbs the negative dust float arithmetic can leave on a
// worthless node. It is not an early-exercise comparison: European
// values never consult intrinsic value before expiry.
func induceSpan(dst, src []float64, d Derived) {
	for j := range dst {
		cont := d.Discount * (d.P*src[j+1] + (1-d.P)*src[j])
		dst[j] = math.Max(0, cont)
	}
}
