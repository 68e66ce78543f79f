// Package convergence measures how fast the lattice root approaches
// the Black-Scholes closed form as the step count grows.
package convergence

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"lattice-pricer-go/blackscholes"
	"lattice-pricer-go/lattice"
)

// Point is one sweep sample: the lattice root at Steps against the
// closed-form reference for the same contract.
type Point struct {
	Steps    int
	Root     float64
	Ref      float64
	AbsError float64
}

// Sweep prices the same contract at each step count in stepsList,
// which must be positive and strictly increasing so downstream fits
// are well-posed. The Steps field of params itself is ignored.
func Sweep(ctx context.Context, params lattice.Parameters, stepsList []int, workers int) ([]Point, error) {
	if len(stepsList) == 0 {
		return nil, fmt.Errorf("convergence: empty steps list")
	}
	prev := 0
	for _, n := range stepsList {
		if n <= prev {
			return nil, fmt.Errorf("convergence: steps list must be positive and strictly increasing, got %v", stepsList)
		}
		prev = n
	}

	ref := blackscholes.PriceParams(params)
	pr := lattice.NewPricer(lattice.PricerConfig{Workers: workers})

	points := make([]Point, 0, len(stepsList))
	for _, n := range stepsList {
		p := params
		p.Steps = n
		res, err := pr.Price(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("convergence: steps %d: %w", n, err)
		}
		points = append(points, Point{
			Steps:    n,
			Root:     res.Root,
			Ref:      ref,
			AbsError: math.Abs(res.Root - ref),
		})
	}
	return points, nil
}

// EstimateOrder fits log(error) against log(N) and returns the decay
// order, the negated regression slope: order 1 means error ~ 1/N.
// Points with zero error are skipped since their log diverges; the fit
// needs at least two surviving points.
func EstimateOrder(points []Point) (float64, error) {
	xs := make([]float64, 0, len(points))
	ys := make([]float64, 0, len(points))
	for _, pt := range points {
		if pt.AbsError <= 0 {
			continue
		}
		xs = append(xs, math.Log(float64(pt.Steps)))
		ys = append(ys, math.Log(pt.AbsError))
	}
	if len(xs) < 2 {
		return 0, fmt.Errorf("convergence: need at least 2 points with nonzero error, have %d", len(xs))
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return -slope, nil
}

// Summary aggregates the absolute errors of a sweep.
type Summary struct {
	MeanAbsError float64
	StdAbsError  float64
	MaxAbsError  float64
}

// Summarize reduces a sweep to its error statistics.
func Summarize(points []Point) (Summary, error) {
	if len(points) == 0 {
		return Summary{}, fmt.Errorf("convergence: no points to summarize")
	}
	errs := make([]float64, len(points))
	for i, pt := range points {
		errs[i] = pt.AbsError
	}
	mean, std := stat.MeanStdDev(errs, nil)
	if len(errs) == 1 {
		std = 0
	}
	return Summary{
		MeanAbsError: mean,
		StdAbsError:  std,
		MaxAbsError:  floats.Max(errs),
	}, nil
}
