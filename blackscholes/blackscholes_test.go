package blackscholes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"lattice-pricer-go/lattice"
)

func TestPriceCall(t *testing.T) {
	// Textbook check: S0=40, K=40, r=4%, sigma=30%, T=0.5.
	got := Price(lattice.Call, 40, 40, 0.04, 0.30, 0.5)
	assert.InDelta(t, 3.7562, got, 0.005)
}

func TestPricePutCallParity(t *testing.T) {
	spot, strike, rate, sigma, years := 40.0, 40.0, 0.04, 0.30, 0.5
	call := Price(lattice.Call, spot, strike, rate, sigma, years)
	put := Price(lattice.Put, spot, strike, rate, sigma, years)

	want := spot - strike*math.Exp(-rate*years)
	assert.InDelta(t, want, call-put, 1e-9)
}

func TestPriceZeroYears(t *testing.T) {
	assert.Equal(t, 10.0, Price(lattice.Call, 50, 40, 0.04, 0.30, 0))
	assert.Equal(t, 0.0, Price(lattice.Call, 30, 40, 0.04, 0.30, 0))
	assert.Equal(t, 10.0, Price(lattice.Put, 30, 40, 0.04, 0.30, 0))
}

func TestPriceZeroSigma(t *testing.T) {
	// Deterministic underlying: the call is worth S - K*exp(-rT).
	got := Price(lattice.Call, 40, 30, 0.04, 0, 0.5)
	want := 40 - 30*math.Exp(-0.04*0.5)
	assert.InDelta(t, want, got, 1e-12)

	// And worthless when the certain forward stays below the strike.
	got = Price(lattice.Call, 40, 50, 0.04, 0, 0.5)
	assert.Equal(t, 0.0, got)
}

func TestPriceMonotoneInSigma(t *testing.T) {
	low := Price(lattice.Call, 40, 40, 0.04, 0.10, 0.5)
	high := Price(lattice.Call, 40, 40, 0.04, 0.50, 0.5)
	if !(high > low) {
		t.Errorf("call value did not grow with sigma: %v vs %v", low, high)
	}
}

func TestPriceParamsConvertsPercent(t *testing.T) {
	p := lattice.Parameters{
		Spot: 40, Strike: 40, RiskFreePct: 4, SigmaPct: 30,
		MaturityYears: 0.5, Steps: 101, Payoff: lattice.Call,
	}
	assert.InDelta(t, 3.7562, PriceParams(p), 0.005)
}
