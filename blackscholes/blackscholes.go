// Package blackscholes provides the closed-form European option value
// used as the convergence reference for the lattice. The lattice
// itself never depends on it.
package blackscholes

import (
	"math"

	"github.com/chobie/go-gaussian"

	"lattice-pricer-go/lattice"
)

var stdNormal = gaussian.NewGaussian(0, 1)

// Price returns the Black-Scholes value of a European option. rate and
// sigma are fractions per year, years is time to expiry. Zero years or
// zero sigma collapse to the (discounted) certain payoff, matching the
// lattice's terminal behaviour.
func Price(kind lattice.Kind, spot, strike, rate, sigma, years float64) float64 {
	if years <= 0 {
		return kind.Intrinsic(spot, strike)
	}
	if sigma <= 0 {
		forward := spot * math.Exp(rate*years)
		return math.Exp(-rate*years) * kind.Intrinsic(forward, strike)
	}

	sqrtT := math.Sqrt(years)
	d1 := (math.Log(spot/strike) + (rate+0.5*sigma*sigma)*years) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	df := math.Exp(-rate * years)

	if kind == lattice.Put {
		return strike*df*stdNormal.Cdf(-d2) - spot*stdNormal.Cdf(-d1)
	}
	return spot*stdNormal.Cdf(d1) - strike*df*stdNormal.Cdf(d2)
}

// PriceParams prices from lattice Parameters, converting the
// percent-point quotes the same way the lattice does.
func PriceParams(p lattice.Parameters) float64 {
	return Price(p.Payoff, p.Spot, p.Strike, p.Rate(), p.Sigma(), p.MaturityYears)
}
