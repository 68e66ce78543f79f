// Package lattice prices European options on a recombining
// Cox-Ross-Rubinstein binomial tree. The pipeline is deterministic:
// validate the parameters, derive the per-step quantities, build the
// forward stock-price grid, then induce option values backward to the
// root. Grids are immutable once built; rendering and any interactive
// use live entirely outside this package.
package lattice

import "math"

// Parameters describes one European option pricing request. Rate and
// volatility are percent points (4 means 4%), the way they are quoted;
// Derive converts to fractions exactly once. A Parameters value is
// never mutated by the pricer, so one value can serve many requests.
type Parameters struct {
	Spot          float64 // S0, current underlying price
	Strike        float64 // K, exercise price
	RiskFreePct   float64 // annual risk-free rate, percent points
	SigmaPct      float64 // annualized volatility, percent points
	MaturityYears float64 // T, time to expiry in years
	Steps         int     // N, number of lattice steps; 0 is legal
	Payoff        Kind
}

// Rate returns the risk-free rate as a fraction per year.
func (p Parameters) Rate() float64 { return p.RiskFreePct / 100 }

// Sigma returns the annualized volatility as a fraction.
func (p Parameters) Sigma() float64 { return p.SigmaPct / 100 }

// Validate checks the raw inputs against the model invariants and
// returns a *ValidationError naming the first violated field. The rate
// may be zero or negative; everything else must be strictly positive
// except Steps, which only needs to be non-negative.
func (p Parameters) Validate() error {
	for _, c := range []struct {
		field string
		value float64
	}{
		{"spot", p.Spot},
		{"strike", p.Strike},
		{"riskFreePct", p.RiskFreePct},
		{"sigmaPct", p.SigmaPct},
		{"maturityYears", p.MaturityYears},
	} {
		if !isFinite(c.value) {
			return &ValidationError{Field: c.field, Value: c.value, Reason: "must be finite"}
		}
	}
	if p.Spot <= 0 {
		return &ValidationError{Field: "spot", Value: p.Spot, Reason: "must be > 0"}
	}
	if p.Strike <= 0 {
		return &ValidationError{Field: "strike", Value: p.Strike, Reason: "must be > 0"}
	}
	if p.SigmaPct <= 0 {
		return &ValidationError{Field: "sigmaPct", Value: p.SigmaPct, Reason: "must be > 0"}
	}
	if p.MaturityYears <= 0 {
		return &ValidationError{Field: "maturityYears", Value: p.MaturityYears, Reason: "must be > 0"}
	}
	if p.Steps < 0 {
		return &ValidationError{Field: "steps", Value: p.Steps, Reason: "must be >= 0"}
	}
	if !p.Payoff.Valid() {
		return &ValidationError{Field: "payoff", Value: p.Payoff, Reason: "must be call or put"}
	}
	return nil
}

// Derived carries the per-step lattice quantities. All fields are
// fractions. U and D satisfy U = 1/D under CRR, so the tree recombines
// around the spot.
type Derived struct {
	Dt       float64 // years per step, T/N
	U        float64 // up factor, exp(sigma*sqrt(dt))
	D        float64 // down factor, 1/U
	Growth   float64 // per-step growth, exp(r*dt)
	Discount float64 // per-step discount, exp(-r*dt)
	P        float64 // risk-neutral up probability
}

// Derive computes the per-step quantities. Steps must be positive: a
// single-node lattice has no time step, and the pricer prices it from
// the intrinsic value without deriving anything.
func (p Parameters) Derive() (Derived, error) {
	if err := p.Validate(); err != nil {
		return Derived{}, err
	}
	if p.Steps == 0 {
		return Derived{}, &ValidationError{Field: "steps", Value: 0, Reason: "single-node lattice has no per-step quantities"}
	}
	dt := p.MaturityYears / float64(p.Steps)
	u := math.Exp(p.Sigma() * math.Sqrt(dt))
	d := Derived{
		Dt:       dt,
		U:        u,
		D:        1 / u,
		Growth:   math.Exp(p.Rate() * dt),
		Discount: math.Exp(-p.Rate() * dt),
	}
	if u == d.D {
		return Derived{}, &ValidationError{Field: "u", Value: u, Reason: "degenerate lattice, up factor equals down factor"}
	}
	d.P = (d.Growth - d.D) / (d.U - d.D)
	if err := d.Validate(); err != nil {
		return Derived{}, err
	}
	return d, nil
}

// Validate screens a Derived value the same way Derive screens its own
// output, so hand-built quantities cannot smuggle a broken lattice into
// the inducer. Degeneracy (u == d) is a ValidationError; a risk-neutral
// probability outside [0, 1] is an ArbitrageError.
func (d Derived) Validate() error {
	for _, c := range []struct {
		field string
		value float64
	}{
		{"u", d.U},
		{"d", d.D},
		{"discount", d.Discount},
	} {
		if !isFinite(c.value) || c.value <= 0 {
			return &ValidationError{Field: c.field, Value: c.value, Reason: "must be > 0 and finite"}
		}
	}
	if d.U == d.D {
		return &ValidationError{Field: "u", Value: d.U, Reason: "degenerate lattice, up factor equals down factor"}
	}
	if math.IsNaN(d.P) || d.P < 0 || d.P > 1 {
		return &ArbitrageError{P: d.P, U: d.U, D: d.D, Growth: d.Growth}
	}
	return nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
