package lattice

import "fmt"

// ValidationError reports an input that violates a model invariant.
// Field names the offending parameter and Value carries what the
// caller supplied, so the message always says which invariant broke
// and on what value.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lattice: invalid %s: %s (got %v)", e.Field, e.Reason, e.Value)
}

// ArbitrageError reports a risk-neutral up probability outside [0, 1].
// That happens exactly when the per-step growth factor exp(rΔt) leaves
// the [d, u] band, so the parameters admit riskless profit and no
// consistent price exists on the lattice.
type ArbitrageError struct {
	P      float64
	U      float64
	D      float64
	Growth float64
}

func (e *ArbitrageError) Error() string {
	return fmt.Sprintf("lattice: risk-neutral probability %g outside [0,1]: growth %g not inside [d=%g, u=%g]",
		e.P, e.Growth, e.D, e.U)
}
