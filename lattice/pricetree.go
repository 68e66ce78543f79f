package lattice

import "math"

// BuildPriceTree builds the forward stock-price lattice: node
// (step, level) holds spot * u^level * d^(step-level). Every entry is
// computed in closed form rather than by multiplying along a path;
// cumulative products drift after a few hundred steps while Pow keeps
// each node independent of its neighbours. Row 0 therefore holds spot
// exactly, and within a row entries strictly increase with level.
func BuildPriceTree(spot, u, d float64, steps int) (*Grid, error) {
	if !isFinite(spot) || spot <= 0 {
		return nil, &ValidationError{Field: "spot", Value: spot, Reason: "must be > 0 and finite"}
	}
	if steps < 0 {
		return nil, &ValidationError{Field: "steps", Value: steps, Reason: "must be >= 0"}
	}
	if !isFinite(u) || u <= 0 {
		return nil, &ValidationError{Field: "u", Value: u, Reason: "must be > 0 and finite"}
	}
	if !isFinite(d) || d <= 0 {
		return nil, &ValidationError{Field: "d", Value: d, Reason: "must be > 0 and finite"}
	}
	if u == d {
		return nil, &ValidationError{Field: "u", Value: u, Reason: "degenerate lattice, up factor equals down factor"}
	}
	if u < d {
		return nil, &ValidationError{Field: "u", Value: u, Reason: "up factor must exceed down factor"}
	}

	g := NewGrid(steps)
	for step := 0; step <= steps; step++ {
		row := g.Row(step)
		for level := range row {
			row[level] = spot * math.Pow(u, float64(level)) * math.Pow(d, float64(step-level))
		}
	}
	return g, nil
}
