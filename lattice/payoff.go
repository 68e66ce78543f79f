package lattice

import (
	"fmt"
	"math"
	"strings"
)

// Kind selects the terminal payoff applied at expiry.
type Kind int

const (
	// Call pays max(0, S-K) at expiry.
	Call Kind = iota
	// Put pays max(0, K-S) at expiry.
	Put
)

// String returns the lowercase name used in configs and wire formats.
func (k Kind) String() string {
	switch k {
	case Call:
		return "call"
	case Put:
		return "put"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is a known payoff kind.
func (k Kind) Valid() bool {
	return k == Call || k == Put
}

// ParseKind maps a config or flag string to a Kind. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	default:
		return Kind(-1), fmt.Errorf("unknown payoff kind %q (want call or put)", s)
	}
}

// Intrinsic returns the exercise value of the option at the given spot.
func (k Kind) Intrinsic(spot, strike float64) float64 {
	if k == Put {
		return math.Max(0, strike-spot)
	}
	return math.Max(0, spot-strike)
}
