// Package gridcsv moves pricing scenarios and computed lattices
// through CSV, the hand-off format for spreadsheets and external
// renderers.
package gridcsv

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"lattice-pricer-go/lattice"
)

// ScenarioRecord is one row of a scenario batch file.
type ScenarioRecord struct {
	Name          string  `csv:"name"`
	Spot          float64 `csv:"spot"`
	Strike        float64 `csv:"strike"`
	RiskFreePct   float64 `csv:"rate_pct"`
	SigmaPct      float64 `csv:"sigma_pct"`
	MaturityYears float64 `csv:"years"`
	Steps         int     `csv:"steps"`
	Payoff        string  `csv:"payoff"`
}

// Parameters converts the record into pricing parameters. Numeric
// range checks stay with lattice.Parameters.Validate; only the payoff
// string is interpreted here.
func (r ScenarioRecord) Parameters() (lattice.Parameters, error) {
	kind, err := lattice.ParseKind(r.Payoff)
	if err != nil {
		return lattice.Parameters{}, fmt.Errorf("scenario %q: %w", r.Name, err)
	}
	return lattice.Parameters{
		Spot:          r.Spot,
		Strike:        r.Strike,
		RiskFreePct:   r.RiskFreePct,
		SigmaPct:      r.SigmaPct,
		MaturityYears: r.MaturityYears,
		Steps:         r.Steps,
		Payoff:        kind,
	}, nil
}

// ReadScenarios parses a scenario batch file.
func ReadScenarios(r io.Reader) ([]ScenarioRecord, error) {
	var recs []ScenarioRecord
	if err := gocsv.Unmarshal(r, &recs); err != nil {
		return nil, fmt.Errorf("gridcsv: parse scenarios: %w", err)
	}
	return recs, nil
}

// NodeRecord flattens one lattice node: the stock price and the option
// value at (step, level).
type NodeRecord struct {
	Step  int     `csv:"step"`
	Level int     `csv:"level"`
	Price float64 `csv:"price"`
	Value float64 `csv:"value"`
}

// WriteNodes writes every node of a priced result in row order, top of
// the row last, one line per node.
func WriteNodes(w io.Writer, res *lattice.Result) error {
	recs := make([]NodeRecord, 0, res.Prices.NodeCount())
	for step := 0; step <= res.Prices.Steps(); step++ {
		prow := res.Prices.Row(step)
		vrow := res.Values.Row(step)
		for level := range prow {
			recs = append(recs, NodeRecord{
				Step:  step,
				Level: level,
				Price: prow[level],
				Value: vrow[level],
			})
		}
	}
	if err := gocsv.Marshal(&recs, w); err != nil {
		return fmt.Errorf("gridcsv: write nodes: %w", err)
	}
	return nil
}

// ReadNodes parses a node dump back, mostly for tests and tooling.
func ReadNodes(r io.Reader) ([]NodeRecord, error) {
	var recs []NodeRecord
	if err := gocsv.Unmarshal(r, &recs); err != nil {
		return nil, fmt.Errorf("gridcsv: parse nodes: %w", err)
	}
	return recs, nil
}

// SummaryRecord is one priced scenario in a batch report.
type SummaryRecord struct {
	Name      string  `csv:"name"`
	Payoff    string  `csv:"payoff"`
	Steps     int     `csv:"steps"`
	Root      float64 `csv:"root"`
	BSRef     float64 `csv:"bs_ref"`
	AbsError  float64 `csv:"abs_error"`
	ElapsedMs float64 `csv:"elapsed_ms"`
}

// WriteSummaries writes a batch report.
func WriteSummaries(w io.Writer, recs []SummaryRecord) error {
	if err := gocsv.Marshal(&recs, w); err != nil {
		return fmt.Errorf("gridcsv: write summaries: %w", err)
	}
	return nil
}
