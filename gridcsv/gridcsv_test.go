package gridcsv

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice-pricer-go/lattice"
)

func TestReadScenarios(t *testing.T) {
	in := strings.NewReader(
		"name,spot,strike,rate_pct,sigma_pct,years,steps,payoff\n" +
			"atm-call,40,40,4,30,0.5,101,call\n" +
			"otm-put,100,80,2,25,1,50,put\n")

	recs, err := ReadScenarios(in)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "atm-call", recs[0].Name)
	assert.Equal(t, 40.0, recs[0].Spot)
	assert.Equal(t, 101, recs[0].Steps)

	p, err := recs[0].Parameters()
	require.NoError(t, err)
	assert.Equal(t, lattice.Call, p.Payoff)
	require.NoError(t, p.Validate())

	p, err = recs[1].Parameters()
	require.NoError(t, err)
	assert.Equal(t, lattice.Put, p.Payoff)
}

func TestScenarioBadPayoff(t *testing.T) {
	rec := ScenarioRecord{Name: "weird", Spot: 40, Strike: 40, Payoff: "straddle"}
	_, err := rec.Parameters()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weird")
}

func TestWriteNodesRoundTrip(t *testing.T) {
	pr := lattice.NewPricer(lattice.PricerConfig{})
	res, err := pr.Price(context.Background(), lattice.Parameters{
		Spot: 40, Strike: 40, RiskFreePct: 4, SigmaPct: 30,
		MaturityYears: 0.5, Steps: 3, Payoff: lattice.Call,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteNodes(&buf, res))

	recs, err := ReadNodes(&buf)
	require.NoError(t, err)
	require.Len(t, recs, res.Prices.NodeCount())

	// Row order with the root first and the terminal top last.
	assert.Equal(t, NodeRecord{Step: 0, Level: 0, Price: res.Prices.At(0, 0), Value: res.Values.At(0, 0)}, recs[0])
	last := recs[len(recs)-1]
	assert.Equal(t, 3, last.Step)
	assert.Equal(t, 3, last.Level)
	assert.InDelta(t, res.Prices.At(3, 3), last.Price, 1e-9)
	assert.InDelta(t, res.Values.At(3, 3), last.Value, 1e-9)
}

func TestWriteSummaries(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSummaries(&buf, []SummaryRecord{
		{Name: "atm-call", Payoff: "call", Steps: 101, Root: 3.75, BSRef: 3.7562, AbsError: 0.0062, ElapsedMs: 1.2},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "name,payoff,steps,root,bs_ref,abs_error,elapsed_ms")
	assert.Contains(t, out, "atm-call")
}
