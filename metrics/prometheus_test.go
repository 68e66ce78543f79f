package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequest(t *testing.T) {
	// Reset metrics to initial state
	PricingRequests.Reset()
	LastRootPrice.Set(0)
	LastSteps.Set(0)
	LastGridNodes.Set(0)

	ObserveRequest("call", 101, 5253, 3.75, 25*time.Millisecond)

	if got := testutil.ToFloat64(PricingRequests.WithLabelValues("call")); got != 1 {
		t.Errorf("Expected PricingRequests[call] to be 1, got %f", got)
	}
	if got := testutil.ToFloat64(LastRootPrice); got != 3.75 {
		t.Errorf("Expected LastRootPrice to be 3.75, got %f", got)
	}
	if got := testutil.ToFloat64(LastSteps); got != 101 {
		t.Errorf("Expected LastSteps to be 101, got %f", got)
	}
	if got := testutil.ToFloat64(LastGridNodes); got != 5253 {
		t.Errorf("Expected LastGridNodes to be 5253, got %f", got)
	}
}

func TestRecordFailure(t *testing.T) {
	PricingFailures.Reset()

	RecordFailure("validation")
	RecordFailure("validation")
	RecordFailure("arbitrage")

	if got := testutil.ToFloat64(PricingFailures.WithLabelValues("validation")); got != 2 {
		t.Errorf("Expected PricingFailures[validation] to be 2, got %f", got)
	}
	if got := testutil.ToFloat64(PricingFailures.WithLabelValues("arbitrage")); got != 1 {
		t.Errorf("Expected PricingFailures[arbitrage] to be 1, got %f", got)
	}
}

func TestStoreAndClientGauges(t *testing.T) {
	StoredResults.Set(0)
	WSClients.Set(0)

	UpdateStoreSize(7)
	if got := testutil.ToFloat64(StoredResults); got != 7 {
		t.Errorf("Expected StoredResults to be 7, got %f", got)
	}

	WSClientConnected()
	WSClientConnected()
	WSClientDisconnected()
	if got := testutil.ToFloat64(WSClients); got != 1 {
		t.Errorf("Expected WSClients to be 1, got %f", got)
	}
}
