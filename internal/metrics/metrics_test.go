package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.RecordPosting("deposit", "ok", 5*time.Millisecond)
	c.RecordPosting("deposit", "ok", 5*time.Millisecond)
	c.RecordPosting("withdrawal", "insufficient_funds", time.Millisecond)
	c.RecordInsufficientFunds("client_ledger")
	c.RecordVoid()
	c.RecordCleared(3)
	c.RecordCleared(0)
	c.RecordReconciliation("completed")
	c.RecordImport(2, 1, 0)

	assert.InDelta(t, 2, testutil.ToFloat64(c.postings.WithLabelValues("deposit", "ok")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(c.insufficientFunds.WithLabelValues("client_ledger")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(c.voids), 0.001)
	assert.InDelta(t, 3, testutil.ToFloat64(c.clears), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(c.reconciliations.WithLabelValues("completed")), 0.001)
	assert.InDelta(t, 2, testutil.ToFloat64(c.importRows.WithLabelValues("matched")), 0.001)
}

func TestSetAccountBalance(t *testing.T) {
	c := NewCollector()
	c.SetAccountBalance("a1", decimal.RequireFromString("-12.50"), false)

	assert.InDelta(t, -12.5, testutil.ToFloat64(c.accountDifference.WithLabelValues("a1")), 0.001)
	assert.InDelta(t, 0, testutil.ToFloat64(c.accountBalanced.WithLabelValues("a1")), 0.001)

	c.SetAccountBalance("a1", decimal.Zero, true)
	assert.InDelta(t, 1, testutil.ToFloat64(c.accountBalanced.WithLabelValues("a1")), 0.001)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.RecordPosting("deposit", "ok", time.Second)
	c.RecordInsufficientFunds("trust_account")
	c.RecordVoid()
	c.RecordCleared(1)
	c.RecordReconciliation("draft")
	c.RecordImport(1, 1, 1)
	c.SetAccountBalance("a1", decimal.Zero, true)
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.RecordVoid()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "trust_voids_total 1")
}
