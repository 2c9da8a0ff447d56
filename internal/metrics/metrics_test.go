package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	m := New()
	m.RecordOperation("sell", nil)
	m.RecordOperation("sell", errors.New("out of stock"))
	m.RecordOperation("sell", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("sell", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("sell", "error")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordOperation("sell", nil)
	m.RecordRecompute("YZY_Slides", true)
	m.RecordLedgerEvent("sale")
	m.ObserveLockWait(time.Millisecond)
	m.RecordHTTPRequest(http.MethodGet, "/healthz", 200, time.Millisecond)
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.RecordRecompute("Ess_HoodiePant", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `thredvault_wac_group_recomputes_total{changed="true",group="Ess_HoodiePant"} 1`))
}
