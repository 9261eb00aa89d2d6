package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tessellated-io/wasmledger/metrics"
)

func TestPrometheusMetrics(t *testing.T) {
	m := metrics.NewPrometheusMetrics("wasmledger")

	m.IncTransactions(metrics.KindExecute, metrics.ResultSuccess)
	m.IncTransactions(metrics.KindExecute, metrics.ResultSuccess)
	m.IncTransactions(metrics.KindStoreCode, metrics.ResultRejected)
	m.ObserveConfirmationLatency(metrics.KindExecute, 3*time.Second)
	m.ObserveGasUsed(metrics.KindExecute, 120_000)
	m.IncQueries(metrics.ResultSuccess)

	count, err := testutil.GatherAndCount(m.Registry(), "wasmledger_transactions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	server := httptest.NewServer(m.HTTPHandler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `wasmledger_transactions_total{kind="execute",result="success"} 2`)
	assert.Contains(t, string(body), `wasmledger_queries_total{result="success"} 1`)
	assert.Contains(t, string(body), "wasmledger_confirmation_latency_seconds_count")
}

func TestNopMetrics(t *testing.T) {
	var m metrics.Metrics = metrics.NewNopMetrics()
	assert.NotPanics(t, func() {
		m.IncTransactions(metrics.KindInstantiate, metrics.ResultFailed)
		m.ObserveConfirmationLatency(metrics.KindInstantiate, time.Second)
		m.ObserveGasUsed(metrics.KindInstantiate, 1)
		m.IncQueries(metrics.ResultError)
	})
}
