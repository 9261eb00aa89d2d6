package metrics

import (
	"time"
)

// NopMetrics is a no-op implementation of the Metrics interface.
type NopMetrics struct{}

var _ Metrics = (*NopMetrics)(nil)

func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

func (m *NopMetrics) IncTransactions(kind, result string)                           {}
func (m *NopMetrics) ObserveConfirmationLatency(kind string, latency time.Duration) {}
func (m *NopMetrics) ObserveGasUsed(kind string, gasUsed int64)                     {}
func (m *NopMetrics) IncQueries(result string)                                      {}
