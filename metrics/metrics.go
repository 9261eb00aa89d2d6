package metrics

import "time"

// Metrics records what the contract facade does. Implementations must be safe for concurrent use.
type Metrics interface {
	// Transaction metrics
	IncTransactions(kind, result string)
	ObserveConfirmationLatency(kind string, latency time.Duration)
	ObserveGasUsed(kind string, gasUsed int64)

	// Query metrics
	IncQueries(result string)
}

// Transaction kinds
const (
	KindStoreCode   = "store_code"
	KindInstantiate = "instantiate"
	KindExecute     = "execute"
)

// Results
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
	ResultTimeout  = "timeout"
	ResultError    = "error"
)
