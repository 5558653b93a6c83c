package llmroute

import "time"

// Meter receives one event per completed or failed attempt. Delivery is
// fire-and-forget: implementations must not block and their failures never
// fail a request.
type Meter interface {
	OnAttempt(event AttemptEvent)
}

// AttemptEvent describes the outcome of a single attempt within Execute.
type AttemptEvent struct {
	RequestID string
	BackendID string
	ScopeID   string
	Attempt   int
	Success   bool
	Cost      float64
	Latency   time.Duration
	CacheHit  bool

	// RejectionReason is set when the candidate was skipped or failed.
	RejectionReason error

	// BudgetException flags calls admitted through the ledger's
	// last-call starvation exception, for auditing.
	BudgetException bool
}
