package llmroute

import "time"

// Ledger tracks running spend per budget scope and enforces limits.
type Ledger interface {
	// Reserve atomically checks spent+estimate against the scope's limit
	// and commits the increment on success (pessimistic reservation).
	// Returns ErrBudgetExceeded without mutation when the budget is spent,
	// unless the scope qualifies for the audited last-call exception.
	Reserve(scopeID string, estimate float64) (Reservation, error)

	// Adjust finalizes a reservation once the actual cost is known:
	// delta = actual - estimated (negative for cheaper calls, -estimated
	// for a full refund after a failed call). Adjustments for reservations
	// granted in an earlier window are discarded: the spend they correct
	// was already dropped at rollover.
	Adjust(res Reservation, delta float64)

	// RecordSuccess marks that the scope completed a successful call in
	// the current window, disarming the starvation exception.
	RecordSuccess(scopeID string)

	// Remaining returns the remaining budget for a scope.
	Remaining(scopeID string) float64
}

// Reservation represents a committed budget reservation.
type Reservation struct {
	ScopeID string
	Amount  float64

	// Window is the start of the accounting window the reservation was
	// granted in. Adjust uses it to detect cross-window finalization.
	Window time.Time

	// LastCall is true when the reservation was granted through the
	// starvation exception despite an exhausted budget. At most one such
	// reservation is granted per scope per window.
	LastCall bool
}

// BudgetInitializer is implemented by ledgers that can be seeded with
// per-scope limits from configuration.
type BudgetInitializer interface {
	SetBudget(scopeID string, limit float64)
}
