package ledger

import (
	"math"
	"sync"
	"time"

	"github.com/opsmend/llmroute"
)

// MemoryLedger is an in-memory Ledger with fixed-length accounting
// windows. Scope entries are partitioned: operations on different scopes
// never block each other.
type MemoryLedger struct {
	mu     sync.RWMutex
	scopes map[string]*scopeBudget

	window        time.Duration
	allowLastCall bool
}

type scopeBudget struct {
	mu           sync.Mutex
	limit        float64
	spent        float64
	windowStart  time.Time
	succeeded    bool
	lastCallUsed bool
}

var _ llmroute.Ledger = (*MemoryLedger)(nil)
var _ llmroute.BudgetInitializer = (*MemoryLedger)(nil)

// Option configures a MemoryLedger.
type Option func(*MemoryLedger)

// WithLastCall enables the starvation exception: a scope that has not made
// a successful call in the current window may exceed its budget exactly
// once. Such reservations are flagged for auditing.
func WithLastCall(enabled bool) Option {
	return func(l *MemoryLedger) { l.allowLastCall = enabled }
}

// NewMemoryLedger creates an in-memory ledger. window is the accounting
// window length; zero means 24h.
func NewMemoryLedger(window time.Duration, opts ...Option) *MemoryLedger {
	if window <= 0 {
		window = 24 * time.Hour
	}
	l := &MemoryLedger{
		scopes: make(map[string]*scopeBudget),
		window: window,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetBudget configures the per-window limit for a scope. Scopes without a
// budget are unlimited.
func (l *MemoryLedger) SetBudget(scopeID string, limit float64) {
	sb := l.get(scopeID)
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.limit = limit
}

func (l *MemoryLedger) get(scopeID string) *scopeBudget {
	l.mu.RLock()
	sb, ok := l.scopes[scopeID]
	l.mu.RUnlock()
	if ok {
		return sb
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if sb, ok = l.scopes[scopeID]; !ok {
		sb = &scopeBudget{limit: math.Inf(1), windowStart: time.Now()}
		l.scopes[scopeID] = sb
	}
	return sb
}

// Reserve commits the estimated cost against the scope's budget.
func (l *MemoryLedger) Reserve(scopeID string, estimate float64) (llmroute.Reservation, error) {
	sb := l.get(scopeID)
	sb.mu.Lock()
	defer sb.mu.Unlock()

	l.maybeRoll(sb)

	if sb.spent+estimate <= sb.limit {
		sb.spent += estimate
		return llmroute.Reservation{ScopeID: scopeID, Amount: estimate, Window: sb.windowStart}, nil
	}

	// Last-call exception: one over-budget call per window, only for
	// scopes that have not completed a single successful call yet.
	if l.allowLastCall && !sb.succeeded && !sb.lastCallUsed {
		sb.lastCallUsed = true
		sb.spent += estimate
		return llmroute.Reservation{ScopeID: scopeID, Amount: estimate, Window: sb.windowStart, LastCall: true}, nil
	}

	return llmroute.Reservation{}, llmroute.ErrBudgetExceeded
}

// Adjust applies the difference between actual and estimated cost. An
// adjustment for a reservation from a previous window is discarded: the
// spend it corrects was already dropped at rollover.
func (l *MemoryLedger) Adjust(res llmroute.Reservation, delta float64) {
	sb := l.get(res.ScopeID)
	sb.mu.Lock()
	defer sb.mu.Unlock()

	l.maybeRoll(sb)
	if !res.Window.Equal(sb.windowStart) {
		return
	}

	sb.spent += delta
	if sb.spent < 0 {
		sb.spent = 0
	}
}

// RecordSuccess marks the scope's current window as having served a call.
func (l *MemoryLedger) RecordSuccess(scopeID string) {
	sb := l.get(scopeID)
	sb.mu.Lock()
	defer sb.mu.Unlock()

	l.maybeRoll(sb)
	sb.succeeded = true
}

// Remaining returns the unspent budget for a scope in the current window.
func (l *MemoryLedger) Remaining(scopeID string) float64 {
	sb := l.get(scopeID)
	sb.mu.Lock()
	defer sb.mu.Unlock()

	l.maybeRoll(sb)
	remaining := sb.limit - sb.spent
	if remaining < 0 {
		return 0
	}
	return remaining
}

// maybeRoll resets spend at window rollover. Must be called with sb.mu held.
func (l *MemoryLedger) maybeRoll(sb *scopeBudget) {
	now := time.Now()
	if now.Sub(sb.windowStart) >= l.window {
		sb.spent = 0
		sb.succeeded = false
		sb.lastCallUsed = false
		sb.windowStart = now
	}
}
