package llmroute

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	ErrNoCandidates        = errors.New("llmroute: no candidates available")
	ErrUnknownBackend      = errors.New("llmroute: unknown backend")
	ErrBelowQualityFloor   = errors.New("llmroute: below quality floor")
	ErrAboveCostCeiling    = errors.New("llmroute: above cost ceiling")
	ErrProviderUnavailable = errors.New("llmroute: provider unavailable")
	ErrRateLimited         = errors.New("llmroute: rate limited")
	ErrBudgetExceeded      = errors.New("llmroute: budget exceeded")
	ErrTimeout             = errors.New("llmroute: deadline exceeded")
	ErrExhausted           = errors.New("llmroute: all candidates exhausted")
)

// RouteError wraps an error with routing context.
type RouteError struct {
	Err       error
	BackendID string
	ScopeID   string
	Attempts  int
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("llmroute: backend=%s scope=%s attempts=%d: %v",
		e.BackendID, e.ScopeID, e.Attempts, e.Err)
}

func (e *RouteError) Unwrap() error {
	return e.Err
}

// Rejection records why one ranked candidate was skipped or failed.
type Rejection struct {
	BackendID string
	Reason    error
}

// ExhaustedError is returned when every ranked candidate was rejected or
// failed. It carries the per-candidate reasons for diagnostics.
type ExhaustedError struct {
	RequestID  string
	Rejections []Rejection
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Rejections))
	for _, r := range e.Rejections {
		parts = append(parts, fmt.Sprintf("%s: %v", r.BackendID, r.Reason))
	}
	return fmt.Sprintf("llmroute: all candidates exhausted (request=%s): [%s]",
		e.RequestID, strings.Join(parts, "; "))
}

func (e *ExhaustedError) Unwrap() error {
	return ErrExhausted
}

// IsTerminal returns true if the error surfaces to the caller rather than
// being absorbed by the fallback loop.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrExhausted) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnknownBackend)
}
