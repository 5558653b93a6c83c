package llmroute

import (
	"sync"
	"time"
)

// Defaults for breaker tuning when zero values are passed to NewBreakerSet.
const (
	DefaultFailureThreshold = 5
	DefaultFailureWindow    = 5 * time.Minute
	DefaultCooldown         = 30 * time.Second
)

// BreakerState describes the health of one backend.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerSet tracks per-backend health using a circuit breaker pattern.
// Exactly one breaker exists per backend id, created lazily on first use.
// Operations on different ids never block each other.
type BreakerSet struct {
	mu       sync.RWMutex
	backends map[string]*breaker

	threshold int
	window    time.Duration
	cooldown  time.Duration
}

type breaker struct {
	mu            sync.Mutex
	state         BreakerState
	failures      []time.Time // sliding window of failure timestamps
	openedAt      time.Time
	probeInFlight bool
}

// NewBreakerSet creates a BreakerSet. Zero arguments fall back to defaults.
func NewBreakerSet(threshold int, window, cooldown time.Duration) *BreakerSet {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if window <= 0 {
		window = DefaultFailureWindow
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &BreakerSet{
		backends:  make(map[string]*breaker),
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
	}
}

func (b *BreakerSet) get(id string) *breaker {
	b.mu.RLock()
	br, ok := b.backends[id]
	b.mu.RUnlock()
	if ok {
		return br
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if br, ok = b.backends[id]; !ok {
		br = &breaker{state: BreakerClosed}
		b.backends[id] = br
	}
	return br
}

// Open→half-open happens lazily at query time, not via a timer.
// Must be called with br.mu held.
func (b *BreakerSet) maybeHalfOpen(br *breaker) {
	if br.state == BreakerOpen && time.Since(br.openedAt) >= b.cooldown {
		br.state = BreakerHalfOpen
		br.probeInFlight = false
	}
}

// State returns the current state for a backend without consuming a probe
// slot. A half-open breaker with a probe already in flight reports open.
func (b *BreakerSet) State(id string) BreakerState {
	br := b.get(id)
	br.mu.Lock()
	defer br.mu.Unlock()

	b.maybeHalfOpen(br)
	if br.state == BreakerHalfOpen && br.probeInFlight {
		return BreakerOpen
	}
	return br.state
}

// Allow reports whether a call to the backend may proceed. In half-open
// state it admits exactly one probe: the first caller gets true and owns
// the probe slot until RecordSuccess, RecordFailure, or Release.
func (b *BreakerSet) Allow(id string) bool {
	br := b.get(id)
	br.mu.Lock()
	defer br.mu.Unlock()

	b.maybeHalfOpen(br)

	switch br.state {
	case BreakerClosed:
		return true
	case BreakerHalfOpen:
		if br.probeInFlight {
			return false
		}
		br.probeInFlight = true
		return true
	default:
		return false
	}
}

// Release frees a half-open probe slot without recording an outcome.
// Used when a later admission check rejects the candidate before any
// backend call is made.
func (b *BreakerSet) Release(id string) {
	br := b.get(id)
	br.mu.Lock()
	defer br.mu.Unlock()

	if br.state == BreakerHalfOpen {
		br.probeInFlight = false
	}
}

// RecordSuccess records a successful call. A half-open probe success closes
// the breaker; any success clears the failure window.
func (b *BreakerSet) RecordSuccess(id string) {
	br := b.get(id)
	br.mu.Lock()
	defer br.mu.Unlock()

	br.state = BreakerClosed
	br.probeInFlight = false
	br.failures = br.failures[:0]
}

// RecordFailure records a failed call. A half-open probe failure reopens
// the breaker; in closed state the breaker opens once the failure count
// within the sliding window reaches the threshold.
func (b *BreakerSet) RecordFailure(id string) {
	br := b.get(id)
	br.mu.Lock()
	defer br.mu.Unlock()

	now := time.Now()

	if br.state == BreakerHalfOpen {
		br.state = BreakerOpen
		br.openedAt = now
		br.probeInFlight = false
		return
	}
	if br.state == BreakerOpen {
		return
	}

	// Prune failures outside the window.
	cutoff := now.Add(-b.window)
	valid := br.failures[:0]
	for _, t := range br.failures {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	br.failures = append(valid, now)

	if len(br.failures) >= b.threshold {
		br.state = BreakerOpen
		br.openedAt = now
		br.failures = br.failures[:0]
	}
}
