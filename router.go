package llmroute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Router routes inference requests across interchangeable backend models
// under live cost, quality, and health constraints.
type Router struct {
	cfg      Config
	registry *Registry
	backends map[string]Backend
	selector Selector
	breakers *BreakerSet
	limiter  *RateLimiter
	ledger   Ledger
	cache    Cache
	meter    Meter
	logger   *zap.Logger
	group    singleflight.Group
}

// Option configures a Router.
type Option func(*Router)

// WithSelector sets the ranking strategy.
func WithSelector(s Selector) Option {
	return func(r *Router) { r.selector = s }
}

// WithLedger sets the cost ledger.
func WithLedger(l Ledger) Option {
	return func(r *Router) { r.ledger = l }
}

// WithCache sets the response cache. No cache means every request reaches
// a backend.
func WithCache(c Cache) Option {
	return func(r *Router) { r.cache = c }
}

// WithMeter sets the metrics sink.
func WithMeter(m Meter) Option {
	return func(r *Router) { r.meter = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithBreakerSet overrides the breaker set built from config.
func WithBreakerSet(b *BreakerSet) Option {
	return func(r *Router) { r.breakers = b }
}

// WithRateLimiter overrides the rate limiter built from config.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(r *Router) { r.limiter = rl }
}

// NewRouter creates a Router with the given config and backend clients.
// Default components (DefaultSelector, unlimited ledger, no cache, noop
// meter) are used unless overridden via options.
func NewRouter(cfg Config, backends []Backend, opts ...Option) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("llmroute: at least one backend is required")
	}

	backendMap := make(map[string]Backend, len(backends))
	for _, b := range backends {
		backendMap[b.Name()] = b
	}
	for _, b := range cfg.Backends {
		if _, ok := backendMap[b.Provider]; !ok {
			return nil, fmt.Errorf("llmroute: no backend client for provider %q (model %s)", b.Provider, b.ID)
		}
	}

	r := &Router{
		cfg:      cfg,
		registry: NewRegistry(cfg.Models()...),
		backends: backendMap,
	}

	for _, opt := range opts {
		opt(r)
	}

	// Apply defaults after options.
	if r.selector == nil {
		r.selector = &DefaultSelector{}
	}
	if r.breakers == nil {
		r.breakers = NewBreakerSet(cfg.Breaker.FailureThreshold,
			cfg.Breaker.FailureWindow.Duration, cfg.Breaker.Cooldown.Duration)
	}
	if r.limiter == nil {
		r.limiter = NewRateLimiter()
	}
	if r.ledger == nil {
		r.ledger = &noopLedger{}
	}
	if r.meter == nil {
		r.meter = &noopMeter{}
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	r.applyLimits(cfg)

	// Seed scope budgets from config if the ledger supports it.
	if init, ok := r.ledger.(BudgetInitializer); ok {
		for _, bg := range cfg.Budgets {
			init.SetBudget(bg.Scope, bg.Limit)
		}
	}

	return r, nil
}

func (r *Router) applyLimits(cfg Config) {
	for _, b := range cfg.Backends {
		if b.Rate.Capacity > 0 {
			r.limiter.SetLimit(b.ID, b.Rate.Capacity, b.Rate.RefillPerSec)
		}
	}
}

// Registry returns the router's catalog registry, e.g. for config watchers.
func (r *Router) Registry() *Registry {
	return r.registry
}

// Reload validates a fresh config and atomically publishes the new catalog.
// Requests already in flight keep their captured snapshot.
func (r *Router) Reload(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, b := range cfg.Backends {
		if _, ok := r.backends[b.Provider]; !ok {
			return fmt.Errorf("llmroute: no backend client for provider %q (model %s)", b.Provider, b.ID)
		}
	}

	r.registry.Publish(cfg.Models())
	r.applyLimits(cfg)
	if init, ok := r.ledger.(BudgetInitializer); ok {
		for _, bg := range cfg.Budgets {
			init.SetBudget(bg.Scope, bg.Limit)
		}
	}

	r.logger.Info("catalog reloaded", zap.Int("backends", len(cfg.Backends)))
	return nil
}

// Execute routes one request end-to-end: cache lookup, candidate ranking,
// admission checks, backend call, and fallback on failure. The request
// deadline bounds the whole attempt sequence, not each attempt.
func (r *Router) Execute(ctx context.Context, req Request, prompt string) (CompletionResult, error) {
	if len(req.Candidates) == 0 {
		return CompletionResult{}, ErrNoCandidates
	}

	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	requestID := req.IdempotencyKey
	if requestID == "" {
		requestID = uuid.New().String()
	}

	if r.cache == nil {
		return r.attempt(ctx, req, prompt, requestID, "")
	}

	// Concurrent misses for the same key share one fill: the first caller
	// proceeds to the backend, the rest wait on its result.
	key := CacheKey(req.TaskType, prompt)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		if e, ok := r.cache.Lookup(key, NormalizePrompt(prompt)); ok {
			r.meter.OnAttempt(AttemptEvent{
				RequestID: requestID,
				ScopeID:   req.ScopeID,
				Success:   true,
				CacheHit:  true,
			})
			return CompletionResult{
				Text:      e.Response,
				CacheHit:  true,
				RequestID: requestID,
			}, nil
		}
		return r.attempt(ctx, req, prompt, requestID, key)
	})

	// Waiting on the shared fill must not outlive this caller's own
	// deadline. The fill keeps running for the other waiters.
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return CompletionResult{}, &RouteError{Err: ErrTimeout, ScopeID: req.ScopeID}
		}
		return CompletionResult{}, ctx.Err()

	case out := <-ch:
		if out.Err != nil {
			return CompletionResult{}, out.Err
		}
		res := out.Val.(CompletionResult)
		if out.Shared {
			// Joiners paid nothing and made no call of their own.
			res.CacheHit = true
			res.Cost = 0
		}
		res.RequestID = requestID
		return res, nil
	}
}

func (r *Router) attempt(ctx context.Context, req Request, prompt, requestID, cacheKey string) (CompletionResult, error) {
	promptTokens := EstimateTokens(prompt)
	snap := r.registry.Snapshot()

	candidates, err := buildCandidates(snap, req, r.breakers, promptTokens)
	if err != nil {
		return CompletionResult{}, err
	}

	ranked := r.selector.Rank(req, candidates)
	if len(ranked) == 0 {
		// Every candidate was filtered out before admission; report the
		// per-candidate reason rather than a bare sentinel.
		rejections := make([]Rejection, 0, len(candidates))
		for _, c := range candidates {
			rejections = append(rejections, Rejection{BackendID: c.Model.ID, Reason: exclusionReason(req, c)})
		}
		return CompletionResult{}, &ExhaustedError{RequestID: requestID, Rejections: rejections}
	}

	var rejections []Rejection
	for i, c := range ranked {
		attempt := i + 1
		id := c.Model.ID

		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return CompletionResult{}, &RouteError{Err: ErrTimeout, ScopeID: req.ScopeID, Attempts: i}
			}
			return CompletionResult{}, ctxErr
		}

		if !r.breakers.Allow(id) {
			rejections = r.reject(rejections, requestID, req.ScopeID, id, attempt, ErrProviderUnavailable)
			continue
		}
		if !r.limiter.Admit(id, 1) {
			r.breakers.Release(id)
			rejections = r.reject(rejections, requestID, req.ScopeID, id, attempt, ErrRateLimited)
			continue
		}
		reservation, resErr := r.ledger.Reserve(req.ScopeID, c.EstimatedCost)
		if resErr != nil {
			r.breakers.Release(id)
			rejections = r.reject(rejections, requestID, req.ScopeID, id, attempt, resErr)
			continue
		}

		start := time.Now()
		inv, callErr := r.backends[c.Model.Provider].Invoke(ctx, id, prompt)
		latency := time.Since(start)

		if callErr != nil {
			r.breakers.RecordFailure(id)
			r.ledger.Adjust(reservation, -c.EstimatedCost)
			r.meter.OnAttempt(AttemptEvent{
				RequestID:       requestID,
				BackendID:       id,
				ScopeID:         req.ScopeID,
				Attempt:         attempt,
				Latency:         latency,
				RejectionReason: callErr,
				BudgetException: reservation.LastCall,
			})
			rejections = append(rejections, Rejection{BackendID: id, Reason: callErr})

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return CompletionResult{}, &RouteError{Err: ErrTimeout, BackendID: id, ScopeID: req.ScopeID, Attempts: attempt}
			}
			continue
		}

		actualCost := CostOf(c.Model, inv.Usage)
		r.breakers.RecordSuccess(id)
		r.ledger.Adjust(reservation, actualCost-c.EstimatedCost)
		r.ledger.RecordSuccess(req.ScopeID)

		if cacheKey != "" {
			r.cache.Store(cacheKey, NormalizePrompt(prompt), CacheEntry{
				Key:          cacheKey,
				PromptDigest: PromptDigest(prompt),
				Response:     inv.Text,
				Cost:         actualCost,
				CreatedAt:    time.Now(),
			})
		}

		r.meter.OnAttempt(AttemptEvent{
			RequestID:       requestID,
			BackendID:       id,
			ScopeID:         req.ScopeID,
			Attempt:         attempt,
			Success:         true,
			Cost:            actualCost,
			Latency:         latency,
			BudgetException: reservation.LastCall,
		})

		return CompletionResult{
			Text:        inv.Text,
			BackendUsed: id,
			Cost:        actualCost,
			Latency:     latency,
			Attempts:    attempt,
			RequestID:   requestID,
		}, nil
	}

	return CompletionResult{}, &ExhaustedError{RequestID: requestID, Rejections: rejections}
}

// exclusionReason explains why a candidate cannot appear in any ranking
// for the request.
func exclusionReason(req Request, c Candidate) error {
	if c.Model.Quality < req.MinQuality {
		return ErrBelowQualityFloor
	}
	if req.MaxCost > 0 && c.EstimatedCost > req.MaxCost {
		return ErrAboveCostCeiling
	}
	return ErrNoCandidates
}

func (r *Router) reject(rejections []Rejection, requestID, scopeID, backendID string, attempt int, reason error) []Rejection {
	r.meter.OnAttempt(AttemptEvent{
		RequestID:       requestID,
		BackendID:       backendID,
		ScopeID:         scopeID,
		Attempt:         attempt,
		RejectionReason: reason,
	})
	return append(rejections, Rejection{BackendID: backendID, Reason: reason})
}

// noopLedger allows everything (no budgets).
type noopLedger struct{}

func (l *noopLedger) Reserve(scopeID string, estimate float64) (Reservation, error) {
	return Reservation{ScopeID: scopeID, Amount: estimate}, nil
}
func (l *noopLedger) Adjust(Reservation, float64) {}
func (l *noopLedger) RecordSuccess(string)        {}
func (l *noopLedger) Remaining(string) float64    { return 0 }

// noopMeter discards all events.
type noopMeter struct{}

func (m *noopMeter) OnAttempt(AttemptEvent) {}
