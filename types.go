package llmroute

import "time"

// QualityTier classifies a backend model's answer quality.
type QualityTier int

const (
	TierFast QualityTier = iota
	TierBalanced
	TierSpecialized
)

func (t QualityTier) String() string {
	switch t {
	case TierFast:
		return "fast"
	case TierBalanced:
		return "balanced"
	case TierSpecialized:
		return "specialized"
	default:
		return "unknown"
	}
}

// OptimizationGoal drives how the selector orders candidates.
type OptimizationGoal int

const (
	GoalCostEffective OptimizationGoal = iota
	GoalQuality
	GoalHybrid
)

func (g OptimizationGoal) String() string {
	switch g {
	case GoalCostEffective:
		return "cost_effective"
	case GoalQuality:
		return "quality"
	case GoalHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// Request describes one inbound routing request. It is created once per
// call by the pipeline stage and never mutated by the router.
type Request struct {
	// TaskType identifies the kind of work (e.g. "triage", "analysis").
	// It is part of the cache key, so distinct tasks never share entries.
	TaskType string

	// Goal selects the ranking strategy.
	Goal OptimizationGoal

	// MaxCost is the per-call cost ceiling in dollars. Zero means no ceiling.
	MaxCost float64

	// MinQuality excludes candidates below this tier.
	MinQuality QualityTier

	// Candidates is the ordered list of backend ids eligible for this
	// request, pre-filtered by capability. Input order breaks ranking ties.
	Candidates []string

	// ScopeID is the budget accounting scope (e.g. one pipeline run).
	ScopeID string

	// Deadline bounds the total wall clock across all fallback attempts.
	// Zero means the caller's context governs.
	Deadline time.Time

	// IdempotencyKey, when set, is used as the request id. A fresh id is
	// generated otherwise.
	IdempotencyKey string
}

// Usage reports token consumption for one backend invocation.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// CompletionResult is the immutable outcome of a successful Execute call.
type CompletionResult struct {
	Text        string
	BackendUsed string
	Cost        float64
	Latency     time.Duration
	CacheHit    bool
	Attempts    int
	RequestID   string
}
