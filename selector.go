package llmroute

import "sort"

// Hybrid scoring weights, fixed at build time.
const (
	hybridCostWeight    = 0.4
	hybridQualityWeight = 0.4
	hybridLatencyWeight = 0.2
)

// Candidate is one backend model considered for a request, together with
// the live state captured when the candidate list was built.
type Candidate struct {
	Model         BackendModel
	Breaker       BreakerState
	EstimatedCost float64
}

// Selector ranks candidates for a request. Implementations must be pure:
// same inputs, same ordering.
type Selector interface {
	// Rank filters and orders candidates. Candidates below the request's
	// quality floor or above its cost ceiling are excluded. Candidates
	// with an open breaker are kept but moved to the end, so the caller
	// still has an ordered best-effort list when nothing is healthy.
	Rank(req Request, candidates []Candidate) []Candidate
}

// DefaultSelector orders candidates according to the request's
// optimization goal. Ties preserve candidate input order.
type DefaultSelector struct{}

var _ Selector = (*DefaultSelector)(nil)

func (s *DefaultSelector) Rank(req Request, candidates []Candidate) []Candidate {
	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Model.Quality < req.MinQuality {
			continue
		}
		if req.MaxCost > 0 && c.EstimatedCost > req.MaxCost {
			continue
		}
		eligible = append(eligible, c)
	}

	scores := hybridScores(eligible)

	sort.SliceStable(eligible, func(i, j int) bool {
		ci, cj := eligible[i], eligible[j]

		// Unhealthy candidates sink to the end regardless of goal.
		openI, openJ := ci.Breaker == BreakerOpen, cj.Breaker == BreakerOpen
		if openI != openJ {
			return !openI
		}

		switch req.Goal {
		case GoalQuality:
			if ci.Model.Quality != cj.Model.Quality {
				return ci.Model.Quality > cj.Model.Quality
			}
			return ci.Model.LatencyMS < cj.Model.LatencyMS
		case GoalHybrid:
			return scores[ci.Model.ID] > scores[cj.Model.ID]
		default: // GoalCostEffective
			return ci.EstimatedCost < cj.EstimatedCost
		}
	})

	return eligible
}

// hybridScores computes the composite score for each candidate:
// w_cost * inverse normalized cost + w_quality * quality - w_latency * normalized latency.
func hybridScores(candidates []Candidate) map[string]float64 {
	scores := make(map[string]float64, len(candidates))
	if len(candidates) == 0 {
		return scores
	}

	minCost := candidates[0].EstimatedCost
	var maxLatency int64
	for _, c := range candidates {
		if c.EstimatedCost < minCost {
			minCost = c.EstimatedCost
		}
		if c.Model.LatencyMS > maxLatency {
			maxLatency = c.Model.LatencyMS
		}
	}

	for _, c := range candidates {
		costScore := 1.0 // free candidates score best
		if c.EstimatedCost > 0 {
			costScore = minCost / c.EstimatedCost
		}
		latencyScore := 0.0
		if maxLatency > 0 {
			latencyScore = float64(c.Model.LatencyMS) / float64(maxLatency)
		}
		qualityScore := float64(c.Model.Quality+1) / 3

		scores[c.Model.ID] = hybridCostWeight*costScore +
			hybridQualityWeight*qualityScore -
			hybridLatencyWeight*latencyScore
	}
	return scores
}
