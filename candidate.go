package llmroute

// buildCandidates resolves the request's candidate ids against the catalog
// snapshot and attaches the live breaker state and projected cost. An id
// absent from the snapshot is a configuration error, surfaced immediately.
func buildCandidates(snap *Snapshot, req Request, breakers *BreakerSet, promptTokens int64) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(req.Candidates))
	for _, id := range req.Candidates {
		m, ok := snap.Get(id)
		if !ok {
			return nil, &RouteError{Err: ErrUnknownBackend, BackendID: id, ScopeID: req.ScopeID}
		}
		candidates = append(candidates, Candidate{
			Model:         m,
			Breaker:       breakers.State(id),
			EstimatedCost: EstimateCost(m, promptTokens),
		})
	}
	return candidates, nil
}
