package llmroute

// EstimateTokens provides a rough token count estimate for a prompt.
// Uses the approximation: ~4 chars per token + base overhead.
func EstimateTokens(prompt string) int64 {
	return int64(len(prompt))/4 + 3
}

// EstimateCost projects the dollar cost of serving a prompt with the given
// model, assuming the completion is roughly as long as the prompt.
func EstimateCost(m BackendModel, promptTokens int64) float64 {
	total := promptTokens * 2
	if m.MaxTokens > 0 && total > int64(m.MaxTokens) {
		total = int64(m.MaxTokens)
	}
	return float64(total) / 1000 * m.CostPer1KTokens
}

// CostOf computes the actual dollar cost from reported usage.
func CostOf(m BackendModel, u Usage) float64 {
	return float64(u.TotalTokens) / 1000 * m.CostPer1KTokens
}
