package meter

import "github.com/opsmend/llmroute"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ llmroute.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnAttempt(llmroute.AttemptEvent) {}
