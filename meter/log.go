package meter

import (
	"go.uber.org/zap"

	"github.com/opsmend/llmroute"
)

// LogMeter logs attempt events using zap.
type LogMeter struct {
	Logger *zap.Logger
}

var _ llmroute.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, zap.NewNop() is used.
func NewLogMeter(logger *zap.Logger) *LogMeter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnAttempt(e llmroute.AttemptEvent) {
	fields := []zap.Field{
		zap.String("request_id", e.RequestID),
		zap.String("backend", e.BackendID),
		zap.String("scope", e.ScopeID),
		zap.Int("attempt", e.Attempt),
		zap.Float64("cost", e.Cost),
		zap.Int64("latency_ms", e.Latency.Milliseconds()),
		zap.Bool("cache_hit", e.CacheHit),
	}
	if e.BudgetException {
		fields = append(fields, zap.Bool("budget_exception", true))
	}

	if e.Success {
		m.Logger.Info("attempt", fields...)
		return
	}
	m.Logger.Warn("attempt_failed", append(fields, zap.Error(e.RejectionReason))...)
}
