package component

import (
	"log/slog"

	"github.com/SolaceDev/solace-ai-connector/cache"
	"github.com/SolaceDev/solace-ai-connector/message"
	"github.com/SolaceDev/solace-ai-connector/metric"
	"github.com/SolaceDev/solace-ai-connector/timer"
)

// Dependencies provides the shared runtime services injected into every
// component at construction. The timer manager and cache service are
// process-wide: one instance per connector.
type Dependencies struct {
	TimerManager *timer.Manager
	CacheService *cache.Service
	Metrics      *metric.MetricsRegistry
	Logger       *slog.Logger
	FlowSender   FlowSender

	// ErrorEvents is the receive side of the connector's internal error
	// queue, consumed by the error_input component of an error flow.
	ErrorEvents <-chan *message.Event
}

// GetLogger returns the configured logger or the default logger.
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
