package bus

import (
	"github.com/agentware/maestro/internal/common/config"
	"github.com/agentware/maestro/internal/common/logger"
)

// New returns the configured bus: NATS when a broker URL is set, the
// in-memory bus otherwise.
func New(cfg config.NATSConfig, log *logger.Logger) (EventBus, error) {
	if cfg.URL == "" {
		return NewMemoryEventBus(log), nil
	}
	return NewNATSEventBus(cfg, log)
}
