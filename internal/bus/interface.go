// Package bus carries IOC hook notifications in and pipeline outcomes out over Redis Streams.
package bus

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// Stream and consumer group names.
const (
	HooksStream   = "ioc_hooks"
	ResultsStream = "cortex_results"
	ConsumerGroup = "cortex-analyzer"
)

// Bus defines the interface for hook bus implementations
type Bus interface {
	// PublishHook enqueues a hook notification on the hooks stream
	PublishHook(ctx context.Context, msg HookMessage) error

	// PublishResult publishes a pipeline outcome on the results stream
	PublishResult(ctx context.Context, msg ResultMessage) error

	// ReadHooks consumes the hooks stream until ctx is done
	ReadHooks(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg HookMessage) error) error

	// GetStats returns basic statistics about the bus
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// HealthCheck performs a health check on the bus connection
	HealthCheck(ctx context.Context) error

	// Close closes the bus connection
	Close() error
}

// NewBus creates a bus for redisURL. An empty or unreachable URL yields a NullBus.
func NewBus(redisURL string, logger logrus.FieldLogger) Bus {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	if redisURL == "" {
		return NewNullBus(logger)
	}

	redisBus, err := NewRedisBus(redisURL, logger)
	if err == nil {
		return redisBus
	}

	logger.WithError(err).Warn("Redis unavailable, falling back to null bus")
	return NewNullBus(logger)
}
