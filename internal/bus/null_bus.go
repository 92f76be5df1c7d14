package bus

import (
	"context"

	"github.com/sirupsen/logrus"
)

// NullBus is a no-op implementation of the bus interface for when Redis is disabled
type NullBus struct {
	logger logrus.FieldLogger
}

// NewNullBus creates a new null bus instance
func NewNullBus(logger logrus.FieldLogger) *NullBus {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &NullBus{logger: logger.WithField("bus", "null")}
}

// Close is a no-op for null bus
func (nb *NullBus) Close() error {
	return nil
}

// PublishHook logs the hook but doesn't publish it
func (nb *NullBus) PublishHook(ctx context.Context, msg HookMessage) error {
	nb.logger.WithFields(logrus.Fields{"hook": msg.Hook, "ioc_id": msg.IOCID}).Debug("Would publish hook (Redis disabled)")
	return nil
}

// PublishResult logs the outcome but doesn't publish it
func (nb *NullBus) PublishResult(ctx context.Context, msg ResultMessage) error {
	nb.logger.WithFields(logrus.Fields{
		"ioc_id":  msg.IOCID,
		"outcome": msg.Outcome,
	}).Debug("Would publish result (Redis disabled)")
	return nil
}

// ReadHooks blocks until ctx is cancelled
func (nb *NullBus) ReadHooks(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg HookMessage) error) error {
	nb.logger.Debugf("Would read hooks stream %s:%s (Redis disabled)", group, consumer)
	<-ctx.Done()
	return ctx.Err()
}

// GetStats returns empty stats for null bus
func (nb *NullBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"type":   "null",
		"status": "disabled",
	}, nil
}

// HealthCheck always returns nil for null bus
func (nb *NullBus) HealthCheck(ctx context.Context) error {
	return nil
}
