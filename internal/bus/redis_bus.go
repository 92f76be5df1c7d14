package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisBus provides Redis Streams-based hook intake and result publication
type RedisBus struct {
	client *redis.Client
	logger logrus.FieldLogger

	// retryDelay is the pause after a failed read
	retryDelay time.Duration
}

// StreamHandler is a function that processes stream messages
type StreamHandler func(ctx context.Context, message StreamMessage) error

// NewRedisBus creates a new Redis bus instance
func NewRedisBus(redisURL string, logger logrus.FieldLogger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisBus{
		client:     client,
		logger:     logger.WithField("bus", "redis"),
		retryDelay: 5 * time.Second,
	}, nil
}

// Close closes the Redis connection
func (rb *RedisBus) Close() error {
	return rb.client.Close()
}

// PublishHook adds msg to the hooks stream
func (rb *RedisBus) PublishHook(ctx context.Context, msg HookMessage) error {
	if err := rb.client.XAdd(ctx, &redis.XAddArgs{Stream: HooksStream, Values: msg.fields()}).Err(); err != nil {
		return fmt.Errorf("failed to publish hook: %w", err)
	}
	rb.logger.WithFields(logrus.Fields{"hook": msg.Hook, "ioc_id": msg.IOCID}).Debug("Published hook")
	return nil
}

// PublishResult adds msg to the results stream
func (rb *RedisBus) PublishResult(ctx context.Context, msg ResultMessage) error {
	if err := rb.client.XAdd(ctx, &redis.XAddArgs{Stream: ResultsStream, Values: msg.fields()}).Err(); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}
	rb.logger.WithFields(logrus.Fields{"ioc_id": msg.IOCID, "outcome": msg.Outcome}).Debug("Published result")
	return nil
}

// CreateConsumerGroup creates a consumer group for a stream if it doesn't exist
func (rb *RedisBus) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	if err := rb.client.XGroupCreateMkStream(ctx, stream, group, "0").Err(); err != nil {
		if !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("failed to create consumer group %s for stream %s: %w", group, stream, err)
		}
	}
	rb.logger.Debugf("Consumer group %s ready for stream %s", group, stream)
	return nil
}

// ReadStream reads messages from a stream using consumer groups. Messages are acked once the
// handler returns nil. Entries left pending by an earlier run of this consumer are replayed
// once at startup; a message that fails again stays pending until the next start.
func (rb *RedisBus) ReadStream(ctx context.Context, stream, group, consumer string, handler StreamHandler) error {
	if err := rb.CreateConsumerGroup(ctx, stream, group); err != nil {
		return err
	}

	log := rb.logger.WithFields(logrus.Fields{"stream": stream, "group": group, "consumer": consumer})
	log.Info("Starting stream reader")

	if err := rb.replayPending(ctx, stream, group, consumer, handler, log); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("Error replaying pending messages")
	}

	for {
		if err := ctx.Err(); err != nil {
			log.Info("Stream reader stopping")
			return err
		}

		result := rb.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    time.Second,
		})
		if err := result.Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			log.WithError(err).Warn("Error reading from stream")
			select {
			case <-ctx.Done():
			case <-time.After(rb.retryDelay):
			}
			continue
		}

		rb.handleBatch(ctx, group, result.Val(), handler, log)
	}
}

// replayPending walks this consumer's pending entries list from the start, once.
func (rb *RedisBus) replayPending(ctx context.Context, stream, group, consumer string, handler StreamHandler, log logrus.FieldLogger) error {
	lastID := "0"
	replayed := 0
	for ctx.Err() == nil {
		result := rb.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, lastID},
			Count:    10,
			Block:    -1,
		})
		if err := result.Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return err
		}
		next, n := rb.handleBatch(ctx, group, result.Val(), handler, log)
		if n == 0 {
			break
		}
		lastID = next
		replayed += n
	}
	if replayed > 0 {
		log.WithField("count", replayed).Info("Replayed pending messages")
	}
	return ctx.Err()
}

// handleBatch runs handler over every message and acks the successes. It returns the ID of
// the last message seen and how many messages there were.
func (rb *RedisBus) handleBatch(ctx context.Context, group string, streams []redis.XStream, handler StreamHandler, log logrus.FieldLogger) (string, int) {
	lastID, n := "", 0
	for _, s := range streams {
		for _, message := range s.Messages {
			lastID = message.ID
			n++

			streamMsg := StreamMessage{ID: message.ID, Fields: make(map[string]string, len(message.Values))}
			for key, value := range message.Values {
				if strValue, ok := value.(string); ok {
					streamMsg.Fields[key] = strValue
				}
			}

			if err := handler(ctx, streamMsg); err != nil {
				log.WithError(err).WithField("message_id", message.ID).Warn("Error processing message")
				continue
			}
			if err := rb.client.XAck(ctx, s.Stream, group, message.ID).Err(); err != nil {
				log.WithError(err).WithField("message_id", message.ID).Warn("Error acknowledging message")
			}
		}
	}
	return lastID, n
}

// ReadHooks consumes the hooks stream. Malformed entries are acked and dropped.
func (rb *RedisBus) ReadHooks(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg HookMessage) error) error {
	return rb.ReadStream(ctx, HooksStream, group, consumer, func(ctx context.Context, message StreamMessage) error {
		hm, err := hookFromStream(message)
		if err != nil {
			rb.logger.WithError(err).Warn("Dropping malformed hook message")
			return nil
		}
		return handler(ctx, hm)
	})
}

// GetStreamInfo returns information about a stream
func (rb *RedisBus) GetStreamInfo(ctx context.Context, stream string) (*redis.XInfoStream, error) {
	result := rb.client.XInfoStream(ctx, stream)
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to get stream info for %s: %w", stream, err)
	}
	return result.Val(), nil
}

// CleanupOldMessages trims stream to roughly maxLen entries
func (rb *RedisBus) CleanupOldMessages(ctx context.Context, stream string, maxLen int64) error {
	if err := rb.client.XTrimMaxLenApprox(ctx, stream, maxLen, 0).Err(); err != nil {
		return fmt.Errorf("failed to trim stream %s: %w", stream, err)
	}
	rb.logger.Debugf("Trimmed stream %s to max length %d", stream, maxLen)
	return nil
}

// HealthCheck performs a health check on the Redis connection
func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	return rb.client.Ping(ctx).Err()
}

// GetStats returns basic statistics about the hook and result streams
func (rb *RedisBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"type": "redis"}
	for _, stream := range []string{HooksStream, ResultsStream} {
		info, err := rb.GetStreamInfo(ctx, stream)
		if err != nil {
			continue
		}
		stats[stream] = map[string]interface{}{
			"length":         info.Length,
			"first_entry_id": info.FirstEntry.ID,
			"last_entry_id":  info.LastEntry.ID,
		}
	}
	if groups, err := rb.client.XInfoGroups(ctx, HooksStream).Result(); err == nil {
		stats["hooks_consumer_groups"] = len(groups)
	}
	return stats, nil
}
