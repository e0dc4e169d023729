package journal

import (
	"context"
	"fmt"

	"steamsale/notifier/internal/domain/event"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Journal records publish outcomes so they survive restarts for auditing
type Journal interface {
	Append(ctx context.Context, e event.Event) (string, error) // Returns message ID
	Recent(ctx context.Context, count int64) ([]redis.XMessage, error)
	Close() error
}

type RedisJournal struct {
	redisClient *redis.Client
	stream      string
	maxLen      int64
}

func NewRedisJournal(redisClient *redis.Client, stream string) Journal {
	return &RedisJournal{
		redisClient: redisClient,
		stream:      stream,
		maxLen:      10000,
	}
}

func (j *RedisJournal) Append(ctx context.Context, e event.Event) (string, error) {
	eventType := e.EventType()

	eventValue, err := e.EventValue()
	if err != nil {
		return "", fmt.Errorf("failed to serialize event: %w", err)
	}

	// Fields: event_type, event_data
	messageID, err := j.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: j.stream,
		MaxLen: j.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event_type": eventType,
			"event_data": string(eventValue),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to add event to Redis stream %s: %w", j.stream, err)
	}

	log.Debugf("Added event %s to stream %s with message ID: %s", eventType, j.stream, messageID)
	return messageID, nil
}

// Recent returns the newest count entries, newest first
func (j *RedisJournal) Recent(ctx context.Context, count int64) ([]redis.XMessage, error) {
	messages, err := j.redisClient.XRevRangeN(ctx, j.stream, "+", "-", count).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read from Redis stream %s: %w", j.stream, err)
	}
	return messages, nil
}

// DecodeMessage rebuilds the event stored in a stream entry written by Append
func DecodeMessage(msg redis.XMessage) (event.Event, error) {
	eventType, _ := msg.Values["event_type"].(string)
	eventData, _ := msg.Values["event_data"].(string)
	if eventType == "" {
		return nil, fmt.Errorf("stream message %s has no event type", msg.ID)
	}

	e, err := event.Decode(eventType, []byte(eventData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode stream message %s: %w", msg.ID, err)
	}
	return e, nil
}

func (j *RedisJournal) Close() error {
	if j.redisClient != nil {
		return j.redisClient.Close()
	}
	return nil
}
