package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"taskorch/internal/domain"
)

// channelName is the Pub/Sub channel every lifecycle event is
// published to. Teacher split completion and termination onto two
// channels keyed by workflow-shaped events; spec.md has a single flat
// Task, so one channel carrying the event Kind is enough.
const channelName = "taskorch:events"

// RedisPublisher publishes task lifecycle events over Redis Pub/Sub.
// Grounded on teacher's internal/infrastructure/redis/event_bus.go and
// client.go almost directly, retargeted from workflow/execution-keyed
// events onto flat per-task events.
type RedisPublisher struct {
	client *redis.Client
	log    *zap.SugaredLogger
}

// NewRedisPublisher connects to addr and pings it once so a
// misconfigured REDIS_ADDR fails fast at startup instead of silently
// dropping every event later.
func NewRedisPublisher(addr string, log *zap.SugaredLogger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: 20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisPublisher{client: client, log: log}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.TaskEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Errorw("failed to marshal task event", "error", err)
		return
	}
	if err := p.client.Publish(ctx, channelName, payload).Err(); err != nil {
		p.log.Warnw("failed to publish task event", "error", err, "task_id", event.TaskID)
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
