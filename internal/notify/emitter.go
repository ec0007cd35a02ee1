package notify

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"talentflow/internal/common"
	"talentflow/internal/domain/notification"
)

// StoreEmitter writes notifications to the notifications table, which the
// delivery workers poll.
type StoreEmitter struct {
	repo notification.Repository
}

func NewStoreEmitter(repo notification.Repository) *StoreEmitter {
	return &StoreEmitter{repo: repo}
}

func (e *StoreEmitter) Emit(ctx context.Context, item notification.Notification) error {
	return e.repo.Create(ctx, item)
}

// RedisStreamEmitter appends notifications to a Redis stream consumed by the
// delivery service. XADD is acknowledged by the server before returning.
type RedisStreamEmitter struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamEmitter(client *redis.Client, stream string, maxLen int64) *RedisStreamEmitter {
	if client == nil {
		return nil
	}
	if stream == "" {
		stream = "notifications"
	}
	return &RedisStreamEmitter{client: client, stream: stream, maxLen: maxLen}
}

func (e *RedisStreamEmitter) Emit(ctx context.Context, item notification.Notification) error {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	args := &redis.XAddArgs{
		Stream: e.stream,
		Values: map[string]any{
			"id":                    item.ID.String(),
			"target_user_id":        item.TargetUserID.String(),
			"message":               item.Message,
			"category":              string(item.Category),
			"source_application_id": item.SourceApplicationID.String(),
			"created_at":            createdAt.Format(time.RFC3339Nano),
		},
	}
	if e.maxLen > 0 {
		args.MaxLen = e.maxLen
		args.Approx = true
	}
	if err := e.client.XAdd(ctx, args).Err(); err != nil {
		return common.NewError(common.CodeUnavailable, "failed to enqueue notification", err)
	}
	return nil
}

// FanoutEmitter hands each notification to every emitter and reports all
// failures together.
type FanoutEmitter struct {
	emitters []notification.Emitter
}

func NewFanoutEmitter(emitters ...notification.Emitter) *FanoutEmitter {
	kept := make([]notification.Emitter, 0, len(emitters))
	for _, emitter := range emitters {
		if emitter == nil {
			continue
		}
		if stream, ok := emitter.(*RedisStreamEmitter); ok && stream == nil {
			continue
		}
		kept = append(kept, emitter)
	}
	return &FanoutEmitter{emitters: kept}
}

func (e *FanoutEmitter) Emit(ctx context.Context, item notification.Notification) error {
	var errs []error
	for _, emitter := range e.emitters {
		if err := emitter.Emit(ctx, item); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
