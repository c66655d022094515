package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"lmsledger/internal/logger"
	"lmsledger/internal/metrics"
)

const (
	defaultMaxTries = 3
	popTimeout      = 2 * time.Second
)

// Queue is a Redis list backed publisher and worker. Producers LPUSH,
// the worker BRPOPs and dispatches to subscribed handlers. Events that keep
// failing move to "<queue>:failed".
type Queue struct {
	redis      *redis.Client
	name       string
	maxTries   int
	retryDelay time.Duration

	mu       sync.RWMutex
	handlers map[Type][]Handler
}

func NewQueue(client *redis.Client, name string) *Queue {
	return &Queue{
		redis:      client,
		name:       name,
		maxTries:   defaultMaxTries,
		retryDelay: time.Second,
		handlers:   make(map[Type][]Handler),
	}
}

func (q *Queue) Subscribe(t Type, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[t] = append(q.handlers[t], h)
}

func (q *Queue) Publish(ctx context.Context, e Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	if err := q.redis.LPush(ctx, q.name, string(data)).Err(); err != nil {
		metrics.RecordEvent(string(e.Type), "publish_failed")
		return err
	}

	metrics.RecordEvent(string(e.Type), "published")
	return nil
}

func (q *Queue) Start(ctx context.Context) {
	logger.Info("event worker started", "queue", q.name)

	for {
		select {
		case <-ctx.Done():
			logger.Info("event worker stopped", "queue", q.name)
			return
		default:
			q.processNext(ctx)
		}
	}
}

func (q *Queue) processNext(ctx context.Context) {
	result, err := q.redis.BRPop(ctx, popTimeout, q.name).Result()
	if err != nil {
		return
	}

	var e Event
	if err := json.Unmarshal([]byte(result[1]), &e); err != nil {
		logger.Error("bad event payload", "queue", q.name, "error", err)
		return
	}

	e.Tries++
	if err := q.dispatch(ctx, e); err != nil {
		logger.Error("event handler failed", "event_id", e.ID, "type", e.Type, "attempt", e.Tries, "error", err)

		if e.Tries < q.maxTries {
			time.Sleep(q.retryDelay)
			data, _ := json.Marshal(e)
			q.redis.LPush(context.Background(), q.name, string(data))
			return
		}
		q.saveFailed(e, err)
		return
	}

	metrics.RecordEvent(string(e.Type), "delivered")
}

func (q *Queue) dispatch(ctx context.Context, e Event) error {
	q.mu.RLock()
	handlers := q.handlers[e.Type]
	q.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) saveFailed(e Event, err error) {
	failed := map[string]interface{}{
		"event": e,
		"error": err.Error(),
		"time":  time.Now().UTC(),
	}
	data, _ := json.Marshal(failed)
	q.redis.LPush(context.Background(), q.name+":failed", string(data))
	metrics.RecordEvent(string(e.Type), "dead_lettered")
	logger.Error("event moved to failed queue", "event_id", e.ID, "type", e.Type)
}

func (q *Queue) QueueLength(ctx context.Context) int64 {
	length, _ := q.redis.LLen(ctx, q.name).Result()
	return length
}

func (q *Queue) Close() error {
	return q.redis.Close()
}

// LogHandler records every event in the structured log; it is the default
// activity-log consumer.
func LogHandler(ctx context.Context, e Event) error {
	logger.Info("payment event",
		"event_id", e.ID,
		"type", e.Type,
		"payment_id", e.PaymentID,
		"status", e.Status,
		"amount", e.Amount.String(),
	)
	return nil
}
