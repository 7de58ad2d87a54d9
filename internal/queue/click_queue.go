// Package queue produces the click persistence jobs consumed by the
// click-sync worker. One job is enqueued per successful redirect; delivery
// is at-least-once, which is safe because the worker re-derives the count
// from the cache counter instead of applying the payload as a delta.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TaskSyncClicks is the task type of the click persistence job.
const TaskSyncClicks = "shortlink:sync-clicks"

// SyncClicksPayload carries the identity of the link to reconcile. Clicks is
// the counter value observed at enqueue time; the worker treats it as a
// floor, not as the value to write.
type SyncClicksPayload struct {
	Code   string `json:"code"`
	ID     uint   `json:"id"`
	Clicks int64  `json:"clicks"`
}

// ClickQueue enqueues click-sync jobs on the Redis-backed task queue.
type ClickQueue struct {
	client *asynq.Client
	log    *zap.Logger
}

// NewClickQueue creates a ClickQueue connected to the given Redis instance.
func NewClickQueue(redisOpt asynq.RedisClientOpt, log *zap.Logger) *ClickQueue {
	return &ClickQueue{client: asynq.NewClient(redisOpt), log: log}
}

// EnqueueSync enqueues one click-sync job.
func (q *ClickQueue) EnqueueSync(ctx context.Context, p SyncClicksPayload) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode click-sync payload for %q: %w", p.Code, err)
	}
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TaskSyncClicks, payload))
	if err != nil {
		return fmt.Errorf("failed to enqueue click sync for %q: %w", p.Code, err)
	}
	q.log.Debug("Click sync enqueued",
		zap.String("code", p.Code),
		zap.String("task_id", info.ID),
		zap.Int64("clicks", p.Clicks))
	return nil
}

// Close releases the underlying queue connection.
func (q *ClickQueue) Close() error {
	return q.client.Close()
}
