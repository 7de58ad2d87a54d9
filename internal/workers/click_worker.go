// Package workers drains click persistence jobs and reconciles the durable
// click count with the cache counter.
package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/encurtaweb/encurtador/internal/cache"
	"github.com/encurtaweb/encurtador/internal/queue"
	"github.com/encurtaweb/encurtador/internal/repository"
)

// ClickSyncWorker persists click counts. Per job it re-reads the live
// counter and overwrites the link's clicks column with it, so redelivered or
// out-of-order jobs converge to the same final value: the write is a
// re-derivation, never a delta.
type ClickSyncWorker struct {
	linkRepo repository.LinkRepository
	cache    *cache.LinkCache
	log      *zap.Logger
}

// NewClickSyncWorker creates a ClickSyncWorker.
func NewClickSyncWorker(linkRepo repository.LinkRepository, linkCache *cache.LinkCache, log *zap.Logger) *ClickSyncWorker {
	return &ClickSyncWorker{linkRepo: linkRepo, cache: linkCache, log: log}
}

// HandleSyncClicks processes one click-sync job. Returning an error hands
// the job back to the queue for redelivery, which is safe: re-reading the
// counter and re-writing the same or a newer value cannot corrupt the count.
func (w *ClickSyncWorker) HandleSyncClicks(ctx context.Context, t *asynq.Task) error {
	var p queue.SyncClicksPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// A payload that never decodes will never decode on redelivery either.
		return fmt.Errorf("failed to decode click-sync payload: %v: %w", err, asynq.SkipRetry)
	}

	// Always resolve the counter at write time. The payload value may be
	// stale if jobs were reordered or redelivered.
	clicks, ok, err := w.cache.GetClicks(ctx, p.Code)
	if err != nil {
		return err
	}
	if !ok {
		// Counter gone (flushed cache). The enqueue-time value is the best
		// floor available; writing 0 here would regress the durable count.
		clicks = p.Clicks
	}

	if _, err := w.linkRepo.Update(p.ID, map[string]any{"clicks": clicks}); err != nil {
		return fmt.Errorf("failed to persist clicks for %q: %w", p.Code, err)
	}

	w.log.Debug("Click count persisted",
		zap.String("code", p.Code),
		zap.Uint("id", p.ID),
		zap.Int64("clicks", clicks))
	return nil
}

// NewConsumer builds the queue consumer that drains click-sync jobs with the
// given parallelism, along with its routing mux. Callers either Run the
// server (blocking) or Start/Shutdown it around an HTTP server.
func NewConsumer(redisOpt asynq.RedisClientOpt, concurrency int, w *ClickSyncWorker, log *zap.Logger) (*asynq.Server, *asynq.ServeMux) {
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("Click-sync job failed", zap.String("task", task.Type()), zap.Error(err))
		}),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskSyncClicks, w.HandleSyncClicks)
	return srv, mux
}
