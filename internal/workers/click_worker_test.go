package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/encurtaweb/encurtador/internal/cache"
	"github.com/encurtaweb/encurtador/internal/models"
	"github.com/encurtaweb/encurtador/internal/queue"
	"github.com/encurtaweb/encurtador/internal/workers"
)

type recordedUpdate struct {
	id      uint
	changes map[string]any
}

type fakeLinkRepo struct {
	mu        sync.Mutex
	updates   []recordedUpdate
	updateErr error
}

func (r *fakeLinkRepo) Create(link *models.Link) error { return nil }

func (r *fakeLinkRepo) FindByCode(code string) (*models.Link, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeLinkRepo) Update(id uint, changes map[string]any) (*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	r.updates = append(r.updates, recordedUpdate{id: id, changes: changes})
	return &models.Link{ID: id}, nil
}

func newSyncTask(t *testing.T, p queue.SyncClicksPayload) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(p)
	require.NoError(t, err)
	return asynq.NewTask(queue.TaskSyncClicks, payload)
}

func newWorker(t *testing.T) (*workers.ClickSyncWorker, *fakeLinkRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	linkCache := cache.NewLinkCache(client, 0, 0, zap.NewNop())
	repo := &fakeLinkRepo{}
	return workers.NewClickSyncWorker(repo, linkCache, zap.NewNop()), repo, mr
}

func TestHandleSyncClicks_WritesCounterNotPayload(t *testing.T) {
	w, repo, mr := newWorker(t)

	// The counter moved past the enqueue-time value: a stale or reordered
	// job must still write the fresh count.
	require.NoError(t, mr.Set("shortlink-clicks:abc", "7"))
	task := newSyncTask(t, queue.SyncClicksPayload{Code: "abc", ID: 3, Clicks: 3})

	require.NoError(t, w.HandleSyncClicks(context.Background(), task))
	require.Len(t, repo.updates, 1)
	assert.Equal(t, uint(3), repo.updates[0].id)
	assert.Equal(t, int64(7), repo.updates[0].changes["clicks"])
}

func TestHandleSyncClicks_MissingCounterFallsBackToPayload(t *testing.T) {
	w, repo, _ := newWorker(t)

	task := newSyncTask(t, queue.SyncClicksPayload{Code: "abc", ID: 3, Clicks: 5})
	require.NoError(t, w.HandleSyncClicks(context.Background(), task))

	require.Len(t, repo.updates, 1)
	assert.Equal(t, int64(5), repo.updates[0].changes["clicks"], "a flushed counter must not regress the durable count to zero")
}

func TestHandleSyncClicks_StoreFailureIsRetried(t *testing.T) {
	w, repo, mr := newWorker(t)

	repo.updateErr = errors.New("store unreachable")
	require.NoError(t, mr.Set("shortlink-clicks:abc", "1"))

	task := newSyncTask(t, queue.SyncClicksPayload{Code: "abc", ID: 3, Clicks: 1})
	err := w.HandleSyncClicks(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry), "store failures must stay retryable")
}

func TestHandleSyncClicks_MalformedPayloadIsNotRetried(t *testing.T) {
	w, _, _ := newWorker(t)

	task := asynq.NewTask(queue.TaskSyncClicks, []byte("{broken"))
	err := w.HandleSyncClicks(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleSyncClicks_Redelivery(t *testing.T) {
	w, repo, mr := newWorker(t)

	require.NoError(t, mr.Set("shortlink-clicks:abc", "4"))
	task := newSyncTask(t, queue.SyncClicksPayload{Code: "abc", ID: 9, Clicks: 2})

	// Processing the same job twice re-derives the same value both times.
	require.NoError(t, w.HandleSyncClicks(context.Background(), task))
	require.NoError(t, w.HandleSyncClicks(context.Background(), task))

	require.Len(t, repo.updates, 2)
	assert.Equal(t, repo.updates[0].changes["clicks"], repo.updates[1].changes["clicks"])
	assert.Equal(t, int64(4), repo.updates[1].changes["clicks"])
}
