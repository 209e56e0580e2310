package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

const (
	taskTypeActivity = "auth:activity"
	queueActivity    = "activity"
)

// Manager はアクティビティの投入と参照を担います。
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	store  *Store
}

// NewManager は Manager を初期化します。
func NewManager(redisURL string, store *Store) (*Manager, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queueActivity: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client: client,
		server: server,
		mux:    mux,
		store:  store,
	}
	mux.HandleFunc(taskTypeActivity, manager.handleActivityTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			log.Error().Err(err).Msg("asynq server stopped with error")
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown() error {
	m.server.Shutdown()
	return m.client.Close()
}

// Record はイベントをキューに投入します。
func (m *Manager) Record(ctx context.Context, event Event) error {
	if event.UserID == "" {
		return fmt.Errorf("event.UserID is required")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	task := asynq.NewTask(taskTypeActivity, body, asynq.Queue(queueActivity))
	if _, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("enqueue activity: %w", err)
	}
	return nil
}

// Recent は保存済みの履歴を返します。
func (m *Manager) Recent(ctx context.Context, userID string, limit int) ([]Event, error) {
	return m.store.Recent(ctx, userID, limit)
}
