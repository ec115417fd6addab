package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	taskTypeEvent = "audit:event"
	queueName     = "audit"
)

// Manager は監査イベントの投入とワーカー管理を担います。
// 記録は非同期で行い、失敗しても元のリクエストは失敗させません。
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	store  *Store
	logger *log.Logger
}

// NewManager は Manager を初期化します。
func NewManager(redisURL string, store *Store, logger *log.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if logger == nil {
		logger = log.Default()
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
				queueName: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client: client,
		server: server,
		mux:    mux,
		store:  store,
		logger: logger,
	}
	mux.HandleFunc(taskTypeEvent, manager.handleEventTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			m.logger.Printf("asynq server stopped with error: %v", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	m.client.Close()
	return nil
}

// Record はイベントをキューに投入します。投入失敗はログに残すのみです。
func (m *Manager) Record(ctx context.Context, kind, target, email, ip string) {
	m.RecordWithActor(ctx, kind, target, email, "", ip)
}

// RecordWithActor は操作者付きのイベントをキューに投入します。
func (m *Manager) RecordWithActor(ctx context.Context, kind, target, email, actor, ip string) {
	event := &Event{
		ID:     uuid.NewString(),
		Kind:   Kind(kind),
		Target: target,
		Email:  email,
		Actor:  actor,
		IP:     ip,
		At:     time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		m.logger.Printf("failed to marshal audit event: %v", err)
		return
	}

	task := asynq.NewTask(taskTypeEvent, body, asynq.Queue(queueName))
	if _, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(2)); err != nil {
		m.logger.Printf("failed to enqueue audit event kind=%s: %v", kind, err)
	}
}

// Recent は新しい順に最大 n 件のイベントを返します。
func (m *Manager) Recent(ctx context.Context, n int64) ([]*Event, error) {
	return m.store.Recent(ctx, n)
}

func (m *Manager) handleEventTask(ctx context.Context, task *asynq.Task) error {
	var event Event
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return err
	}
	if event.ID == "" {
		return fmt.Errorf("missing event id in payload")
	}
	return m.store.Append(ctx, &event)
}
