package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const eventsKey = "audit:events"

// Store は監査イベントを Redis のリストに保存します。
// リストは新しい順で、上限を超えた古いイベントは切り捨てられます。
type Store struct {
	rdb   *redis.Client
	limit int64
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client, limit int64) *Store {
	if limit <= 0 {
		limit = 200
	}
	return &Store{
		rdb:   rdb,
		limit: limit,
	}
}

// Append はイベントを先頭に追加し、上限を超えた分を切り捨てます。
func (s *Store) Append(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event is nil")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, eventsKey, payload)
	pipe.LTrim(ctx, eventsKey, 0, s.limit-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent は新しい順に最大 n 件のイベントを返します。
func (s *Store) Recent(ctx context.Context, n int64) ([]*Event, error) {
	if n <= 0 || n > s.limit {
		n = s.limit
	}
	values, err := s.rdb.LRange(ctx, eventsKey, 0, n-1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	events := make([]*Event, 0, len(values))
	for _, raw := range values {
		var event Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, err
		}
		events = append(events, &event)
	}
	return events, nil
}
