package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	activityKeyPrefix = "activity:"
	// maxEntries はユーザーごとに保持する履歴の件数です。
	maxEntries = 20
)

// Store はアクティビティ履歴を Redis のリストに保存します（新しい順）。
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{
		rdb: rdb,
		ttl: ttl,
	}
}

// Append は履歴の先頭にイベントを追加し、古いものを切り詰めます。
func (s *Store) Append(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event is nil")
	}
	if event.UserID == "" {
		return fmt.Errorf("event.UserID is required")
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	key := activityKey(event.UserID)
	tx := s.rdb.TxPipeline()
	tx.LPush(ctx, key, payload)
	tx.LTrim(ctx, key, 0, maxEntries-1)
	if s.ttl > 0 {
		tx.Expire(ctx, key, s.ttl)
	}
	_, err = tx.Exec(ctx)
	return err
}

// Recent は新しい順に最大 limit 件の履歴を返します。
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]Event, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID is required")
	}
	if limit <= 0 || limit > maxEntries {
		limit = maxEntries
	}
	items, err := s.rdb.LRange(ctx, activityKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(items))
	for _, item := range items {
		var event Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			// 壊れた要素は読み飛ばす
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func activityKey(userID string) string {
	return activityKeyPrefix + userID
}
