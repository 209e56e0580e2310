package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

func (m *Manager) handleActivityTask(ctx context.Context, task *asynq.Task) error {
	var event Event
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		// 再試行しても直らないのでスキップする
		return fmt.Errorf("decode activity payload: %v: %w", err, asynq.SkipRetry)
	}
	if event.UserID == "" {
		return fmt.Errorf("missing userId in payload: %w", asynq.SkipRetry)
	}

	if err := m.store.Append(ctx, &event); err != nil {
		return err
	}
	log.Debug().Str("user", event.UserID).Str("kind", string(event.Kind)).Msg("activity recorded")
	return nil
}
