package main

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/secrets/internal/auth"
	"github.com/yourusername/secrets/internal/config"
	"github.com/yourusername/secrets/internal/jobs"
)

// setupActivity はアクティビティ記録用のキューとワーカーを起動します。
// 無効化されている場合や初期化に失敗した場合は nil を返し、記録なしで動かします。
func setupActivity(cfg *config.Config, rdb *redis.Client) (auth.Activity, func()) {
	noop := func() {}
	if !cfg.ActivityEnabled {
		return nil, noop
	}

	store := jobs.NewStore(rdb, cfg.ActivityRetention())
	manager, err := jobs.NewManager(cfg.DatabaseURL, store)
	if err != nil {
		log.Error().Err(err).Msg("activity log disabled")
		return nil, noop
	}
	manager.StartWorkers()

	return manager, func() {
		if err := manager.Shutdown(); err != nil {
			log.Error().Err(err).Msg("failed to stop activity workers")
		}
	}
}
