package main

import (
	"log"

	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/membergate/internal/audit"
	"github.com/yourusername/membergate/internal/config"
)

// auditEventLimit は保持する監査イベントの最大件数です。
const auditEventLimit = 200

func setupAudit(cfg *config.Config, rdb *redis.Client) (*audit.Manager, error) {
	store := audit.NewStore(rdb, auditEventLimit)
	manager, err := audit.NewManager(cfg.RedisURL, store, log.Default())
	if err != nil {
		return nil, err
	}
	return manager, nil
}
