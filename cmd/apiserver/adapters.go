package main

import (
	"context"

	"github.com/turtacn/opinion-miner/internal/infrastructure/database/redis"
)

// redisHealthAdapter exposes the entity store connection to the readiness
// probe.
type redisHealthAdapter struct {
	client *redis.Client
}

func (a *redisHealthAdapter) Name() string {
	return "redis"
}

func (a *redisHealthAdapter) Check(ctx context.Context) error {
	return a.client.Ping(ctx)
}
