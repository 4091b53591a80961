package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ShipLog-Showcase/showcase-backend/config"
	"github.com/ShipLog-Showcase/showcase-backend/internal/db"
	"github.com/ShipLog-Showcase/showcase-backend/internal/storage/postgres"
)

// Stores bundles the connections shared by the API and the worker.
type Stores struct {
	DB    *db.DB
	SQL   *sql.DB
	Redis *redis.Client
}

// OpenStores connects to Postgres through both drivers, applies the schema
// and connects to Redis. Redis is optional: when it cannot be reached the
// returned Stores has a nil Redis client.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	pool, err := db.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := pool.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	sqlDB, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		pool.Close()
		return nil, err
	}

	s := &Stores{DB: pool, SQL: sqlDB}

	rdb, err := OpenRedis(ctx, cfg.Redis.URL, 2*time.Second)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, vote events and identity cache disabled")
	} else {
		s.Redis = rdb
	}
	return s, nil
}

func OpenRedis(ctx context.Context, url string, pingTO time.Duration) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("REDIS_URL is not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, pingTO)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *Stores) Close() {
	if s.Redis != nil {
		s.Redis.Close()
	}
	if s.SQL != nil {
		s.SQL.Close()
	}
	s.DB.Close()
}
