// Package cache implements the engine's optional Redis-backed caches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"oracle/internal/models"

	"github.com/redis/go-redis/v9"
)

const leaderboardTTL = 30 * time.Second

// Client wraps a go-redis client and provides connectivity helpers.
type Client struct {
	rdb *redis.Client
}

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
}

// New creates a Redis Client and pings it to verify connectivity.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// LeaderboardCache caches computed tournament leaderboards with a short TTL.
// A miss or any Redis error just falls through to recomputation.
type LeaderboardCache struct {
	rdb *redis.Client
}

// NewLeaderboardCache creates a LeaderboardCache backed by the given Client.
func NewLeaderboardCache(c *Client) *LeaderboardCache {
	return &LeaderboardCache{rdb: c.rdb}
}

func leaderboardKey(tournamentID uint) string {
	return fmt.Sprintf("leaderboard:%d", tournamentID)
}

// GetLeaderboard retrieves a cached leaderboard; ok is false on miss.
func (lc *LeaderboardCache) GetLeaderboard(ctx context.Context, tournamentID uint) ([]models.LeaderboardEntry, bool) {
	data, err := lc.rdb.Get(ctx, leaderboardKey(tournamentID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[Cache] Leaderboard get failed for %d: %v", tournamentID, err)
		}
		return nil, false
	}

	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("[Cache] Leaderboard decode failed for %d: %v", tournamentID, err)
		return nil, false
	}
	return entries, true
}

// SetLeaderboard stores a computed leaderboard with the cache TTL.
func (lc *LeaderboardCache) SetLeaderboard(ctx context.Context, tournamentID uint, entries []models.LeaderboardEntry) {
	data, err := json.Marshal(entries)
	if err != nil {
		log.Printf("[Cache] Leaderboard encode failed for %d: %v", tournamentID, err)
		return
	}
	if err := lc.rdb.Set(ctx, leaderboardKey(tournamentID), data, leaderboardTTL).Err(); err != nil {
		log.Printf("[Cache] Leaderboard set failed for %d: %v", tournamentID, err)
	}
}
