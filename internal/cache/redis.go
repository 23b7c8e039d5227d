// internal/cache/redis.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect parses a redis:// URL, builds a client and verifies it with a PING.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// Key patterns.
func lobbyKey(code string) string { return "lobby:" + code }
func resultsKey(code string) string { return "results:" + code }
func playerSocketKey(playerID string) string { return "player:socket:" + playerID }
func socketPlayerKey(connID string) string { return "socket:player:" + connID }
func socketLobbyKey(connID string) string { return "socket:lobby:" + connID }
