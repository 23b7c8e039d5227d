// internal/cache/lobby_store.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/magyk-ai/mvow/internal/models"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a lobby, result or socket association does not exist.
var ErrNotFound = errors.New("not found")

const (
	DefaultLobbyTTL   = time.Hour
	DefaultResultsTTL = 15 * time.Minute
	// MinLobbyTTL is the floor an update re-arms the lobby expiry to.
	MinLobbyTTL = 60 * time.Second

	maxTxRetries = 5
)

// Options tunes key expiry. Zero values fall back to the defaults.
type Options struct {
	LobbyTTL   time.Duration
	ResultsTTL time.Duration
}

// LobbyStore is the Redis-backed data access layer for lobbies, submitted results
// and player/socket associations. Every write sets or refreshes an expiry so that
// abandoned sessions clean themselves up.
type LobbyStore struct {
	rdb        *redis.Client
	lobbyTTL   time.Duration
	resultsTTL time.Duration
}

// NewLobbyStore wraps an already connected client.
func NewLobbyStore(rdb *redis.Client, opts Options) *LobbyStore {
	if opts.LobbyTTL <= 0 {
		opts.LobbyTTL = DefaultLobbyTTL
	}
	if opts.ResultsTTL <= 0 {
		opts.ResultsTTL = DefaultResultsTTL
	}
	return &LobbyStore{
		rdb:        rdb,
		lobbyTTL:   opts.LobbyTTL,
		resultsTTL: opts.ResultsTTL,
	}
}

// Ping checks that Redis is reachable.
func (s *LobbyStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// ============ Lobby Operations ============

// CreateLobby stores a new lobby with the full lobby TTL.
func (s *LobbyStore) CreateLobby(ctx context.Context, lobby *models.LobbyState) error {
	data, err := json.Marshal(lobby)
	if err != nil {
		return fmt.Errorf("failed to marshal lobby %s: %w", lobby.LobbyCode, err)
	}
	if err := s.rdb.Set(ctx, lobbyKey(lobby.LobbyCode), data, s.lobbyTTL).Err(); err != nil {
		return fmt.Errorf("failed to create lobby %s: %w", lobby.LobbyCode, err)
	}
	return nil
}

// GetLobby loads a lobby by code. Returns ErrNotFound if it does not exist or has expired.
func (s *LobbyStore) GetLobby(ctx context.Context, code string) (*models.LobbyState, error) {
	data, err := s.rdb.Get(ctx, lobbyKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lobby %s: %w", code, err)
	}

	var lobby models.LobbyState
	if err := json.Unmarshal(data, &lobby); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lobby %s: %w", code, err)
	}
	return &lobby, nil
}

// UpdateLobby overwrites a lobby, preserving its remaining TTL but never leaving less
// than MinLobbyTTL. The TTL read and the write happen inside one WATCH transaction.
func (s *LobbyStore) UpdateLobby(ctx context.Context, lobby *models.LobbyState) error {
	key := lobbyKey(lobby.LobbyCode)
	data, err := json.Marshal(lobby)
	if err != nil {
		return fmt.Errorf("failed to marshal lobby %s: %w", lobby.LobbyCode, err)
	}

	txf := func(tx *redis.Tx) error {
		ttl, err := tx.TTL(ctx, key).Result()
		if err != nil {
			return err
		}
		if ttl < MinLobbyTTL {
			ttl = MinLobbyTTL
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err = s.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to update lobby %s: %w", lobby.LobbyCode, err)
	}
	return nil
}

// DeleteLobby removes a lobby record.
func (s *LobbyStore) DeleteLobby(ctx context.Context, code string) error {
	if err := s.rdb.Del(ctx, lobbyKey(code)).Err(); err != nil {
		return fmt.Errorf("failed to delete lobby %s: %w", code, err)
	}
	return nil
}

// LobbyExists reports whether a lobby record is present.
func (s *LobbyStore) LobbyExists(ctx context.Context, code string) (bool, error) {
	n, err := s.rdb.Exists(ctx, lobbyKey(code)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check lobby %s: %w", code, err)
	}
	return n == 1, nil
}

// ============ Game Results ============

// AddResult stores a result only if the player has none yet (HSETNX) and reports
// whether this call wrote it. The hash expiry is armed by the first write only.
func (s *LobbyStore) AddResult(ctx context.Context, code string, result models.PlayerGameResult) (bool, error) {
	key := resultsKey(code)
	data, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("failed to marshal result for %s: %w", result.PlayerID, err)
	}

	var (
		setNX *redis.BoolCmd
		ttl   *redis.DurationCmd
	)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setNX = pipe.HSetNX(ctx, key, result.PlayerID, data)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to add result for %s in %s: %w", result.PlayerID, code, err)
	}

	added := setNX.Val()
	// -1: key exists without expiry, i.e. this was the first write.
	if added && ttl.Val() < 0 {
		if err := s.rdb.Expire(ctx, key, s.resultsTTL).Err(); err != nil {
			return true, fmt.Errorf("failed to set results expiry for %s: %w", code, err)
		}
	}
	return added, nil
}

// GetResults returns every stored result for a lobby, in no particular order.
func (s *LobbyStore) GetResults(ctx context.Context, code string) ([]models.PlayerGameResult, error) {
	data, err := s.rdb.HGetAll(ctx, resultsKey(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get results for %s: %w", code, err)
	}

	results := make([]models.PlayerGameResult, 0, len(data))
	for playerID, raw := range data {
		var r models.PlayerGameResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result for %s in %s: %w", playerID, code, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// GetPlayerResult returns one player's result, or ErrNotFound.
func (s *LobbyStore) GetPlayerResult(ctx context.Context, code, playerID string) (*models.PlayerGameResult, error) {
	raw, err := s.rdb.HGet(ctx, resultsKey(code), playerID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result for %s in %s: %w", playerID, code, err)
	}

	var r models.PlayerGameResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result for %s in %s: %w", playerID, code, err)
	}
	return &r, nil
}

// CountResults returns how many players have a stored result.
func (s *LobbyStore) CountResults(ctx context.Context, code string) (int, error) {
	n, err := s.rdb.HLen(ctx, resultsKey(code)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count results for %s: %w", code, err)
	}
	return int(n), nil
}

// ============ Socket Tracking ============

// SetPlayerSocket associates a player with a connection and the connection with a lobby.
func (s *LobbyStore) SetPlayerSocket(ctx context.Context, playerID, connID, code string) error {
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, playerSocketKey(playerID), connID, s.lobbyTTL)
		pipe.Set(ctx, socketPlayerKey(connID), playerID, s.lobbyTTL)
		pipe.Set(ctx, socketLobbyKey(connID), code, s.lobbyTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set socket for player %s: %w", playerID, err)
	}
	return nil
}

// GetPlayerSocket returns the connection id last associated with a player.
func (s *LobbyStore) GetPlayerSocket(ctx context.Context, playerID string) (string, error) {
	return s.getString(ctx, playerSocketKey(playerID))
}

// GetSocketPlayer returns the player id associated with a connection.
func (s *LobbyStore) GetSocketPlayer(ctx context.Context, connID string) (string, error) {
	return s.getString(ctx, socketPlayerKey(connID))
}

// GetSocketLobby returns the lobby code associated with a connection.
func (s *LobbyStore) GetSocketLobby(ctx context.Context, connID string) (string, error) {
	return s.getString(ctx, socketLobbyKey(connID))
}

// GetSocketSession resolves a connection to its player and lobby in one round trip.
// Returns ErrNotFound unless both associations exist.
func (s *LobbyStore) GetSocketSession(ctx context.Context, connID string) (playerID, code string, err error) {
	vals, err := s.rdb.MGet(ctx, socketPlayerKey(connID), socketLobbyKey(connID)).Result()
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve socket %s: %w", connID, err)
	}
	playerID, _ = vals[0].(string)
	code, _ = vals[1].(string)
	if playerID == "" || code == "" {
		return "", "", ErrNotFound
	}
	return playerID, code, nil
}

// RemovePlayerSocket deletes all three association records.
func (s *LobbyStore) RemovePlayerSocket(ctx context.Context, playerID, connID string) error {
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, playerSocketKey(playerID))
		pipe.Del(ctx, socketPlayerKey(connID))
		pipe.Del(ctx, socketLobbyKey(connID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove socket for player %s: %w", playerID, err)
	}
	return nil
}

// RemoveSocket deletes only the connection-keyed records, leaving player:socket in
// place for a player who has already moved to a newer connection.
func (s *LobbyStore) RemoveSocket(ctx context.Context, connID string) error {
	if err := s.rdb.Del(ctx, socketPlayerKey(connID), socketLobbyKey(connID)).Err(); err != nil {
		return fmt.Errorf("failed to remove socket %s: %w", connID, err)
	}
	return nil
}

func (s *LobbyStore) getString(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, nil
}
