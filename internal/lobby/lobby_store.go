// internal/lobby/lobby_store.go
package lobby

import (
	"context"

	"github.com/magyk-ai/mvow/internal/models"
)

// Store is the persistence the Coordinator needs. cache.LobbyStore implements it;
// lookups of missing records return cache.ErrNotFound.
type Store interface {
	CreateLobby(ctx context.Context, lobby *models.LobbyState) error
	GetLobby(ctx context.Context, code string) (*models.LobbyState, error)
	UpdateLobby(ctx context.Context, lobby *models.LobbyState) error
	DeleteLobby(ctx context.Context, code string) error
	LobbyExists(ctx context.Context, code string) (bool, error)

	AddResult(ctx context.Context, code string, result models.PlayerGameResult) (bool, error)
	GetResults(ctx context.Context, code string) ([]models.PlayerGameResult, error)
	CountResults(ctx context.Context, code string) (int, error)

	SetPlayerSocket(ctx context.Context, playerID, connID, code string) error
	GetPlayerSocket(ctx context.Context, playerID string) (string, error)
	GetSocketSession(ctx context.Context, connID string) (playerID, code string, err error)
	RemovePlayerSocket(ctx context.Context, playerID, connID string) error
	RemoveSocket(ctx context.Context, connID string) error
}

// Broadcaster fans events out to connections. Rooms are keyed by lobby code.
// Implementations must deliver events to each connection in the order they were emitted.
type Broadcaster interface {
	Join(connID, room string)
	Leave(connID, room string)
	Emit(connID, event string, payload any)
	Broadcast(room, event string, payload any)
}
