// internal/lobby/errors.go
package lobby

import (
	"fmt"

	"github.com/magyk-ai/mvow/internal/models"
)

// Error is a validation failure reported to the requesting connection as lobby:error.
type Error struct {
	Code    models.ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code models.ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

var (
	ErrNameRequired    = newError(models.ErrCodeNameRequired, "Display name is required")
	ErrLobbyNotFound   = newError(models.ErrCodeNotFound, "Lobby not found")
	ErrLobbyFull       = newError(models.ErrCodeFull, fmt.Sprintf("Lobby is full (max %d players)", models.MaxPlayers))
	ErrAlreadyStarted  = newError(models.ErrCodeAlreadyStarted, "Game has already started")
	ErrNotHost         = newError(models.ErrCodeNotHost, "Only the host can start the game")
	ErrNotWaiting      = newError(models.ErrCodeInvalidState, "Game has already started")
	ErrCodeUnavailable = newError(models.ErrCodeInvalidState, "Could not allocate a lobby code")
)
