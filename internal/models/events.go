// internal/models/events.go
package models

import "encoding/json"

// Client -> server event names.
const (
	EventLobbyCreate = "lobby:create"
	EventLobbyJoin   = "lobby:join"
	EventLobbyLeave  = "lobby:leave"
	EventGameStart   = "game:start"
	EventGameSubmit  = "game:submit"
	EventGameGiveUp  = "game:giveup"
)

// Server -> client event names. game:start is shared by both directions.
const (
	EventLobbyCreated       = "lobby:created"
	EventLobbyJoined        = "lobby:joined"
	EventLobbyUpdated       = "lobby:updated"
	EventLobbyError         = "lobby:error"
	EventGameCountdown      = "game:countdown"
	EventGameStarted        = "game:start"
	EventGamePlayerFinished = "game:playerFinished"
	EventGameLeaderboard    = "game:leaderboard"
	EventPlayerDisconnected = "player:disconnected"
)

// Envelope is the frame exchanged over the socket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type CreateLobbyRequest struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	PuzzleID    string `json:"puzzleId"`
	PuzzleTitle string `json:"puzzleTitle,omitempty"`
}

type JoinLobbyRequest struct {
	LobbyCode   string `json:"lobbyCode"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
}

// PlayerRequest carries lobby:leave, game:start and game:giveup.
type PlayerRequest struct {
	LobbyCode string `json:"lobbyCode"`
	PlayerID  string `json:"playerId"`
}

type SubmitRequest struct {
	LobbyCode string           `json:"lobbyCode"`
	Result    PlayerGameResult `json:"result"`
}

type LobbyCreatedPayload struct {
	LobbyCode string     `json:"lobbyCode"`
	Lobby     LobbyState `json:"lobby"`
}

// LobbyPayload carries lobby:joined and lobby:updated.
type LobbyPayload struct {
	Lobby LobbyState `json:"lobby"`
}

type LobbyErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type CountdownPayload struct {
	LobbyCode        string `json:"lobbyCode"`
	SecondsRemaining int    `json:"secondsRemaining"`
}

type GameStartPayload struct {
	LobbyCode string `json:"lobbyCode"`
	StartedAt int64  `json:"startedAt"`
	TimeoutAt int64  `json:"timeoutAt"`
}

// DNFRank is the rank reported in game:playerFinished for a player who gave up.
const DNFRank = -1

type PlayerFinishedPayload struct {
	LobbyCode   string `json:"lobbyCode"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Rank        int    `json:"rank"`
	IsDNF       bool   `json:"isDNF,omitempty"`
}

type LeaderboardPayload struct {
	Leaderboard LeaderboardState `json:"leaderboard"`
}

type PlayerDisconnectedPayload struct {
	LobbyCode   string `json:"lobbyCode"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
}
