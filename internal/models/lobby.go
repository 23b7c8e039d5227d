// internal/models/lobby.go
package models

import "encoding/json"

// MaxPlayers is the roster capacity of a single lobby. Seats are numbered 1..MaxPlayers.
const MaxPlayers = 10

// LobbyStatus is the lifecycle state of a lobby.
type LobbyStatus string

const (
	StatusWaiting   LobbyStatus = "waiting"
	StatusCountdown LobbyStatus = "countdown"
	StatusPlaying   LobbyStatus = "playing"
	StatusFinished  LobbyStatus = "finished"
)

// PlayerInfo is one roster entry. The record survives disconnects so a returning
// player resumes the same seat.
type PlayerInfo struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	SeatNumber  int    `json:"seatNumber"`
	IsHost      bool   `json:"isHost"`
	IsConnected bool   `json:"isConnected"`
}

// LobbyState is the full lobby record shared between the server and every client.
// Timestamps are Unix milliseconds.
type LobbyState struct {
	LobbyCode        string       `json:"lobbyCode"`
	PuzzleID         string       `json:"puzzleId"`
	PuzzleTitle      string       `json:"puzzleTitle,omitempty"`
	HostID           string       `json:"hostId"`
	Status           LobbyStatus  `json:"status"`
	Players          []PlayerInfo `json:"players"`
	CountdownSeconds int          `json:"countdownSeconds,omitempty"`
	StartedAt        int64        `json:"startedAt,omitempty"`
	TimeoutAt        int64        `json:"timeoutAt,omitempty"`
}

// Player returns a pointer into Players for the given id, or nil.
func (l *LobbyState) Player(playerID string) *PlayerInfo {
	for i := range l.Players {
		if l.Players[i].PlayerID == playerID {
			return &l.Players[i]
		}
	}
	return nil
}

// ConnectedPlayers returns the roster entries currently flagged as connected.
func (l *LobbyState) ConnectedPlayers() []PlayerInfo {
	connected := make([]PlayerInfo, 0, len(l.Players))
	for _, p := range l.Players {
		if p.IsConnected {
			connected = append(connected, p)
		}
	}
	return connected
}

// PlayerGameResult is a player's final submission. It is written once and never mutated.
// PuzzleState is produced by the puzzle engine and is kept opaque here; it is null for a give-up.
type PlayerGameResult struct {
	PlayerID     string          `json:"playerId"`
	PuzzleState  json.RawMessage `json:"puzzleState"`
	FinishedAt   int64           `json:"finishedAt"`
	TotalTimeMs  int64           `json:"totalTimeMs"`
	CorrectCount int             `json:"correctCount"`
	TotalCount   int             `json:"totalCount"`
	HintsUsed    int             `json:"hintsUsed"`
	IsDNF        bool            `json:"isDNF,omitempty"`
}

// LeaderboardEntry is one derived leaderboard row.
type LeaderboardEntry struct {
	PlayerID     string `json:"playerId"`
	DisplayName  string `json:"displayName"`
	Rank         int    `json:"rank"`
	Score        int    `json:"score"`
	CorrectCount int    `json:"correctCount"`
	TotalCount   int    `json:"totalCount"`
	TotalTimeMs  int64  `json:"totalTimeMs"`
	HintsUsed    int    `json:"hintsUsed"`
	IsDNF        bool   `json:"isDNF"`
	// IsPlaying marks a player still solving; only set on intermediate snapshots.
	IsPlaying bool `json:"isPlaying,omitempty"`
}

// LeaderboardState is always rebuilt from the roster and the stored results.
type LeaderboardState struct {
	LobbyCode   string             `json:"lobbyCode"`
	PuzzleID    string             `json:"puzzleId"`
	PuzzleTitle string             `json:"puzzleTitle,omitempty"`
	Entries     []LeaderboardEntry `json:"entries"`
	IsFinal     bool               `json:"isFinal"`
}
