// internal/lobby/roster.go
package lobby

import (
	"strings"

	"github.com/magyk-ai/mvow/internal/models"
)

// normalizeName trims a display name and rejects blank ones.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	return name, nil
}

// newLobby builds a waiting lobby with the creator as host in seat 1.
func newLobby(code string, req models.CreateLobbyRequest, name string) *models.LobbyState {
	return &models.LobbyState{
		LobbyCode:   code,
		PuzzleID:    req.PuzzleID,
		PuzzleTitle: strings.TrimSpace(req.PuzzleTitle),
		HostID:      req.PlayerID,
		Status:      models.StatusWaiting,
		Players: []models.PlayerInfo{{
			PlayerID:    req.PlayerID,
			DisplayName: name,
			SeatNumber:  1,
			IsHost:      true,
			IsConnected: true,
		}},
	}
}

// nextSeat returns the lowest seat in 1..MaxPlayers not held by anyone, or 0 if full.
func nextSeat(l *models.LobbyState) int {
	taken := make(map[int]bool, len(l.Players))
	for _, p := range l.Players {
		taken[p.SeatNumber] = true
	}
	for seat := 1; seat <= models.MaxPlayers; seat++ {
		if !taken[seat] {
			return seat
		}
	}
	return 0
}

// seatPlayer adds a player to the roster, or reconnects an existing one in place
// keeping their seat. Returns ErrLobbyFull when no seat is free.
func seatPlayer(l *models.LobbyState, playerID, name string) error {
	if p := l.Player(playerID); p != nil {
		p.IsConnected = true
		p.DisplayName = name
		return nil
	}

	if len(l.Players) >= models.MaxPlayers {
		return ErrLobbyFull
	}
	seat := nextSeat(l)
	if seat == 0 {
		return ErrLobbyFull
	}

	l.Players = append(l.Players, models.PlayerInfo{
		PlayerID:    playerID,
		DisplayName: name,
		SeatNumber:  seat,
		IsConnected: true,
	})
	return nil
}

// removePlayer drops a player from the roster and hands the host role to the first
// remaining player if needed. Returns the removed record, or nil if absent.
func removePlayer(l *models.LobbyState, playerID string) *models.PlayerInfo {
	idx := -1
	for i := range l.Players {
		if l.Players[i].PlayerID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	removed := l.Players[idx]
	l.Players = append(l.Players[:idx], l.Players[idx+1:]...)

	if l.HostID == playerID && len(l.Players) > 0 {
		for i := range l.Players {
			l.Players[i].IsHost = i == 0
		}
		l.HostID = l.Players[0].PlayerID
	}
	return &removed
}

// allConnectedFinished reports whether every connected player has a stored result.
// A lobby with nobody connected does not count as finished here.
func allConnectedFinished(l *models.LobbyState, results []models.PlayerGameResult) bool {
	done := make(map[string]bool, len(results))
	for _, r := range results {
		done[r.PlayerID] = true
	}
	connected := 0
	for _, p := range l.Players {
		if !p.IsConnected {
			continue
		}
		connected++
		if !done[p.PlayerID] {
			return false
		}
	}
	return connected > 0
}
