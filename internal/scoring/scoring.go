// internal/scoring/scoring.go
package scoring

import (
	"sort"

	"github.com/magyk-ai/mvow/internal/models"
)

const (
	PointsPerCorrect     = 1000
	TimePenaltyPerSecond = 1
	HintPenalty          = 50
)

// CalculateScore returns correct*1000 - seconds*1 - hints*50, floored at zero.
// Partial seconds are not penalized.
func CalculateScore(r models.PlayerGameResult) int {
	correctPoints := r.CorrectCount * PointsPerCorrect
	timePenalty := int(r.TotalTimeMs/1000) * TimePenaltyPerSecond
	hintPenalty := r.HintsUsed * HintPenalty

	score := correctPoints - timePenalty - hintPenalty
	if score < 0 {
		return 0
	}
	return score
}

// Less reports whether a ranks strictly ahead of b.
//
// Tiebreaker order:
//  1. DNF entries always last
//  2. Higher score first
//  3. More correct answers first
//  4. Faster time first
//  5. Fewer hints first
func Less(a, b models.LeaderboardEntry) bool {
	if a.IsDNF != b.IsDNF {
		return !a.IsDNF
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.CorrectCount != b.CorrectCount {
		return a.CorrectCount > b.CorrectCount
	}
	if a.TotalTimeMs != b.TotalTimeMs {
		return a.TotalTimeMs < b.TotalTimeMs
	}
	return a.HintsUsed < b.HintsUsed
}

// SortLeaderboard returns a sorted copy of entries; the input is not modified.
// Entries equal on every criterion keep their input order.
func SortLeaderboard(entries []models.LeaderboardEntry) []models.LeaderboardEntry {
	sorted := make([]models.LeaderboardEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Less(sorted[i], sorted[j])
	})
	return sorted
}

// AssignRanks numbers pre-sorted entries 1..N in place. Ties are not collapsed.
func AssignRanks(entries []models.LeaderboardEntry) {
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// BuildEntry builds a scored entry from a finished result. Rank is assigned later.
func BuildEntry(r models.PlayerGameResult, displayName string) models.LeaderboardEntry {
	return models.LeaderboardEntry{
		PlayerID:     r.PlayerID,
		DisplayName:  displayName,
		Score:        CalculateScore(r),
		CorrectCount: r.CorrectCount,
		TotalCount:   r.TotalCount,
		TotalTimeMs:  r.TotalTimeMs,
		HintsUsed:    r.HintsUsed,
	}
}

// BuildDNFEntry builds a zero-stat entry for a player who gave up or never submitted.
func BuildDNFEntry(playerID, displayName string, totalCount int) models.LeaderboardEntry {
	return models.LeaderboardEntry{
		PlayerID:    playerID,
		DisplayName: displayName,
		TotalCount:  totalCount,
		IsDNF:       true,
	}
}

// BuildLeaderboard builds one entry per roster player, sorts and ranks them.
//
// With final set, a player with no stored result is DNF. Without it the player is
// still solving and shows up as a zero-stat IsPlaying entry.
func BuildLeaderboard(lobby *models.LobbyState, results []models.PlayerGameResult, final bool) models.LeaderboardState {
	byPlayer := make(map[string]models.PlayerGameResult, len(results))
	for _, r := range results {
		byPlayer[r.PlayerID] = r
	}

	entries := make([]models.LeaderboardEntry, 0, len(lobby.Players))
	for _, p := range lobby.Players {
		r, ok := byPlayer[p.PlayerID]
		switch {
		case !ok && final:
			entries = append(entries, BuildDNFEntry(p.PlayerID, p.DisplayName, 0))
		case !ok:
			entries = append(entries, models.LeaderboardEntry{
				PlayerID:    p.PlayerID,
				DisplayName: p.DisplayName,
				IsPlaying:   true,
			})
		case r.IsDNF:
			entries = append(entries, BuildDNFEntry(p.PlayerID, p.DisplayName, r.TotalCount))
		default:
			entries = append(entries, BuildEntry(r, p.DisplayName))
		}
	}

	sorted := SortLeaderboard(entries)
	AssignRanks(sorted)

	return models.LeaderboardState{
		LobbyCode:   lobby.LobbyCode,
		PuzzleID:    lobby.PuzzleID,
		PuzzleTitle: lobby.PuzzleTitle,
		Entries:     sorted,
		IsFinal:     final,
	}
}
