package scoring

import (
	"testing"

	"github.com/magyk-ai/mvow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateScore(t *testing.T) {
	tests := []struct {
		name string
		in   models.PlayerGameResult
		want int
	}{
		{"zero result", models.PlayerGameResult{}, 0},
		{"perfect one minute", models.PlayerGameResult{CorrectCount: 5, TotalTimeMs: 60000}, 4940},
		{"partial second ignored", models.PlayerGameResult{CorrectCount: 1, TotalTimeMs: 1999}, 999},
		{"hints", models.PlayerGameResult{CorrectCount: 2, HintsUsed: 3}, 1850},
		{"floored at zero", models.PlayerGameResult{CorrectCount: 0, TotalTimeMs: 600000, HintsUsed: 4}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateScore(tt.in))
		})
	}
}

func TestSortLeaderboardOrdering(t *testing.T) {
	entries := []models.LeaderboardEntry{
		{PlayerID: "dnf-high", Score: 9999, IsDNF: true},
		{PlayerID: "low", Score: 100},
		{PlayerID: "slow", Score: 500, CorrectCount: 1, TotalTimeMs: 9000},
		{PlayerID: "fast", Score: 500, CorrectCount: 1, TotalTimeMs: 1000},
		{PlayerID: "more-correct", Score: 500, CorrectCount: 2, TotalTimeMs: 9000},
		{PlayerID: "fast-hinted", Score: 500, CorrectCount: 1, TotalTimeMs: 1000, HintsUsed: 1},
		{PlayerID: "top", Score: 2000},
	}

	sorted := SortLeaderboard(entries)
	ids := make([]string, len(sorted))
	for i, e := range sorted {
		ids[i] = e.PlayerID
	}
	assert.Equal(t, []string{"top", "more-correct", "fast", "fast-hinted", "slow", "low", "dnf-high"}, ids)

	// input untouched
	assert.Equal(t, "dnf-high", entries[0].PlayerID)
}

func TestSortLeaderboardDNFAlwaysLast(t *testing.T) {
	entries := []models.LeaderboardEntry{
		{PlayerID: "a", IsDNF: true, Score: 5000, CorrectCount: 5},
		{PlayerID: "b", IsDNF: false},
		{PlayerID: "c", IsDNF: true},
		{PlayerID: "d", IsDNF: false, Score: 1},
	}
	sorted := SortLeaderboard(entries)
	require.Len(t, sorted, 4)
	for i := 0; i < 2; i++ {
		assert.False(t, sorted[i].IsDNF)
	}
	for i := 2; i < 4; i++ {
		assert.True(t, sorted[i].IsDNF)
	}
	assert.Equal(t, "d", sorted[0].PlayerID)
}

func TestLessIsStrict(t *testing.T) {
	a := models.LeaderboardEntry{PlayerID: "a", Score: 10}
	b := models.LeaderboardEntry{PlayerID: "b", Score: 10}
	assert.False(t, Less(a, b))
	assert.False(t, Less(b, a))
}

func TestAssignRanksNoSharedRanks(t *testing.T) {
	entries := SortLeaderboard([]models.LeaderboardEntry{
		{PlayerID: "a", Score: 10},
		{PlayerID: "b", Score: 10},
		{PlayerID: "c", Score: 5},
	})
	AssignRanks(entries)

	ranks := []int{entries[0].Rank, entries[1].Rank, entries[2].Rank}
	assert.Equal(t, []int{1, 2, 3}, ranks)
	assert.Equal(t, "c", entries[2].PlayerID)
}

func TestBuildLeaderboard(t *testing.T) {
	lobby := &models.LobbyState{
		LobbyCode: "ABC234",
		PuzzleID:  "p1",
		Players: []models.PlayerInfo{
			{PlayerID: "solver", DisplayName: "Solver", SeatNumber: 1},
			{PlayerID: "quitter", DisplayName: "Quitter", SeatNumber: 2},
			{PlayerID: "idle", DisplayName: "Idle", SeatNumber: 3},
		},
	}
	results := []models.PlayerGameResult{
		{PlayerID: "solver", CorrectCount: 3, TotalCount: 5, TotalTimeMs: 30000},
		{PlayerID: "quitter", IsDNF: true},
		{PlayerID: "stranger", CorrectCount: 5},
	}

	t.Run("final", func(t *testing.T) {
		lb := BuildLeaderboard(lobby, results, true)
		assert.True(t, lb.IsFinal)
		assert.Equal(t, "ABC234", lb.LobbyCode)
		require.Len(t, lb.Entries, 3)

		assert.Equal(t, "solver", lb.Entries[0].PlayerID)
		assert.Equal(t, 1, lb.Entries[0].Rank)
		assert.Equal(t, 2970, lb.Entries[0].Score)
		for _, e := range lb.Entries[1:] {
			assert.True(t, e.IsDNF, e.PlayerID)
			assert.Zero(t, e.Score)
			assert.False(t, e.IsPlaying)
		}
	})

	t.Run("intermediate", func(t *testing.T) {
		lb := BuildLeaderboard(lobby, results, false)
		assert.False(t, lb.IsFinal)
		require.Len(t, lb.Entries, 3)

		byID := map[string]models.LeaderboardEntry{}
		for _, e := range lb.Entries {
			byID[e.PlayerID] = e
		}
		assert.True(t, byID["idle"].IsPlaying)
		assert.False(t, byID["idle"].IsDNF)
		assert.True(t, byID["quitter"].IsDNF)
		assert.Equal(t, 3, byID["quitter"].Rank)
	})
}
