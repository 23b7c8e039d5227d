// internal/lobby/game.go
package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/magyk-ai/mvow/internal/models"
	"github.com/magyk-ai/mvow/internal/scoring"
	"github.com/sirupsen/logrus"
)

// StartGame handles game:start. Only the host may start, and only from waiting.
// The countdown runs on session timers so the caller returns immediately.
func (c *Coordinator) StartGame(ctx context.Context, connID string, req models.PlayerRequest) error {
	fields := logrus.Fields{"conn": connID, "lobby": req.LobbyCode, "player": req.PlayerID}
	return c.report(connID, "Failed to start game", fields, c.startGame(ctx, req))
}

func (c *Coordinator) startGame(ctx context.Context, req models.PlayerRequest) error {
	return c.withSession(req.LobbyCode, func(s *session) error {
		lobby, err := c.loadLobby(ctx, req.LobbyCode)
		if err != nil {
			return err
		}
		if lobby.HostID != req.PlayerID {
			return ErrNotHost
		}
		if lobby.Status != models.StatusWaiting {
			return ErrNotWaiting
		}

		lobby.Status = models.StatusCountdown
		lobby.CountdownSeconds = c.opts.CountdownSeconds
		if err := c.store.UpdateLobby(ctx, lobby); err != nil {
			return err
		}

		c.log.WithField("lobby", req.LobbyCode).Info("Starting countdown")
		c.bc.Broadcast(req.LobbyCode, models.EventGameCountdown, models.CountdownPayload{
			LobbyCode:        req.LobbyCode,
			SecondsRemaining: c.opts.CountdownSeconds,
		})
		c.armCountdown(s, req.LobbyCode, c.opts.CountdownSeconds-1)
		return nil
	})
}

// armCountdown schedules the next tick. remaining is the value the tick will
// announce; zero means the tick starts the game. Assumes s.mu is held.
func (c *Coordinator) armCountdown(s *session, code string, remaining int) {
	var t *time.Timer
	t = time.AfterFunc(c.opts.TickInterval, func() {
		s := c.sessions.acquire(code)
		defer c.sessions.release(code, s)
		if s.countdown != t {
			return
		}
		s.countdown = nil

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.TimerOpTimeout)
		defer cancel()
		if err := c.countdownTick(ctx, s, code, remaining); err != nil {
			c.log.WithField("lobby", code).WithError(err).Error("Countdown tick failed")
		}
	})
	s.countdown = t
}

func (c *Coordinator) countdownTick(ctx context.Context, s *session, code string, remaining int) error {
	lobby, err := c.loadLobby(ctx, code)
	if errors.Is(err, ErrLobbyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if lobby.Status != models.StatusCountdown {
		return nil
	}

	if remaining > 0 {
		c.bc.Broadcast(code, models.EventGameCountdown, models.CountdownPayload{
			LobbyCode:        code,
			SecondsRemaining: remaining,
		})
		c.armCountdown(s, code, remaining-1)
		return nil
	}
	return c.beginGame(ctx, s, lobby)
}

// beginGame moves a lobby from countdown to playing and arms the timeout check.
func (c *Coordinator) beginGame(ctx context.Context, s *session, lobby *models.LobbyState) error {
	now := c.opts.Now()
	lobby.Status = models.StatusPlaying
	lobby.CountdownSeconds = 0
	lobby.StartedAt = now.UnixMilli()
	lobby.TimeoutAt = now.Add(c.opts.GameTimeout).UnixMilli()
	if err := c.store.UpdateLobby(ctx, lobby); err != nil {
		return err
	}

	c.bc.Broadcast(lobby.LobbyCode, models.EventGameStarted, models.GameStartPayload{
		LobbyCode: lobby.LobbyCode,
		StartedAt: lobby.StartedAt,
		TimeoutAt: lobby.TimeoutAt,
	})
	c.log.WithField("lobby", lobby.LobbyCode).Infof("Game started at %d", lobby.StartedAt)

	c.armTimeout(s, lobby.LobbyCode, c.opts.GameTimeout+c.opts.TimeoutSlack)
	// Everyone may have dropped during the countdown.
	return c.finalizeIfDone(ctx, s, lobby)
}

// armTimeout schedules the forced finalize. Assumes s.mu is held.
func (c *Coordinator) armTimeout(s *session, code string, after time.Duration) {
	var t *time.Timer
	t = time.AfterFunc(after, func() {
		s := c.sessions.acquire(code)
		defer c.sessions.release(code, s)
		if s.timeout != t {
			return
		}
		s.timeout = nil

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.TimerOpTimeout)
		defer cancel()
		if err := c.checkTimeout(ctx, s, code); err != nil {
			c.log.WithField("lobby", code).WithError(err).Error("Timeout check failed")
		}
	})
	s.timeout = t
}

func (c *Coordinator) checkTimeout(ctx context.Context, s *session, code string) error {
	lobby, err := c.loadLobby(ctx, code)
	if errors.Is(err, ErrLobbyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if lobby.Status != models.StatusPlaying {
		return nil
	}

	if now := c.nowMillis(); now < lobby.TimeoutAt {
		// Clock skew against the stored deadline; check again when it is due.
		c.armTimeout(s, code, time.Duration(lobby.TimeoutAt-now)*time.Millisecond+c.opts.TimeoutSlack)
		return nil
	}

	c.log.WithField("lobby", code).Info("Game timed out")
	return c.finalizeLocked(ctx, s, lobby)
}

// SubmitResult handles game:submit. Late, duplicate and unknown submissions are
// dropped without a reply.
func (c *Coordinator) SubmitResult(ctx context.Context, connID string, req models.SubmitRequest) error {
	fields := logrus.Fields{"conn": connID, "lobby": req.LobbyCode, "player": req.Result.PlayerID}
	err := c.submit(ctx, req.LobbyCode, func(lobby *models.LobbyState) models.PlayerGameResult {
		r := req.Result
		r.IsDNF = false
		if r.TotalTimeMs < 0 {
			r.TotalTimeMs = 0
		}
		if r.FinishedAt == 0 {
			r.FinishedAt = c.nowMillis()
		}
		return r
	})
	if err != nil {
		c.log.WithFields(fields).WithError(err).Error("Submit failed")
	}
	return err
}

// GiveUp handles game:giveup by recording a DNF result for the player.
func (c *Coordinator) GiveUp(ctx context.Context, connID string, req models.PlayerRequest) error {
	fields := logrus.Fields{"conn": connID, "lobby": req.LobbyCode, "player": req.PlayerID}
	err := c.submit(ctx, req.LobbyCode, func(lobby *models.LobbyState) models.PlayerGameResult {
		now := c.nowMillis()
		return models.PlayerGameResult{
			PlayerID:    req.PlayerID,
			PuzzleState: nil,
			FinishedAt:  now,
			TotalTimeMs: now - lobby.StartedAt,
			IsDNF:       true,
		}
	})
	if err != nil {
		c.log.WithFields(fields).WithError(err).Error("Give up failed")
	}
	return err
}

// submit stores the result built by mk if the lobby is playing, the player is on the
// roster and has no result yet, then announces it and checks for completion.
func (c *Coordinator) submit(ctx context.Context, code string, mk func(*models.LobbyState) models.PlayerGameResult) error {
	return c.withSession(code, func(s *session) error {
		lobby, err := c.loadLobby(ctx, code)
		if errors.Is(err, ErrLobbyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if lobby.Status != models.StatusPlaying {
			return nil
		}

		result := mk(lobby)
		player := lobby.Player(result.PlayerID)
		if player == nil {
			return nil
		}

		added, err := c.store.AddResult(ctx, code, result)
		if err != nil || !added {
			return err
		}

		finished := models.PlayerFinishedPayload{
			LobbyCode:   code,
			PlayerID:    result.PlayerID,
			DisplayName: player.DisplayName,
		}
		if result.IsDNF {
			finished.Rank = models.DNFRank
			finished.IsDNF = true
		} else {
			rank, err := c.store.CountResults(ctx, code)
			if err != nil {
				return err
			}
			finished.Rank = rank
		}
		c.bc.Broadcast(code, models.EventGamePlayerFinished, finished)

		logger := c.log.WithFields(logrus.Fields{"lobby": code, "player": result.PlayerID})
		if result.IsDNF {
			logger.Infof("%s gave up", player.DisplayName)
		} else {
			logger.Infof("%s finished (rank %d, score %d)", player.DisplayName, finished.Rank, scoring.CalculateScore(result))
		}

		results, err := c.store.GetResults(ctx, code)
		if err != nil {
			return err
		}
		c.bc.Broadcast(code, models.EventGameLeaderboard, models.LeaderboardPayload{
			Leaderboard: scoring.BuildLeaderboard(lobby, results, false),
		})

		if allConnectedFinished(lobby, results) {
			return c.finalizeLocked(ctx, s, lobby)
		}
		return nil
	})
}

// finalizeIfDone finalizes a playing lobby once nobody is connected or every
// connected player has a result. Assumes s.mu is held.
func (c *Coordinator) finalizeIfDone(ctx context.Context, s *session, lobby *models.LobbyState) error {
	if lobby.Status != models.StatusPlaying {
		return nil
	}
	if len(lobby.ConnectedPlayers()) > 0 {
		results, err := c.store.GetResults(ctx, lobby.LobbyCode)
		if err != nil {
			return err
		}
		if !allConnectedFinished(lobby, results) {
			return nil
		}
	}
	return c.finalizeLocked(ctx, s, lobby)
}

// Finalize ends the game for code and broadcasts the final leaderboard. Calling it on
// a finished or missing lobby does nothing.
func (c *Coordinator) Finalize(ctx context.Context, code string) error {
	return c.withSession(code, func(s *session) error {
		lobby, err := c.loadLobby(ctx, code)
		if errors.Is(err, ErrLobbyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return c.finalizeLocked(ctx, s, lobby)
	})
}

func (c *Coordinator) finalizeLocked(ctx context.Context, s *session, lobby *models.LobbyState) error {
	if lobby.Status == models.StatusFinished {
		return nil
	}

	results, err := c.store.GetResults(ctx, lobby.LobbyCode)
	if err != nil {
		return err
	}

	lobby.Status = models.StatusFinished
	if err := c.store.UpdateLobby(ctx, lobby); err != nil {
		return err
	}
	s.stopTimers()

	board := scoring.BuildLeaderboard(lobby, results, true)
	c.bc.Broadcast(lobby.LobbyCode, models.EventGameLeaderboard, models.LeaderboardPayload{Leaderboard: board})
	c.log.WithField("lobby", lobby.LobbyCode).Infof("Game finished (%d entries)", len(board.Entries))
	return nil
}
