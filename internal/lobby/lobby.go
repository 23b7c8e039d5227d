// internal/lobby/lobby.go
package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/magyk-ai/mvow/internal/cache"
	"github.com/magyk-ai/mvow/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCountdownSeconds = 3
	DefaultTickInterval     = time.Second
	DefaultGameTimeout      = 10 * time.Minute
	DefaultTimeoutSlack     = time.Second
	DefaultCodeRetries      = 5
	DefaultTimerOpTimeout   = 5 * time.Second
)

// Options tunes the Coordinator. Zero values fall back to the defaults above.
type Options struct {
	CountdownSeconds int
	TickInterval     time.Duration
	GameTimeout      time.Duration
	TimeoutSlack     time.Duration
	// CodeRetries is how many extra codes are tried after a collision.
	CodeRetries int
	// TimerOpTimeout bounds the store work done from countdown and timeout callbacks.
	TimerOpTimeout time.Duration

	Codes CodeGenerator
	Now   func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CountdownSeconds <= 0 {
		o.CountdownSeconds = DefaultCountdownSeconds
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.GameTimeout <= 0 {
		o.GameTimeout = DefaultGameTimeout
	}
	if o.TimeoutSlack <= 0 {
		o.TimeoutSlack = DefaultTimeoutSlack
	}
	if o.CodeRetries <= 0 {
		o.CodeRetries = DefaultCodeRetries
	}
	if o.TimerOpTimeout <= 0 {
		o.TimerOpTimeout = DefaultTimerOpTimeout
	}
	if o.Codes == nil {
		o.Codes = NanoidCodes{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Coordinator owns the lobby lifecycle. Every command re-reads the lobby from the
// Store, mutates it and writes it back while holding that lobby's session, so
// commands for one lobby never interleave.
type Coordinator struct {
	store    Store
	bc       Broadcaster
	log      logrus.FieldLogger
	opts     Options
	sessions *sessionManager
}

func NewCoordinator(store Store, bc Broadcaster, logger logrus.FieldLogger, opts Options) *Coordinator {
	return &Coordinator{
		store:    store,
		bc:       bc,
		log:      logger,
		opts:     opts.withDefaults(),
		sessions: newSessionManager(),
	}
}

// Close cancels all pending countdown and timeout timers.
func (c *Coordinator) Close() {
	c.sessions.stopAll()
}

func (c *Coordinator) nowMillis() int64 {
	return c.opts.Now().UnixMilli()
}

// withSession runs fn while holding the session for code.
func (c *Coordinator) withSession(code string, fn func(s *session) error) error {
	s := c.sessions.acquire(code)
	defer c.sessions.release(code, s)
	return fn(s)
}

// report delivers err to the requesting connection. Validation errors go out as-is;
// anything else is logged and surfaced as a generic INVALID_STATE.
func (c *Coordinator) report(connID, failure string, fields logrus.Fields, err error) error {
	if err == nil {
		return nil
	}

	var lerr *Error
	if errors.As(err, &lerr) {
		c.bc.Emit(connID, models.EventLobbyError, models.LobbyErrorPayload{Code: lerr.Code, Message: lerr.Message})
		return err
	}

	c.log.WithFields(fields).WithError(err).Error(failure)
	c.bc.Emit(connID, models.EventLobbyError, models.LobbyErrorPayload{
		Code:    models.ErrCodeInvalidState,
		Message: failure,
	})
	return err
}

// loadLobby reads a lobby, mapping a missing record to ErrLobbyNotFound.
func (c *Coordinator) loadLobby(ctx context.Context, code string) (*models.LobbyState, error) {
	l, err := c.store.GetLobby(ctx, code)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrLobbyNotFound
	}
	return l, err
}

// CreateLobby handles lobby:create. The creator becomes host in seat 1 and only the
// creator is told about the new lobby.
func (c *Coordinator) CreateLobby(ctx context.Context, connID string, req models.CreateLobbyRequest) error {
	fields := logrus.Fields{"conn": connID, "player": req.PlayerID}
	return c.report(connID, "Failed to create lobby", fields, c.createLobby(ctx, connID, req))
}

func (c *Coordinator) createLobby(ctx context.Context, connID string, req models.CreateLobbyRequest) error {
	name, err := normalizeName(req.DisplayName)
	if err != nil {
		return err
	}

	for attempt := 0; attempt <= c.opts.CodeRetries; attempt++ {
		code, err := c.opts.Codes.Generate()
		if err != nil {
			return err
		}

		created := false
		err = c.withSession(code, func(s *session) error {
			exists, err := c.store.LobbyExists(ctx, code)
			if err != nil || exists {
				return err
			}

			lobby := newLobby(code, req, name)
			if err := c.store.CreateLobby(ctx, lobby); err != nil {
				return err
			}
			if err := c.store.SetPlayerSocket(ctx, req.PlayerID, connID, code); err != nil {
				return err
			}
			created = true

			c.bc.Join(connID, code)
			c.bc.Emit(connID, models.EventLobbyCreated, models.LobbyCreatedPayload{LobbyCode: code, Lobby: *lobby})
			c.log.WithFields(logrus.Fields{"lobby": code, "player": req.PlayerID}).Infof("Lobby created by %s", name)
			return nil
		})
		if err != nil || created {
			return err
		}
		c.log.WithField("lobby", code).Debug("Lobby code collision, retrying")
	}
	return ErrCodeUnavailable
}

// JoinLobby handles lobby:join. A player already on the roster is reconnected in
// their old seat; anyone else takes the lowest free seat.
func (c *Coordinator) JoinLobby(ctx context.Context, connID string, req models.JoinLobbyRequest) error {
	fields := logrus.Fields{"conn": connID, "lobby": req.LobbyCode, "player": req.PlayerID}
	return c.report(connID, "Failed to join lobby", fields, c.joinLobby(ctx, connID, req))
}

func (c *Coordinator) joinLobby(ctx context.Context, connID string, req models.JoinLobbyRequest) error {
	name, err := normalizeName(req.DisplayName)
	if err != nil {
		return err
	}

	return c.withSession(req.LobbyCode, func(s *session) error {
		lobby, err := c.loadLobby(ctx, req.LobbyCode)
		if err != nil {
			return err
		}
		if lobby.Status != models.StatusWaiting {
			return ErrAlreadyStarted
		}
		if err := seatPlayer(lobby, req.PlayerID, name); err != nil {
			return err
		}

		if err := c.store.UpdateLobby(ctx, lobby); err != nil {
			return err
		}
		if err := c.store.SetPlayerSocket(ctx, req.PlayerID, connID, req.LobbyCode); err != nil {
			return err
		}

		c.bc.Join(connID, req.LobbyCode)
		c.bc.Emit(connID, models.EventLobbyJoined, models.LobbyPayload{Lobby: *lobby})
		c.bc.Broadcast(req.LobbyCode, models.EventLobbyUpdated, models.LobbyPayload{Lobby: *lobby})

		c.log.WithFields(logrus.Fields{"lobby": req.LobbyCode, "player": req.PlayerID}).
			Infof("%s joined (%d players)", name, len(lobby.Players))
		return nil
	})
}

// LeaveLobby handles lobby:leave. An emptied lobby is deleted; otherwise the host
// role moves to the first remaining player.
func (c *Coordinator) LeaveLobby(ctx context.Context, connID string, req models.PlayerRequest) error {
	fields := logrus.Fields{"conn": connID, "lobby": req.LobbyCode, "player": req.PlayerID}
	return c.report(connID, "Failed to leave lobby", fields, c.leaveLobby(ctx, connID, req))
}

func (c *Coordinator) leaveLobby(ctx context.Context, connID string, req models.PlayerRequest) error {
	return c.withSession(req.LobbyCode, func(s *session) error {
		lobby, err := c.loadLobby(ctx, req.LobbyCode)
		if errors.Is(err, ErrLobbyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		logger := c.log.WithFields(logrus.Fields{"lobby": req.LobbyCode, "player": req.PlayerID})
		wasHost := lobby.HostID == req.PlayerID
		if removePlayer(lobby, req.PlayerID) == nil {
			return nil
		}

		if len(lobby.Players) == 0 {
			s.stopTimers()
			if err := c.store.DeleteLobby(ctx, req.LobbyCode); err != nil {
				return err
			}
			logger.Info("Lobby deleted (empty)")
		} else {
			if err := c.store.UpdateLobby(ctx, lobby); err != nil {
				return err
			}
			if wasHost {
				logger.Infof("Host transferred to %s", lobby.HostID)
			}
			c.bc.Broadcast(req.LobbyCode, models.EventLobbyUpdated, models.LobbyPayload{Lobby: *lobby})
		}

		c.bc.Leave(connID, req.LobbyCode)
		if err := c.store.RemovePlayerSocket(ctx, req.PlayerID, connID); err != nil {
			return err
		}
		logger.Info("Player left")

		if lobby.Status == models.StatusPlaying && len(lobby.Players) > 0 {
			return c.finalizeIfDone(ctx, s, lobby)
		}
		return nil
	})
}

// Disconnect handles a closed connection. It is a no-op for connections that never
// joined a lobby or whose player has since moved to a newer connection.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) error {
	err := c.disconnect(ctx, connID)
	if err != nil {
		c.log.WithField("conn", connID).WithError(err).Error("Disconnect handling failed")
	}
	return err
}

func (c *Coordinator) disconnect(ctx context.Context, connID string) error {
	playerID, code, err := c.store.GetSocketSession(ctx, connID)
	if errors.Is(err, cache.ErrNotFound) {
		c.log.WithField("conn", connID).Debug("Disconnected (no lobby)")
		return nil
	}
	if err != nil {
		return err
	}

	return c.withSession(code, func(s *session) error {
		current, err := c.store.GetPlayerSocket(ctx, playerID)
		if err != nil && !errors.Is(err, cache.ErrNotFound) {
			return err
		}
		if current != "" && current != connID {
			return c.store.RemoveSocket(ctx, connID)
		}

		lobby, err := c.loadLobby(ctx, code)
		if errors.Is(err, ErrLobbyNotFound) {
			return c.store.RemovePlayerSocket(ctx, playerID, connID)
		}
		if err != nil {
			return err
		}
		player := lobby.Player(playerID)
		if player == nil {
			return c.store.RemovePlayerSocket(ctx, playerID, connID)
		}

		player.IsConnected = false
		if err := c.store.UpdateLobby(ctx, lobby); err != nil {
			return err
		}
		if err := c.store.RemovePlayerSocket(ctx, playerID, connID); err != nil {
			return err
		}
		c.log.WithFields(logrus.Fields{"lobby": code, "player": playerID}).Infof("%s disconnected", player.DisplayName)

		switch lobby.Status {
		case models.StatusPlaying:
			c.bc.Broadcast(code, models.EventPlayerDisconnected, models.PlayerDisconnectedPayload{
				LobbyCode:   code,
				PlayerID:    playerID,
				DisplayName: player.DisplayName,
			})
			return c.finalizeIfDone(ctx, s, lobby)
		case models.StatusWaiting:
			c.bc.Broadcast(code, models.EventLobbyUpdated, models.LobbyPayload{Lobby: *lobby})
		}
		return nil
	})
}
