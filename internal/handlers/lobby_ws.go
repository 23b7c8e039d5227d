// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/magyk-ai/mvow/internal/hub"
	"github.com/magyk-ai/mvow/internal/middleware"
	"github.com/magyk-ai/mvow/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	readLimit         = 1 << 20
	writeTimeout      = 5 * time.Second
	pingInterval      = 30 * time.Second
	pingTimeout       = 15 * time.Second
	disconnectTimeout = 5 * time.Second
)

// Lobbies is the command surface the socket handler drives. lobby.Coordinator
// implements it; validation failures are reported to the connection by the
// implementation itself.
type Lobbies interface {
	CreateLobby(ctx context.Context, connID string, req models.CreateLobbyRequest) error
	JoinLobby(ctx context.Context, connID string, req models.JoinLobbyRequest) error
	LeaveLobby(ctx context.Context, connID string, req models.PlayerRequest) error
	StartGame(ctx context.Context, connID string, req models.PlayerRequest) error
	SubmitResult(ctx context.Context, connID string, req models.SubmitRequest) error
	GiveUp(ctx context.Context, connID string, req models.PlayerRequest) error
	Disconnect(ctx context.Context, connID string) error
}

// WSHandler upgrades GET /ws and runs the read and write pumps for one client.
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.OriginPatterns,
	})
	if err != nil {
		s.Logger.WithError(err).Warn("websocket accept error")
		return
	}
	c.SetReadLimit(readLimit)

	connID := uuid.NewString()
	remote := r.RemoteAddr

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var slow atomic.Bool
	conn := s.Hub.Register(connID, func() {
		slow.Store(true)
		cancel()
	})
	middleware.LogWebSocketConnect(s.Logger, connID, remote)

	go s.writePump(ctx, c, conn)
	readErr := s.readPump(ctx, c, connID)

	s.Hub.Unregister(connID)
	dctx, dcancel := context.WithTimeout(context.Background(), disconnectTimeout)
	_ = s.Lobbies.Disconnect(dctx, connID)
	dcancel()

	switch {
	case slow.Load():
		_ = c.Close(SlowConsumerError, "outbound queue overflow")
	case r.Context().Err() != nil:
		// The server's base context ends on shutdown.
		_ = c.Close(ServerShutdownError, "server shutting down")
	default:
		_ = c.Close(websocket.StatusNormalClosure, "")
	}

	if isNormalClose(readErr) {
		readErr = nil
	}
	middleware.LogWebSocketDisconnect(s.Logger, connID, remote, readErr)
}

// readPump decodes envelopes until the socket closes or ctx is cancelled.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, connID string) error {
	logger := s.Logger.WithField("conn", connID)
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			return err
		}

		if typ != websocket.MessageText {
			logger.Warnf("Received non-text message type %d, ignoring", typ)
			s.replyInvalid(connID, "Only text frames are supported")
			continue
		}

		var env models.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			logger.WithError(err).Warn("Invalid json from client")
			s.replyInvalid(connID, "Invalid JSON format")
			continue
		}
		s.dispatch(ctx, connID, env)
	}
}

// dispatch routes one client event to the Lobbies implementation.
func (s *Server) dispatch(ctx context.Context, connID string, env models.Envelope) {
	var err error
	switch env.Event {
	case models.EventLobbyCreate:
		var req models.CreateLobbyRequest
		if err = s.decode(connID, env, &req); err == nil {
			err = s.Lobbies.CreateLobby(ctx, connID, req)
		}
	case models.EventLobbyJoin:
		var req models.JoinLobbyRequest
		if err = s.decode(connID, env, &req); err == nil {
			err = s.Lobbies.JoinLobby(ctx, connID, req)
		}
	case models.EventLobbyLeave:
		var req models.PlayerRequest
		if err = s.decode(connID, env, &req); err == nil {
			err = s.Lobbies.LeaveLobby(ctx, connID, req)
		}
	case models.EventGameStart:
		var req models.PlayerRequest
		if err = s.decode(connID, env, &req); err == nil {
			err = s.Lobbies.StartGame(ctx, connID, req)
		}
	case models.EventGameSubmit:
		var req models.SubmitRequest
		if err = s.decode(connID, env, &req); err == nil {
			err = s.Lobbies.SubmitResult(ctx, connID, req)
		}
	case models.EventGameGiveUp:
		var req models.PlayerRequest
		if err = s.decode(connID, env, &req); err == nil {
			err = s.Lobbies.GiveUp(ctx, connID, req)
		}
	default:
		s.Logger.WithFields(logrus.Fields{"conn": connID, "event": env.Event}).Warn("Unknown event")
		s.replyInvalid(connID, "Unknown event")
		return
	}

	if err != nil {
		s.Logger.WithFields(logrus.Fields{"conn": connID, "event": env.Event}).WithError(err).Debug("Event rejected")
	}
}

func (s *Server) decode(connID string, env models.Envelope, v any) error {
	if len(env.Data) == 0 {
		s.replyInvalid(connID, "Missing event data")
		return errMissingData
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		s.replyInvalid(connID, "Invalid event data")
		return err
	}
	return nil
}

var errMissingData = errors.New("missing event data")

func (s *Server) replyInvalid(connID, msg string) {
	s.Hub.Emit(connID, models.EventLobbyError, models.LobbyErrorPayload{
		Code:    models.ErrCodeInvalidState,
		Message: msg,
	})
}

// writePump drains the connection's queue in order and keeps the socket alive with pings.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, conn *hub.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	logger := s.Logger.WithField("conn", conn.ID)

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-conn.OutChan:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				logger.WithError(err).Warn("Failed to write to websocket")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithError(err).Warn("Ping failed, assuming disconnect")
				return
			}
		}
	}
}

func isNormalClose(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
