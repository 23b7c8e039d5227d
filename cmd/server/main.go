// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/magyk-ai/mvow/internal/cache"
	"github.com/magyk-ai/mvow/internal/config"
	"github.com/magyk-ai/mvow/internal/handlers"
	"github.com/magyk-ai/mvow/internal/hub"
	"github.com/magyk-ai/mvow/internal/lobby"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Errorf("server exited: %v", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func run(cfg config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()
	logger.Info("Connected to redis")

	store := cache.NewLobbyStore(rdb, cache.Options{})
	h := hub.New(logger, hub.DefaultBuffer)
	coord := lobby.NewCoordinator(store, h, logger, lobby.Options{})
	defer coord.Close()

	srv := &handlers.Server{
		Lobbies:        coord,
		Hub:            h,
		Store:          store,
		Logger:         logger,
		OriginPatterns: cfg.OriginPatterns(),
		CORSOrigins:    cfg.CORSOrigins,
	}
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// WebSocket handlers watch this context to close sockets on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
