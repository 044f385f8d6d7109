// Package app wires the components together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"codecast/internal/api"
	"codecast/internal/auth"
	"codecast/internal/config"
	"codecast/internal/control"
	"codecast/internal/database"
	"codecast/internal/metrics"
	"codecast/internal/presence"
	"codecast/internal/prompt"
	"codecast/internal/router"
	"codecast/internal/rooms"
	"codecast/internal/session"
	"codecast/internal/websocket"
	pkgdb "codecast/pkg/database"
)

type Application struct {
	config *config.Config
	log    *zap.Logger

	db       *database.Manager
	sessions *session.Manager
	server   *http.Server
}

// New builds the application in dependency order. Any failure leaves nothing
// running.
func New(cfg *config.Config, log *zap.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbConfig := pkgdb.DefaultConfig()
	dbConfig.DatabasePath = cfg.Database.Path
	dbConfig.OperationTimeout = cfg.Database.Timeout
	db, err := database.NewManager(dbConfig, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	migrator := pkgdb.NewMigrationManager(db.GetDB())
	if err := migrator.ApplyMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	sessions := session.NewManager(db, log)
	prompts := prompt.NewManager(db, log)
	tokens := auth.NewManager([]byte(cfg.Auth.Secret), cfg.Auth.TokenTTL)

	m := metrics.New()
	presenceDir := presence.NewDirectory()
	roomRegistry := rooms.NewRegistry(log)
	arbiter := control.NewArbiter()
	sessions.SetRoomCleanup(arbiter.DropRoom)

	eventRouter := router.NewRouter(presenceDir, roomRegistry, arbiter, sessions, m, log, cfg.Router.EnforceEditor)
	wsHandler := websocket.NewHandler(tokens, eventRouter, m, log,
		cfg.WebSocket.BufferSize, cfg.WebSocket.PingInterval, cfg.WebSocket.ReadTimeout)

	apiServer := api.NewServer(db, sessions, prompts, tokens, m, wsHandler.HandleWebSocket, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:   cfg,
		log:      log,
		db:       db,
		sessions: sessions,
		server:   server,
	}, nil
}

// Start warms the session cache and serves HTTP until Stop or a listener
// error. It blocks.
func (a *Application) Start(ctx context.Context) error {
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := a.sessions.LoadActiveSessions(loadCtx); err != nil {
		return err
	}

	a.log.Info("server listening", zap.String("addr", a.server.Addr))
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop drains in-flight HTTP requests and closes the database.
func (a *Application) Stop(ctx context.Context) error {
	a.log.Info("shutting down")

	var firstErr error
	if err := a.server.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("HTTP shutdown: %w", err)
	}
	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("database close: %w", err)
	}
	return firstErr
}
