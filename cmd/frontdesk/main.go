// Package main is the entrypoint for the front desk console.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/staybook/frontdesk/internal/components/announcements"
	"github.com/staybook/frontdesk/internal/components/api"
	"github.com/staybook/frontdesk/internal/components/board"
	"github.com/staybook/frontdesk/internal/components/realtime"
	"github.com/staybook/frontdesk/internal/components/session"
	"github.com/staybook/frontdesk/internal/components/tokenstore"
	"github.com/staybook/frontdesk/internal/components/ui"
	"github.com/staybook/frontdesk/internal/platform/config"
	httpclient "github.com/staybook/frontdesk/internal/platform/http/client"
	"github.com/staybook/frontdesk/internal/platform/http/server"
	"github.com/staybook/frontdesk/internal/platform/logutil"

	// Register token store drivers
	_ "github.com/staybook/frontdesk/internal/components/tokenstore/loader"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: strict or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	externalBasePath := flag.String("external-base-path", "", "External base path (overrides config)")
	backendURL := flag.String("backend-url", "", "Backend base URL (overrides config)")
	realtimeEndpoint := flag.String("realtime-endpoint", "", "Realtime WebSocket endpoint (overrides config)")
	tokenStoreDriver := flag.String("token-store", "", "Token store driver: memory, json, sqlite, or redis (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:       listenAddr,
			ExternalBasePath: externalBasePath,
			BackendURL:       backendURL,
			RealtimeEndpoint: realtimeEndpoint,
			TokenStoreDriver: tokenStoreDriver,
			LoggingLevel:     loggingLevel,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logutil.ParseLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("config loaded", "mode", cfg.Mode, "config", cfg.Redacted())

	if err := run(cfg, logger); err != nil {
		logger.Error("frontdesk exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := tokenstore.Open(cfg.TokenStore.Driver, cfg.DriverConfig())
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("token store opened", "driver", store.Driver())

	sessions := session.NewContext(store, logger.With("component", "session"))
	if err := sessions.Init(ctx); err != nil {
		return err
	}

	client := httpclient.New(httpclient.Options{
		Timeout:            cfg.BackendTimeout(),
		InsecureSkipVerify: cfg.Backend.InsecureSkipVerify,
	})

	connector := realtime.New(realtime.Config{
		Endpoint:         cfg.Realtime.Endpoint,
		Topic:            cfg.Realtime.Topic,
		ReconnectDelay:   cfg.ReconnectDelay(),
		HandshakeTimeout: cfg.HandshakeTimeout(),
		HeartBeat:        cfg.Heartbeat(),
		Token:            sessions.Token,
		Dialer:           realtime.NewWebSocketDialer(client.StreamingClient()),
		Log:              logger.With("component", "realtime"),
	})

	annClient := announcements.NewClient(client, cfg.Backend.BaseURL, cfg.Backend.AnnouncementsPath,
		sessions, logger.With("component", "announcements"))

	boardLog := logger.With("component", "board")
	boards := board.NewManager(func() *board.Board {
		return board.New(annClient, func(onMessage func([]byte)) board.Subscription {
			return connector.Connect(onMessage)
		}, boardLog, nil)
	})

	pages, err := ui.NewHandler(ui.Config{
		BasePath: cfg.ExternalBasePath,
		Sessions: sessions,
		Boards:   boards,
		Creator:  annClient,
		Log:      logger.With("component", "ui"),
	})
	if err != nil {
		return err
	}

	health := api.HealthHandler(healthProbe{sessions: sessions, boards: boards})
	srv, err := server.New(cfg, logger, sessions, health, pages)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type healthProbe struct {
	sessions *session.Context
	boards   *board.Manager
}

func (p healthProbe) IsAuthenticated() bool { return p.sessions.IsAuthenticated() }
func (p healthProbe) StreamState() string   { return p.boards.StreamState() }
