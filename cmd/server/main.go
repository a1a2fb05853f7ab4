package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mafia-game/backend/internal/config"
	"github.com/mafia-game/backend/internal/game"
	"github.com/mafia-game/backend/internal/handlers"
	"github.com/mafia-game/backend/internal/logger"
	"github.com/mafia-game/backend/internal/models"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(&cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg)
}

// serve runs the server until ctx is done or the listener fails.
func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.WithModule("server")

	hub := handlers.NewHub(cfg.WebSocket, cfg.Server.AllowedOrigin, logger.WithModule("websocket"))
	registry := game.NewRoomRegistry(gameOptions(cfg.Game), hub, game.WithLogger(logger.WithModule("room")))
	defer registry.Close()

	config.Watch(func(c *config.Config) {
		registry.SetDefaults(defaultSettings(c.Game.Defaults))
		log.Info("game defaults reloaded")
	}, func(err error) {
		log.Warn("config reload failed", zap.Error(err))
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: handlers.NewRouter(cfg.Server.AllowedOrigin, hub, registry),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("mafia server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

func gameOptions(g config.GameConfig) game.Options {
	return game.Options{
		TimeUnit:           g.TimeUnit,
		RoleRevealDelay:    g.RoleRevealDelay,
		NightIntroDelay:    g.NightIntroDelay,
		NightStepDelay:     g.NightStepDelay,
		DayDiscussionDelay: g.DayDiscussionDelay,
		VoteResultDelay:    g.VoteResultDelay,
		NightActionTimeout: g.NightActionTimeout,
		VoteTimeout:        g.VoteTimeout,
		RoomIdleTTL:        g.RoomIdleTTL,
		MinPlayers:         g.MinPlayers,
		MaxPlayers:         g.MaxPlayers,
		Defaults:           defaultSettings(g.Defaults),
	}
}

// defaultSettings converts config defaults; unknown role keys are skipped.
func defaultSettings(d config.DefaultSettings) models.Settings {
	roles := make(map[models.Role]int, len(d.Roles))
	for title, count := range d.Roles {
		if role, ok := models.ParseRole(title); ok && count > 0 {
			roles[role] += count
		}
	}
	return models.Settings{
		PlayerCount:  d.PlayerCount,
		SpeakingTime: d.SpeakingTime,
		Roles:        roles,
	}
}
