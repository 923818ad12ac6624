package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkdelta/spinstats/internal/repositories"
	"github.com/mkdelta/spinstats/internal/server"
	"github.com/mkdelta/spinstats/internal/services"
	"github.com/mkdelta/spinstats/internal/sessions"
	"github.com/mkdelta/spinstats/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the stats web service",
		Action: r.Serve,
	}
}

// Serve wires the store, session manager, Spotify client, and HTTP surface
// together and runs the server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config

	spotify, err := services.NewSpotifyService(map[string]string{
		"client_id":     cfg.Credentials.Spotify.ClientID,
		"client_secret": cfg.Credentials.Spotify.ClientSecret,
	})
	if err != nil {
		return fmt.Errorf("failed to create spotify service: %w", err)
	}

	db, err := shared.NewDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if cfg.Database.Path != ":memory:" {
		shared.ConfigureDatabase(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	}

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	secret := cfg.Session.Secret
	if secret == "" {
		// Sessions are in-memory and die with the process, so an
		// ephemeral signing secret is an acceptable fallback.
		secret = shared.GenerateID()
		r.logger.Warn("SESSION_SECRET not set, using an ephemeral secret")
	}

	maxAge := time.Duration(cfg.Session.MaxAge) * time.Second
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}

	sessionManager := sessions.NewManager(secret, maxAge, cfg.Server.Production)
	users := repositories.NewUserRepository(db)

	router := server.NewBasicRouter()
	router.Use(
		server.Recovery(r.logger),
		server.Logging(r.logger),
		server.NewRateLimiter(rate.Limit(2), 60, 10*time.Minute).Middleware(),
	)
	router.Handler(server.NewAuthHandler(cfg, spotify, users, sessionManager, r.logger))
	router.Handler(server.NewStatsHandler(spotify, users, sessionManager, r.logger))
	router.Handle("GET", "/api/health", server.HealthHandler())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, router, sessionManager, r.logger)

	return srv.ListenAndServe(ctx)
}
