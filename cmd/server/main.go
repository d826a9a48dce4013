/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the duty clock server: configuration, logging,
  storage, the timekeeping engine, the background reconciler, and the
  HTTP API with graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (env vars, optional .env file)
  2. Build the structured logger
  3. Open the SQLite store
  4. Resolve the roster timezone clock
  5. Bootstrap the first administrator on an empty roster
  6. Start the reconcile scheduler
  7. Serve HTTP until SIGINT/SIGTERM, then drain (30s timeout)

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides HTTP_PORT)
  -db      SQLite database path (overrides DB_PATH; ":memory:" works)

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment configuration
*/
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
	"time"

	"github.com/rs/zerolog"

	"github.com/lssd/dutyclock/api"
	"github.com/lssd/dutyclock/config"
	"github.com/lssd/dutyclock/duty"
	"github.com/lssd/dutyclock/logger"
	"github.com/lssd/dutyclock/roster"
	"github.com/lssd/dutyclock/store/sqlite"
)

func main() {
	port := flag.Int("port", 0, "HTTP server port (overrides HTTP_PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}

	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DB.Path).Msg("failed to open database")
	}
	defer store.Close()

	clock, err := duty.LoadZoneClock(cfg.Duty.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Duty.Timezone).Msg("failed to load timezone")
	}

	rosterSvc := roster.NewService(store)
	sessions := duty.NewSessionManager(store, clock)

	if err := bootstrapAdmin(context.Background(), store, rosterSvc, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap administrator")
	}

	auth := api.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.Issuer)
	handler := api.NewHandler(sessions, rosterSvc, store, clock, auth, log)

	scheduler := api.NewReconcileScheduler(sessions.Reconciler(), log)
	scheduler.CheckInterval = cfg.Duty.ReconcileInterval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // payroll export can be slow on big rosters
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("timezone", clock.Location().String()).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}

// bootstrapAdmin registers the configured administrator when the roster is
// empty, so a fresh deployment has a login. Skipped when ADMIN_PASSWORD is
// unset.
func bootstrapAdmin(ctx context.Context, repo duty.Repository, svc *roster.Service,
	cfg *config.Config, log zerolog.Logger) error {
	users, err := repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}
	if cfg.Admin.Password == "" {
		log.Warn().Msg("roster is empty and ADMIN_PASSWORD is unset; no admin created")
		return nil
	}

	u, err := svc.Register(ctx, roster.RegisterInput{
		Username:    cfg.Admin.Username,
		Password:    cfg.Admin.Password,
		DisplayName: cfg.Admin.DisplayName,
		Position:    "Director",
		Rank:        "Chief",
		Role:        duty.RoleAdmin,
	})
	if err != nil {
		return err
	}
	log.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("bootstrapped administrator")
	return nil
}
