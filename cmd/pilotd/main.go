package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pilotd/internal/audit"
	"pilotd/internal/authz"
	"pilotd/internal/config"
	"pilotd/internal/db"
	"pilotd/internal/dispatch"
	"pilotd/internal/erp"
	"pilotd/internal/errs"
	"pilotd/internal/gate"
	"pilotd/internal/handlers"
	"pilotd/internal/modelmgr"
	"pilotd/internal/nlu"
	"pilotd/internal/otel"
	"pilotd/internal/pilot"
	"pilotd/internal/version"
	"pilotd/pkg/bus"
	pkgdb "pilotd/pkg/db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	cleanup, err := otel.Init(ctx, version.Name, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("init otel")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown otel")
		}
	}()

	database, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer func() {
		if err := db.Close(database); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	if err := db.Migrate(ctx, database); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if err := db.Seed(ctx, database); err != nil {
		log.Fatal().Err(err).Msg("seed database")
	}

	pool, err := pkgdb.Open(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open database pool")
	}
	defer pool.Close()

	if err := pkgdb.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate database pool schema")
	}

	// The bus is optional: security events and download completions degrade
	// to log-only when NATS is unreachable.
	var eventBus *bus.Bus
	if cfg.NATSURL != "" {
		eventBus, err = bus.New(cfg.NATSURL)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATSURL).Msg("bus unavailable, events degrade to log-only")
			eventBus = nil
		} else {
			defer eventBus.Close()
		}
	}

	client, err := nlu.NewClient(nlu.Settings{
		BaseURL:      cfg.OllamaURL,
		Model:        cfg.ActiveModel,
		SystemPrompt: cfg.SystemPrompt,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		Enabled:      cfg.NLUEnabled,
		ProbeTimeout: cfg.ProbeTimeout,
		GenTimeout:   cfg.GenTimeout,
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init nlu client")
	}

	g, err := gate.New(database, pool, eventBus, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init security gate")
	}

	if eventBus != nil {
		watcher, err := g.WatchSecurityEvents(ctx, "pilotd-security-log")
		if err != nil {
			log.Warn().Err(err).Msg("security event watcher unavailable")
		} else {
			defer func() { _ = watcher.Close() }()
		}
	}

	authzSvc, err := authz.New(database)
	if err != nil {
		log.Fatal().Err(err).Msg("init authorization")
	}

	store, err := erp.NewStore(database)
	if err != nil {
		log.Fatal().Err(err).Msg("init document store")
	}

	auditLog, err := audit.New(database, pool, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init audit log")
	}

	mgr, err := modelmgr.New(database, client, eventBus, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init model manager")
	}

	dispatcher, err := dispatch.New(authzSvc, store, database, mgr, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init dispatcher")
	}

	translator := errs.NewTranslator(log.Logger)

	svc, err := pilot.New(cfg, g, client, authzSvc, dispatcher, auditLog, translator, database, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init pipeline")
	}

	api, err := handlers.New(svc, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("init http api")
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.Routes(handlers.RouterOptions{
			AllowedOrigins: cfg.CORSOrigins,
			RateLimit:      cfg.HTTPRateLimit,
			RateWindow:     cfg.HTTPRateWindow,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("version", version.Version).Str("model", client.Model()).Msg("starting pilotd")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}
