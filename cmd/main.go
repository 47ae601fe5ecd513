package main

import (
	"context"
	"encoding/base64"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/plandrop/plandrop/internal/config"
	"github.com/plandrop/plandrop/internal/domain"
	"github.com/plandrop/plandrop/internal/handler"
	"github.com/plandrop/plandrop/internal/repository"
	"github.com/plandrop/plandrop/internal/server"
	"github.com/plandrop/plandrop/internal/service"
	"github.com/plandrop/plandrop/internal/telemetry"
	"github.com/plandrop/plandrop/internal/transport/telegram"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("Starting Plandrop Distribution Engine...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry (for Grafana Cloud)
	// Grafana Cloud requires Basic auth with instanceId:apiToken base64 encoded
	authString := cfg.OTEL.InstanceID + ":" + cfg.OTEL.Token
	authEncoded := base64.StdEncoding.EncodeToString([]byte(authString))

	otelProvider, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: cfg.OTEL.ServiceVersion,
		Environment:    cfg.OTEL.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
		OTLPHeaders: map[string]string{
			"Authorization": "Basic " + authEncoded,
		},
		Enabled: cfg.OTEL.Enabled,
	})
	if err != nil {
		log.Printf("Warning: Failed to initialize OpenTelemetry: %v", err)
	}
	if otelProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			otelProvider.Shutdown(shutdownCtx)
		}()
	}

	// Content store with one directory and ledger per category
	store, err := repository.NewFSContentStore(cfg.Store.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize content store: %v", err)
	}
	for _, cat := range cfg.Categories {
		if err := store.EnsureCategory(cat.Key); err != nil {
			log.Fatalf("Failed to prepare category %s: %v", cat.Key, err)
		}
	}
	log.Printf("✓ Content store ready (%d categories)", len(cfg.Categories))

	// Recipient directory
	recipients, err := repository.NewFileRecipientDirectory(cfg.Store.UsersFile)
	if err != nil {
		log.Fatalf("Failed to initialize recipient directory: %v", err)
	}
	log.Println("✓ Recipient directory ready")

	// Optional S3-compatible archive for expired files
	var archive domain.ArchiveFunc
	if cfg.Archive.Enabled {
		archiver, err := repository.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			log.Printf("Warning: Failed to initialize archive, expired files will be deleted without archiving: %v", err)
		} else {
			archive = archiver.Archive
			log.Println("✓ Expiry archive connected")
		}
	}

	// Chat transport
	tg := telegram.NewClient(cfg.Bot.Token)

	// Services
	sessions := service.NewSessionRegistry(
		cfg.Admin.PIN,
		cfg.Admin.SuperIDs,
		time.Duration(cfg.Admin.SessionTTLMinutes)*time.Minute,
	)
	broadcaster := service.NewBroadcaster(
		recipients,
		tg,
		time.Duration(cfg.Broadcast.DelaySeconds*float64(time.Second)),
	)
	flows := service.NewFlowService(sessions, store, broadcaster, tg)
	sweeper := service.NewSweeper(
		store,
		cfg.Categories,
		time.Duration(cfg.Sweep.IntervalSeconds)*time.Second,
		archive,
	)

	// Update router
	bot := handler.NewBot(handler.BotDeps{
		Transport:    tg,
		Store:        store,
		Sessions:     sessions,
		Flows:        flows,
		Broadcaster:  broadcaster,
		Recipients:   recipients,
		Categories:   cfg.Categories,
		AdminContact: cfg.Bot.AdminContact,
		DonateText:   cfg.Bot.DonateText,
	})

	// Ops HTTP surface
	app := server.NewApp(server.AppDependencies{
		Config:     cfg,
		Store:      store,
		Recipients: recipients,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		return tg.Poll(gctx, bot.HandleUpdate)
	})
	g.Go(func() error {
		log.Printf("🚀 Ops server starting on port %s", cfg.Server.Port)
		return app.Listen(":" + cfg.Server.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down gracefully...")
		return app.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Service stopped: %v", err)
	}
	log.Println("Service stopped")
}
