package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/relief-network/coordinator/internal/cache"
	"github.com/relief-network/coordinator/internal/handlers"
	"github.com/relief-network/coordinator/internal/lookup"
	"github.com/relief-network/coordinator/internal/notify"
	"github.com/relief-network/coordinator/internal/observability"
	"github.com/relief-network/coordinator/internal/services"
	"github.com/relief-network/coordinator/internal/storage/memory"
)

// store is everything the server needs from persistence
type store interface {
	services.DisasterStore
	services.ReportStore
	cache.Store
	Ping(ctx context.Context) error
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and push channel",
		RunE:  runServe,
	}

	cmd.Flags().String("store", "postgres", "backing store: postgres or memory")
	cmd.Flags().Bool("skip-migrate", false, "do not apply migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	storeKind, _ := cmd.Flags().GetString("store")
	skipMigrate, _ := cmd.Flags().GetBool("skip-migrate")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	var st store
	switch storeKind {
	case "postgres":
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if !skipMigrate {
			if err := db.Migrate(cfg.Database.MigrationsPath); err != nil {
				return err
			}
			logger.Info("migrations applied")
		}
		st = db
	case "memory":
		if err := cfg.Kafka.Validate(); err != nil {
			return err
		}
		logger.Warn("using in-memory store; data is lost on exit")
		st = memory.New(clock)
	default:
		return fmt.Errorf("unknown store %q: want postgres or memory", storeKind)
	}

	if cfg.Gemini.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; geocoding and verification will fail")
	}
	if cfg.Maps.APIKey == "" {
		logger.Warn("MAPS_API_KEY is not set; geocoding will fail")
	}

	hub := notify.NewHub(cfg.Push.SendBuffer, cfg.Push.AllowedOrigins, metrics, logger)
	defer hub.Close()

	var notifier notify.Notifier = hub
	if cfg.Kafka.Enabled {
		publisher := notify.NewKafkaPublisher(cfg.Kafka, metrics, logger)
		defer publisher.Close()
		notifier = notify.Multi{hub, publisher}
		logger.Info("mirroring events to kafka", "topic", cfg.Kafka.Topic)
	}

	gemini, err := lookup.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.BaseURL,
		time.Duration(cfg.Gemini.Timeout)*time.Second, metrics, logger)
	if err != nil {
		return err
	}
	maps := lookup.NewMaps(cfg.Maps.APIKey, cfg.Maps.BaseURL, time.Duration(cfg.Maps.Timeout)*time.Second, metrics, logger)
	images := lookup.NewImageFetcher(time.Duration(cfg.Images.Timeout)*time.Second, metrics)
	lookups := cache.New(st, clock, metrics, logger)

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.RouterConfig{
		Disasters: services.NewDisasterService(st, notifier, clock, cfg.Audit.AnonymousActor(), metrics, logger),
		Reports:   services.NewReportService(st, images, gemini, notifier, metrics, logger),
		Social:    services.NewSocialMediaService(lookups, services.MockFeed{}, cfg.Cache.SocialMediaWindow()),
		Geocode:   services.NewGeocodeService(lookups, gemini, maps, cfg.Cache.GeocodeWindow(), logger),
		Hub:       hub,
		Ready:     st.Ping,
		JWTSecret: cfg.Auth.JWTSecret,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relief coordinator listening", "addr", srv.Addr, "store", storeKind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
