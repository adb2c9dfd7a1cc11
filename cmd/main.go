package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/escalation-league/tournament-engine/config"
	"github.com/escalation-league/tournament-engine/db"
	"github.com/escalation-league/tournament-engine/handlers"
	"github.com/escalation-league/tournament-engine/middleware"
	"github.com/escalation-league/tournament-engine/notifications"
	"github.com/escalation-league/tournament-engine/pairing"
	"github.com/escalation-league/tournament-engine/repositories"
	"github.com/escalation-league/tournament-engine/routes"
	"github.com/escalation-league/tournament-engine/services"
	"github.com/escalation-league/tournament-engine/storage"
	_ "github.com/lib/pq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	var uploader storage.FileUploader
	if cfg.R2Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("Cloudflare R2 not configured, schedule snapshots disabled")
	}

	wsHub := notifications.NewHub(logger)
	go wsHub.Run()
	dispatcher := notifications.NewDispatcher(wsHub)

	leagueRepo := repositories.NewPostgresLeagueRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	podRepo := repositories.NewPostgresPodRepository(dbConn)

	generator := pairing.NewBalancedPodGenerator()
	tournamentService := services.NewTournamentService(dbConn, leagueRepo, participantRepo, podRepo, generator, uploader, logger)
	draftService := services.NewDraftService(dbConn, leagueRepo, podRepo, dispatcher, uploader, logger)

	tournamentHandler := handlers.NewTournamentHandler(tournamentService, draftService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, cfg.CORSAllowedOrigins, logger)
	authenticator := middleware.NewAuthenticator(cfg.JWTSecretKey)

	router := routes.InitRoutes(routes.Dependencies{
		Tournament:         tournamentHandler,
		WebSocket:          webSocketHandler,
		Auth:               authenticator,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}
