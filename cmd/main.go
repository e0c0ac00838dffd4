package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/config"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/infrastructure"
	httpapi "github.com/MfmRifath/NovaAiTelegram-Bot/internal/interfaces/http"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/interfaces/telegram"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/repository"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/usecases"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	config.SetupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}
	defer closeStore()

	// Initialize Repositories
	accounts, err := repository.NewAccountRepository(ctx, store)
	if err != nil {
		log.WithError(err).Fatal("Failed to load accounts")
	}
	chats, err := repository.NewChatRepository(ctx, store)
	if err != nil {
		log.WithError(err).Fatal("Failed to load chats")
	}
	ads, err := repository.NewAdRepository(ctx, store)
	if err != nil {
		log.WithError(err).Fatal("Failed to load ads")
	}
	configRepo, err := repository.NewConfigRepository(ctx, store)
	if err != nil {
		log.WithError(err).Fatal("Failed to load settings")
	}

	// Initialize Clients
	tg, err := infrastructure.NewTelegramClient(cfg.TelegramToken)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Telegram")
	}
	throttle := infrastructure.NewSendThrottle(cfg.SendInterval, infrastructure.DefaultGlobalSendRate)

	orchestrator := usecases.NewOrchestrator(usecases.DefaultSystemPrompt,
		infrastructure.NewOpenAIClient(cfg.OpenAIKey),
		infrastructure.NewClaudeClient(cfg.ClaudeKey),
		infrastructure.NewGeminiClient(cfg.GeminiKey),
	).WithTimeoutCap(cfg.CompletionTimeoutCap)

	// Initialize Usecases
	ledger := usecases.NewLedger(accounts, usecases.LedgerConfig{
		DailyCap:        cfg.DailyCap,
		StartingBalance: cfg.StartingBalance,
		Location:        cfg.LedgerLocation,
	})
	settings := usecases.NewRuntimeSettings(configRepo, cfg.AIEnabled)
	scheduler := usecases.NewScheduler(ads, tg, throttle, cfg.SchedulerTick, cfg.SchedulerInitialDelay)
	dashboard := usecases.NewDashboardUsecase(accounts, chats, ads, settings)

	coord := usecases.NewCoordinator(ledger, orchestrator, scheduler, dashboard, settings, chats, tg, throttle, usecases.CoordinatorConfig{
		OwnerID:  cfg.OwnerID,
		Links:    usecases.Links{App: cfg.AppLink, Channel: cfg.ChannelLink},
		AnswerAd: answerAd(cfg),
	})
	if cfg.OwnerID == "" {
		log.Warn("OWNER_USER_ID not set, admin commands are disabled")
	}

	stopScheduler := scheduler.Start(ctx, coord)

	// Setup HTTP server
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	auth := usecases.NewAuthUsecase(cfg.OwnerID, cfg.AdminPasswordHash, cfg.JWTSecret)
	httpapi.SetupRoutes(r, auth, httpapi.NewAdminHandler(scheduler, ledger, dashboard, settings), httpapi.NewMiddleware(cfg.JWTSecret))
	if !cfg.AdminEnabled() {
		log.Info("Admin API logins disabled (ADMIN_PASSWORD_HASH or OWNER_USER_ID missing)")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server failed")
			stop()
		}
	}()

	// Telegram polling blocks until shutdown
	router := telegram.NewRouter(tg, coord, infrastructure.NewSessionManager())
	tg.Poll(ctx, router.HandleUpdate)

	log.Info("Shutting down")
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown")
	}

	flushAll(shutdownCtx, accounts, chats, ads, configRepo)
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	if cfg.StoreDriver == "postgres" {
		pg, err := infrastructure.NewPostgresClient(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Using PostgreSQL store")
		return repository.NewPostgresStore(pg.Pool), pg.Close, nil
	}

	store, err := repository.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	log.WithField("path", cfg.SQLitePath).Info("Using SQLite store")
	return store, func() { store.Close() }, nil
}

func answerAd(cfg *config.Config) *entities.Content {
	switch {
	case cfg.AnswerAdImage != "":
		return &entities.Content{ImageRef: cfg.AnswerAdImage, Caption: cfg.AnswerAdCaption}
	case cfg.AnswerAdText != "":
		return &entities.Content{Text: cfg.AnswerAdText}
	}
	return nil
}

type flusher interface {
	Flush(ctx context.Context) error
}

// flushAll retries any writes still pending after a store failure.
func flushAll(ctx context.Context, repos ...flusher) {
	for _, r := range repos {
		if err := r.Flush(ctx); err != nil {
			log.WithError(err).Error("Pending writes lost on shutdown")
		}
	}
}
