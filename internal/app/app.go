package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"fotosito/internal/bot"
	"fotosito/internal/config"
	"fotosito/internal/ledger"
	"fotosito/internal/ledger/ch"
	"fotosito/internal/remote"
	"fotosito/internal/store"
)

// App represents the application
type App struct {
	config *config.Config
	logger *zap.Logger
	csv    *ledger.CSV
	mirror ledger.Ledger
	bot    *bot.Bot
	server *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{config: cfg, logger: logger}

	logger.Info("Starting FotosITO bot",
		zap.String("photo_root", cfg.PhotoSaveRoot),
		zap.String("remote_backend", cfg.RemoteBackend),
	)

	if err := app.initLedger(); err != nil {
		return nil, err
	}

	if err := app.initBot(); err != nil {
		return nil, err
	}

	app.initHTTPServer()

	return app, nil
}

// initLedger opens the CSV ledger and, if configured, the ClickHouse mirror
func (a *App) initLedger() error {
	csv, err := ledger.NewCSV(a.config.CSVLogPath)
	if err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}
	a.csv = csv
	a.logger.Info("Ledger ready", zap.String("path", a.config.CSVLogPath))

	if a.config.LedgerMirror == config.MirrorClickHouse {
		a.logger.Info("Connecting ledger mirror",
			zap.String("host", a.config.ClickHouseHost),
			zap.Int("port", a.config.ClickHousePort),
			zap.String("database", a.config.ClickHouseDatabase),
			zap.Bool("tls", a.config.ClickHouseUseTLS),
		)
		mirror, err := ch.New(
			a.config.ClickHouseHost,
			a.config.ClickHousePort,
			a.config.ClickHouseDatabase,
			a.config.ClickHouseUser,
			a.config.ClickHousePassword,
			a.config.ClickHouseUseTLS,
		)
		if err != nil {
			return fmt.Errorf("failed to connect ledger mirror: %w", err)
		}
		a.mirror = mirror
	}

	return nil
}

// initBot initializes the Telegram bot and its collaborators
func (a *App) initBot() error {
	local, err := store.NewLocal(a.config.PhotoSaveRoot)
	if err != nil {
		return fmt.Errorf("failed to initialize photo store: %w", err)
	}

	uploader, err := remote.NewFromConfig(a.config, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize remote uploader: %w", err)
	}

	telegramBot, err := bot.NewBot(a.config.BotToken, bot.Deps{
		Store:    local,
		Ledger:   a.csv,
		Mirror:   a.mirror,
		Uploader: uploader,
	}, a.config.AllowedUserIDs, a.config.SessionTTL, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	a.logger.Info("Bot created successfully", zap.Int64s("allowed_users", a.config.AllowedUserIDs))

	a.bot = telegramBot
	return nil
}

// initHTTPServer initializes the HTTP server for health checks and webhook.
// The hosting platform only probes for a 200 response.
func (a *App) initHTTPServer() {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	ok := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
	r.Get("/", ok)
	r.Get("/healthz", ok)

	// Webhook endpoint (only used in webhook mode)
	r.Post("/telegram-webhook", func(w http.ResponseWriter, req *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(req.Body).Decode(&update); err != nil {
			a.logger.Warn("Error decoding webhook update", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Process update in background to respond quickly to Telegram
		go a.bot.HandleUpdate(update)

		w.WriteHeader(http.StatusOK)
	})

	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Start HTTP server in background
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("port", a.config.Port))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	a.bot.StartSessionSweeper(sweepCtx)

	if a.config.WebhookMode {
		a.logger.Info("Starting bot in webhook mode", zap.String("url", a.config.WebhookURL))
		if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
	} else {
		go func() {
			a.logger.Info("Starting bot in polling mode")
			if err := a.bot.Start(); err != nil {
				a.logger.Fatal("Failed to start bot", zap.Error(err))
			}
		}()
	}

	// Wait for interrupt signal
	<-sigChan

	a.logger.Info("Shutting down...")
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	// Shutdown HTTP server gracefully
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			a.logger.Warn("Error closing ledger mirror", zap.Error(err))
		}
	}
	if err := a.csv.Close(); err != nil {
		a.logger.Warn("Error closing ledger", zap.Error(err))
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()
	return nil
}
