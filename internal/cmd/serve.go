package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/costwise/costwise/internal/api"
	"github.com/costwise/costwise/internal/budget"
	"github.com/costwise/costwise/internal/catalog"
	"github.com/costwise/costwise/internal/logging"
	"github.com/costwise/costwise/internal/notify"
	"github.com/costwise/costwise/internal/orchestrator"
	"github.com/costwise/costwise/internal/pricing"
	"github.com/costwise/costwise/internal/provider"
	"github.com/costwise/costwise/internal/quality"
	"github.com/costwise/costwise/internal/router"
	"github.com/costwise/costwise/internal/scheduler"
	"github.com/costwise/costwise/internal/store"
	"github.com/costwise/costwise/internal/telegram"
	"github.com/costwise/costwise/internal/webhook"
	"github.com/costwise/costwise/internal/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the costwise HTTP server",
	Long: `Start the HTTP API server. Configuration comes from the .env file
and environment variables; run 'costwise setup' to generate one.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// ── 1. Load configuration ────────────────────────────────────────────────
	cfg := loadConfig(cmd)
	logger := logging.Setup(cfg.LogLevel, cfg.LogJSON)
	logger.Info().Str("version", rootCmd.Version).Str("port", cfg.Port).Msg("costwise starting")

	// Zero-config first run: warn when no .env is present.
	envFile, _ := cmd.Flags().GetString("env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		logger.Warn().Msg("no .env found, using built-in defaults; run 'costwise setup' to configure")
	}

	// ── 2. Open database + migrate ───────────────────────────────────────────
	database, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("store.New: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return fmt.Errorf("store.Migrate: %w", err)
	}
	logger.Info().Str("path", cfg.DBPath).Msg("database ready")

	// Root context — cancelled on shutdown signal.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── 3. Model catalog ─────────────────────────────────────────────────────
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("catalog.Load: %w", err)
	}
	logger.Info().Int("models", len(cat.Models())).Str("mode", cfg.RoutingMode).Msg("catalog loaded")

	// ── 4. WebSocket hub ─────────────────────────────────────────────────────
	hub := ws.NewHub()
	go hub.Run(ctx)

	// ── 5. Telegram bot ──────────────────────────────────────────────────────
	cmdHandler := telegram.NewCommandHandler(database, cfg.DailyBudget)
	bot, err := telegram.New(cfg.TelegramToken, cfg.TelegramChatID, cmdHandler)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init error, continuing without telegram")
	}
	if bot != nil {
		go bot.Start(ctx)
		logger.Info().Int64("chat_id", cfg.TelegramChatID).Msg("telegram bot started")
	}

	// ── 6. Notify + webhook dispatchers ──────────────────────────────────────
	webhookDispatcher := webhook.New(cfg.WebhookURLs)
	notifier := notify.New(telegramSender(bot), webhookDispatcher)

	// ── 7. Daily budget monitor ──────────────────────────────────────────────
	monitor := budget.NewMonitor(database, notifier, cfg.DailyBudget)

	// ── 8. Providers + pricing ───────────────────────────────────────────────
	providers := provider.FromEnv(cat, cfg.ProviderTimeout)
	estimator := pricing.NewEstimator(cat)

	// ── 9. Router + per-call guard ───────────────────────────────────────────
	rtr := router.New(cat, router.Mode(cfg.RoutingMode), cfg.RouterProvider)
	guard := budget.NewGuard(cfg.BudgetPerCall)

	// ── 10. Quality judge ────────────────────────────────────────────────────
	var judge orchestrator.Judge
	if cfg.QualityEnabled {
		judge = quality.NewEvaluator(providers, estimator, cfg.JudgeModel,
			cfg.JudgeTaskLimit, cfg.JudgeOutputLimit, logger)
		logger.Info().Str("model", cfg.JudgeModel).Int("threshold", cfg.QualityThreshold).Msg("quality gate enabled")
	}

	// ── 11. Orchestrator ─────────────────────────────────────────────────────
	orch := orchestrator.New(orchestrator.Deps{
		Router:           rtr,
		Pricer:           estimator,
		Guard:            guard,
		Completer:        providers,
		Judge:            judge,
		Store:            database,
		Events:           hub,
		Notify:           notifier,
		Monitor:          monitor,
		Log:              logger,
		QualityThreshold: cfg.QualityThreshold,
		MaxRetries:       cfg.QualityMaxRetries,
		PromptCeiling:    cfg.PromptMaxTokens,
	})

	// ── 12. Cron scheduler ───────────────────────────────────────────────────
	schedEngine := scheduler.New(database, notifier, hub, scheduler.Config{
		DigestCron:    cfg.DigestCron,
		RetentionCron: cfg.RetentionCron,
		RetentionDays: cfg.RetentionDays,
	})
	if err := schedEngine.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("scheduler start failed, continuing without cron jobs")
	}

	// ── 13. HTTP router ──────────────────────────────────────────────────────
	mux := http.NewServeMux()

	api.SetupRoutes(mux, &api.Deps{
		DB:      database,
		Config:  cfg,
		Orch:    orch,
		Catalog: cat,
	})

	// WebSocket endpoint.
	mux.HandleFunc("GET /ws", hub.ServeWS)

	handler := loggingMiddleware(logger, recoveryMiddleware(logger, mux))

	// ── 14. Start HTTP server ────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
	}()

	logger.Info().Str("addr", "http://0.0.0.0:"+cfg.Port).Msg("costwise listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info().Msg("costwise stopped")
	return nil
}
