package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cobrancazap/internal/app"
	"cobrancazap/internal/domain/billing"
	"cobrancazap/internal/domain/notification"
	"cobrancazap/internal/infra/config"
	idb "cobrancazap/internal/infra/database"
	"cobrancazap/internal/infra/httpapi"
	"cobrancazap/internal/infra/logger"
	"cobrancazap/internal/infra/memory"
	"cobrancazap/internal/infra/metrics"
	"cobrancazap/internal/infra/scheduler"
	"cobrancazap/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

// stores groups the persistence backends selected at start-up.
type stores struct {
	rules     notification.RuleRepository
	history   notification.HistoryStore
	charges   billing.ChargeSource
	customers billing.CustomerRepository
	db        *sql.DB
}

func openStores(ctx context.Context, cfg *config.AppConfig) (*stores, error) {
	if cfg.DatabaseURL == "" {
		logger.Log.Warn("DATABASE_URL is not set, using in-memory storage. History is lost on restart.")
		ledger := memory.NewLedger()
		return &stores{
			rules:     memory.NewRuleRepository(),
			history:   memory.NewHistoryStore(),
			charges:   ledger,
			customers: ledger,
		}, nil
	}

	db, err := idb.Connect(ctx, cfg.DatabaseURL, idb.PoolFor(cfg.SendConcurrency), logger.Component("database"))
	if err != nil {
		return nil, err
	}
	ledger := idb.NewPostgresLedgerRepository(db)
	return &stores{
		rules:     idb.NewPostgresRuleRepository(db),
		history:   idb.NewPostgresHistoryRepository(db),
		charges:   ledger,
		customers: ledger,
		db:        db,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	metrics.Init()
	mainLogger := logger.Component("main")
	mainLogger.WithField("environment", cfg.Environment).Info("CobrançaZap notification engine starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not initialize storage")
	}
	if st.db != nil {
		defer st.db.Close()
	}

	registry := app.NewRuleRegistry(st.rules, notification.ThrottleSettings{
		AntiSpamEnabled: cfg.AntiSpamEnabled,
		CooldownDays:    cfg.AntiSpamCooldownDays,
	}, logger.Component("rule_registry"))
	if err := registry.EnsureDefaults(ctx, app.DefaultRules(cfg.PreDueLeadDays)); err != nil {
		mainLogger.WithError(err).Fatal("Could not seed default rules")
	}

	var bot *telebot.Bot
	var sender notification.Sender = app.NewLoggingSender(logger.Component("dry_run_sender"))
	if cfg.TelegramToken != "" {
		botLogger := logger.Component("telebot")
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				logCtx := botLogger.WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					logCtx = logCtx.WithField("sender_id", c.Sender().ID).WithField("chat_id", c.Chat().ID)
				}
				logCtx.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		sender = telegram.NewSender(telegram.NewBotMessenger(bot), st.customers)
	} else {
		mainLogger.Warn("TELEGRAM_TOKEN is not set, notifications are logged only.")
	}

	busy, err := app.ParseBusyPolicy(cfg.RunBusyPolicy)
	if err != nil {
		mainLogger.WithError(err).Fatal("Invalid run busy policy")
	}
	renderer := app.NewTemplateRenderer(st.customers, cfg.CompanyName)
	if bot != nil {
		renderer.EscapeValues(telegram.EscapeMarkdown)
	}
	coordinator := app.NewCoordinator(
		registry,
		st.charges,
		app.NewTriggerEvaluator(logger.Component("evaluator")),
		st.history,
		renderer,
		sender,
		logger.Component("coordinator"),
		app.CoordinatorConfig{
			Concurrency:   cfg.SendConcurrency,
			RatePerSecond: cfg.SendRatePerSecond,
			Busy:          busy,
		},
	)
	adminService := app.NewAdminService(registry, coordinator, st.history, cfg.AdminTelegramID)

	notifScheduler := scheduler.NewNotificationScheduler(coordinator, registry, logger.Component("scheduler"), cfg.Location, cfg.RunTimeout)
	if err := notifScheduler.Start(ctx); err != nil {
		mainLogger.WithError(err).Fatal("Could not start scheduler")
	}

	if bot != nil {
		handlerLogger := logger.Component("telegram")
		telegram.RegisterAdminHandlers(ctx, bot, adminService, handlerLogger)
		telegram.RegisterBotCommands(bot, adminService, handlerLogger)
		mainLogger.Info("Telegram command handlers registered.")
		go bot.Start()
	}

	handler := httpapi.NewHandler(adminService, coordinator, notifScheduler, logger.Component("httpapi"), httpapi.HandlerConfig{
		AdminToken:   cfg.AdminAPIToken,
		WebhookToken: cfg.WebhookToken,
		RunTimeout:   cfg.RunTimeout,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.WithError(err).Error("HTTP server failed")
			stop()
		}
	}()
	if cfg.AdminAPIToken == "" {
		mainLogger.Warn("ADMIN_API_TOKEN is not set, the admin API is unauthenticated.")
	}

	mainLogger.Info("Application setup complete.")
	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("HTTP server shutdown")
	}
	if bot != nil {
		bot.Stop()
	}
	notifScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
}
