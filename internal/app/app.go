package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/bot"
	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/handlers"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/services/events"
	"github.com/ternarybob/tessera/internal/services/jira"
	"github.com/ternarybob/tessera/internal/services/llm"
	"github.com/ternarybob/tessera/internal/services/scheduler"
	"github.com/ternarybob/tessera/internal/services/status"
	badgerstore "github.com/ternarybob/tessera/internal/storage/badger"
	"github.com/ternarybob/tessera/internal/storage/tokens"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	TokenStore     interfaces.TokenStore

	EventService     interfaces.EventService
	JiraService      interfaces.JiraService
	LLMService       interfaces.LLMService
	Extractor        *llm.Extractor
	TelegramClient   *bot.TelegramClient
	Bot              *bot.Bot
	StatusService    *status.Service
	SchedulerService *scheduler.Service

	// HTTP handlers
	AuthHandler    *handlers.AuthHandler
	WebhookHandler *handlers.WebhookHandler
	StatusHandler  *handlers.StatusHandler
	TicketHandler  *handlers.TicketHandler
	WSHandler      *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.EventService = events.NewService(app.Logger)

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if cfg.Scheduler.Enabled {
		if err := app.initScheduler(); err != nil {
			return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
		}
	}

	// Created after the scheduler so job state shows up in health output.
	app.StatusHandler = handlers.NewStatusHandler(app.StatusService, app.SchedulerService, app.Logger)

	logger.Info().
		Str("provider", string(cfg.LLM.DefaultProvider)).
		Str("project_key", cfg.Jira.ProjectKey).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the Badger history store and the credential
// file store.
func (a *App) initStorage() error {
	storageManager, err := badgerstore.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = storageManager

	tokenStore, err := tokens.NewStore(a.Config.Storage.TokensFile, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	a.TokenStore = tokenStore

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Str("tokens_file", a.Config.Storage.TokensFile).
		Msg("Storage layer initialized")

	return nil
}

// initServices wires the Jira client, LLM extractor, Telegram client,
// bot, and health service.
func (a *App) initServices() error {
	jiraClient, err := jira.NewClient(a.Config.Jira, a.TokenStore, jira.WithLogger(a.Logger))
	if err != nil {
		return fmt.Errorf("failed to create jira client: %w", err)
	}
	a.JiraService = jiraClient

	deployment := jiraClient.Deployment()
	a.Logger.Debug().
		Bool("cloud", deployment.Cloud).
		Int("api_version", deployment.APIVersion).
		Msg("Jira client initialized")

	llmService, err := llm.NewLLMService(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM service: %w", err)
	}
	a.LLMService = llmService
	a.Extractor = llm.NewExtractor(llmService, string(a.Config.LLM.DefaultProvider), a.Logger)

	a.TelegramClient = bot.NewTelegramClient(
		a.Config.Telegram.BotToken,
		bot.WithLogger(a.Logger),
		bot.WithRateLimit(parseDuration(a.Config.Telegram.RateLimit, bot.DefaultRateInterval)),
		bot.WithHTTPClient(&http.Client{
			Timeout: parseDuration(a.Config.Telegram.Timeout, bot.DefaultTimeout),
		}),
	)

	a.Bot = bot.NewBot(
		a.TelegramClient,
		a.JiraService,
		a.Extractor,
		a.StorageManager.TicketStorage(),
		a.EventService,
		a.Config.Storage.Downloads,
		a.Logger,
	)

	a.StatusService = status.NewService(a.JiraService, a.LLMService, a.TelegramClient, a.EventService, a.Logger)

	return nil
}

// initHandlers wires the HTTP handlers.
func (a *App) initHandlers() {
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger)
	a.AuthHandler = handlers.NewAuthHandler(a.JiraService, a.EventService, a.Logger)
	a.WebhookHandler = handlers.NewWebhookHandler(a.Bot, a.Config.Telegram.WebhookSecret, a.Logger)
	a.TicketHandler = handlers.NewTicketHandler(
		a.StorageManager.TicketStorage(),
		a.JiraService,
		a.Extractor,
		a.Config.Jira.ProjectKey,
		!a.Config.IsProduction(),
		a.Logger,
	)
}

// initScheduler registers the background jobs and starts the cron loop.
func (a *App) initScheduler() error {
	a.SchedulerService = scheduler.NewService(a.Logger)

	if err := a.SchedulerService.RegisterJob("health_probe", a.Config.Scheduler.HealthSchedule, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		a.StatusService.Probe(ctx)
		return nil
	}); err != nil {
		return err
	}

	if err := a.SchedulerService.RegisterJob("token_refresh", a.Config.Scheduler.RefreshSchedule, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		err := a.JiraService.Refresh(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, jira.ErrNoRefreshToken), errors.Is(err, jira.ErrNotAuthenticated):
			// Nothing to refresh until authorization completes.
			return nil
		default:
			return err
		}
	}); err != nil {
		return err
	}

	return a.SchedulerService.Start()
}

// RegisterWebhook registers the configured public webhook URL with
// Telegram. A missing webhook URL is not an error; the deployment may
// rely on an external registration.
func (a *App) RegisterWebhook(ctx context.Context) error {
	if a.Config.Telegram.WebhookURL == "" {
		if a.Config.Telegram.BotToken != "" {
			// Clear any stale registration left by a previous deployment.
			if err := a.TelegramClient.DeleteWebhook(ctx); err != nil {
				a.Logger.Warn().Err(err).Msg("Failed to clear Telegram webhook")
			}
		}
		a.Logger.Info().Msg("No webhook URL configured, skipping Telegram webhook registration")
		return nil
	}

	if err := a.TelegramClient.SetWebhook(ctx, a.Config.Telegram.WebhookURL, a.Config.Telegram.WebhookSecret); err != nil {
		return fmt.Errorf("failed to register webhook: %w", err)
	}

	a.Logger.Info().
		Str("webhook_url", a.Config.Telegram.WebhookURL).
		Msg("Telegram webhook registered")
	return nil
}

// Close shuts down components in reverse dependency order.
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage manager")
			return err
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}

// parseDuration parses a duration string, falling back when empty or
// invalid.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
