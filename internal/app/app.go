// Package app wires configuration, storage and services into a runnable server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/auth"
	"github.com/VidhuSarwal/chatshare/internal/calendar"
	"github.com/VidhuSarwal/chatshare/internal/chat"
	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/config"
	"github.com/VidhuSarwal/chatshare/internal/events"
	"github.com/VidhuSarwal/chatshare/internal/files"
	"github.com/VidhuSarwal/chatshare/internal/handlers"
	"github.com/VidhuSarwal/chatshare/internal/oauth"
	"github.com/VidhuSarwal/chatshare/internal/secrets"
	"github.com/VidhuSarwal/chatshare/internal/settings"
	"github.com/VidhuSarwal/chatshare/internal/sharing"
	"github.com/VidhuSarwal/chatshare/internal/store"
	"github.com/VidhuSarwal/chatshare/internal/webhook"

	"go.uber.org/zap"
)

// MemoryURIPrefix selects the in-process store instead of MongoDB.
const MemoryURIPrefix = "memory://"

// Backend is everything the services persist.
type Backend interface {
	store.ConfigStore
	files.Repository
	sharing.Repository
	calendar.Repository
}

// App holds all initialized services. It is shared by cmd/server and cmd/chatshare.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Backend   Backend
	Settings  *settings.Settings
	Platform  chat.Platform
	OAuth     *oauth.Manager
	Chat      *chat.Service
	Files     *files.Source
	Shares    *sharing.Service
	Bus       *events.Bus
	Calendar  *calendar.Service
	Notifier  *webhook.Notifier
	Scheduler *webhook.Scheduler
	Auth      *auth.Authenticator
	Handler   *handlers.Handler

	mongo *store.MongoStore
}

// NewApp builds every service from cfg. Close releases the store.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if missing := cfg.Validate(); len(missing) > 0 {
		return nil, fmt.Errorf("invalid configuration, missing: %s", strings.Join(missing, ", "))
	}
	a := &App{Config: cfg, Logger: logger}

	if strings.HasPrefix(cfg.Mongo.URI, MemoryURIPrefix) {
		logger.Warn("using in-memory store, data is lost on exit")
		a.Backend = store.NewMemoryStore()
	} else {
		cctx, cancel := context.WithTimeout(ctx, cfg.Mongo.GetTimeout())
		defer cancel()
		ms, err := store.Connect(cctx, cfg.Mongo.URI, cfg.Mongo.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		a.mongo = ms
		a.Backend = ms
	}

	cipher, err := secrets.NewAESCipher(cfg.Security.EncryptionKey)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	a.Settings = settings.New(a.Backend, cipher, logger)

	switch cfg.Platform.Kind {
	case config.PlatformSlack:
		a.Platform = chat.NewSlack(logger)
	default:
		a.Platform = chat.NewMattermost(logger)
	}

	a.OAuth = oauth.NewManager(a.Settings, a.Platform,
		&http.Client{Timeout: cfg.Platform.GetTimeout()},
		cfg.Platform.UserAgent, cfg.Server.BaseURL+"/oauth-redirect", logger)

	client := chat.NewClient(a.OAuth, a.apiBaseURL,
		chat.WithTimeout(cfg.Platform.GetTimeout()),
		chat.WithRateLimit(cfg.Platform.RateLimit),
		chat.WithUserAgent(cfg.Platform.UserAgent),
		chat.WithLogger(logger))

	a.Files = files.NewSource(cfg.Files.Root, a.Backend, logger)
	a.Shares = sharing.NewService(a.Backend, cfg.Sharing.PublicBaseURL, cfg.Sharing.DefaultExpireDays, logger)
	a.Chat = chat.NewService(a.Platform, client, a.Settings, a.Files, a.Shares, logger)

	a.Bus = events.NewBus(logger)
	a.Calendar = calendar.NewService(a.Backend, a.Bus, logger)

	loc := cfg.Webhooks.Location()
	a.Notifier = webhook.NewNotifier(a.Settings, a.Calendar,
		webhook.NewDispatcher(cfg.Webhooks.GetTimeout(), cfg.Platform.UserAgent, logger),
		webhook.NewFormatter(cfg.Server.BaseURL, loc),
		loc, cfg.Webhooks.GetImminentLookahead(), logger)
	a.Bus.Subscribe(events.CalendarEventCreated, a.Notifier.HandleCalendarEvent)
	a.Bus.Subscribe(events.CalendarEventUpdated, a.Notifier.HandleCalendarEvent)
	a.Scheduler = webhook.NewScheduler(a.Notifier,
		cfg.Webhooks.GetDailyInterval(), cfg.Webhooks.GetImminentInterval(), logger)

	a.Auth = auth.NewAuthenticator(cfg.Security.JWTSecret, logger)
	a.Handler = handlers.New(handlers.Deps{
		Settings: a.Settings,
		OAuth:    a.OAuth,
		Chat:     a.Chat,
		Calendar: a.Calendar,
		Shares:   a.Shares,
		Files:    a.Files,
	}, a.Platform.Name(), cfg.Server.SettingsURL, cfg.Server.FilesURL, logger)

	logger.Info("chatshare initialized",
		zap.String("platform", a.Platform.Name()),
		zap.String("environment", cfg.Environment))
	return a, nil
}

// apiBaseURL resolves the REST base from the configured override or the
// admin-set instance URL.
func (a *App) apiBaseURL(ctx context.Context) (string, error) {
	if a.Config.Platform.APIURL != "" {
		return strings.TrimRight(a.Config.Platform.APIURL, "/") + "/", nil
	}
	instance, err := a.Settings.InstanceURL(ctx)
	if err != nil {
		return "", err
	}
	if instance == "" && a.Platform.Name() == config.PlatformMattermost {
		return "", fmt.Errorf("%w: instance url not set", chaterr.ErrOAuthNotConfigured)
	}
	return a.Platform.APIBaseURL(instance), nil
}

// Mux returns the HTTP routes.
func (a *App) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	a.Handler.Routes(mux, a.Auth)
	return mux
}

// SessionToken issues an API session token with the configured lifetime.
func (a *App) SessionToken(userID string, admin bool, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = a.Config.Security.GetSessionTTL()
	}
	return auth.GenerateToken([]byte(a.Config.Security.JWTSecret), userID, admin, ttl)
}

// Close disconnects the store.
func (a *App) Close(ctx context.Context) {
	if a.mongo == nil {
		return
	}
	if err := a.mongo.Disconnect(ctx); err != nil {
		a.Logger.Warn("disconnect store", zap.Error(err))
	}
}
