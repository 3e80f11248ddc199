package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anirudh9911/AI-Chatbot/internal/api"
	"github.com/anirudh9911/AI-Chatbot/internal/config"
	"github.com/anirudh9911/AI-Chatbot/internal/database"
	"github.com/anirudh9911/AI-Chatbot/internal/llm"
	"github.com/anirudh9911/AI-Chatbot/internal/repository"
	"github.com/anirudh9911/AI-Chatbot/internal/search"
	"github.com/anirudh9911/AI-Chatbot/internal/search/duckduckgo"
	"github.com/anirudh9911/AI-Chatbot/internal/search/searxng"
	"github.com/anirudh9911/AI-Chatbot/internal/service"
)

const searchCachePrefix = "chat:search:"

// App holds the wired dependencies of a running backend.
type App struct {
	DB     *sql.DB
	Redis  *redis.Client
	Server *http.Server

	chatService     *service.ChatService
	shutdownTimeout time.Duration
}

func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogger(cfg.LogLevel)
	logConfigSource(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := waitForOllama(ctx, cfg.OllamaURL); err != nil {
		slog.Error("Stopped before Ollama became ready", "error", err)
		return 1
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		return 1
	}
	defer app.Close()

	if err := app.Serve(ctx); err != nil {
		slog.Error("Server failed", "error", err)
		return 1
	}
	return 0
}

// NewApp opens storage, seeds settings and builds the HTTP server. The caller
// owns the returned App and must Close it.
func NewApp(cfg *config.Config) (*App, error) {
	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("Successfully connected to SQLite database.", "path", cfg.DatabasePath)

	app := &App{DB: db, shutdownTimeout: cfg.ShutdownTimeout}

	repo := repository.NewSQLiteRepository(db)
	finalized, err := repo.FinalizeLoadingMessages(context.Background())
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to finalize interrupted replies: %w", err)
	}
	if finalized > 0 {
		slog.Warn("Finalized replies interrupted by the previous run", "count", finalized)
	}

	ollamaProvider := llm.NewOllamaProvider(cfg.OllamaURL)
	settingsService := service.NewSettingsService(db, ollamaProvider)

	appSettings, err := settingsService.InitAndGet(context.Background(), cfg.InitialSystemPrompt)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize application settings: %w", err)
	}
	slog.Info("Loaded application settings", "main_model", appSettings.MainModel, "support_model", appSettings.SupportModel)

	searcher, err := app.newSearcher(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.chatService = service.NewChatService(repo, ollamaProvider, settingsService, searcher)
	modelService := service.NewModelService(ollamaProvider)

	chatHandler := api.NewChatHandler(app.chatService, settingsService)
	modelHandler := api.NewModelHandler(modelService)
	router := api.NewRouter(chatHandler, modelHandler)

	app.Server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for streaming endpoints
		IdleTimeout:       120 * time.Second,
	}
	return app, nil
}

// newSearcher builds the configured search provider. It returns a nil
// Searcher when search is disabled.
func (a *App) newSearcher(cfg *config.Config) (service.Searcher, error) {
	client := search.NewRateLimitedHTTPClient(cfg.SearchRateLimit)

	var provider search.Provider
	switch cfg.SearchProvider {
	case config.SearchProviderNone:
		slog.Info("Web search is disabled.")
		return nil, nil
	case config.SearchProviderSearXNG:
		p, err := searxng.New(cfg.SearXNGURL, cfg.SearXNGUsername, cfg.SearXNGPassword, client)
		if err != nil {
			return nil, fmt.Errorf("failed to configure SearXNG: %w", err)
		}
		provider = p
	default:
		provider = duckduckgo.New(client, duckduckgo.DefaultEndpoint)
	}

	var cache search.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis is unreachable, search results will not be cached", "addr", cfg.RedisAddr, "error", err)
			if cErr := rdb.Close(); cErr != nil {
				slog.Warn("Failed to close redis client", "error", cErr)
			}
		} else {
			slog.Info("Successfully connected to Redis.", "addr", cfg.RedisAddr)
			a.Redis = rdb
			cache = search.NewRedisCache(rdb, searchCachePrefix)
		}
	}

	slog.Info("Web search enabled", "provider", provider.Name(), "cache", cache != nil)
	return search.NewRunner(provider, cache, cfg.SearchResultLimit, cfg.SearchCacheTTL), nil
}

// Serve listens until ctx is done, then shuts the server down and waits for
// background title generation to finish.
func (a *App) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
	a.chatService.Wait()

	slog.Info("Server stopped gracefully")
	return nil
}

// Close releases the database and redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Error("Failed to close redis connection", "error", err)
		}
	}
	if err := a.DB.Close(); err != nil {
		slog.Error("Failed to close database connection", "error", err)
	}
}

func logConfigSource(cfg *config.Config) {
	if file := cfg.ConfigFile(); file != "" {
		slog.Info("Successfully loaded configuration from file.", "file", file)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

// waitForOllama polls the Ollama root endpoint until it answers 200 or ctx is
// canceled.
func waitForOllama(ctx context.Context, ollamaURL string) error {
	slog.Info("Waiting for Ollama to be ready...")
	client := &http.Client{Timeout: 2 * time.Second}
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ollamaURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			ready := resp.StatusCode == http.StatusOK
			if bErr := resp.Body.Close(); bErr != nil {
				slog.Warn("Failed to close response body in ollama health check", "error", bErr)
			}
			if ready {
				slog.Info("Ollama is ready.")
				return nil
			}
		}
		slog.Debug("Ollama not ready yet, retrying in 3 seconds...", "url", ollamaURL, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
}
