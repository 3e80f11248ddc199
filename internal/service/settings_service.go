package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	app_errors "github.com/anirudh9911/AI-Chatbot/internal/errors"
	"github.com/anirudh9911/AI-Chatbot/internal/llm"
	"github.com/anirudh9911/AI-Chatbot/internal/model"
)

// DefaultSearchResultLimit is used until the user picks another value.
const DefaultSearchResultLimit = 5

const (
	keyMainModel         = "main_model"
	keySearchResultLimit = "search_result_limit"
	keySupportModel      = "support_model"
	keySystemPrompt      = "system_prompt"
)

// Settings holds the user-editable application settings stored in the
// settings table.
type Settings struct {
	SystemPrompt      string `json:"system_prompt"`
	MainModel         string `json:"main_model" validate:"required"`
	SupportModel      string `json:"support_model" validate:"required"`
	SearchResultLimit int    `json:"search_result_limit" validate:"min=1,max=20"`
}

type SettingsService struct {
	db  *sql.DB
	llm llm.LLMProvider
}

func NewSettingsService(db *sql.DB, llmProvider llm.LLMProvider) *SettingsService {
	return &SettingsService{db: db, llm: llmProvider}
}

// InitAndGet seeds the settings table on first start and returns the current
// settings. Existing settings are left alone.
func (s *SettingsService) InitAndGet(ctx context.Context, defaultSystemPrompt string) (*Settings, error) {
	values, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		slog.Info("Found existing settings in database.")
		return s.Get(ctx)
	}

	slog.Info("No settings found in database. Performing smart initialization...")
	defaultModel := s.firstAvailableModel(ctx)
	settings := &Settings{
		SystemPrompt:      defaultSystemPrompt,
		MainModel:         defaultModel,
		SupportModel:      defaultModel,
		SearchResultLimit: DefaultSearchResultLimit,
	}
	if err := s.save(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save initial settings: %w", err)
	}
	slog.Info("Initialized settings", "main_model", defaultModel)
	return settings, nil
}

// Get returns the stored settings. An empty main model is repaired with the
// first model Ollama reports, and the repaired settings are persisted.
func (s *SettingsService) Get(ctx context.Context) (*Settings, error) {
	values, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	settings := &Settings{
		SystemPrompt:      values[keySystemPrompt],
		MainModel:         values[keyMainModel],
		SupportModel:      values[keySupportModel],
		SearchResultLimit: DefaultSearchResultLimit,
	}
	if raw, ok := values[keySearchResultLimit]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			settings.SearchResultLimit = n
		} else {
			slog.Warn("Ignoring invalid stored search result limit", "value", raw)
		}
	}

	if settings.MainModel == "" {
		if discovered := s.firstAvailableModel(ctx); discovered != "" {
			slog.Warn("Main model is empty, self-healing with discovered model", "model", discovered)
			settings.MainModel = discovered
			if settings.SupportModel == "" {
				settings.SupportModel = discovered
			}
			if err := s.save(ctx, settings); err != nil {
				return nil, fmt.Errorf("failed to save self-healed settings: %w", err)
			}
		}
	}
	return settings, nil
}

// Save validates settings against the models Ollama has installed and stores
// them. When Ollama cannot be reached the model check is skipped.
func (s *SettingsService) Save(ctx context.Context, settings *Settings) error {
	if err := model.Validate(settings); err != nil {
		return err
	}

	available, err := s.llm.ListModels(ctx)
	if err != nil {
		slog.Warn("Could not list models for validation, saving settings without check", "error", err)
	} else {
		names := make([]string, len(available.Models))
		for i, m := range available.Models {
			names[i] = m.Name
		}
		if !slices.Contains(names, settings.MainModel) {
			return fmt.Errorf("%w: main model '%s' not found in Ollama", app_errors.ErrValidation, settings.MainModel)
		}
		if !slices.Contains(names, settings.SupportModel) {
			return fmt.Errorf("%w: support model '%s' not found in Ollama", app_errors.ErrValidation, settings.SupportModel)
		}
	}

	return s.save(ctx, settings)
}

func (s *SettingsService) firstAvailableModel(ctx context.Context) string {
	models, err := s.llm.ListModels(ctx)
	if err != nil {
		slog.Warn("Could not connect to Ollama to get model list", "error", err)
		return ""
	}
	if len(models.Models) == 0 {
		slog.Warn("Ollama is running but has no models")
		return ""
	}
	return models.Models[0].Name
}

func (s *SettingsService) load(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("Failed to close settings rows", "error", err)
		}
	}()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		values[key] = value
	}
	return values, rows.Err()
}

// save upserts every key in one transaction, in key order.
func (s *SettingsService) save(ctx context.Context, settings *Settings) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("Failed to roll back settings transaction", "error", rbErr)
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value")
	if err != nil {
		return fmt.Errorf("failed to prepare settings statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	pairs := [][2]string{
		{keyMainModel, settings.MainModel},
		{keySearchResultLimit, strconv.Itoa(settings.SearchResultLimit)},
		{keySupportModel, settings.SupportModel},
		{keySystemPrompt, settings.SystemPrompt},
	}
	for _, kv := range pairs {
		if _, err = stmt.ExecContext(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", kv[0], err)
		}
	}
	return tx.Commit()
}
