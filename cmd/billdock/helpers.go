package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/anthonydavila469-creator/billdock/internal/config"
	"github.com/anthonydavila469-creator/billdock/internal/llm"
	"github.com/anthonydavila469-creator/billdock/internal/service"
	"github.com/anthonydavila469-creator/billdock/internal/storage"
)

// initStorage opens the database and runs migrations.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		defaultPath, err := config.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		dbPath = defaultPath
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initClassifier builds the LLM classifier from config.
func initClassifier(logger *slog.Logger) (*llm.Classifier, error) {
	cfg := llm.Config{
		Provider:    viper.GetString("llm.provider"),
		APIKey:      viper.GetString("llm.api_key"),
		Model:       viper.GetString("llm.model"),
		MaxRetries:  viper.GetInt("llm.max_retries"),
		RetryDelay:  viper.GetDuration("llm.retry_delay"),
		CacheTTL:    viper.GetDuration("llm.cache_ttl"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
		Timeout:     viper.GetDuration("llm.timeout"),
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	return llm.NewClassifier(cfg, logger)
}

// syncSince resolves the sync window start from config, defaulting to the
// last 7 days.
func syncSince() time.Time {
	days := viper.GetInt("sync.lookback_days")
	if days <= 0 {
		days = 7
	}
	return time.Now().AddDate(0, 0, -days)
}
