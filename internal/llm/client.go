// Package llm provides the AI classification and payment-link selection
// clients. The loosely-typed model JSON is normalized at this boundary and
// never propagates further.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Client defines the interface for LLM providers. Providers return the raw
// completion text; parsing and normalization happen in the classifier.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config holds configuration for the LLM classifier.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	MaxRetries  int
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// newClient builds the provider client named in the config.
func newClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
