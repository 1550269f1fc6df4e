package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

const DefaultOpenRouterBaseURL = "https://openrouter.ai/api"

type OpenRouterConfig struct {
	APIKey  string `env:"OPENROUTER_API_KEY,required,notEmpty"`
	Model   string `env:"OPENROUTER_MODEL,notEmpty" envDefault:"google/gemma-3-27b-it:free"`
	BaseURL string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api"`
	// ProxyURL, when set, replaces BaseURL for the agent CLI (see `relay proxy`).
	ProxyURL string `env:"RELAY_PROXY_URL"`

	RequireFree bool          `env:"RELAY_REQUIRE_FREE_MODEL" envDefault:"true"`
	PricingTTL  time.Duration `env:"RELAY_PRICING_TTL" envDefault:"300s"`
}

func LoadOpenRouterConfig() (*OpenRouterConfig, error) {
	c := &OpenRouterConfig{}
	if err := env.Parse(c); err != nil {
		return nil, err
	}
	return c, nil
}

func NewOpenRouterConfig(ctx context.Context) *OpenRouterConfig {
	c, err := LoadOpenRouterConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse OpenRouter config")
	}
	return c
}

// AgentBaseURL is the Anthropic-compatible endpoint handed to the agent CLI.
func (c OpenRouterConfig) AgentBaseURL() string {
	if c.ProxyURL != "" {
		return c.ProxyURL
	}
	return c.BaseURL
}
