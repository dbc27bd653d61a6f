package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for invalid or inconsistent values.
// Returns an error describing the first problem found.
func Validate(cfg *Config) error {
	if cfg.Agent.MaxIterations <= 0 {
		return fmt.Errorf("config: agent.max_iterations must be positive, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.Timeout < 0 {
		return fmt.Errorf("config: agent.timeout must not be negative")
	}

	seen := make(map[string]bool, len(cfg.LLM.Providers))
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			return fmt.Errorf("config: llm.providers[%d].name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("config: duplicate llm provider name %q", p.Name)
		}
		seen[p.Name] = true
		switch p.Type {
		case "gemini", "bedrock":
		default:
			return fmt.Errorf("config: llm.providers[%d].type must be gemini or bedrock, got %q", i, p.Type)
		}
	}
	if cfg.LLM.DefaultProvider != "" && len(cfg.LLM.Providers) > 0 && !seen[cfg.LLM.DefaultProvider] {
		return fmt.Errorf("config: llm.default_provider %q is not a configured provider", cfg.LLM.DefaultProvider)
	}

	if !strings.HasPrefix(cfg.ArXiv.BaseURL, "http://") && !strings.HasPrefix(cfg.ArXiv.BaseURL, "https://") {
		return fmt.Errorf("config: arxiv.base_url must be an http(s) URL, got %q", cfg.ArXiv.BaseURL)
	}
	if cfg.ArXiv.MaxResults <= 0 || cfg.ArXiv.MaxResults > 100 {
		return fmt.Errorf("config: arxiv.max_results must be in 1..100, got %d", cfg.ArXiv.MaxResults)
	}

	if cfg.Store.Path == "" {
		return fmt.Errorf("config: store.path is required")
	}

	if cfg.Gateway.Enabled {
		if cfg.Gateway.Addr == "" {
			return fmt.Errorf("config: gateway.addr is required when gateway is enabled")
		}
		if cfg.Gateway.RatePerSecond < 0 {
			return fmt.Errorf("config: gateway.rate_per_second must not be negative")
		}
	}

	if cfg.Digest.Enabled && cfg.Digest.Schedule == "" {
		return fmt.Errorf("config: digest.schedule is required when digest is enabled")
	}

	if cfg.Agent.ContextGuard.Enabled {
		g := cfg.Agent.ContextGuard
		if g.MaxTokens <= 0 {
			return fmt.Errorf("config: agent.context_guard.max_tokens must be positive")
		}
		if g.SafetyMargin < 0 || g.SafetyMargin >= 1 {
			return fmt.Errorf("config: agent.context_guard.safety_margin must be in [0, 1)")
		}
	}

	if cfg.LLM.CircuitBreaker.Enabled {
		cb := cfg.LLM.CircuitBreaker
		if cb.MaxFailures == 0 {
			return fmt.Errorf("config: llm.circuit_breaker.max_failures must be positive")
		}
		if cb.Timeout <= 0 {
			return fmt.Errorf("config: llm.circuit_breaker.timeout must be positive")
		}
	}

	return nil
}
