package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"arxiv-scholar/internal/adapter/arxiv"
	"arxiv-scholar/internal/adapter/llm"
	"arxiv-scholar/internal/adapter/store"
	"arxiv-scholar/internal/adapter/tool"
	"arxiv-scholar/internal/domain"
	"arxiv-scholar/internal/infra/config"
	"arxiv-scholar/internal/usecase"
)

// app bundles the wired core components shared by the serve, ask and mcp
// entry points.
type app struct {
	LLM      domain.LLMProvider
	Model    string
	Tools    *tool.Registry
	Store    domain.PaperStore
	Agent    *usecase.Agent
	Sessions *usecase.SessionManager
	Digest   *usecase.Digest
}

func (a *app) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}

// buildApp wires providers, storage, tools and the agent from config.
// The bus may be nil when no event consumers exist (the mcp command).
func buildApp(cfg *config.Config, bus domain.EventBus, log *slog.Logger) (*app, error) {
	provider, model, err := buildLLM(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	paperStore, err := store.NewSQLitePaperStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	searcher := arxiv.NewClient(cfg.ArXiv, log)
	classifier := usecase.NewErrorClassifier()
	retrier := usecase.NewRetrier(classifier, log)

	registry := tool.NewRegistry(log)
	for _, t := range []domain.Tool{
		tool.NewSearchArxivTool(searcher, paperStore, retrier, bus, log).WithCacheTTL(cfg.ArXiv.SearchCacheTTL),
		tool.NewGetPaperTool(paperStore, log),
		tool.NewSummarizePaperTool(paperStore, provider, model, log),
		tool.NewExplainPaperTool(paperStore, provider, model, log),
		tool.NewChatAboutPaperTool(paperStore, provider, model, log),
		tool.NewListTopicsTool(paperStore, log),
	} {
		if err := registry.Register(t); err != nil {
			paperStore.Close()
			return nil, fmt.Errorf("register tool: %w", err)
		}
	}

	var guard *usecase.ContextGuard
	if cfg.Agent.ContextGuard.Enabled {
		guard = usecase.NewContextGuard(usecase.ContextGuardConfig{
			MaxTokens:     cfg.Agent.ContextGuard.MaxTokens,
			ReserveTokens: cfg.Agent.ContextGuard.ReserveTokens,
			SafetyMargin:  cfg.Agent.ContextGuard.SafetyMargin,
		}, usecase.NewTokenCounter(model), log)
	}

	agent := usecase.NewAgent(usecase.AgentDeps{
		LLM:             provider,
		Tools:           registry,
		ContextBuilder:  usecase.NewContextBuilder(systemPrompt(cfg), model, 50),
		Logger:          log,
		MaxIterations:   cfg.Agent.MaxIterations,
		Bus:             bus,
		ErrorClassifier: classifier,
		ContextGuard:    guard,
	})

	sessions := usecase.NewSessionManager(filepath.Join(filepath.Dir(cfg.Store.Path), "sessions"))
	digest := usecase.NewDigest(searcher, paperStore, retrier, bus, log)

	return &app{
		LLM:      provider,
		Model:    model,
		Tools:    registry,
		Store:    paperStore,
		Agent:    agent,
		Sessions: sessions,
		Digest:   digest,
	}, nil
}

// buildLLM constructs the configured default provider, wrapped in a circuit
// breaker when enabled.
func buildLLM(cfg *config.Config, log *slog.Logger) (domain.LLMProvider, string, error) {
	registry := llm.NewRegistry()
	models := make(map[string]string, len(cfg.LLM.Providers))

	for _, pc := range cfg.LLM.Providers {
		var provider domain.LLMProvider
		var err error

		switch pc.Type {
		case "gemini":
			provider = llm.NewGeminiProvider(pc, log)
		case "bedrock":
			provider, err = llm.NewBedrockProvider(pc, log)
			if err != nil {
				return nil, "", err
			}
		default:
			return nil, "", fmt.Errorf("unsupported provider type %q", pc.Type)
		}

		if cfg.LLM.CircuitBreaker.Enabled {
			provider = llm.NewCircuitBreakerProvider(provider, cfg.LLM.CircuitBreaker, log)
		}
		if err := registry.Register(provider); err != nil {
			return nil, "", err
		}
		models[pc.Name] = pc.Model
	}

	provider, err := registry.Get(cfg.LLM.DefaultProvider)
	if err != nil {
		return nil, "", err
	}
	return provider, models[cfg.LLM.DefaultProvider], nil
}

func systemPrompt(cfg *config.Config) string {
	if cfg.Agent.SystemPrompt != "" {
		return cfg.Agent.SystemPrompt
	}
	return "You are a research paper discovery assistant. You help users find, " +
		"summarize and understand arXiv papers using the available tools. " +
		"Search before answering questions about specific papers, cite paper IDs, " +
		"and keep explanations clear and friendly."
}
