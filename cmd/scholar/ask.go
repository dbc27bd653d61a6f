package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"arxiv-scholar/internal/domain"
	"arxiv-scholar/internal/infra/config"
	"arxiv-scholar/internal/infra/logger"
	"arxiv-scholar/internal/infra/tracer"
)

// runAsk executes a single agent query and prints each step as it arrives.
func runAsk(query string) error {
	if query == "" {
		return fmt.Errorf("usage: scholar ask QUERY")
	}

	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	// Interactive output; keep log noise off stdout.
	cfg.Logger.Output = "stderr"

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	app, err := buildApp(cfg, nil, log)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if cfg.Agent.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Agent.Timeout)
		defer cancel()
	}

	session := app.Sessions.Create()
	start := time.Now()

	var failed bool
	for step := range app.Agent.Run(ctx, session, query) {
		switch step.Type {
		case domain.StepThinking:
			fmt.Printf("… %s\n", step.Content)
		case domain.StepToolCall:
			fmt.Printf("→ %s %s\n", step.Tool, step.Content)
		case domain.StepToolResult:
			fmt.Printf("← %s\n%s\n", step.Tool, step.Content)
		case domain.StepAnswer:
			fmt.Printf("\n%s\n", step.Content)
		case domain.StepError:
			failed = true
			fmt.Printf("\nerror: %s\n", step.Content)
		case domain.StepDone:
			fmt.Printf("\n(%s)\n", time.Since(start).Round(time.Millisecond))
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}
	if failed {
		return fmt.Errorf("query failed")
	}
	return nil
}
