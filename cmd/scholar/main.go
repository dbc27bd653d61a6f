package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"arxiv-scholar/internal/adapter/gateway"
	"arxiv-scholar/internal/adapter/mcpserver"
	"arxiv-scholar/internal/infra/config"
	"arxiv-scholar/internal/infra/logger"
	"arxiv-scholar/internal/infra/tracer"
	"arxiv-scholar/internal/usecase/eventbus"
)

const version = "1.0.0"

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	var err error
	switch {
	case len(os.Args) >= 2 && os.Args[1] == "mcp":
		err = runMCP()
	case len(os.Args) >= 2 && os.Args[1] == "ask":
		err = runAsk(strings.Join(os.Args[2:], " "))
	case len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-"):
		err = runServe()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'scholar --help' for usage.\n", os.Args[1])
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`scholar - arXiv research paper discovery assistant

USAGE:
    scholar [COMMAND] [FLAGS]

COMMANDS:
    ask QUERY   Run one agent query and stream the steps to the terminal
    mcp         Serve the tools over the Model Context Protocol on stdio

    (no command) - Serve the HTTP API and agent event stream

FLAGS:
    -h, --help       Show this help message
    --config PATH    Config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml
    Environment: SCHOLAR_* variables override config

EXAMPLES:
    scholar                                   # HTTP API on :8000
    scholar ask "recent papers on diffusion models"
    scholar mcp                               # stdio MCP server`)
}

func configPath() string {
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(os.Args[i], "--config=") {
			return strings.TrimPrefix(os.Args[i], "--config=")
		}
	}
	return "./config.yaml"
}

// runServe starts the HTTP gateway and, when enabled, the digest scheduler.
func runServe() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

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

	bus := eventbus.New(log)
	defer bus.Close()

	app, err := buildApp(cfg, bus, log)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Digest.Enabled {
		if err := app.Digest.Start(cfg.Digest.Schedule); err != nil {
			return err
		}
		defer app.Digest.Stop()
	}

	log.Info("scholar starting",
		"version", version,
		"provider", cfg.LLM.DefaultProvider,
		"tools", len(app.Tools.List()),
		"gateway", cfg.Gateway.Enabled,
		"digest", cfg.Digest.Enabled,
	)

	if !cfg.Gateway.Enabled {
		// Nothing else to serve; wait for shutdown so the digest keeps running.
		<-ctx.Done()
		return nil
	}

	srv := gateway.NewServer(app.Agent, app.Sessions, app.Tools, app.Store, cfg.Gateway, log)
	return srv.Start(ctx)
}

// runMCP serves the tool registry over stdio for MCP hosts. Logs go to a
// file or stderr; stdout belongs to the protocol.
func runMCP() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Logger.Output == "" || cfg.Logger.Output == "stdout" {
		cfg.Logger.Output = "stderr"
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	app, err := buildApp(cfg, nil, log)
	if err != nil {
		return err
	}
	defer app.Close()

	return mcpserver.New(app.Tools, app.Store, version, log).Serve()
}
