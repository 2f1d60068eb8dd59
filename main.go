package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"summarai/internal/config"
	"summarai/internal/controller"
	"summarai/internal/conversation"
	"summarai/internal/gateway"
	"summarai/internal/history"
	"summarai/internal/logging"
	"summarai/internal/session"
	"summarai/internal/storage"
	"summarai/internal/terminal"
	"summarai/internal/ui"
)

func main() {
	// Set the GetEnv function for config
	config.GetEnv = os.Getenv

	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogPath, cfg.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		// state is never fatal: keep going in memory
		logger.Warn("storage unavailable, using memory", zap.String("storage", cfg.Storage), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Warning: %v; chats will not be saved\n", err)
		kv = storage.NewResilient(storage.NewMemory(), logger)
	}
	defer kv.Close()

	convs := conversation.NewStore(kv, logger)
	sessions := session.NewStore(kv, logger)
	client := gateway.NewClient(cfg.BackendURL, cfg.RequestTimeout, logger,
		gateway.WithBreaker(cfg.BreakerFailures, cfg.BreakerTimeout))
	ctl := controller.New(controller.Deps{
		Gateway:       client,
		History:       history.NewIndex(kv, convs, logger),
		Conversations: convs,
		Session:       sessions,
		Logger:        logger,
	})

	app := &repl{
		cfg:     cfg,
		ctl:     ctl,
		input:   terminal.NewInput(os.Stdin, os.Stdout),
		display: ui.NewDisplay(os.Stdout, ctl.DarkMode(ctx)),
		spinner: terminal.NewSpinner(os.Stdout),
		logger:  logger,
	}

	// stdin reads don't observe ctx, so leave from here on interrupt
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-finished:
			return
		case <-ctx.Done():
		}
		app.spinner.Stop()
		app.display.PrintInfo("Shutting down...")
		kv.Close()
		logger.Sync()
		os.Exit(0)
	}()

	app.display.PrintWelcome(cfg.BackendURL)
	if err := client.HealthCheck(ctx); err != nil {
		logger.Warn("backend health check failed", zap.Error(err))
		app.display.PrintWarning("Backend is not reachable; answers will be placeholders until it is.")
	}

	if err := app.run(ctx); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
		app.display.PrintError(err.Error())
	}
	app.display.PrintGoodbye()
}

// parseFlags loads the config file and environment, then applies flags.
func parseFlags(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("summarai", flag.ContinueOnError)

	configPath := config.GetEnv("SUMMARAI_CONFIG")
	if configPath == "" {
		configPath = "~/.summarai/config.toml"
	}
	// the config file must be known before the other flags get their defaults
	for i, a := range args {
		switch {
		case (a == "-config" || a == "--config") && i+1 < len(args):
			configPath = args[i+1]
		case strings.HasPrefix(a, "-config="), strings.HasPrefix(a, "--config="):
			_, configPath, _ = strings.Cut(a, "=")
		}
	}

	cfg, err := config.Load(expandConfigPath(configPath))
	if err != nil {
		return nil, err
	}

	fs.String("config", configPath, "Path to a TOML config file")
	fs.StringVar(&cfg.BackendURL, "backend-url", cfg.BackendURL, "SummarAI backend URL")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "State storage: memory, file, sqlite or redis")
	fs.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "State file for file or sqlite storage")
	fs.StringVar(&cfg.Redis.Addr, "redis-addr", cfg.Redis.Addr, "Redis address for redis storage")
	fs.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, "Directory exports are written to")
	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "Log file path (empty disables logging)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable debug logging")
	timeoutSeconds := fs.Int("timeout", int(cfg.RequestTimeout/time.Second), "Backend request timeout in seconds")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.RequestTimeout = time.Duration(*timeoutSeconds) * time.Second
	return cfg, nil
}

func expandConfigPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home := config.GetEnv("HOME"); home != "" {
			return home + path[1:]
		}
	}
	return path
}
