// Command solace-ai-connector starts the event-streaming integration
// runtime from one or more YAML configuration files.
//
// Usage:
//
//	solace-ai-connector [flags] config.yaml [more-config.yaml ...]
//
// Later configuration files override earlier ones. The process exits 0 on
// graceful stop and non-zero on a fatal configuration error at startup.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/SolaceDev/solace-ai-connector/config"
	"github.com/SolaceDev/solace-ai-connector/connector"
)

func main() {
	os.Exit(run())
}

func run() int {
	cliCfg := parseFlags()

	if cliCfg.ShowVersion {
		fmt.Println(versionString())
		return 0
	}
	if err := validateFlags(cliCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage()
		return 2
	}

	// A .env file supplies values for ${NAME} substitution; absence is
	// not an error.
	_ = godotenv.Load()

	cfg, err := config.LoadFiles(cliCfg.ConfigPaths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	logger := setupLogger(resolveLogLevel(cliCfg, cfg), cliCfg.LogFormat)

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "apps", len(cfg.Apps))
		return 0
	}

	conn, err := connector.New(cfg, connector.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to construct connector", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := conn.Start(ctx); err != nil {
		logger.Error("Failed to start connector", "error", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Received signal, shutting down", "signal", sig.String())

	if err := conn.Stop(cliCfg.ShutdownTimeout); err != nil {
		logger.Warn("Shutdown did not fully drain", "error", err)
	}
	return 0
}
