package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/SolaceDev/solace-ai-connector/config"
)

const version = "1.0.0"

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigPaths     []string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	Validate        bool
	ShowVersion     bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SAI_LOG_LEVEL", ""),
		"Log level override: debug, info, warn, error (env: SAI_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SAI_LOG_FORMAT", "text"),
		"Log format: json, text (env: SAI_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SAI_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: SAI_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")

	flag.Usage = printUsage
	flag.Parse()

	cfg.ConfigPaths = flag.Args()
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if len(cfg.ConfigPaths) == 0 {
		return fmt.Errorf("at least one configuration file is required")
	}
	for _, path := range cfg.ConfigPaths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("config file not found: %s", path)
		}
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.LogLevel != "" {
		switch cfg.LogLevel {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
		}
	}
	return nil
}

// resolveLogLevel prefers the CLI override, then the configuration's
// stdout log level.
func resolveLogLevel(cli *CLIConfig, cfg *config.Config) string {
	if cli.LogLevel != "" {
		return cli.LogLevel
	}
	if cfg.Log.StdoutLogLevel != "" {
		return cfg.Log.StdoutLogLevel
	}
	return "info"
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `solace-ai-connector %s - event-streaming integration runtime

Usage:
  solace-ai-connector [flags] config.yaml [more-config.yaml ...]

Later configuration files override earlier ones (mappings merge key-wise,
sequences are replaced). ${NAME} and ${NAME, default} references are
substituted from the environment before parsing.

Flags:
`, version)
	flag.PrintDefaults()
}

func versionString() string {
	return fmt.Sprintf("solace-ai-connector %s", version)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
