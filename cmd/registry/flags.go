package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/zainbaq/medical-ml/config"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	return parseFlagSet(flag.CommandLine, os.Args[1:])
}

func parseFlagSet(fs *flag.FlagSet, args []string) *CLIConfig {
	cfg := &CLIConfig{}

	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("REGISTRY_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: REGISTRY_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("REGISTRY_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: REGISTRY_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error (default from config, env: LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", "",
		"Log format: json, text (default from config, env: LOG_FORMAT)")

	fs.BoolVar(&cfg.Debug, "debug",
		getEnvBool("REGISTRY_DEBUG", false),
		"Enable debug logging (env: REGISTRY_DEBUG)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("REGISTRY_SHUTDOWN_TIMEOUT", 0),
		"Graceful shutdown timeout, 0 uses the config value (env: REGISTRY_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = printDetailedHelp

	// ExitOnError flag sets never return an error here
	_ = fs.Parse(args)

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}
	if cfg.LogLevel != "" && !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "" && !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %v", cfg.ShutdownTimeout)
	}
	return nil
}

// resolveLogSettings lets flags override the configured log settings
func resolveLogSettings(cliCfg *CLIConfig, cfg *config.Config) (level, format string) {
	level, format = cfg.Log.Level, cfg.Log.Format
	if cfg.Service.Debug {
		level = "debug"
	}
	if cliCfg.LogLevel != "" {
		level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		format = cliCfg.LogFormat
	}
	return level, format
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Medical ML Service Registry

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Environment overrides (applied after the config file):
  HOST, PORT, SERVICE_TIMEOUT_SECONDS, HEALTH_STRATEGY, PROBE_TIMEOUT,
  ALLOWED_ORIGINS, NATS_URL, LOG_LEVEL, LOG_FORMAT, DEBUG

Examples:
  # Run with defaults on 0.0.0.0:9000
  %s

  # Probe service health endpoints instead of trusting heartbeats
  HEALTH_STRATEGY=active %s

  # Validate configuration only
  %s --config=configs/registry.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
