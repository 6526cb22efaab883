// Package config loads the registry configuration.
//
// Values are resolved in layers, each overriding the previous one:
//
//  1. Built-in defaults (Default)
//  2. Optional file layers, JSON or YAML chosen by extension
//  3. Environment variables
//  4. Validation
//
// Usage:
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/registry.yaml")
//	cfg, err := loader.Load()
//	if err != nil {
//	    return err
//	}
//
// File layers only override the keys they contain, so a file holding just
// {"server": {"port": 9100}} keeps every other default.
//
// # Environment Variables
//
//	HOST                     server.host
//	PORT                     server.port
//	SERVICE_TIMEOUT_SECONDS  registry.heartbeat_timeout (seconds or "90s")
//	HEALTH_STRATEGY          registry.health_strategy (passive|active)
//	PROBE_TIMEOUT            registry.probe_timeout (seconds or "3s")
//	ALLOWED_ORIGINS          cors.allowed_origins, comma separated
//	NATS_URL                 nats.url; empty disables NATS
//	LOG_LEVEL, LOG_FORMAT    log.level, log.format
//	DEBUG                    service.debug
//
// Durations accept Go duration strings or a plain number of seconds.
//
// Invalid files and environment values return invalid-class errors;
// a configuration that fails Validate returns a fatal-class error wrapping
// errors.ErrInvalidConfig.
package config
