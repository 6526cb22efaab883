package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zainbaq/medical-ml/errors"
)

// Health strategies for the aggregate health report
const (
	StrategyPassive = "passive"
	StrategyActive  = "active"
)

// Config is the complete registry configuration
type Config struct {
	Service   ServiceConfig   `json:"service" yaml:"service"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Registry  RegistryConfig  `json:"registry" yaml:"registry"`
	CORS      CORSConfig      `json:"cors" yaml:"cors"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	NATS      NATSConfig      `json:"nats" yaml:"nats"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// ServiceConfig identifies the registry process itself
type ServiceConfig struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Debug   bool   `json:"debug" yaml:"debug"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host            string   `json:"host" yaml:"host"`
	Port            int      `json:"port" yaml:"port"`
	APIPrefix       string   `json:"api_prefix" yaml:"api_prefix"`
	ReadTimeout     Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     Duration `json:"idle_timeout" yaml:"idle_timeout"`
	MaxBodyBytes    int64    `json:"max_body_bytes" yaml:"max_body_bytes"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// RegistryConfig configures liveness and aggregate health
type RegistryConfig struct {
	HeartbeatTimeout Duration `json:"heartbeat_timeout" yaml:"heartbeat_timeout"`
	HealthStrategy   string   `json:"health_strategy" yaml:"health_strategy"`
	ProbeTimeout     Duration `json:"probe_timeout" yaml:"probe_timeout"`
	ProbeConcurrency int      `json:"probe_concurrency" yaml:"probe_concurrency"`
}

// CORSConfig configures cross-origin access
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// RateLimitConfig configures the token bucket applied to API requests.
// A zero RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
}

// NATSConfig configures the optional event transport. An empty URL disables it.
type NATSConfig struct {
	URL            string   `json:"url" yaml:"url"`
	SubjectPrefix  string   `json:"subject_prefix" yaml:"subject_prefix"`
	ConnectTimeout Duration `json:"connect_timeout" yaml:"connect_timeout"`
	MaxReconnects  int      `json:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait  Duration `json:"reconnect_wait" yaml:"reconnect_wait"`
	Username       string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password       string   `json:"password,omitempty" yaml:"password,omitempty"`
	Token          string   `json:"token,omitempty" yaml:"token,omitempty"`
	PublishWorkers int      `json:"publish_workers" yaml:"publish_workers"`
	PublishQueue   int      `json:"publish_queue" yaml:"publish_queue"`
}

// Enabled reports whether a NATS URL is configured
func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

// MetricsConfig toggles the /metrics endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// LogConfig configures slog output
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:    "Medical ML Service Registry",
			Version: "1.0.0",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            9000,
			APIPrefix:       "/api/v1",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Registry: RegistryConfig{
			HeartbeatTimeout: Duration(60 * time.Second),
			HealthStrategy:   StrategyPassive,
			ProbeTimeout:     Duration(5 * time.Second),
			ProbeConcurrency: 16,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		NATS: NATSConfig{
			SubjectPrefix:  "registry",
			ConnectTimeout: Duration(5 * time.Second),
			MaxReconnects:  -1,
			ReconnectWait:  Duration(2 * time.Second),
			PublishWorkers: 2,
			PublishQueue:   256,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration and returns an invalid-config error
// naming the first offending field.
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return errors.WrapFatal(fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errors.ErrInvalidConfig),
			"Config", "Validate", "check configuration")
	}

	if c.Service.Name == "" {
		return fail("service.name is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fail("server.port %d out of range", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.APIPrefix, "/") || strings.HasSuffix(c.Server.APIPrefix, "/") {
		return fail("server.api_prefix %q must start and not end with /", c.Server.APIPrefix)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fail("server.max_body_bytes must be positive")
	}
	if c.Registry.HeartbeatTimeout.Duration() <= 0 {
		return fail("registry.heartbeat_timeout must be positive")
	}
	switch c.Registry.HealthStrategy {
	case StrategyPassive, StrategyActive:
	default:
		return fail("registry.health_strategy %q must be %q or %q",
			c.Registry.HealthStrategy, StrategyPassive, StrategyActive)
	}
	if c.Registry.ProbeTimeout.Duration() <= 0 {
		return fail("registry.probe_timeout must be positive")
	}
	if c.Registry.ProbeConcurrency <= 0 {
		return fail("registry.probe_concurrency must be positive")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fail("rate_limit values cannot be negative")
	}
	if c.NATS.Enabled() && !isValidNATSSubjectPart(c.NATS.SubjectPrefix) {
		return fail("nats.subject_prefix %q is not a valid subject token", c.NATS.SubjectPrefix)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fail("metrics.path %q must start with /", c.Metrics.Path)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fail("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fail("log.format %q is not json or text", c.Log.Format)
	}
	return nil
}

// isValidNATSSubjectPart reports whether s may be used as one or more
// dot-separated NATS subject tokens.
func isValidNATSSubjectPart(s string) bool {
	if s == "" || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") || strings.Contains(s, "..") {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// String renders the config as JSON with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.NATS.Password != "" {
		masked.NATS.Password = "****"
	}
	if masked.NATS.Token != "" {
		masked.NATS.Token = "****"
	}
	data, err := json.MarshalIndent(&masked, "", "  ")
	if err != nil {
		return fmt.Sprintf("config marshal error: %v", err)
	}
	return string(data)
}

// Duration is a time.Duration that reads "90s"-style strings or a number of
// seconds, and writes strings.
type Duration time.Duration

// Duration returns the value as time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String formats like time.Duration
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON writes the duration as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "5s" or a number of seconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := parseDuration(v)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML writes the duration as a string
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts "5s" or a number of seconds
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	parsed, err := parseDuration(v)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func parseDuration(v any) (Duration, error) {
	switch x := v.(type) {
	case string:
		if secs, err := strconv.ParseFloat(x, 64); err == nil {
			return Duration(secs * float64(time.Second)), nil
		}
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", x, err)
		}
		return Duration(parsed), nil
	case float64:
		return Duration(x * float64(time.Second)), nil
	case int:
		return Duration(time.Duration(x) * time.Second), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("invalid duration value %v", v)
	}
}
