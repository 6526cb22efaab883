package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zainbaq/medical-ml/errors"
)

// Loader builds a Config from defaults, then file layers in order, then
// environment variables, then validation.
type Loader struct {
	layers    []string
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		lookupEnv: os.LookupEnv,
	}
}

// AddLayer adds a JSON or YAML file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("load %s", path))
		}
		cfg, err = mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("merge %s", path))
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "apply environment overrides")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadRaw decodes a file layer into a generic map, by extension.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrParsingFailed, err)
		}
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrParsingFailed, err)
		}
	}
	return raw, nil
}

// mergeFromMap overlays only the keys present in override onto base.
func mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}
	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps merges override into base; nested maps merge, anything
// else replaces. Nil override values are skipped.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func (l *Loader) env(key string) (string, bool, error) {
	val, ok := l.lookupEnv(key)
	if !ok || val == "" {
		return "", false, nil
	}
	if err := validateEnvVar(key, val); err != nil {
		return "", false, err
	}
	return val, true, nil
}

// applyEnvOverrides applies the deployment environment variables
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	if val, ok, err := l.env("HOST"); err != nil {
		return err
	} else if ok {
		cfg.Server.Host = val
	}

	if val, ok, err := l.env("PORT"); err != nil {
		return err
	} else if ok {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("PORT %q: %w", val, errors.ErrInvalidConfig)
		}
		cfg.Server.Port = port
	}

	if val, ok, err := l.env("SERVICE_TIMEOUT_SECONDS"); err != nil {
		return err
	} else if ok {
		d, err := parseDuration(val)
		if err != nil {
			return fmt.Errorf("SERVICE_TIMEOUT_SECONDS %q: %w", val, errors.ErrInvalidConfig)
		}
		cfg.Registry.HeartbeatTimeout = d
	}

	if val, ok, err := l.env("HEALTH_STRATEGY"); err != nil {
		return err
	} else if ok {
		cfg.Registry.HealthStrategy = strings.ToLower(val)
	}

	if val, ok, err := l.env("PROBE_TIMEOUT"); err != nil {
		return err
	} else if ok {
		d, err := parseDuration(val)
		if err != nil {
			return fmt.Errorf("PROBE_TIMEOUT %q: %w", val, errors.ErrInvalidConfig)
		}
		cfg.Registry.ProbeTimeout = d
	}

	if val, ok, err := l.env("ALLOWED_ORIGINS"); err != nil {
		return err
	} else if ok {
		origins := make([]string, 0)
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORS.AllowedOrigins = origins
	}

	if val, ok, err := l.env("NATS_URL"); err != nil {
		return err
	} else if ok {
		cfg.NATS.URL = val
	}

	if val, ok, err := l.env("LOG_LEVEL"); err != nil {
		return err
	} else if ok {
		cfg.Log.Level = strings.ToLower(val)
	}

	if val, ok, err := l.env("LOG_FORMAT"); err != nil {
		return err
	} else if ok {
		cfg.Log.Format = strings.ToLower(val)
	}

	if val, ok, err := l.env("DEBUG"); err != nil {
		return err
	} else if ok {
		debug, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("DEBUG %q: %w", val, errors.ErrInvalidConfig)
		}
		cfg.Service.Debug = debug
	}

	return nil
}
