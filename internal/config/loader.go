package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandPaths processes environment variable references in filesystem
// settings and the server token. Paths also expand a leading ~.
func expandPaths(cfg *Config) {
	cfg.Storage.Path = expandHome(expandEnvVars(cfg.Storage.Path))
	cfg.Logging.File = expandHome(expandEnvVars(cfg.Logging.File))
	cfg.Server.TLS.CertPath = expandHome(expandEnvVars(cfg.Server.TLS.CertPath))
	cfg.Server.TLS.KeyPath = expandHome(expandEnvVars(cfg.Server.TLS.KeyPath))
	cfg.Server.Token = expandEnvVars(cfg.Server.Token)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
	}

	applyDefaults(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	expandPaths(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = defaultStorageType
	}
	if cfg.HTTP.TimeoutMs == 0 {
		cfg.HTTP.TimeoutMs = defaultTimeoutMs
	}
	if cfg.HTTP.FollowRedirects == nil {
		follow := true
		cfg.HTTP.FollowRedirects = &follow
	}
	if cfg.HTTP.MaxRedirects == 0 {
		cfg.HTTP.MaxRedirects = defaultMaxRedirects
	}
	if cfg.HTTP.RetryMax == nil {
		retryMax := defaultRetryMax
		cfg.HTTP.RetryMax = &retryMax
	}
	if cfg.HTTP.RetryWaitMinMs == 0 {
		cfg.HTTP.RetryWaitMinMs = defaultRetryWaitMinMs
	}
	if cfg.HTTP.RetryWaitMaxMs == 0 {
		cfg.HTTP.RetryWaitMaxMs = defaultRetryWaitMaxMs
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = defaultBind
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogLevel
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = defaultConsoleStyle
	}
}

// applyEnvOverrides reads WITNESS_* environment variables declared in the
// struct tags and overrides config values.
func applyEnvOverrides(cfg *Config) error {
	for _, section := range []any{&cfg.Storage, &cfg.HTTP, &cfg.Server, &cfg.Logging} {
		if err := env.Parse(section); err != nil {
			return &ConfigError{Message: "invalid environment override: " + err.Error()}
		}
	}
	cfg.Storage.Type = strings.ToLower(cfg.Storage.Type)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	return nil
}

// ResolveStoragePath fills an empty storage path from the standard layout:
// the store directory for file storage, data/witness.db for sqlite.
func ResolveStoragePath(cfg *Config, paths Paths) {
	if cfg.Storage.Path != "" {
		return
	}
	if cfg.Storage.Type == "sqlite" {
		cfg.Storage.Path = filepath.Join(paths.Data, "witness.db")
		return
	}
	cfg.Storage.Path = paths.Store
}
