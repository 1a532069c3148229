package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Storage validation
	validStorage := []string{"file", "sqlite"}
	if cfg.Storage.Type != "" && !slices.Contains(validStorage, cfg.Storage.Type) {
		add("storage.type", "must be one of %v, got %q", validStorage, cfg.Storage.Type)
	}

	// HTTP validation
	if cfg.HTTP.TimeoutMs < 0 {
		add("http.timeoutMs", "must not be negative, got %d", cfg.HTTP.TimeoutMs)
	}
	if cfg.HTTP.MaxRedirects < 0 {
		add("http.maxRedirects", "must not be negative, got %d", cfg.HTTP.MaxRedirects)
	}
	if cfg.HTTP.RetryMax != nil && (*cfg.HTTP.RetryMax < 0 || *cfg.HTTP.RetryMax > 10) {
		add("http.retryMax", "must be 0-10, got %d", *cfg.HTTP.RetryMax)
	}
	if cfg.HTTP.RetryWaitMinMs < 0 {
		add("http.retryWaitMinMs", "must not be negative, got %d", cfg.HTTP.RetryWaitMinMs)
	}
	if cfg.HTTP.RetryWaitMaxMs > 0 && cfg.HTTP.RetryWaitMaxMs < cfg.HTTP.RetryWaitMinMs {
		add("http.retryWaitMaxMs", "must be >= retryWaitMinMs (%d), got %d", cfg.HTTP.RetryWaitMinMs, cfg.HTTP.RetryWaitMaxMs)
	}

	// Server validation
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		add("server.port", "port must be 0-65535, got %d", cfg.Server.Port)
	}
	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		add("server.bind", "must be one of %v, got %q", validBinds, cfg.Server.Bind)
	}
	if cfg.Server.Bind == "custom" && cfg.Server.CustomBindHost == "" {
		add("server.customBindHost", "required when bind: custom")
	}
	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertPath == "" {
			add("server.tls.certPath", "required when tls is enabled")
		}
		if cfg.Server.TLS.KeyPath == "" {
			add("server.tls.keyPath", "required when tls is enabled")
		}
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	// Hooks validation
	hookSets := []struct {
		path    string
		entries []HookEntry
	}{
		{"hooks.interactionRecorded", cfg.Hooks.InteractionRecorded},
		{"hooks.interactionReplayed", cfg.Hooks.InteractionReplayed},
		{"hooks.serverStart", cfg.Hooks.ServerStart},
		{"hooks.serverStop", cfg.Hooks.ServerStop},
	}
	for _, set := range hookSets {
		for i, h := range set.entries {
			if h.Command == "" {
				add(fmt.Sprintf("%s[%d].command", set.path, i), "command is required")
			}
			if h.Timeout < 0 {
				add(fmt.Sprintf("%s[%d].timeout", set.path, i), "must not be negative, got %d", h.Timeout)
			}
		}
	}

	return issues
}
