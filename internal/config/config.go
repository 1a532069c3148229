package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	defaultStorageType    = "file"
	defaultTimeoutMs      = 30000
	defaultMaxRedirects   = 5
	defaultRetryMax       = 2
	defaultRetryWaitMinMs = 100
	defaultRetryWaitMaxMs = 400
	defaultPort           = 18790
	defaultBind           = "loopback"
	defaultLogLevel       = "info"
	defaultConsoleStyle   = "pretty"
)

// Defaults returns a Config with sensible defaults applied. The storage path
// is left empty; ResolveStoragePath fills it from Paths.
func Defaults() Config {
	follow := true
	retryMax := defaultRetryMax
	return Config{
		Storage: StorageConfig{
			Type: defaultStorageType,
		},
		HTTP: HTTPConfig{
			TimeoutMs:       defaultTimeoutMs,
			FollowRedirects: &follow,
			MaxRedirects:    defaultMaxRedirects,
			RetryMax:        &retryMax,
			RetryWaitMinMs:  defaultRetryWaitMinMs,
			RetryWaitMaxMs:  defaultRetryWaitMaxMs,
		},
		Server: ServerConfig{
			Port: defaultPort,
			Bind: defaultBind,
		},
		Logging: LoggingConfig{
			Level:        defaultLogLevel,
			ConsoleStyle: defaultConsoleStyle,
		},
	}
}

// FollowsRedirects reports the effective redirect setting.
func (h HTTPConfig) FollowsRedirects() bool {
	return h.FollowRedirects == nil || *h.FollowRedirects
}

// Retries reports the effective retry budget.
func (h HTTPConfig) Retries() int {
	if h.RetryMax == nil {
		return defaultRetryMax
	}
	return *h.RetryMax
}
