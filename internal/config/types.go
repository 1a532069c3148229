package config

// Config is the root configuration for witness.
type Config struct {
	Storage StorageConfig `yaml:"storage,omitempty"`
	HTTP    HTTPConfig    `yaml:"http,omitempty"`
	Server  ServerConfig  `yaml:"server,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Hooks   HooksConfig   `yaml:"hooks,omitempty"`
}

// StorageConfig selects where interactions are persisted.
type StorageConfig struct {
	Type string `yaml:"type,omitempty" env:"WITNESS_STORAGE_TYPE"` // "file" | "sqlite"
	Path string `yaml:"path,omitempty" env:"WITNESS_STORAGE_PATH"` // directory for file, database file for sqlite
}

// HTTPConfig holds the defaults for outgoing requests.
type HTTPConfig struct {
	TimeoutMs       int   `yaml:"timeoutMs,omitempty" env:"WITNESS_HTTP_TIMEOUT_MS"`
	FollowRedirects *bool `yaml:"followRedirects,omitempty"` // defaults to true
	MaxRedirects    int   `yaml:"maxRedirects,omitempty"`
	RetryMax        *int  `yaml:"retryMax,omitempty"` // defaults to 2; 0 disables retries
	RetryWaitMinMs  int   `yaml:"retryWaitMinMs,omitempty"`
	RetryWaitMaxMs  int   `yaml:"retryWaitMaxMs,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket front door.
type ServerConfig struct {
	Port           int       `yaml:"port,omitempty" env:"WITNESS_SERVER_PORT"`
	Bind           string    `yaml:"bind,omitempty" env:"WITNESS_SERVER_BIND"` // "loopback" | "lan" | "custom"
	CustomBindHost string    `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string  `yaml:"allowedOrigins,omitempty"`
	Token          string    `yaml:"token,omitempty" env:"WITNESS_SERVER_TOKEN"` // bearer token; empty disables auth
	TLS            TLSConfig `yaml:"tls,omitempty"`
}

// TLSConfig enables HTTPS on the front door.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty" env:"WITNESS_LOG_LEVEL"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// HooksConfig binds shell commands to lifecycle events.
type HooksConfig struct {
	InteractionRecorded []HookEntry `yaml:"interactionRecorded,omitempty"`
	InteractionReplayed []HookEntry `yaml:"interactionReplayed,omitempty"`
	ServerStart         []HookEntry `yaml:"serverStart,omitempty"`
	ServerStop          []HookEntry `yaml:"serverStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
