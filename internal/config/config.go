package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`

	// Datasets only come from the config file.
	Datasets []DatasetConfig `yaml:"datasets" ignored:"true"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"60s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/seriesdash.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	ExportsDir string `yaml:"exports_dir" envconfig:"EXPORTS_DIR" default:"data/exports"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
	MaxMessageSize  int64         `yaml:"max_message_size" envconfig:"MAX_MESSAGE_SIZE" default:"65536"`
}

// TelemetryConfig selects the OpenTelemetry exporters
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" default:"seriesdash"`
	TracesExporter string `yaml:"traces_exporter" envconfig:"TRACES_EXPORTER" default:"none"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
}

// Load loads configuration from environment variables and the config file.
// Values set explicitly in the environment win over the file; file values
// win over defaults.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit config file path. An empty path means
// environment and defaults only.
func LoadFile(configFile string) (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configFile, err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envSet reports whether the variable for key was set explicitly
func envSet(key string) bool {
	_, ok := os.LookupEnv(EnvPrefix + "_" + key)
	return ok
}

// pick returns the env value when its variable is set, else the file value
// when non-zero, else the env value (which holds the default).
func pick[T comparable](key string, envVal, fileVal T) T {
	var zero T
	if envSet(key) || fileVal == zero {
		return envVal
	}
	return fileVal
}

// mergeConfigs merges file config with env config (explicit env takes precedence)
func mergeConfigs(fileConfig, envConfig Config) Config {
	out := envConfig

	s, fs := &out.Server, fileConfig.Server
	s.Port = pick("SERVER_PORT", s.Port, fs.Port)
	s.ReadTimeout = pick("SERVER_READ_TIMEOUT", s.ReadTimeout, fs.ReadTimeout)
	s.WriteTimeout = pick("SERVER_WRITE_TIMEOUT", s.WriteTimeout, fs.WriteTimeout)
	s.IdleTimeout = pick("SERVER_IDLE_TIMEOUT", s.IdleTimeout, fs.IdleTimeout)
	s.MaxHeaderBytes = pick("SERVER_MAX_HEADER_BYTES", s.MaxHeaderBytes, fs.MaxHeaderBytes)
	s.ShutdownTimeout = pick("SERVER_SHUTDOWN_TIMEOUT", s.ShutdownTimeout, fs.ShutdownTimeout)
	s.RequestTimeout = pick("SERVER_REQUEST_TIMEOUT", s.RequestTimeout, fs.RequestTimeout)

	sec, fsec := &out.Security, fileConfig.Security
	if !envSet("SECURITY_ALLOWED_ORIGINS") && len(fsec.AllowedOrigins) > 0 {
		sec.AllowedOrigins = fsec.AllowedOrigins
	}
	// a bool cannot tell "false" from unset in YAML; only an explicit file
	// rate_limit block can disable limiting
	if !envSet("SECURITY_RATE_LIMIT_ENABLED") && fsec.RateLimit != (RateLimitConfig{}) {
		sec.RateLimit.Enabled = fsec.RateLimit.Enabled
	}
	sec.RateLimit.RPS = pick("SECURITY_RATE_LIMIT_RPS", sec.RateLimit.RPS, fsec.RateLimit.RPS)
	sec.RateLimit.Burst = pick("SECURITY_RATE_LIMIT_BURST", sec.RateLimit.Burst, fsec.RateLimit.Burst)

	l, fl := &out.Logging, fileConfig.Logging
	l.Level = pick("LOGGING_LEVEL", l.Level, fl.Level)
	l.Format = pick("LOGGING_FORMAT", l.Format, fl.Format)
	l.Output = pick("LOGGING_OUTPUT", l.Output, fl.Output)
	l.FilePath = pick("LOGGING_FILE_PATH", l.FilePath, fl.FilePath)

	p, fp := &out.Paths, fileConfig.Paths
	p.BaseDir = pick("PATHS_BASE_DIR", p.BaseDir, fp.BaseDir)
	p.DataDir = pick("PATHS_DATA_DIR", p.DataDir, fp.DataDir)
	p.ExportsDir = pick("PATHS_EXPORTS_DIR", p.ExportsDir, fp.ExportsDir)
	p.LogsDir = pick("PATHS_LOGS_DIR", p.LogsDir, fp.LogsDir)

	ws, fws := &out.WebSocket, fileConfig.WebSocket
	ws.ReadBufferSize = pick("WEBSOCKET_READ_BUFFER_SIZE", ws.ReadBufferSize, fws.ReadBufferSize)
	ws.WriteBufferSize = pick("WEBSOCKET_WRITE_BUFFER_SIZE", ws.WriteBufferSize, fws.WriteBufferSize)
	ws.PingPeriod = pick("WEBSOCKET_PING_PERIOD", ws.PingPeriod, fws.PingPeriod)
	ws.PongWait = pick("WEBSOCKET_PONG_WAIT", ws.PongWait, fws.PongWait)
	ws.MaxMessageSize = pick("WEBSOCKET_MAX_MESSAGE_SIZE", ws.MaxMessageSize, fws.MaxMessageSize)

	tl, ftl := &out.Telemetry, fileConfig.Telemetry
	tl.ServiceName = pick("TELEMETRY_SERVICE_NAME", tl.ServiceName, ftl.ServiceName)
	tl.TracesExporter = pick("TELEMETRY_TRACES_EXPORTER", tl.TracesExporter, ftl.TracesExporter)
	if !envSet("TELEMETRY_METRICS_ENABLED") && ftl != (TelemetryConfig{}) {
		tl.MetricsEnabled = ftl.MetricsEnabled
	}

	out.Datasets = fileConfig.Datasets
	return out
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive when enabled")
	}

	// Logs are always JSON
	c.Logging.Format = DefaultLogFormat
	switch c.Logging.Output {
	case "stdout", "file", "both":
	default:
		c.Logging.Output = "both"
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)

	switch c.Telemetry.TracesExporter {
	case "", "none":
		c.Telemetry.TracesExporter = "none"
	case "stdout":
	default:
		return fmt.Errorf("unknown traces exporter %q", c.Telemetry.TracesExporter)
	}

	return validateDatasets(c.Datasets)
}

// Dataset returns the dataset named name.
func (c *Config) Dataset(name string) (DatasetConfig, bool) {
	for _, d := range c.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return DatasetConfig{}, false
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(ConfigFileEnv); p != "" {
		return p
	}

	// Check for config file in common locations
	locations := []string{
		DefaultConfigFile,
		"configs/" + DefaultConfigFile,
		"../configs/" + DefaultConfigFile,
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "both",
			FilePath: "logs/seriesdash.log",
		},
		Paths: PathsConfig{
			DataDir:    DefaultDataDir,
			ExportsDir: DefaultExportsDir,
			LogsDir:    DefaultLogsDir,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
			MaxMessageSize:  64 << 10,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			TracesExporter: "none",
			MetricsEnabled: true,
		},
	}
}
