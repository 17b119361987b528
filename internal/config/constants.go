package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "seriesdash"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable (SERIESDASH_SERVER_PORT, ...)
	EnvPrefix = "SERIESDASH"
	// ConfigFileEnv names the variable pointing at the YAML config file
	ConfigFileEnv     = "SERIESDASH_CONFIG"
	DefaultConfigFile = "seriesdash.yaml"

	// Dataset kinds
	KindCSV    = "csv"
	KindSQLite = "sqlite"
	KindXLSX   = "xlsx"
	KindRemote = "remote"

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// Remote price history
	DefaultRemoteInterval = "1d"
	DefaultRemoteRPS      = 2

	// File Paths (relative to the base directory)
	DefaultDataDir    = "data"
	DefaultExportsDir = "data/exports"
	DefaultLogsDir    = "logs"

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// API Endpoints
	APIBasePath       = "/api"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)
