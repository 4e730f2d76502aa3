// Package cmd defines the command line flags shared by velotype binaries.
package cmd

import (
	"github.com/urfave/cli/v2"
)

var (
	// VerbosityFlag defines the logrus configuration.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info=default, warn, error, fatal, panic)",
		Value: "info",
	}
	// DataDirFlag defines a path on disk.
	DataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the database and revocation snapshot",
		Value: DefaultDataDir(),
	}
	// HTTPPortFlag defines the port of the game gateway.
	HTTPPortFlag = &cli.IntFlag{
		Name:    "port",
		Usage:   "Port serving the game HTTP API and websocket endpoint",
		Value:   4000,
		EnvVars: []string{"PORT"},
	}
	// DatabaseURLFlag defines the directory of the bolt database file. An
	// unset value runs the node without storage and storage-backed routes
	// answer 503.
	DatabaseURLFlag = &cli.StringFlag{
		Name:    "database-url",
		Usage:   "Directory of the game database. Unset runs the node without persistence",
		EnvVars: []string{"DATABASE_URL"},
	}
	// AuthSecretFlag defines the secret signing session tokens.
	AuthSecretFlag = &cli.StringFlag{
		Name:    "auth-secret",
		Usage:   "Secret that signs session tokens. Required unless --dev generates an ephemeral one",
		EnvVars: []string{"AUTH_SECRET"},
	}
	// EmailHashKeyFlag defines the key of the email lookup hash.
	EmailHashKeyFlag = &cli.StringFlag{
		Name:    "email-hash-key",
		Usage:   "Key of the email lookup hash. Falls back to the auth secret",
		EnvVars: []string{"EMAIL_HASH_KEY"},
	}
	// PIIEncryptionKeyFlag defines the key encrypting stored email addresses.
	PIIEncryptionKeyFlag = &cli.StringFlag{
		Name:    "pii-encryption-key",
		Usage:   "Key encrypting stored email addresses. Falls back to the auth secret",
		EnvVars: []string{"PII_ENCRYPTION_KEY"},
	}
	// DailyResetTimezoneFlag defines the timezone whose midnight rolls the
	// daily challenge over.
	DailyResetTimezoneFlag = &cli.StringFlag{
		Name:    "daily-reset-timezone",
		Usage:   "IANA timezone defining the daily challenge day boundary",
		Value:   "America/New_York",
		EnvVars: []string{"DAILY_RESET_TIMEZONE"},
	}
	// CorsOriginFlag defines the origins admitted by the gateway.
	CorsOriginFlag = &cli.StringFlag{
		Name:    "cors-origin",
		Usage:   "Comma separated list of origins allowed to call the gateway. * admits any origin",
		Value:   "*",
		EnvVars: []string{"CORS_ORIGIN"},
	}
	// GoogleClientIDFlag defines the OAuth audience accepted by the identity
	// verification hook.
	GoogleClientIDFlag = &cli.StringFlag{
		Name:    "oauth-google-client-id",
		Usage:   "OAuth client id accepted by the identity verification hook",
		EnvVars: []string{"OAUTH_GOOGLE_CLIENT_ID"},
	}
	// DevFlag runs the node with an ephemeral auth secret.
	DevFlag = &cli.BoolFlag{
		Name:  "dev",
		Usage: "Run with a random auth secret. Sessions do not survive a restart",
	}
	// EnableTracingFlag defines a flag to enable request tracing.
	EnableTracingFlag = &cli.BoolFlag{
		Name:  "enable-tracing",
		Usage: "Enable request tracing.",
	}
	// TracingProcessNameFlag defines a flag to specify a process name.
	TracingProcessNameFlag = &cli.StringFlag{
		Name:  "tracing-process-name",
		Usage: "The name to apply to tracing tag \"process_name\"",
	}
	// TracingEndpointFlag flag defines the http endpoint for serving traces to Jaeger.
	TracingEndpointFlag = &cli.StringFlag{
		Name:  "tracing-endpoint",
		Usage: "Tracing endpoint defines where game traces are exposed to Jaeger.",
		Value: "http://127.0.0.1:14268/api/traces",
	}
	// TraceSampleFractionFlag defines a flag to indicate what fraction of
	// requests are sampled for tracing.
	TraceSampleFractionFlag = &cli.Float64Flag{
		Name:  "trace-sample-fraction",
		Usage: "Indicate what fraction of requests are sampled for tracing.",
		Value: 0.20,
	}
	// MonitoringHostFlag defines the host used by the prometheus service.
	MonitoringHostFlag = &cli.StringFlag{
		Name:  "monitoring-host",
		Usage: "Host used for listening and responding metrics for prometheus.",
		Value: "127.0.0.1",
	}
	// MonitoringPortFlag defines the port used by the prometheus service.
	MonitoringPortFlag = &cli.IntFlag{
		Name:  "monitoring-port",
		Usage: "Port used to listening and respond metrics for prometheus.",
		Value: 8080,
	}
	// DisableMonitoringFlag defines a flag to disable the metrics collection.
	DisableMonitoringFlag = &cli.BoolFlag{
		Name:  "disable-monitoring",
		Usage: "Disable monitoring service.",
	}
	// ClearDB removes any previously stored data at the data directory.
	ClearDB = &cli.BoolFlag{
		Name:  "clear-db",
		Usage: "Clear any previously stored data at the data directory",
	}
	// LogFormat specifies the log output format.
	LogFormat = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Specify log formatting. Supports: text, json, fluentd.",
		Value: "text",
	}
	// LogFileName specifies the log output file name.
	LogFileName = &cli.StringFlag{
		Name:  "log-file",
		Usage: "Specify log file name, relative or absolute",
	}
	// ConfigFileFlag specifies the filepath to load flag values.
	ConfigFileFlag = &cli.StringFlag{
		Name:  "config-file",
		Usage: "The filepath to a yaml file with flag values",
	}
	// GameConfigFileFlag specifies the filepath to load game parameter
	// overrides.
	GameConfigFileFlag = &cli.StringFlag{
		Name:  "game-config-file",
		Usage: "The path to a YAML file with game config values",
	}
)
