package config

import "time"

const (
	// Server ports.
	DefaultGRPCPort = 9090

	// Database defaults.
	DefaultPostgresPort    = 5432
	DefaultMaxConnections  = 25
	DefaultMinConnections  = 5
	DefaultMaxConnLifetime = time.Hour
	DefaultMaxConnIdleTime = 30 * time.Minute
	DefaultSQLitePath      = "simulcast.db"

	// Catalog defaults.
	DefaultCountry         = "FR"
	DefaultSimulcastRange  = 35
	DefaultGroupingWindow  = 2 * time.Hour
	DefaultReadCacheTTL    = 10 * time.Minute
	DefaultClassifierBatch = 500

	// Ingestion defaults.
	DefaultIngestInterval  = 5 * time.Minute
	DefaultIngestWorkers   = 3
	DefaultFetchTimeout    = 60 * time.Second
	DefaultRetryAttempts   = 5
	DefaultRetryBaseDelay  = time.Second
	DefaultRetryMaxDelay   = 10 * time.Second
	DefaultPlatformTimeout = 30 * time.Second

	// Notification defaults.
	DefaultNATSURL     = "nats://localhost:4222"
	DefaultNATSSubject = "simulcast.episodes"
	DefaultKafkaTopic  = "simulcast-episodes"

	// EnvPrefix prefixes every environment override, e.g. SIMULCAST_DATABASE_DRIVER.
	EnvPrefix = "SIMULCAST"
)
