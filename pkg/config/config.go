package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/narwhalmedia/simulcast/pkg/logger"
)

// Config is the full configuration of the simulcast service.
type Config struct {
	Service   ServiceConfig             `mapstructure:"service"`
	Database  DatabaseConfig            `mapstructure:"database"`
	Logger    logger.Config             `mapstructure:"logger"`
	Catalog   CatalogConfig             `mapstructure:"catalog"`
	Ingestion IngestionConfig           `mapstructure:"ingestion"`
	Platforms map[string]PlatformConfig `mapstructure:"platforms"`
	Notify    NotifyConfig              `mapstructure:"notify"`
	Archive   ArchiveConfig             `mapstructure:"archive"`
}

// ServiceConfig contains service metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	GRPCPort    int    `mapstructure:"grpc_port"`
}

// DatabaseConfig selects and configures the relational store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file, ":memory:" allowed
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
}

// DSN builds the postgres connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// CatalogConfig tunes the reconciliation engine.
type CatalogConfig struct {
	DefaultCountry     string        `mapstructure:"default_country"`
	SimulcastRangeDays int           `mapstructure:"simulcast_range_days"`
	GroupingWindow     time.Duration `mapstructure:"grouping_window"`
	ReadCacheTTL       time.Duration `mapstructure:"read_cache_ttl"`
	ClassifierBatch    int           `mapstructure:"classifier_batch"`
	// Blacklist holds anime slugs or "<PLATFORM>:<seriesId>" entries that are never ingested.
	Blacklist []string `mapstructure:"blacklist"`
}

// SimulcastRange returns the continuation tolerance as a duration.
func (c CatalogConfig) SimulcastRange() time.Duration {
	return time.Duration(c.SimulcastRangeDays) * 24 * time.Hour
}

// IngestionConfig controls the scheduled fetch job.
type IngestionConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	Workers        int           `mapstructure:"workers"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
	Countries      []string      `mapstructure:"countries"`
}

// PlatformConfig configures one platform feed client.
type PlatformConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotifyConfig selects where grouped episode batches are delivered.
type NotifyConfig struct {
	Backend string      `mapstructure:"backend"` // log, nats or kafka
	NATS    NATSConfig  `mapstructure:"nats"`
	Kafka   KafkaConfig `mapstructure:"kafka"`
}

// NATSConfig configures the JetStream publisher.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	ClientID      string        `mapstructure:"client_id"`
	Subject       string        `mapstructure:"subject"`
	MaxReconnect  int           `mapstructure:"max_reconnect"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// KafkaConfig configures the sarama publisher.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// ArchiveConfig configures the raw payload archive.
type ArchiveConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Prefix   string `mapstructure:"prefix"`
	Endpoint string `mapstructure:"endpoint"`
}

// Load reads configuration from defaults, an optional file and SIMULCAST_* environment
// variables, in increasing order of precedence. An empty path searches the default locations.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("simulcast")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/simulcast")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.Host == "" || c.Database.Database == "" {
			return errors.New("database.host and database.database are required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Catalog.SimulcastRangeDays <= 0 {
		return errors.New("catalog.simulcast_range_days must be positive")
	}
	if c.Catalog.GroupingWindow <= 0 {
		return errors.New("catalog.grouping_window must be positive")
	}
	if c.Ingestion.Workers <= 0 {
		return errors.New("ingestion.workers must be positive")
	}
	if len(c.Ingestion.Countries) == 0 {
		return errors.New("ingestion.countries must not be empty")
	}

	switch c.Notify.Backend {
	case "log":
	case "nats":
		if c.Notify.NATS.URL == "" {
			return errors.New("notify.nats.url is required")
		}
	case "kafka":
		if len(c.Notify.Kafka.Brokers) == 0 || c.Notify.Kafka.Topic == "" {
			return errors.New("notify.kafka.brokers and notify.kafka.topic are required")
		}
	default:
		return fmt.Errorf("unsupported notify backend %q", c.Notify.Backend)
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return errors.New("archive.bucket is required when the archive is enabled")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Service.Environment == "production" || c.Service.Environment == "prod"
}

// Platform returns the configuration of a platform by its lowercase name.
func (c *Config) Platform(name string) (PlatformConfig, bool) {
	p, ok := c.Platforms[name]
	return p, ok
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "simulcast")
	v.SetDefault("service.environment", "development")
	v.SetDefault("service.grpc_port", DefaultGRPCPort)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", DefaultSQLitePath)
	v.SetDefault("database.port", DefaultPostgresPort)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", DefaultMaxConnections)
	v.SetDefault("database.min_connections", DefaultMinConnections)
	v.SetDefault("database.max_conn_lifetime", DefaultMaxConnLifetime)
	v.SetDefault("database.max_conn_idle_time", DefaultMaxConnIdleTime)
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("logger.output_paths", []string{"stdout"})
	v.SetDefault("logger.error_paths", []string{"stderr"})

	v.SetDefault("catalog.default_country", DefaultCountry)
	v.SetDefault("catalog.simulcast_range_days", DefaultSimulcastRange)
	v.SetDefault("catalog.grouping_window", DefaultGroupingWindow)
	v.SetDefault("catalog.read_cache_ttl", DefaultReadCacheTTL)
	v.SetDefault("catalog.classifier_batch", DefaultClassifierBatch)

	v.SetDefault("ingestion.interval", DefaultIngestInterval)
	v.SetDefault("ingestion.workers", DefaultIngestWorkers)
	v.SetDefault("ingestion.fetch_timeout", DefaultFetchTimeout)
	v.SetDefault("ingestion.retry_attempts", DefaultRetryAttempts)
	v.SetDefault("ingestion.retry_base_delay", DefaultRetryBaseDelay)
	v.SetDefault("ingestion.retry_max_delay", DefaultRetryMaxDelay)
	v.SetDefault("ingestion.countries", []string{DefaultCountry})

	for _, name := range []string{"adn", "crunchyroll", "netflix", "disneyplus", "primevideo"} {
		v.SetDefault("platforms."+name+".enabled", false)
		v.SetDefault("platforms."+name+".timeout", DefaultPlatformTimeout)
	}

	v.SetDefault("notify.backend", "log")
	v.SetDefault("notify.nats.url", DefaultNATSURL)
	v.SetDefault("notify.nats.client_id", "simulcast")
	v.SetDefault("notify.nats.subject", DefaultNATSSubject)
	v.SetDefault("notify.nats.max_reconnect", 10)
	v.SetDefault("notify.nats.reconnect_wait", 2*time.Second)
	v.SetDefault("notify.kafka.topic", DefaultKafkaTopic)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("archive.region", "eu-west-3")
}
