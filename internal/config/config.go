package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Service  *svcConfig
	Dune     *duneConfig
	Database *dbConfig
	Cache    *cacheConfig
	Events   *eventsConfig
	Archive  *archiveConfig
}

type svcConfig struct {
	Address        string   `envconfig:"DUNELINK_ADDRESS" default:":5000"`
	MetricsAddress string   `envconfig:"DUNELINK_METRICS_ADDRESS" default:":8080"`
	LogLevel       string   `envconfig:"DUNELINK_LOG_LEVEL" default:"info" validate:"oneof=debug info warn error dpanic panic fatal"`
	AllowedOrigins []string `envconfig:"DUNELINK_ALLOWED_ORIGINS" default:"*"`
	// LegacyStatus answers every query route with 200 and embeds failures in the body.
	LegacyStatus bool `envconfig:"DUNELINK_LEGACY_STATUS" default:"false"`
}

type duneConfig struct {
	BaseURL         string        `envconfig:"DUNE_BASE_URL" default:"https://api.dune.com/api/v1" validate:"required,url"`
	APIKey          string        `envconfig:"DUNE_API_KEY" default:""`
	RequestTimeout  time.Duration `envconfig:"DUNE_REQUEST_TIMEOUT" default:"300s" validate:"gt=0"`
	PollInterval    time.Duration `envconfig:"DUNE_POLL_INTERVAL" default:"5s" validate:"gt=0"`
	PollJitter      time.Duration `envconfig:"DUNE_POLL_JITTER" default:"0s" validate:"gte=0,ltfield=PollInterval"`
	MaxPollAttempts int           `envconfig:"DUNE_MAX_POLL_ATTEMPTS" default:"60" validate:"gt=0"`
	// MaxWait bounds the whole poll loop by wall clock; zero disables it.
	MaxWait time.Duration `envconfig:"DUNE_MAX_WAIT" default:"0s" validate:"gte=0"`
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"sqlite" validate:"oneof=sqlite pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"dunelink.db"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
	// HistoryRetention drops executions older than this; zero keeps them forever.
	HistoryRetention time.Duration `envconfig:"DUNELINK_HISTORY_RETENTION" default:"720h" validate:"gte=0"`
}

type cacheConfig struct {
	TTL       time.Duration `envconfig:"DUNELINK_CACHE_TTL" default:"0s" validate:"gte=0"`
	RedisAddr string        `envconfig:"DUNELINK_REDIS_ADDR" default:""`
	RedisDB   int           `envconfig:"DUNELINK_REDIS_DB" default:"0"`
}

type eventsConfig struct {
	Brokers []string `envconfig:"DUNELINK_KAFKA_BROKERS" default:""`
	Topic   string   `envconfig:"DUNELINK_KAFKA_TOPIC" default:"dunelink.executions"`
}

type archiveConfig struct {
	Endpoint  string `envconfig:"DUNELINK_ARCHIVE_ENDPOINT" default:""`
	Bucket    string `envconfig:"DUNELINK_ARCHIVE_BUCKET" default:"dunelink-results"`
	AccessKey string `envconfig:"DUNELINK_ARCHIVE_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"DUNELINK_ARCHIVE_SECRET_KEY" default:""`
	UseSSL    bool   `envconfig:"DUNELINK_ARCHIVE_USE_SSL" default:"false"`
}

// New reads the configuration from the environment and validates it.
// Each call returns a fresh value.
func New() (*Config, error) {
	cfg := empty()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewDefault returns the tag defaults overlaid with the environment, without
// validation. Malformed variables are ignored.
func NewDefault() *Config {
	cfg := empty()
	_ = envconfig.Process("", cfg)
	return cfg
}

func empty() *Config {
	return &Config{
		Service:  &svcConfig{},
		Dune:     &duneConfig{},
		Database: &dbConfig{},
		Cache:    &cacheConfig{},
		Events:   &eventsConfig{},
		Archive:  &archiveConfig{},
	}
}

func (c *Config) Validate() error {
	v := validator.New()
	for name, section := range map[string]any{
		"service":  c.Service,
		"dune":     c.Dune,
		"database": c.Database,
		"cache":    c.Cache,
	} {
		if err := v.Struct(section); err != nil {
			return fmt.Errorf("invalid %s configuration: %w", name, err)
		}
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("address=%s metrics=%s dune=%s poll=%s/%d db=%s cache_ttl=%s kafka=%v archive=%q",
		c.Service.Address, c.Service.MetricsAddress, c.Dune.BaseURL, c.Dune.PollInterval,
		c.Dune.MaxPollAttempts, c.Database.Type, c.Cache.TTL, c.Events.Brokers, c.Archive.Endpoint)
}
