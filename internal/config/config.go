package config

import (
	"fmt"

	pkgconfig "github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/config"
)

// Config holds all configuration for the loyalty engine.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"LOYALTY_HTTP_PORT" envDefault:"8010"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"loyalty"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"loyalty_secret"`
	PostgresDB   string `env:"LOYALTY_DB_NAME" envDefault:"loyalty_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis, used for settlement credit claims
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Upstream services
	OrderServiceURL  string `env:"ORDER_SERVICE_URL" envDefault:"http://localhost:8004"`
	WalletServiceURL string `env:"WALLET_SERVICE_URL" envDefault:"http://localhost:8006"`
	StoreServiceURL  string `env:"STORE_SERVICE_URL" envDefault:"http://localhost:8008"`

	// Shared secret expected on internal and cron endpoints.
	InternalToken string `env:"INTERNAL_AUTH_TOKEN" envDefault:""`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load loyalty config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
