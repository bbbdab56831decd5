package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the POS back office
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Redis    RedisConfig    `mapstructure:"redis"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Kitchen  KitchenConfig  `mapstructure:"kitchen"`
	External ExternalConfig `mapstructure:"external"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// RedisConfig holds the catalog cache connection
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// PricingConfig holds the two tax components, in percent of the discounted subtotal
type PricingConfig struct {
	TaxAPercent float64 `mapstructure:"tax_a_percent"`
	TaxBPercent float64 `mapstructure:"tax_b_percent"`
}

type KitchenConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// ExternalConfig points at the promotions and loyalty collaborators
type ExternalConfig struct {
	PromotionsURL string        `mapstructure:"promotions_url"`
	LoyaltyURL    string        `mapstructure:"loyalty_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from a YAML file. Values from a local .env file and
// POS_* environment variables override the file.
func Load(filename string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(filename)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.ttl", "10m")
	v.SetDefault("http.port", 3000)
	v.SetDefault("http.request_timeout", "30s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("pricing.tax_a_percent", 2.5)
	v.SetDefault("pricing.tax_b_percent", 2.5)
	v.SetDefault("kitchen.poll_interval", "15s")
	v.SetDefault("external.timeout", "2s")
}

func (c *Config) validate() error {
	if c.Pricing.TaxAPercent < 0 || c.Pricing.TaxBPercent < 0 {
		return fmt.Errorf("pricing tax percents must not be negative")
	}
	if c.External.Timeout <= 0 {
		return fmt.Errorf("external.timeout must be positive")
	}
	if c.Kitchen.PollInterval <= 0 {
		return fmt.Errorf("kitchen.poll_interval must be positive")
	}
	return nil
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}
