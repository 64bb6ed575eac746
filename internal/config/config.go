package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	GRPC     GRPCConfig
	Log      LogConfig
	Payment  PaymentConfig
	Agent    AgentConfig
	Dialogue DialogueConfig
	Catalog  CatalogConfig
	Storage  StorageConfig
	Redis    RedisConfig
	MySQL    MySQLConfig
	AMQP     AMQPConfig
}

type AppConfig struct {
	Name string
	Env  string
}

type HTTPConfig struct {
	Port string
}

type GRPCConfig struct {
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

type PaymentConfig struct {
	SuccessRate float64 // probability a simulated charge succeeds
}

type AgentConfig struct {
	MaxPaymentAttempts int
	SearchK            int
}

// OfferConfig is one row of the dialogue discount table.
type OfferConfig struct {
	Code   string
	Label  string
	Amount decimal.Decimal
}

type DialogueConfig struct {
	MaxPaymentAttempts int
	Offers             []OfferConfig
}

type CatalogConfig struct {
	Embedder   string // none, hash
	Dimensions int
}

type StorageConfig struct {
	Ledger string // memory, redis
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MySQLConfig configures the order log. An empty DSN keeps orders in memory.
type MySQLConfig struct {
	DSN          string
	MaxOpenConns int
}

// AMQPConfig configures action publishing. An empty URL disables it.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// Load loads configuration from .env, config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with SHOPASSIST_ prefix (e.g., SHOPASSIST_HTTP_PORT)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/shopassist")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("SHOPASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	offers, err := parseOffers(v.GetStringSlice("dialogue.offers"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		HTTP: HTTPConfig{Port: v.GetString("http.port")},
		GRPC: GRPCConfig{Port: v.GetString("grpc.port")},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Payment: PaymentConfig{SuccessRate: v.GetFloat64("payment.success_rate")},
		Agent: AgentConfig{
			MaxPaymentAttempts: v.GetInt("agent.max_payment_attempts"),
			SearchK:            v.GetInt("agent.search_k"),
		},
		Dialogue: DialogueConfig{
			MaxPaymentAttempts: v.GetInt("dialogue.max_payment_attempts"),
			Offers:             offers,
		},
		Catalog: CatalogConfig{
			Embedder:   strings.ToLower(v.GetString("catalog.embedder")),
			Dimensions: v.GetInt("catalog.dimensions"),
		},
		Storage: StorageConfig{Ledger: strings.ToLower(v.GetString("storage.ledger"))},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		MySQL: MySQLConfig{
			DSN:          v.GetString("mysql.dsn"),
			MaxOpenConns: v.GetInt("mysql.max_open_conns"),
		},
		AMQP: AMQPConfig{
			URL:      v.GetString("amqp.url"),
			Exchange: v.GetString("amqp.exchange"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "shopassist")
	v.SetDefault("app.env", "development")
	v.SetDefault("http.port", "8080")
	v.SetDefault("grpc.port", "50051")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("payment.success_rate", 0.7)
	v.SetDefault("agent.max_payment_attempts", 2)
	v.SetDefault("agent.search_k", 3)
	v.SetDefault("dialogue.max_payment_attempts", 2)
	v.SetDefault("dialogue.offers", []string{"1:HDFC Bank:300", "2:ICICI Bank:250", "3:SBI Bank:200"})
	v.SetDefault("catalog.embedder", "hash")
	v.SetDefault("catalog.dimensions", 256)
	v.SetDefault("storage.ledger", "memory")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("amqp.exchange", "shopassist.events")
}

// parseOffers reads "code:label:amount" entries.
func parseOffers(raw []string) ([]OfferConfig, error) {
	offers := make([]OfferConfig, 0, len(raw))
	for _, entry := range raw {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid offer %q: want code:label:amount", entry)
		}
		amount, err := decimal.NewFromString(parts[2])
		if err != nil {
			return nil, fmt.Errorf("invalid offer amount %q: %w", entry, err)
		}
		offers = append(offers, OfferConfig{Code: parts[0], Label: parts[1], Amount: amount})
	}
	return offers, nil
}

func (c *Config) validate() error {
	if c.Payment.SuccessRate < 0 || c.Payment.SuccessRate > 1 {
		return fmt.Errorf("payment.success_rate must be within [0,1], got %v", c.Payment.SuccessRate)
	}
	if c.Agent.MaxPaymentAttempts < 1 || c.Dialogue.MaxPaymentAttempts < 1 {
		return errors.New("max_payment_attempts must be at least 1")
	}
	if c.Agent.SearchK < 1 {
		return errors.New("agent.search_k must be at least 1")
	}
	switch c.Storage.Ledger {
	case "memory", "redis":
	default:
		return fmt.Errorf("storage.ledger must be memory or redis, got %q", c.Storage.Ledger)
	}
	switch c.Catalog.Embedder {
	case "none", "hash":
	default:
		return fmt.Errorf("catalog.embedder must be none or hash, got %q", c.Catalog.Embedder)
	}
	if c.Catalog.Embedder == "hash" && c.Catalog.Dimensions < 8 {
		return errors.New("catalog.dimensions must be at least 8")
	}
	return nil
}

// IsProduction reports whether the app runs in production mode
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
