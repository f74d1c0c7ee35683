package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Redis   RedisConfig
	NATS    NATSConfig
	JWT     JWTConfig
	Gate    GateConfig
	Billing BillingConfig
	Vendors VendorsConfig
	CORS    CORSConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig is optional: an empty URL disables event publishing entirely.
type NATSConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
	Issuer string
}

// GateConfig carries the free-tier and subscription-gate constants.
type GateConfig struct {
	FreeLimit   int
	GracePeriod time.Duration
	UsagePeriod time.Duration
	ProCacheTTL time.Duration
}

type BillingConfig struct {
	PaddleAPIKey        string
	PaddleWebhookSecret string
	PaddleEnvironment   string
	ProPriceID          string
	SuccessURL          string
	WebhookRatePerMin   int
}

type VendorsConfig struct {
	Groq        GroqConfig
	HuggingFace HuggingFaceConfig
	Segmind     SegmindConfig
	Timeout     time.Duration
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type HuggingFaceConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type SegmindConfig struct {
	APIKey  string
	BaseURL string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),

			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			Secret: k.String("jwt.secret"),
			Issuer: k.String("jwt.issuer"),
		},
		Gate: GateConfig{
			FreeLimit: k.Int("gate.free.limit"),
		},
		Billing: BillingConfig{
			PaddleAPIKey:        k.String("paddle.api.key"),
			PaddleWebhookSecret: k.String("paddle.webhook.secret"),
			PaddleEnvironment:   k.String("paddle.environment"),
			ProPriceID:          k.String("paddle.pro.price.id"),
			SuccessURL:          k.String("billing.success.url"),
			WebhookRatePerMin:   k.Int("billing.webhook.rate.per.min"),
		},
		Vendors: VendorsConfig{
			Groq: GroqConfig{
				APIKey:  k.String("groq.api.key"),
				BaseURL: k.String("groq.base.url"),
				Model:   k.String("groq.model"),
			},
			HuggingFace: HuggingFaceConfig{
				APIKey:  k.String("huggingface.api.key"),
				BaseURL: k.String("huggingface.base.url"),
				Model:   k.String("huggingface.model"),
			},
			Segmind: SegmindConfig{
				APIKey:  k.String("segmind.api.key"),
				BaseURL: k.String("segmind.base.url"),
			},
		},
		CORS: CORSConfig{
			AllowedOrigins: k.Strings("cors.allowed.origins"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "promptforge"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "promptforge"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "promptforge-identity"
	}
	if cfg.Gate.FreeLimit == 0 {
		cfg.Gate.FreeLimit = 5
	}
	if cfg.Billing.PaddleEnvironment == "" {
		cfg.Billing.PaddleEnvironment = "production"
	}
	if cfg.Billing.WebhookRatePerMin == 0 {
		cfg.Billing.WebhookRatePerMin = 120
	}
	if cfg.Vendors.Groq.BaseURL == "" {
		cfg.Vendors.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Vendors.Groq.Model == "" {
		cfg.Vendors.Groq.Model = "llama-3.3-70b-versatile"
	}
	if cfg.Vendors.HuggingFace.BaseURL == "" {
		cfg.Vendors.HuggingFace.BaseURL = "https://api-inference.huggingface.co"
	}
	if cfg.Vendors.HuggingFace.Model == "" {
		cfg.Vendors.HuggingFace.Model = "runwayml/stable-diffusion-v1-5"
	}
	if cfg.Vendors.Segmind.BaseURL == "" {
		cfg.Vendors.Segmind.BaseURL = "https://api.segmind.com/v1/luma-txt-2-video"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.Gate.GracePeriod, err = parseDuration(k, "gate.grace.period", "24h")
	if err != nil {
		return nil, err
	}
	cfg.Gate.UsagePeriod, err = parseDuration(k, "gate.usage.period", "720h")
	if err != nil {
		return nil, err
	}
	cfg.Gate.ProCacheTTL, err = parseDuration(k, "gate.pro.cache.ttl", "60s")
	if err != nil {
		return nil, err
	}
	cfg.Vendors.Timeout, err = parseDuration(k, "vendors.timeout", "120s")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(k *koanf.Koanf, key, fallback string) (time.Duration, error) {
	raw := k.String(key)
	if raw == "" {
		raw = fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}
