package config

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration values
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Identity   IdentityConfig
	Storage    StorageConfig
	Gateway    GatewayConfig
	Onboarding OnboardingConfig
	Security   SecurityConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string `env:"SERVER_PORT" envDefault:"8080"`
	Env  string `env:"SERVER_ENV" envDefault:"development"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName   string `env:"DB_NAME" envDefault:"memberhub"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	MaxOpenConns int  `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns int  `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	AutoMigrate  bool `env:"DB_AUTO_MIGRATE" envDefault:"false"`
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
}

// IdentityConfig points at the hosted identity service
type IdentityConfig struct {
	JWTSecret   string        `env:"IDENTITY_JWT_SECRET" envDefault:"change-this-in-production"`
	Audience    string        `env:"IDENTITY_JWT_AUDIENCE" envDefault:"authenticated"`
	AdminURL    string        `env:"IDENTITY_ADMIN_URL" envDefault:"http://localhost:9999"`
	ServiceKey  string        `env:"IDENTITY_SERVICE_KEY"`
	HTTPTimeout time.Duration `env:"IDENTITY_HTTP_TIMEOUT" envDefault:"10s"`
}

// StorageConfig holds blob storage settings
type StorageConfig struct {
	BaseURL     string        `env:"STORAGE_BASE_URL" envDefault:"http://localhost:5000/storage/v1"`
	PublicURL   string        `env:"STORAGE_PUBLIC_URL" envDefault:"http://localhost:5000/storage/v1/object/public"`
	Bucket      string        `env:"STORAGE_BUCKET" envDefault:"onboarding"`
	ServiceKey  string        `env:"STORAGE_SERVICE_KEY"`
	HTTPTimeout time.Duration `env:"STORAGE_HTTP_TIMEOUT" envDefault:"60s"`
}

// GatewayConfig holds payment gateway settings
type GatewayConfig struct {
	BaseURL      string        `env:"GATEWAY_BASE_URL" envDefault:"https://sandbox.asaas.com/api/v3"`
	APIKey       string        `env:"GATEWAY_API_KEY"`
	PollInterval time.Duration `env:"GATEWAY_POLL_INTERVAL" envDefault:"10s"`
	HTTPTimeout  time.Duration `env:"GATEWAY_HTTP_TIMEOUT" envDefault:"15s"`
	BoletoDueIn  time.Duration `env:"GATEWAY_BOLETO_DUE_IN" envDefault:"72h"`
}

// OnboardingConfig holds workflow parameters
type OnboardingConfig struct {
	ChargeAmount     string `env:"ONBOARDING_CHARGE_AMOUNT" envDefault:"39.90"`
	MaxDocumentBytes int64  `env:"ONBOARDING_MAX_DOCUMENT_BYTES" envDefault:"5242880"`
	WatermarkPath    string `env:"ONBOARDING_WATERMARK_PATH" envDefault:"assets/watermark.png"`
	Organization     string `env:"ONBOARDING_ORGANIZATION" envDefault:"Associação de Membros"`
}

// SecurityConfig holds security encryption keys
type SecurityConfig struct {
	SessionEncryptionKey string        `env:"SESSION_ENCRYPTION_KEY" envDefault:"0000000000000000000000000000000000000000000000000000000000000000"` // 32-bytes hex string
	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"12h"`
}

var parseEnv = env.Parse

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := parseEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
