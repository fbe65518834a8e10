package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDev        = "dev"
	EnvProduction = "production"

	// DevJWTSecret is accepted only when ENV=dev and JWT_SECRET is unset.
	DevJWTSecret = "clave_simple_tec_2024"

	MinBcryptCost = 10
)

// ErrMissingJWTSecret is returned when no signing secret is configured outside dev.
var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

type Config struct {
	Env        string `env:"ENV" envDefault:"production"`
	ServerPort int    `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	Database   DatabaseConfig
	Auth       AuthConfig
	Storage    StorageConfig
	MQ         MQConfig
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"tecnm"`
	Password string `env:"DB_PASSWORD" envDefault:"password"`
	DBName   string `env:"DB_NAME" envDefault:"tec_system"`
	UseSSL   bool   `env:"DB_USE_SSL" envDefault:"false"`
}

type AuthConfig struct {
	JWTSecret  string        `env:"JWT_SECRET"`
	TokenTTL   time.Duration `env:"JWT_TTL" envDefault:"24h"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"10"`
}

type StorageConfig struct {
	// Backend is one of "none", "minio" or "gcs".
	Backend string `env:"STORAGE_BACKEND" envDefault:"none"`
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" envDefault:"avatars"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type GCSConfig struct {
	Bucket          string `env:"GCS_BUCKET"`
	ProjectID       string `env:"GCS_PROJECT_ID"`
	CredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
}

type MQConfig struct {
	// Backend is one of "none", "rabbitmq" or "pubsub".
	Backend       string `env:"MQ_BACKEND" envDefault:"none"`
	EventsChannel string `env:"MQ_EVENTS_CHANNEL" envDefault:"auth-events"`
	RabbitMQ      RabbitMQConfig
	PubSub        PubSubConfig
}

type RabbitMQConfig struct {
	URL             string `env:"RABBITMQ_URL"`
	QueueDurable    bool   `env:"RABBITMQ_QUEUE_DURABLE" envDefault:"true"`
	QueueAutoDelete bool   `env:"RABBITMQ_QUEUE_AUTO_DELETE" envDefault:"false"`
	PrefetchCount   int    `env:"RABBITMQ_PREFETCH" envDefault:"0"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"PUBSUB_SUBSCRIPTION_SUFFIX" envDefault:"-sub"`
}

// LoadConfig reads the process environment. In dev a local .env file is
// loaded first.
func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == EnvDev {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error getting env configs: %w", err)
	}

	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Auth.BcryptCost < MinBcryptCost {
		cfg.Auth.BcryptCost = MinBcryptCost
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	return cfg, nil
}

// IsDev reports whether the process runs with the development configuration.
func (c Config) IsDev() bool {
	return c.Env == EnvDev
}

// ResolveJWTSecret returns the configured signing secret. The insecure
// DevJWTSecret literal is only used in dev; usingFallback reports that case.
func (c Config) ResolveJWTSecret() (secret string, usingFallback bool, err error) {
	secret = strings.TrimSpace(c.Auth.JWTSecret)
	if secret != "" {
		return secret, false, nil
	}
	if c.IsDev() {
		return DevJWTSecret, true, nil
	}
	return "", false, ErrMissingJWTSecret
}
