package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"prod"`
	ServerPort int    `yaml:"server_port" env:"SERVER_PORT" env-default:"8080"`
	BcryptCost int    `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"12"`

	Database  DatabaseConfig  `yaml:"database"`
	Session   SessionConfig   `yaml:"session"`
	Redis     RedisConfig     `yaml:"redis"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage"`
	MQ        MQConfig        `yaml:"mq"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-default:"shopfront"`
	Password string `yaml:"password" env:"DB_PASSWORD" env-default:"password"`
	DBName   string `yaml:"name" env:"DB_NAME" env-default:"shopfront_db"`
	UseSSL   bool   `yaml:"use_ssl" env:"DB_USE_SSL" env-default:"false"`
}

type SessionConfig struct {
	Secret       string        `yaml:"secret" env:"SESSION_SECRET"`
	TTL          time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"24h"`
	CookieSecure bool          `yaml:"cookie_secure" env:"SESSION_COOKIE_SECURE" env-default:"false"`
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend" env:"SESSION_BACKEND" env-default:"memory"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB          int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	DialTimeout time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute" env:"RATE_LIMIT_PER_MINUTE" env-default:"30"`
	Burst     int `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"10"`
}

type StorageConfig struct {
	// Backend is one of "minio", "gcs", "s3". Empty disables product images.
	Backend string      `yaml:"backend" env:"STORAGE_BACKEND"`
	Minio   MinioConfig `yaml:"minio"`
	GCS     GCSConfig   `yaml:"gcs"`
	S3      S3Config    `yaml:"s3"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"MINIO_BUCKET" env-default:"product-images"`
	UseSSL    bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket" env:"GCS_BUCKET"`
	ProjectID       string `yaml:"project_id" env:"GCS_PROJECT_ID"`
	CredentialsFile string `yaml:"credentials_file" env:"GCS_CREDENTIALS_FILE"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	Region    string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
}

type MQConfig struct {
	// Backend is "rabbitmq" or "pubsub". Empty disables order events.
	Backend       string         `yaml:"backend" env:"MQ_BACKEND"`
	OrdersChannel string         `yaml:"orders_channel" env:"MQ_ORDERS_CHANNEL" env-default:"orders.created"`
	RabbitMQ      RabbitMQConfig `yaml:"rabbitmq"`
	PubSub        PubSubConfig   `yaml:"pubsub"`
}

type RabbitMQConfig struct {
	URL             string `yaml:"url" env:"RABBITMQ_URL"`
	PrefetchCount   int    `yaml:"prefetch_count" env:"RABBITMQ_PREFETCH_COUNT" env-default:"10"`
	QueueDurable    bool   `yaml:"queue_durable" env:"RABBITMQ_QUEUE_DURABLE" env-default:"true"`
	QueueAutoDelete bool   `yaml:"queue_auto_delete" env:"RABBITMQ_QUEUE_AUTO_DELETE" env-default:"false"`
}

type PubSubConfig struct {
	ProjectID          string `yaml:"project_id" env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `yaml:"credentials_file" env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `yaml:"subscription_suffix" env:"PUBSUB_SUBSCRIPTION_SUFFIX" env-default:"-sub"`
}

// LoadConfig reads configuration from CONFIG_PATH (if set) and the environment.
// Environment variables take precedence over the file.
func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	var cfg Config
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	return cfg, nil
}
