package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Store    StoreConfig
	DB       DBConfig
	Mongo    MongoConfig
	HTTP     HTTPConfig
	Auth     AuthConfig
	Telegram TelegramConfig
	Queue    QueueConfig
	App      AppConfig
}

type StoreConfig struct {
	Driver      string // memory, sqlite, postgres or mongo
	SQLitePath  string
	AutoMigrate bool
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// URL is the pgx connection string.
func (c DBConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

type MongoConfig struct {
	URI      string
	Database string
}

type HTTPConfig struct {
	Addr string // "off" disables the API
}

type AuthConfig struct {
	JWTSecret string
	JWTTTL    time.Duration
}

type TelegramConfig struct {
	Token string // empty disables the bot
}

type QueueConfig struct {
	RabbitMQURL string // empty uses the in-process broker
	MaxRetries  int
	RetryDelay  time.Duration
}

type AppConfig struct {
	Env         string
	LogLevel    string
	TenantsFile string
	Timezone    string
	NodeID      int64
}

func (c AppConfig) Development() bool {
	return strings.EqualFold(c.Env, "development")
}

// Location resolves Timezone; bills are dated in it.
func (c AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Store: StoreConfig{
			Driver:      strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
			SQLitePath:  getEnv("SQLITE_PATH", "billing.db"),
			AutoMigrate: getBool("AUTO_MIGRATE", false),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "billing"),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "billing"),
		},
		HTTP: HTTPConfig{
			Addr: httpAddr(getEnv("HTTP_ADDR", ":8080")),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTTTL:    getDuration("JWT_TTL", 12*time.Hour),
		},
		Telegram: TelegramConfig{
			Token: getEnv("TOKEN", ""),
		},
		Queue: QueueConfig{
			RabbitMQURL: getEnv("RABBITMQ_URL", ""),
			MaxRetries:  getInt("RABBITMQ_MAX_RETRIES", 3),
			RetryDelay:  getDuration("RABBITMQ_RETRY_DELAY", 2*time.Second),
		},
		App: AppConfig{
			Env:         getEnv("ENV", "production"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			TenantsFile: getEnv("TENANTS_FILE", ""),
			Timezone:    getEnv("TIMEZONE", "Asia/Kolkata"),
			NodeID:      int64(getInt("NODE_ID", 1)),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres", "mongo":
	default:
		return fmt.Errorf("STORE_DRIVER: unknown driver %q", c.Store.Driver)
	}
	if c.HTTP.Addr != "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when HTTP_ADDR is set")
	}
	if c.App.NodeID < 0 || c.App.NodeID > 1023 {
		return fmt.Errorf("NODE_ID must be between 0 and 1023")
	}
	return nil
}

func httpAddr(v string) string {
	if strings.EqualFold(v, "off") {
		return ""
	}
	return v
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return n
	}
	return def
}

// getBool accepts 1/true/yes, as AUTO_MIGRATE always has.
func getBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "":
		return def
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func getDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key))); err == nil {
		return d
	}
	return def
}
