package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/consertja/consertja/internal/logger"
	"github.com/consertja/consertja/internal/realtime"
)

var (
	log      = logger.New("config")
	validate = validator.New()
)

// Config holds every setting read from the environment
type Config struct {
	Env      string `env:"ENV,default=development" validate:"oneof=development production test"`
	Port     int    `env:"PORT,default=8080" validate:"min=1,max=65535"`
	LogLevel string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn warning error"`
	LogFile  string `env:"LOG_FILE,default=server.log"`

	JWTSecret      string `env:"JWT_SECRET"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`

	DBType      string `env:"DB_TYPE,default=postgres" validate:"oneof=postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST"`
	DBPort      string `env:"DB_PORT,default=5432"`
	DBName      string `env:"DB_NAME"`
	DBUser      string `env:"DB_USER"`
	DBPassword  string `env:"DB_PASSWORD"`
	AutoMigrate bool   `env:"AUTO_MIGRATE,default=false"`

	ChangeFeed    string `env:"CHANGE_FEED,default=postgres" validate:"oneof=postgres redis"`
	NotifyChannel string `env:"NOTIFY_CHANNEL,default=mensagem_changes" validate:"required"`
	RedisURL      string `env:"REDIS_URL,default=redis://localhost:6379/0"`
	RedisChannel  string `env:"REDIS_CHANNEL,default=consertja:mensagem"`
	RedisRelay    bool   `env:"REDIS_RELAY,default=false"`

	PollInterval time.Duration `env:"FEED_POLL_INTERVAL,default=20s" validate:"gt=0"`
	SessionPath  string        `env:"SESSION_PATH,default=.consertja/session"`
}

// Load reads .env (when present) and the environment into a Config
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug(".env file not found, using environment variables")
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// DSN returns DATABASE_URL, or builds one from the individual DB_* variables
func (c *Config) DSN() (string, error) {
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}
	if c.DBHost == "" || c.DBName == "" || c.DBUser == "" {
		return "", fmt.Errorf("database connection details missing: set DATABASE_URL or individual DB_* variables")
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName), nil
}

// Origins splits ALLOWED_ORIGINS on commas
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// FeedOptions returns the change feed settings for the given DSN
func (c *Config) FeedOptions(dsn string) realtime.FeedOptions {
	return realtime.FeedOptions{
		Kind:          c.ChangeFeed,
		DSN:           dsn,
		NotifyChannel: c.NotifyChannel,
		RedisURL:      c.RedisURL,
		RedisChannel:  c.RedisChannel,
		Relay:         c.RedisRelay,
	}
}
