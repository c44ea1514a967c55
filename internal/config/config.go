package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" envDefault:"10240"`

	MongoURI string `env:"MONGODB_URI,required,notEmpty"`
	MongoDB  string `env:"MONGODB_DB" envDefault:"natours"`

	JWTSecret     string        `env:"JWT_SECRET,required,notEmpty"`
	JWTExpiresIn  time.Duration `env:"JWT_EXPIRES_IN" envDefault:"72h"`
	JWTCookieName string        `env:"JWT_COOKIE_NAME" envDefault:"jwt"`
	CookieSecure  bool          `env:"COOKIE_SECURE" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	RateLimitPerHour int `env:"RATE_LIMIT_PER_HOUR" envDefault:"100"`

	RecomputeMaxRetries uint64        `env:"RECOMPUTE_MAX_RETRIES" envDefault:"3"`
	RecomputeTimeout    time.Duration `env:"RECOMPUTE_TIMEOUT" envDefault:"5s"`
}

/*
Load reads an optional .env file from the working directory and then parses
the process environment into a Config.

Values already present in the environment win over the ones in .env.
*/
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.RateLimitPerHour < 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_PER_HOUR must not be negative, got %d", cfg.RateLimitPerHour)
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", cfg.MaxBodyBytes)
	}

	return cfg, nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DatabaseConfig is the subset the maintenance commands under cmd/ need.
type DatabaseConfig struct {
	MongoURI string `env:"MONGODB_URI,required,notEmpty"`
	MongoDB  string `env:"MONGODB_DB" envDefault:"natours"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	SuperuserName     string `env:"SUPERUSER_NAME" envDefault:"Admin"`
	SuperuserEmail    string `env:"SUPERUSER_EMAIL" envDefault:"admin@natours.io"`
	SuperuserPassword string `env:"SUPERUSER_PASSWORD"`

	RecomputeMaxRetries uint64        `env:"RECOMPUTE_MAX_RETRIES" envDefault:"3"`
	RecomputeTimeout    time.Duration `env:"RECOMPUTE_TIMEOUT" envDefault:"5s"`
}

func LoadDatabase() (DatabaseConfig, error) {
	_ = godotenv.Load()

	var cfg DatabaseConfig
	if err := env.Parse(&cfg); err != nil {
		return DatabaseConfig{}, fmt.Errorf("parse database config: %w", err)
	}
	return cfg, nil
}
