package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	CardHashKey string `env:"CARD_HASH_KEY,required,notEmpty"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
	DBLockTimeoutMS    int `env:"DB_LOCK_TIMEOUT_MS" envDefault:"2000"`

	PaylinkBaseURL       string        `env:"PAYLINK_BASE_URL" envDefault:"http://localhost:8080"`
	PaylinkDefaultTTL    time.Duration `env:"PAYLINK_DEFAULT_TTL" envDefault:"30m"`
	PaylinkSweepInterval time.Duration `env:"PAYLINK_SWEEP_INTERVAL" envDefault:"1m"`

	PublicRateLimitRPS   float64 `env:"PUBLIC_RATE_LIMIT_RPS" envDefault:"5"`
	PublicRateLimitBurst int     `env:"PUBLIC_RATE_LIMIT_BURST" envDefault:"10"`

	OperatorTokenTTL time.Duration `env:"OPERATOR_TOKEN_TTL" envDefault:"12h"`
}

func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.DBLockTimeoutMS) * time.Millisecond
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.PaylinkDefaultTTL <= 0 {
		return nil, fmt.Errorf("config.Load: PAYLINK_DEFAULT_TTL must be positive")
	}
	return &cfg, nil
}
