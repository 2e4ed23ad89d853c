package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		Port         string   `env:"PORT" envDefault:"8080"`
		AllowOrigins []string `env:"ALLOW_ORIGINS" envSeparator:","`

		LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

		ServerURL   string `env:"SERVER_URL" envDefault:"http://localhost:8000"`
		RoomCode    string `env:"ROOM_CODE"`
		AccessToken string `env:"ACCESS_TOKEN"`

		ReconnectMaxAttempts int           `env:"RECONNECT_MAX_ATTEMPTS" envDefault:"5"`
		ReconnectBaseDelay   time.Duration `env:"RECONNECT_BASE_DELAY" envDefault:"2s"`
		ReconnectMaxDelay    time.Duration `env:"RECONNECT_MAX_DELAY" envDefault:"30s"`

		SettleDelay        time.Duration `env:"SETTLE_DELAY" envDefault:"100ms"`
		StartDelay         time.Duration `env:"START_DELAY" envDefault:"500ms"`
		AlertTTL           time.Duration `env:"ALERT_TTL" envDefault:"4s"`
		StatusTTL          time.Duration `env:"STATUS_TTL" envDefault:"3s"`
		TimeUpdateInterval time.Duration `env:"TIME_UPDATE_INTERVAL" envDefault:"250ms"`

		PingInterval   time.Duration `env:"PING_INTERVAL" envDefault:"30s"`
		WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
		ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"60s"`
		MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE" envDefault:"65536"`
	}
)

var (
	once sync.Once

	Conf Config
)

// Load reads an optional .env file and then parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

func (c Config) Validate() error {
	if c.RoomCode == "" {
		return errors.New("ROOM_CODE is required")
	}
	if c.ReconnectMaxAttempts < 0 {
		return errors.New("RECONNECT_MAX_ATTEMPTS must not be negative")
	}
	if c.ReconnectBaseDelay <= 0 {
		return errors.New("RECONNECT_BASE_DELAY must be positive")
	}
	if c.ReconnectMaxDelay < c.ReconnectBaseDelay {
		return errors.New("RECONNECT_MAX_DELAY must not be below RECONNECT_BASE_DELAY")
	}
	return nil
}

func load() {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	Conf = c
}

// MustLoad populates Conf once; it panics on invalid configuration.
func MustLoad() Config {
	once.Do(load)
	return Conf
}
