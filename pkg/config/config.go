// Package config loads the gateway configuration from the environment.
//
// Values come from environment variables, optionally seeded from a .env file.
// Every field has a default except RENDERER_BASE_URL.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Cache backends.
const (
	BackendDisk   = "disk"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type (
	// Config is the complete gateway configuration.
	Config struct {
		Port      string    `env:"PORT" envDefault:"8080" validate:"required,numeric"`
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Log       Log       `envPrefix:"LOG_"`
		Cache     Cache     `envPrefix:"CACHE_"`
		Redis     Redis     `envPrefix:"REDIS_"`
		Lookup    Lookup    `envPrefix:"LOOKUP_"`
		Renderer  Renderer  `envPrefix:"RENDERER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
	}

	HTTP struct {
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s" validate:"gt=0"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s" validate:"gt=0"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s" validate:"gt=0"`
	}

	Log struct {
		Level  string `env:"LEVEL" envDefault:"info" validate:"oneof=debug info warn warning error"`
		Pretty bool   `env:"PRETTY" envDefault:"false"`
	}

	Cache struct {
		Backend       string        `env:"BACKEND" envDefault:"disk" validate:"oneof=disk redis memory"`
		Dir           string        `env:"DIR" envDefault:"diskcache" validate:"required"`
		TTL           time.Duration `env:"TTL" envDefault:"1h" validate:"gt=0"`
		MaxSize       int64         `env:"MAX_SIZE" envDefault:"1000000000" validate:"gte=0"`
		RenderTimeout time.Duration `env:"RENDER_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	}

	Redis struct {
		Addr     string `env:"ADDR" envDefault:"localhost:6379" validate:"required,hostname_port"`
		Password string `env:"PASSWORD"`
		DB       int    `env:"DB" envDefault:"0" validate:"gte=0,lte=15"`
	}

	Lookup struct {
		BaseURL    string        `env:"BASE_URL" envDefault:"https://xivapi.com" validate:"required,url"`
		PrivateKey string        `env:"PRIVATE_KEY"`
		Retries    int           `env:"RETRIES" envDefault:"1"`
		Timeout    time.Duration `env:"TIMEOUT" envDefault:"10s" validate:"gt=0"`
	}

	Renderer struct {
		BaseURL     string        `env:"BASE_URL" validate:"required,url"`
		Timeout     time.Duration `env:"TIMEOUT" envDefault:"60s" validate:"gt=0"`
		InitTimeout time.Duration `env:"INIT_TIMEOUT" envDefault:"20s" validate:"gt=0"`
	}

	Telemetry struct {
		Enabled      bool   `env:"ENABLED" envDefault:"false"`
		ServiceName  string `env:"SERVICE_NAME" envDefault:"card-gateway" validate:"required"`
		OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:"localhost:4317" validate:"required_if=Enabled true"`
		Insecure     bool   `env:"INSECURE" envDefault:"true"`
	}
)

// Load reads the configuration. Files are loaded into the environment first
// (without overriding variables already set); with no files, a missing .env
// in the working directory is ignored.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	// A stuck renderer Init must fail on its own before the render deadline
	// turns it into a render failure.
	if c.Renderer.InitTimeout >= c.Cache.RenderTimeout {
		return fmt.Errorf("invalid configuration: RENDERER_INIT_TIMEOUT (%s) must be below CACHE_RENDER_TIMEOUT (%s)",
			c.Renderer.InitTimeout, c.Cache.RenderTimeout)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}
