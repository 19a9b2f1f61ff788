package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all agent configuration loaded from environment variables.
type Config struct {
	Server Server
	App    App
	Remote Remote
	Store  Store
	Cache  Cache
	Sync   Sync
}

// Server holds settings for the loopback status API.
type Server struct {
	Host            string        `envconfig:"SERVER_HOST" default:"127.0.0.1"`
	Port            int           `envconfig:"SERVER_PORT" default:"8177"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// App holds application-level settings.
type App struct {
	Name        string `envconfig:"APP_NAME" default:"checkauto-sync-agent"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// Remote holds settings for the CheckAuto backend this agent replays
// queued mutations against.
type Remote struct {
	BaseURL      string        `envconfig:"REMOTE_BASE_URL" default:"http://localhost:8000"`
	Timeout      time.Duration `envconfig:"REMOTE_TIMEOUT" default:"45s"`
	AccessToken  string        `envconfig:"REMOTE_ACCESS_TOKEN" default:""`
	RefreshToken string        `envconfig:"REMOTE_REFRESH_TOKEN" default:""`
}

// Store holds the local durable store settings.
type Store struct {
	Path string `envconfig:"STORE_PATH" default:"./data/checkauto.db"`
}

// Cache holds stage-catalog cache settings.
type Cache struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"`
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"12h"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Sync holds drain/connectivity settings.
type Sync struct {
	ProbeInterval time.Duration `envconfig:"SYNC_PROBE_INTERVAL" default:"30s"`
	ProbePath     string        `envconfig:"SYNC_PROBE_PATH" default:"/api/etapas/"`
	AutoDrain     bool          `envconfig:"SYNC_AUTO_DRAIN" default:"true"`
}

// Address returns the status server address in host:port format.
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *Cache) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *App) IsDevelopment() bool {
	return a.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
