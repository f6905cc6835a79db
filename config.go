package pdfquiz

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/securecookie"
	"github.com/joho/godotenv"
)

// Backend names accepted by CACHE_BACKEND
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the server configuration read from the environment
type Config struct {
	Port          string        `env:"PORT" envDefault:"8180"`
	Environment   string        `env:"APP_ENV" envDefault:"development"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"2h"`
	Backend       string        `env:"CACHE_BACKEND" envDefault:"memory"`
	SQLitePath    string        `env:"CACHE_SQLITE_PATH" envDefault:"./quizcache.db"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`
	SessionSecret string        `env:"SESSION_SECRET"`
	SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"false"`

	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIModel      string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	QuizBackendURL   string `env:"QUIZ_BACKEND_URL"`
	MaxPDFPages      int    `env:"MAX_PDF_PAGES" envDefault:"8"`
	GenerationLogDir string `env:"GENERATION_LOG_DIR"`

	Verbose bool `env:"VERBOSE" envDefault:"false"`
}

// LoadConfig reads .env (when present) and then the environment
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env parsing cannot
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Backend)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.CacheTTL)
	}
	if c.MaxPDFPages <= 0 {
		return fmt.Errorf("max PDF pages must be positive, got %d", c.MaxPDFPages)
	}
	return nil
}

// Production reports whether the server runs in a production-like environment
func (c *Config) Production() bool {
	return c.Environment == "production"
}

// CookieSecure reports whether the session cookie must only travel over HTTPS
func (c *Config) CookieSecure() bool {
	return c.SecureCookies || c.Production()
}

// SessionKey returns the cookie signing key. Without SESSION_SECRET a random
// key is generated, so cookies do not survive a restart.
func (c *Config) SessionKey() []byte {
	if c.SessionSecret != "" {
		return []byte(c.SessionSecret)
	}
	return securecookie.GenerateRandomKey(32)
}

// OpenBackend opens the configured cache backend
func (c *Config) OpenBackend() (Backend, error) {
	switch c.Backend {
	case BackendSQLite:
		return OpenSQLiteBackend(c.SQLitePath)
	case BackendRedis:
		return NewRedisBackend(c.RedisAddr, c.RedisPassword, c.RedisDB), nil
	default:
		return NewMemoryBackend(c.SweepInterval), nil
	}
}

// Generator returns the configured quiz generator, or nil when neither an
// external backend nor an OpenAI key is set.
func (c *Config) Generator() Generator {
	switch {
	case c.QuizBackendURL != "":
		return NewBackendClient(c.QuizBackendURL, nil)
	case c.OpenAIAPIKey != "":
		g := NewOpenAIGenerator(c.OpenAIAPIKey, c.OpenAIModel)
		g.MaxPages = c.MaxPDFPages
		g.LogDir = c.GenerationLogDir
		return g
	default:
		return nil
	}
}

// Explainer returns the wrong-answer explainer, or nil without an OpenAI key
func (c *Config) Explainer() Explainer {
	if c.OpenAIAPIKey == "" {
		return nil
	}
	return NewOpenAIGenerator(c.OpenAIAPIKey, c.OpenAIModel)
}
