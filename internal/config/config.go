// Package config reads captionctl settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ambiyansyah-risyal/captionkit"
)

// Config holds everything the CLI needs to build a client.
type Config struct {
	APIURL      string        `env:"API_URL" envDefault:"http://localhost:8000"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`
	Retries     int           `env:"RETRIES" envDefault:"3"`
	RetryDelay  time.Duration `env:"RETRY_DELAY" envDefault:"1s"`
	CacheDB     string        `env:"CACHE_DB"`
	RedisURL    string        `env:"REDIS_URL"`
	RedisPrefix string        `env:"REDIS_PREFIX" envDefault:"captionkit"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"warn"`
	Lang        string        `env:"LANG" envDefault:"en"`
	Token       string        `env:"TOKEN"`
}

// Prefix is prepended to every variable name.
const Prefix = "CAPTION_"

// Load reads the optional dotenv files, then the environment. Variables
// already set in the environment win over dotenv values.
func Load(dotenv ...string) (*Config, error) {
	if err := loadDotenv(dotenv); err != nil {
		return nil, err
	}

	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: Prefix})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotenv loads the named files, skipping ones that don't exist.
// With no names it tries ".env".
func loadDotenv(files []string) error {
	explicit := len(files) > 0
	if !explicit {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if !explicit {
				continue
			}
			return fmt.Errorf("config: loading %s: %w", f, err)
		}
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if u, err := url.Parse(c.APIURL); err != nil || !u.IsAbs() {
		problems = append(problems, fmt.Sprintf("CAPTION_API_URL %q is not an absolute URL", c.APIURL))
	}
	if c.Timeout <= 0 {
		problems = append(problems, "CAPTION_TIMEOUT must be positive")
	}
	if c.Retries < 0 {
		problems = append(problems, "CAPTION_RETRIES must be non-negative")
	}
	if c.RetryDelay < 0 {
		problems = append(problems, "CAPTION_RETRY_DELAY must be non-negative")
	}
	if c.CacheDB != "" && c.RedisURL != "" {
		problems = append(problems, "set only one of CAPTION_CACHE_DB and CAPTION_REDIS_URL")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		problems = append(problems, fmt.Sprintf("CAPTION_LOG_LEVEL %q is not a log level", c.LogLevel))
	}

	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Level returns the configured zerolog level.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.WarnLevel
	}
	return lvl
}

// ClientOptions translates the configuration into client options. The
// response store is chosen by the caller.
func (c *Config) ClientOptions() []captionkit.Option {
	return []captionkit.Option{
		captionkit.WithBaseURL(c.APIURL),
		captionkit.WithTimeout(c.Timeout),
		captionkit.WithMaxRetries(c.Retries),
		captionkit.WithRetryDelay(c.RetryDelay),
		captionkit.WithMessages(captionkit.MessagesFor(c.Lang)),
	}
}
