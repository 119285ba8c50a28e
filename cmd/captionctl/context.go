package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/captionkit"
	"github.com/ambiyansyah-risyal/captionkit/internal/config"
	"github.com/ambiyansyah-risyal/captionkit/store/redisstore"
	"github.com/ambiyansyah-risyal/captionkit/store/sqlitestore"
)

type rootFlags struct {
	envFile string
	apiURL  string
	json    bool
	noCache bool
}

type commandContext struct {
	flags *rootFlags

	once    sync.Once
	config  *config.Config
	service *captionkit.CaptionService
	logger  zerolog.Logger
	closers []func() error
	err     error
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags, logger: zerolog.Nop()}
}

func (c *commandContext) ensureService(cmd *cobra.Command) (*captionkit.CaptionService, error) {
	c.once.Do(func() {
		var files []string
		if f := strings.TrimSpace(c.flags.envFile); f != "" {
			files = append(files, f)
		}
		cfg, err := config.Load(files...)
		if err != nil {
			c.err = err
			return
		}
		if c.flags.apiURL != "" {
			cfg.APIURL = c.flags.apiURL
		}
		c.config = cfg

		c.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: !isTerminal(cmd.ErrOrStderr())}).
			Level(cfg.Level()).
			With().Timestamp().Logger()

		store, err := c.openStore(cmd, cfg)
		if err != nil {
			c.err = err
			return
		}

		opts := append(cfg.ClientOptions(),
			captionkit.WithStore(store),
			captionkit.WithLogger(captionkit.NewZerologLogger(c.logger)),
			captionkit.WithUserAgent("captionctl/"+captionkit.Version),
		)
		if cfg.Level() <= zerolog.DebugLevel {
			opts = append(opts, captionkit.WithDebug())
		}

		client := captionkit.New(opts...)
		if err := client.ValidationError(); err != nil {
			c.err = err
			return
		}
		c.service = captionkit.NewCaptionService(client)
		c.service.SetToken(cfg.Token)
	})
	return c.service, c.err
}

func (c *commandContext) openStore(cmd *cobra.Command, cfg *config.Config) (captionkit.Store, error) {
	switch {
	case cfg.CacheDB != "":
		store, err := sqlitestore.Open(cmd.Context(), cfg.CacheDB)
		if err != nil {
			return nil, fmt.Errorf("open cache database: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		c.logger.Debug().Str("path", cfg.CacheDB).Msg("using sqlite response cache")
		return store, nil
	case cfg.RedisURL != "":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse CAPTION_REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		c.closers = append(c.closers, rdb.Close)
		c.logger.Debug().Str("addr", opts.Addr).Msg("using redis response cache")
		return redisstore.New(rdb, redisstore.WithPrefix(cfg.RedisPrefix)), nil
	default:
		return captionkit.NewInMemoryCache(), nil
	}
}

func (c *commandContext) close() error {
	var errs []error
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	c.closers = nil
	return errors.Join(errs...)
}

// requestOptions returns the per-call options implied by global flags.
func (c *commandContext) requestOptions() []captionkit.RequestOption {
	if c.flags.noCache {
		return []captionkit.RequestOption{captionkit.WithoutCache()}
	}
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
