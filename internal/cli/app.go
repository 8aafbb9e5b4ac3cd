package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/todo-client/internal/config"
	"github.com/Sternrassler/todo-client/pkg/client"
	"github.com/Sternrassler/todo-client/pkg/logging"
)

const redisPingTimeout = 3 * time.Second

// app holds what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	flags struct {
		configPath string
		baseURL    string
		logLevel   string
		redisURL   string
		retries    int
		debug      bool
		logFile    string
	}

	cfg    config.Config
	logger zerolog.Logger
	client *client.Client
	redis  *redis.Client
	logOut *os.File
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.flags.retries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", a.flags.retries)
	}

	required := cmd.Flags().Changed("config")
	cfg, err := config.Load(a.flags.configPath, required)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// CLI flags override environment variables and config file
	if a.flags.baseURL != "" {
		cfg.BaseURL = a.flags.baseURL
	}
	if a.flags.logLevel != "" {
		cfg.LogLevel = a.flags.logLevel
	}
	if a.flags.debug {
		cfg.LogLevel = string(logging.LevelDebug)
	}
	if a.flags.redisURL != "" {
		cfg.RedisURL = a.flags.redisURL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	logCfg := cfg.LoggingConfig()
	logCfg.Output = cmd.ErrOrStderr()
	switch {
	case a.flags.logFile != "":
		f, err := os.OpenFile(a.flags.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.logOut = f
		logCfg.Output = f
	case cmd.Name() == "tui":
		// the list view owns the terminal
		logCfg.Output = io.Discard
	}
	logCfg.Pretty = cfg.LogPretty || logging.IsTerminal(logCfg.Output)
	logging.Setup(logCfg)
	a.logger = logging.NewLogger(logging.ComponentCLI)

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return err
	}
	if redisOpts != nil {
		a.redis = redis.NewClient(redisOpts)
		ctx, cancel := context.WithTimeout(cmd.Context(), redisPingTimeout)
		defer cancel()
		if err := a.redis.Ping(ctx).Err(); err != nil {
			_ = a.redis.Close()
			a.redis = nil
			return fmt.Errorf("connect to redis at %s: %w", redisOpts.Addr, err)
		}
		a.logger.Debug().Str("addr", redisOpts.Addr).Msg("Using shared Redis cache")
	}

	c, err := client.New(cfg.ClientConfig(a.redis, &a.logger))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	a.client = c

	a.logger.Debug().
		Str("base_url", cfg.BaseURL).
		Int("page_size", cfg.PageSize).
		Msg("Client ready")
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		a.redis = nil
	}
	if a.logOut != nil {
		if err := a.logOut.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
		a.logOut = nil
	}
	return errors.Join(errs...)
}

// do runs fn, retrying retryable failures when --retries is set.
func (a *app) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if a.flags.retries == 0 {
		return fn(ctx)
	}
	cfg := client.DefaultRetryConfig()
	cfg.MaxAttempts = a.flags.retries + 1
	return client.Retry(ctx, cfg, fn)
}
