package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/okian/ridermerge/internal/adapters/repository"
	service "github.com/okian/ridermerge/internal/app"
	"github.com/okian/ridermerge/internal/config"
	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/pkg/logger"
)

const configEnvName = config.EnvConfig

type commandContext struct {
	configFlag  *string
	envFileFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, envFileFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		envFileFlag: envFileFlag,
	}
}

// ensureConfig loads the dotenv file, the configuration and the global logger once.
func (c *commandContext) ensureConfig(ctx context.Context) (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := loadEnvFile(deref(c.envFileFlag)); err != nil {
			c.configErr = err
			return
		}
		if path := strings.TrimSpace(deref(c.configFlag)); path != "" {
			if err := os.Setenv(config.EnvConfig, path); err != nil {
				c.configErr = err
				return
			}
		}
		cfg, err := config.Load(ctx)
		if err != nil {
			c.configErr = err
			return
		}
		if err := logger.Init(); err != nil {
			c.configErr = fmt.Errorf("initialize logging: %w", err)
			return
		}
		if err := logger.SetLevelString(cfg.LogLevel); err != nil {
			logger.Get().Warn(ctx, "invalid log_level; falling back to info",
				logger.String("log_level", cfg.LogLevel), logger.Error(err))
			_ = logger.SetLevelString("info")
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// loadEnvFile loads path into the process environment. A missing file is not an error.
func loadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *commandContext) openStore(ctx context.Context) (repository.Store, error) {
	store, err := repository.Open(ctx, c.config.DBDriver, c.config.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", c.config.DBDriver, err)
	}
	return store, nil
}

// newService opens the store and builds a started merge service from the configuration.
func (c *commandContext) newService(ctx context.Context) (*service.Service, error) {
	store, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	cfg := c.config
	strategies := make([]model.Strategy, 0, len(cfg.AutoMergeStrategies))
	for _, s := range cfg.AutoMergeStrategies {
		strategies = append(strategies, model.Strategy(s))
	}
	svc := service.New(store,
		service.WithLogger(logger.Get()),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithStrongIDMinLength(cfg.StrongIDMinLength),
		service.WithMergeTimeout(cfg.MergeTimeout()),
		service.WithAutoMergeStrategies(strategies...),
		service.WithOverrides(service.Overrides{
			NameAliases: cfg.Overrides.NameAliases,
			KeepApart:   cfg.Overrides.KeepApart,
		}),
		service.WithLockPath(cfg.LockPath),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("start service: %w", err)
	}
	return svc, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
