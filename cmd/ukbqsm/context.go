package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"ukbqsm/internal/config"
	"ukbqsm/internal/ledger"
	"ukbqsm/internal/logging"
	"ukbqsm/internal/services/toolexec"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	executor     toolexec.Executor

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

type contextOption func(*commandContext)

// withExecutor replaces the subprocess executor used by pipeline commands.
func withExecutor(exec toolexec.Executor) contextOption {
	return func(c *commandContext) {
		c.executor = exec
	}
}

func newCommandContext(configFlag, logLevelFlag *string, opts ...contextOption) *commandContext {
	c := &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// logger builds a logger for cmd. Console output goes to the command's
// stderr so list output on stdout stays pipeable.
func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		level = *c.logLevelFlag
	}
	opts := logging.Options{
		Level:   level,
		Format:  cfg.Logging.Format,
		Console: cmd.ErrOrStderr(),
	}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		opts.FilePath = filepath.Join(dir, logging.LogFileName)
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func (c *commandContext) withLedger(fn func(*ledger.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(cfg.Paths.LedgerPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
