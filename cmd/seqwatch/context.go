package main

import (
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"seqwatch/internal/actions"
	"seqwatch/internal/config"
	"seqwatch/internal/logging"
	"seqwatch/internal/registry"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
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
	})
	return c.config, c.configErr
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		return strings.TrimSpace(*c.logLevelFlag)
	}
	if c.config != nil {
		return c.config.Logging.Level
	}
	return "info"
}

// logger writes console logs to w. One-shot commands log to stderr so their
// stdout stays parseable.
func (c *commandContext) logger(w io.Writer) *slog.Logger {
	format := "console"
	if c.config != nil && c.config.Logging.Format != "" {
		format = c.config.Logging.Format
	}
	logger, err := logging.New(logging.Options{Level: c.logLevel(), Format: format, Writer: w})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) registryClient() (*registry.HTTPClient, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return registry.NewFromConfig(cfg), nil
}

func (c *commandContext) actions(cmd *cobra.Command) (*actions.Actions, error) {
	client, err := c.registryClient()
	if err != nil {
		return nil, err
	}
	return actions.New(client, c.config, c.logger(cmd.ErrOrStderr())), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
