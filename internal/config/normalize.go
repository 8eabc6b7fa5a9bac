package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSensor(); err != nil {
		return err
	}
	c.normalizePlatforms()
	c.normalizeRegistry()
	c.normalizeEvents()
	c.normalizeNotifications()
	if err := c.normalizeInterop(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSensor() error {
	roots := make([]string, 0, len(c.Sensor.WatchDirectories))
	seen := make(map[string]struct{}, len(c.Sensor.WatchDirectories))
	for _, raw := range c.Sensor.WatchDirectories {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		root, err := ParseWatchedRoot(raw)
		if err != nil {
			return fmt.Errorf("sensor.watch_directories: %w", err)
		}
		value := root.String()
		if root.Local() {
			expanded, err := expandPath(root.Path)
			if err != nil {
				return fmt.Errorf("sensor.watch_directories: %w", err)
			}
			value = expanded
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		roots = append(roots, value)
	}
	c.Sensor.WatchDirectories = roots

	if c.Sensor.PollInterval <= 0 {
		c.Sensor.PollInterval = defaultPollInterval
	}
	if c.Sensor.NudgeDebounceMS <= 0 {
		c.Sensor.NudgeDebounceMS = defaultNudgeDebounceMS
	}

	platforms := make([]string, 0, len(c.Sensor.AnalysisPlatforms))
	for _, name := range c.Sensor.AnalysisPlatforms {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			platforms = append(platforms, trimmed)
		}
	}
	c.Sensor.AnalysisPlatforms = platforms

	emails := make([]string, 0, len(c.Sensor.NotificationEmail))
	for _, email := range c.Sensor.NotificationEmail {
		if trimmed := strings.TrimSpace(email); trimmed != "" {
			emails = append(emails, trimmed)
		}
	}
	c.Sensor.NotificationEmail = emails
	c.Sensor.TargetDirectory = strings.TrimSpace(c.Sensor.TargetDirectory)
	return nil
}

func (c *Config) normalizePlatforms() {
	for i := range c.Platforms {
		c.Platforms[i].Name = strings.TrimSpace(c.Platforms[i].Name)
		c.Platforms[i].SerialTag = strings.TrimSpace(c.Platforms[i].SerialTag)
		c.Platforms[i].SerialPrefix = strings.TrimSpace(c.Platforms[i].SerialPrefix)
	}
}

func (c *Config) normalizeRegistry() {
	c.Registry.URL = strings.TrimRight(strings.TrimSpace(c.Registry.URL), "/")
	if c.Registry.URL == "" {
		c.Registry.URL = defaultRegistryURL
	}
	c.Registry.APIKey = strings.TrimSpace(c.Registry.APIKey)
	if c.Registry.APIKey == "" {
		if value, ok := os.LookupEnv("SEQWATCH_REGISTRY_API_KEY"); ok {
			c.Registry.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Registry.TimeoutSeconds <= 0 {
		c.Registry.TimeoutSeconds = defaultRegistryTimeout
	}
}

func (c *Config) normalizeEvents() {
	c.Events.BusURL = strings.TrimSpace(c.Events.BusURL)
	c.Events.APIURL = strings.TrimRight(strings.TrimSpace(c.Events.APIURL), "/")
	c.Events.APIKey = strings.TrimSpace(c.Events.APIKey)
	if c.Events.APIKey == "" {
		if value, ok := os.LookupEnv("SEQWATCH_EVENTS_API_KEY"); ok {
			c.Events.APIKey = strings.TrimSpace(value)
		}
	}
	c.Events.TriggerPrefix = strings.Trim(strings.TrimSpace(c.Events.TriggerPrefix), ".")
	c.Events.History = strings.ToLower(strings.TrimSpace(c.Events.History))
	if c.Events.History == "" {
		c.Events.History = defaultEventHistory
	}
	if c.Events.DedupWindowDays <= 0 {
		c.Events.DedupWindowDays = defaultDedupWindowDays
	}
	if c.Events.RequestTimeout <= 0 {
		c.Events.RequestTimeout = defaultEventRequestTimeout
	}
	if c.Events.JournalRetentionDays < 0 {
		c.Events.JournalRetentionDays = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeInterop() error {
	for i := range c.InteropDestinations {
		dest := &c.InteropDestinations[i]
		dest.Platform = strings.TrimSpace(dest.Platform)
		if strings.TrimSpace(dest.Path) == "" {
			continue
		}
		expanded, err := expandPath(dest.Path)
		if err != nil {
			return fmt.Errorf("interop_destinations[%d].path: %w", i, err)
		}
		dest.Path = expanded
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
