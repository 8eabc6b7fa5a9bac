package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSensor(); err != nil {
		return err
	}
	if err := c.validatePlatforms(); err != nil {
		return err
	}
	if err := c.validateRegistry(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateInterop(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSensor() error {
	for _, raw := range c.Sensor.WatchDirectories {
		root, err := ParseWatchedRoot(raw)
		if err != nil {
			return fmt.Errorf("sensor.watch_directories: %w", err)
		}
		if !root.Local() {
			return fmt.Errorf("sensor.watch_directories: remote root %q is not supported; mount it locally", raw)
		}
	}
	if c.Sensor.PollInterval <= 0 {
		return errors.New("sensor.poll_interval must be positive (seconds)")
	}
	return nil
}

func (c *Config) validatePlatforms() error {
	seen := make(map[string]struct{}, len(c.Platforms))
	for i, p := range c.Platforms {
		if p.Name == "" {
			return fmt.Errorf("platforms[%d].name must be set", i)
		}
		if p.SerialTag == "" {
			return fmt.Errorf("platforms[%d].serial_tag must be set for %q", i, p.Name)
		}
		if p.SerialPrefix == "" {
			return fmt.Errorf("platforms[%d].serial_prefix must be set for %q", i, p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("platforms: %q is defined more than once", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

func (c *Config) validateRegistry() error {
	if err := validateHTTPURL("registry.url", c.Registry.URL); err != nil {
		return err
	}
	if c.Actions.Apply && c.Registry.APIKey == "" {
		return errors.New("registry.api_key is required when actions.apply is true. Set SEQWATCH_REGISTRY_API_KEY or edit the config file")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.BusURL != "" {
		if err := validateHTTPURL("events.bus_url", c.Events.BusURL); err != nil {
			return err
		}
	}
	switch c.Events.History {
	case HistoryJournal:
		if !c.Events.Journal {
			return errors.New("events.history = \"journal\" requires events.journal = true")
		}
		if days := c.Events.JournalRetentionDays; days > 0 && days < c.Events.DedupWindowDays {
			return fmt.Errorf("events.journal_retention_days (%d) must be at least events.dedup_window_days (%d) when the journal is the dedup history", days, c.Events.DedupWindowDays)
		}
	case HistoryRemote:
		if c.Events.APIURL == "" {
			return errors.New("events.api_url must be set when events.history is \"remote\"")
		}
		if err := validateHTTPURL("events.api_url", c.Events.APIURL); err != nil {
			return err
		}
	case HistoryNone:
	default:
		return fmt.Errorf("events.history: unsupported value %q (want journal, remote, or none)", c.Events.History)
	}
	return nil
}

func (c *Config) validateInterop() error {
	for i, dest := range c.InteropDestinations {
		if dest.Platform == "" {
			return fmt.Errorf("interop_destinations[%d].platform must be set", i)
		}
		if dest.Path == "" {
			return fmt.Errorf("interop_destinations[%d].path must be set for %q", i, dest.Platform)
		}
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", field, raw)
	}
	return nil
}
