package testsupport

import (
	"path/filepath"
	"testing"

	"seqwatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It watches a single root at <base>/runs and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Sensor.WatchDirectories = []string{filepath.Join(base, "runs")}
	cfgVal.Registry.APIKey = "secret"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWatchRoots replaces the watched roots with directories under the test
// base directory.
func WithWatchRoots(names ...string) ConfigOption {
	return func(b *configBuilder) {
		roots := make([]string, 0, len(names))
		for _, name := range names {
			roots = append(roots, filepath.Join(b.baseDir, name))
		}
		b.cfg.Sensor.WatchDirectories = roots
	}
}

// WithNotificationEmail sets the notification recipients.
func WithNotificationEmail(emails ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sensor.NotificationEmail = emails
	}
}

// WithTargetDirectory sets the shared drive forwarded in state_change payloads.
func WithTargetDirectory(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sensor.TargetDirectory = path
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
