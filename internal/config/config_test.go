package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"seqwatch/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SEQWATCH_REGISTRY_API_KEY", "env-key")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogs := filepath.Join(tempHome, ".local", "share", "seqwatch", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if cfg.JournalPath() != filepath.Join(tempHome, ".local", "share", "seqwatch", "events.db") {
		t.Fatalf("unexpected journal path: %q", cfg.JournalPath())
	}
	if cfg.Registry.APIKey != "env-key" {
		t.Fatalf("expected registry key from env, got %q", cfg.Registry.APIKey)
	}
	if cfg.PollInterval() != time.Minute {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.DedupWindow() != 7*24*time.Hour {
		t.Fatalf("unexpected dedup window: %s", cfg.DedupWindow())
	}
	if len(cfg.Sensor.AnalysisPlatforms) != 1 || cfg.Sensor.AnalysisPlatforms[0] != "NovaSeq X Plus" {
		t.Fatalf("unexpected analysis platforms: %v", cfg.Sensor.AnalysisPlatforms)
	}
	if cfg.Events.History != config.HistoryJournal {
		t.Fatalf("unexpected history backend: %q", cfg.Events.History)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
log_dir = "~/logs"

[sensor]
watch_directories = ["~/runs", "localhost:/srv/runs", "~/runs", ""]
poll_interval = 15
notification_email = [" ops@example.org ", ""]
target_directory = " /mnt/shared "

[registry]
url = "http://registry.local:8080/api/"
api_key = "secret"

[events]
bus_url = "https://bus.example.org/api/v1/webhooks/st2"
history = "NONE"

[[interop_destinations]]
platform = "NovaSeq X Plus"
path = "~/interop"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config to exist at %q, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	wantRoots := []string{filepath.Join(tempHome, "runs"), "/srv/runs"}
	if len(cfg.Sensor.WatchDirectories) != len(wantRoots) {
		t.Fatalf("unexpected roots: %v", cfg.Sensor.WatchDirectories)
	}
	for i, want := range wantRoots {
		if cfg.Sensor.WatchDirectories[i] != want {
			t.Fatalf("root %d: got %q want %q", i, cfg.Sensor.WatchDirectories[i], want)
		}
	}
	if got := cfg.WatchedRoots(); len(got) != 2 || !got[1].Local() {
		t.Fatalf("unexpected watched roots: %+v", got)
	}
	if len(cfg.Sensor.NotificationEmail) != 1 || cfg.Sensor.NotificationEmail[0] != "ops@example.org" {
		t.Fatalf("unexpected emails: %v", cfg.Sensor.NotificationEmail)
	}
	if cfg.Sensor.TargetDirectory != "/mnt/shared" {
		t.Fatalf("unexpected target directory: %q", cfg.Sensor.TargetDirectory)
	}
	if cfg.Registry.URL != "http://registry.local:8080/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Registry.URL)
	}
	if cfg.Events.History != config.HistoryNone {
		t.Fatalf("expected history normalized to none, got %q", cfg.Events.History)
	}
	dest, ok := cfg.InteropDestination("NovaSeq X Plus")
	if !ok || dest != filepath.Join(tempHome, "interop") {
		t.Fatalf("unexpected interop destination: %q %v", dest, ok)
	}
	if _, ok := cfg.InteropDestination("MiSeq"); ok {
		t.Fatal("expected no destination for MiSeq")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "remote root",
			mutate: func(c *config.Config) { c.Sensor.WatchDirectories = []string{"seqhost:/data/runs"} },
			want:   "remote root",
		},
		{
			name:   "bad registry url",
			mutate: func(c *config.Config) { c.Registry.URL = "ftp://registry" },
			want:   "registry.url",
		},
		{
			name:   "remote history without api url",
			mutate: func(c *config.Config) { c.Events.History = config.HistoryRemote },
			want:   "events.api_url",
		},
		{
			name:   "journal history without journal",
			mutate: func(c *config.Config) { c.Events.Journal = false },
			want:   "events.journal",
		},
		{
			name: "journal retention shorter than dedup window",
			mutate: func(c *config.Config) {
				c.Events.JournalRetentionDays = 3
				c.Events.DedupWindowDays = 7
			},
			want: "events.journal_retention_days",
		},
		{
			name:   "apply without key",
			mutate: func(c *config.Config) { c.Actions.Apply = true },
			want:   "registry.api_key",
		},
		{
			name: "incomplete platform",
			mutate: func(c *config.Config) {
				c.Platforms = []config.Platform{{Name: "MiSeq", SerialTag: "ScannerID"}}
			},
			want: "serial_prefix",
		},
		{
			name:   "unknown history",
			mutate: func(c *config.Config) { c.Events.History = "redis" },
			want:   "unsupported value",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestParseWatchedRoot(t *testing.T) {
	cases := []struct {
		raw   string
		host  string
		path  string
		local bool
	}{
		{"/data/runs", "", "/data/runs", true},
		{"localhost:/data/runs", "localhost", "/data/runs", true},
		{"seq01:/data/runs", "seq01", "/data/runs", false},
		{"/data/odd:name", "", "/data/odd:name", true},
	}
	for _, tc := range cases {
		root, err := config.ParseWatchedRoot(tc.raw)
		if err != nil {
			t.Fatalf("ParseWatchedRoot(%q): %v", tc.raw, err)
		}
		if root.Host != tc.host || root.Path != tc.path || root.Local() != tc.local {
			t.Fatalf("ParseWatchedRoot(%q) = %+v", tc.raw, root)
		}
	}
	if _, err := config.ParseWatchedRoot("   "); err == nil {
		t.Fatal("expected error for blank root")
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Sensor.PollInterval != 60 {
		t.Fatalf("unexpected sample poll interval: %d", cfg.Sensor.PollInterval)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}
