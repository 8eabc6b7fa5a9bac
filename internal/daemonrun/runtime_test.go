package daemonrun_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"seqwatch/internal/config"
	"seqwatch/internal/daemonrun"
	"seqwatch/internal/eventlog"
	"seqwatch/internal/events"
	"seqwatch/internal/logging"
	"seqwatch/internal/rundir"
	"seqwatch/internal/testsupport"
)

type recordedRequest struct {
	method string
	path   string
	body   string
}

func newBackend(t *testing.T) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, recordedRequest{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()
		if r.Method == http.MethodGet && r.URL.Path == "/api/runs" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), requests...)
	}
}

func TestRuntimeJournalOnly(t *testing.T) {
	server, requests := newBackend(t)
	cfg := testsupport.NewConfig(t)
	cfg.Registry.URL = server.URL + "/api"
	root := testsupport.Mkdir(t, cfg.Sensor.WatchDirectories[0])
	testsupport.NewRunDir(t, root, "run1", rundir.NovaSeqXPlus, "20240620_LH00123_0042_A22FLKJLT3")

	rt, err := daemonrun.NewRuntime(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Close()

	if strings.Join(rt.Sinks, ",") != "journal,alerts" {
		t.Fatalf("unexpected sinks %v", rt.Sinks)
	}
	report, err := rt.Sensor.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if report.Emitted[events.TriggerNewDirectory] != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	entries, err := rt.Journal.List(context.Background(), eventlog.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Trigger != events.TriggerNewDirectory {
		t.Fatalf("unexpected journal entries %+v", entries)
	}
	if entries[0].PollID != report.PollID {
		t.Fatalf("journal poll id %q, report %q", entries[0].PollID, report.PollID)
	}
	for _, req := range requests() {
		if req.method != http.MethodGet {
			t.Fatalf("unexpected registry write %s %s", req.method, req.path)
		}
	}
}

func TestRuntimeBusAndApplier(t *testing.T) {
	server, requests := newBackend(t)
	cfg := testsupport.NewConfig(t)
	cfg.Registry.URL = server.URL + "/api"
	cfg.Events.BusURL = server.URL + "/bus"
	cfg.Events.History = config.HistoryNone
	cfg.Events.Journal = false
	cfg.Actions.Apply = true
	root := testsupport.Mkdir(t, cfg.Sensor.WatchDirectories[0])
	testsupport.NewRunDir(t, root, "run1", rundir.NovaSeqXPlus, "20240620_LH00123_0042_A22FLKJLT3")

	rt, err := daemonrun.NewRuntime(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Close()
	if rt.Journal != nil {
		t.Fatal("journal should be disabled")
	}
	if strings.Join(rt.Sinks, ",") != "bus,applier,alerts" {
		t.Fatalf("unexpected sinks %v", rt.Sinks)
	}

	if _, err := rt.Sensor.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	var sawBus, sawAddRun bool
	for _, req := range requests() {
		switch {
		case req.method == http.MethodPost && req.path == "/bus":
			var envelope struct {
				Trigger string `json:"trigger"`
			}
			if err := json.Unmarshal([]byte(req.body), &envelope); err != nil {
				t.Fatalf("decode bus body: %v", err)
			}
			if envelope.Trigger != cfg.Events.TriggerPrefix+"."+events.TriggerNewDirectory {
				t.Fatalf("unexpected trigger %q", envelope.Trigger)
			}
			sawBus = true
		case req.method == http.MethodPost && req.path == "/api/runs":
			sawAddRun = true
		}
	}
	if !sawBus || !sawAddRun {
		t.Fatalf("expected bus dispatch and registry add (bus=%v add=%v)", sawBus, sawAddRun)
	}
}

func TestRuntimeJournalHistoryRequiresJournal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Events.Journal = false
	cfg.Events.History = config.HistoryJournal
	if _, err := daemonrun.NewRuntime(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected wiring error")
	}
}

func TestRuntimeRetriesWarningTheBusRejected(t *testing.T) {
	var (
		mu       sync.Mutex
		busCalls int
		accepted []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/api/runs":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
		case "/bus":
			mu.Lock()
			defer mu.Unlock()
			busCalls++
			if busCalls == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			accepted = append(accepted, string(body))
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithNotificationEmail("seq@example.org"))
	cfg.Registry.URL = server.URL + "/api"
	cfg.Events.BusURL = server.URL + "/bus"
	cfg.Events.History = config.HistoryJournal
	root := testsupport.Mkdir(t, cfg.Sensor.WatchDirectories[0])
	testsupport.Mkdir(t, filepath.Join(root, "empty"))

	rt, err := daemonrun.NewRuntime(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Close()

	ctx := context.Background()
	first, err := rt.Sensor.Poll(ctx)
	if err != nil {
		t.Fatalf("first Poll: %v", err)
	}
	if first.DispatchFailures != 1 {
		t.Fatalf("first poll report %+v, want one dispatch failure", first)
	}
	if _, err := rt.Sensor.Poll(ctx); err != nil {
		t.Fatalf("second Poll: %v", err)
	}
	third, err := rt.Sensor.Poll(ctx)
	if err != nil {
		t.Fatalf("third Poll: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(accepted) != 1 {
		t.Fatalf("bus accepted %d events, want 1 (calls=%d)", len(accepted), busCalls)
	}
	if third.TotalEmitted() != 0 || third.DispatchFailures != 0 {
		t.Fatalf("third poll should be suppressed, got %+v", third)
	}
}
