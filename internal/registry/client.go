package registry

import (
	"context"
	"errors"
	"time"

	"seqwatch/internal/config"
)

// ErrUnauthorized marks registry responses rejecting the API key.
var ErrUnauthorized = errors.New("registry rejected credentials")

// ErrNoAPIKey is returned by writes when no API key is configured.
var ErrNoAPIKey = errors.New("no API key provided")

// Reader is the read side of the registry used by the reconciler.
type Reader interface {
	GetRuns(ctx context.Context, filter RunFilter) (map[string]Run, error)
}

// Writer is the write side of the registry used by actions.
type Writer interface {
	AddRun(ctx context.Context, req AddRunRequest) error
	UpdateRunState(ctx context.Context, runID string, state string) error
	UpdateRunPath(ctx context.Context, runID, path string) error
	UpdateSampleSheet(ctx context.Context, runID, samplesheet string) error
	AddAnalysis(ctx context.Context, runID string, req AddAnalysisRequest) error
	UpdateAnalysis(ctx context.Context, runID, analysisID string, req UpdateAnalysisRequest) error
}

// Client is the full registry contract.
type Client interface {
	Reader
	Writer
}

// NewFromConfig builds an HTTP client from the [registry] section.
func NewFromConfig(cfg *config.Config) *HTTPClient {
	if cfg == nil {
		d := config.Default()
		cfg = &d
	}
	timeout := time.Duration(cfg.Registry.TimeoutSeconds) * time.Second
	return NewHTTPClient(cfg.Registry.URL, cfg.Registry.APIKey, WithTimeout(timeout))
}
