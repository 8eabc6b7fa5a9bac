package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"seqwatch/internal/services"
)

const userAgent = "seqwatch/0.1"

// HTTPDoer describes the HTTP client used by the registry client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPDoer replaces the underlying HTTP client.
func WithHTTPDoer(doer HTTPDoer) Option {
	return func(c *HTTPClient) {
		if doer != nil {
			c.client = doer
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.client = &http.Client{Timeout: timeout}
		}
	}
}

// HTTPClient implements Client against the registry REST API rooted at
// baseURL (for example http://localhost:8080/api).
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// NewHTTPClient constructs a registry client.
func NewHTTPClient(baseURL, apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// GetRuns lists registered runs keyed by run id. The registry answers with
// either a bare list or an object wrapping the list under "runs".
func (c *HTTPClient) GetRuns(ctx context.Context, filter RunFilter) (map[string]Run, error) {
	query := url.Values{}
	if filter.Platform != "" {
		query.Set("platform", filter.Platform)
	}
	if filter.State != "" {
		query.Set("state", string(filter.State))
	}
	// The registry treats the mere presence of "brief" as true.
	if filter.Brief {
		query.Set("brief", "yes")
	}
	endpoint := c.baseURL + "/runs"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrRegistry, "registry", "get runs", "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	body, err := c.do(req, "get runs")
	if err != nil {
		return nil, err
	}

	runs, err := decodeRuns(body)
	if err != nil {
		return nil, services.Wrap(services.ErrRegistry, "registry", "get runs", "decode response from "+endpoint, err)
	}
	out := make(map[string]Run, len(runs))
	for _, run := range runs {
		if run.RunID == "" {
			continue
		}
		out[run.RunID] = run
	}
	return out, nil
}

func decodeRuns(body []byte) ([]Run, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var runs []Run
		if err := json.Unmarshal(trimmed, &runs); err != nil {
			return nil, err
		}
		return runs, nil
	}
	var envelope struct {
		Metadata json.RawMessage `json:"metadata"`
		Runs     []Run           `json:"runs"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	return envelope.Runs, nil
}

// AddRun uploads the metadata and info files of a new run.
func (c *HTTPClient) AddRun(ctx context.Context, in AddRunRequest) error {
	if err := c.requireKey(); err != nil {
		return err
	}
	form := newMultipartForm()
	form.file("runparameters", in.RunParametersPath, "RunParameters.xml", "application/xml")
	form.file("runinfo", in.RunInfoPath, "RunInfo.xml", "application/xml")
	form.field("path", in.Path)
	form.field("state", string(in.State))
	return c.sendForm(ctx, http.MethodPost, c.baseURL+"/runs", form, "add run")
}

// UpdateRunState appends a state to the run's history.
func (c *HTTPClient) UpdateRunState(ctx context.Context, runID, state string) error {
	return c.sendJSON(ctx, http.MethodPatch, c.runURL(runID), map[string]string{"state": state}, "update run state")
}

// UpdateRunPath records a new location for the run directory.
func (c *HTTPClient) UpdateRunPath(ctx context.Context, runID, path string) error {
	return c.sendJSON(ctx, http.MethodPatch, c.runURL(runID)+"/path", map[string]string{"path": path}, "update run path")
}

// UpdateSampleSheet registers a sample sheet for the run.
func (c *HTTPClient) UpdateSampleSheet(ctx context.Context, runID, samplesheet string) error {
	return c.sendJSON(ctx, http.MethodPost, c.runURL(runID)+"/samplesheet", map[string]string{"samplesheet": samplesheet}, "update samplesheet")
}

// AddAnalysis registers a new analysis, uploading its summary when present.
func (c *HTTPClient) AddAnalysis(ctx context.Context, runID string, in AddAnalysisRequest) error {
	if err := c.requireKey(); err != nil {
		return err
	}
	form := newMultipartForm()
	form.field("state", string(in.State))
	form.field("path", in.Path)
	if in.SummaryFile != "" {
		form.file("summary_file", in.SummaryFile, "detailed_summary.json", "application/json")
	}
	return c.sendForm(ctx, http.MethodPost, c.runURL(runID)+"/analysis", form, "add analysis")
}

// UpdateAnalysis updates the state and/or summary of an analysis.
func (c *HTTPClient) UpdateAnalysis(ctx context.Context, runID, analysisID string, in UpdateAnalysisRequest) error {
	if err := c.requireKey(); err != nil {
		return err
	}
	form := newMultipartForm()
	if in.State != "" {
		form.field("state", string(in.State))
	}
	if in.SummaryFile != "" {
		form.file("analysis_summary", in.SummaryFile, "detailed_summary.json", "application/json")
	}
	endpoint := c.runURL(runID) + "/analysis/" + url.PathEscape(analysisID)
	return c.sendForm(ctx, http.MethodPatch, endpoint, form, "update analysis")
}

func (c *HTTPClient) runURL(runID string) string {
	return c.baseURL + "/runs/" + url.PathEscape(runID)
}

func (c *HTTPClient) requireKey() error {
	if c.apiKey == "" {
		return services.Wrap(services.ErrRegistry, "registry", "write", "", ErrNoAPIKey)
	}
	return nil
}

func (c *HTTPClient) sendJSON(ctx context.Context, method, endpoint string, payload any, operation string) error {
	if err := c.requireKey(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrRegistry, "registry", operation, "encode payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return services.Wrap(services.ErrRegistry, "registry", operation, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)
	_, err = c.do(req, operation)
	return err
}

func (c *HTTPClient) sendForm(ctx context.Context, method, endpoint string, form *multipartForm, operation string) error {
	body, contentType, err := form.encode()
	if err != nil {
		return services.Wrap(services.ErrRegistry, "registry", operation, "build form", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return services.Wrap(services.ErrRegistry, "registry", operation, "build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", c.apiKey)
	_, err = c.do(req, operation)
	return err
}

func (c *HTTPClient) do(req *http.Request, operation string) ([]byte, error) {
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrRegistry, "registry", operation, req.Method+" "+req.URL.String(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrRegistry, "registry", operation, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("%s %s: HTTP %d %s", req.Method, req.URL.String(), resp.StatusCode, excerpt(body))
		var cause error
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			cause = ErrUnauthorized
		}
		return nil, services.Wrap(services.ErrRegistry, "registry", operation, detail, cause)
	}
	return body, nil
}

func excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 256 {
		text = text[:256] + "..."
	}
	return text
}

// multipartForm collects fields and files and encodes them once all parts
// are known, so file open errors surface before any request is sent.
type multipartForm struct {
	parts []formPart
}

type formPart struct {
	name        string
	value       string
	path        string
	filename    string
	contentType string
}

func newMultipartForm() *multipartForm { return &multipartForm{} }

func (f *multipartForm) field(name, value string) {
	f.parts = append(f.parts, formPart{name: name, value: value})
}

func (f *multipartForm) file(name, path, filename, contentType string) {
	f.parts = append(f.parts, formPart{name: name, path: path, filename: filename, contentType: contentType})
}

func (f *multipartForm) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, part := range f.parts {
		if part.path == "" {
			if err := writer.WriteField(part.name, part.value); err != nil {
				return nil, "", err
			}
			continue
		}
		data, err := os.ReadFile(part.path)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", part.path, err)
		}
		filename := part.filename
		if filename == "" {
			filename = filepath.Base(part.path)
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, part.name, filename))
		header.Set("Content-Type", part.contentType)
		w, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := w.Write(data); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
