package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"seqwatch/internal/registry"
	"seqwatch/internal/services"
)

const (
	apiKeyHeader = "St2-Api-Key"
	userAgent    = "seqwatch/0.1"
)

// HTTPOption customizes the HTTP bus and history clients.
type HTTPOption func(*httpEndpoint)

// WithHTTPDoer replaces the underlying HTTP client.
func WithHTTPDoer(doer registry.HTTPDoer) HTTPOption {
	return func(e *httpEndpoint) {
		if doer != nil {
			e.client = doer
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(e *httpEndpoint) {
		if timeout > 0 {
			e.client = &http.Client{Timeout: timeout}
		}
	}
}

type httpEndpoint struct {
	url    string
	apiKey string
	prefix string
	client registry.HTTPDoer
}

func newEndpoint(rawURL, apiKey, prefix string, opts []HTTPOption) httpEndpoint {
	e := httpEndpoint{
		url:    strings.TrimRight(strings.TrimSpace(rawURL), "/"),
		apiKey: strings.TrimSpace(apiKey),
		prefix: strings.Trim(strings.TrimSpace(prefix), "."),
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// ref qualifies trigger with the configured prefix.
func (e httpEndpoint) ref(trigger string) string {
	if e.prefix == "" {
		return trigger
	}
	return e.prefix + "." + trigger
}

func (e httpEndpoint) do(req *http.Request, operation string) ([]byte, error) {
	req.Header.Set("User-Agent", userAgent)
	if e.apiKey != "" {
		req.Header.Set(apiKeyHeader, e.apiKey)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrDispatch, "events", operation, req.Method+" "+req.URL.String(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrDispatch, "events", operation, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := strings.TrimSpace(string(body))
		if len(text) > 256 {
			text = text[:256] + "..."
		}
		return nil, services.Wrap(services.ErrDispatch, "events", operation,
			fmt.Sprintf("%s %s: HTTP %d %s", req.Method, req.URL.String(), resp.StatusCode, text), nil)
	}
	return body, nil
}

// HTTPBus posts events to a webhook endpoint as
// {"trigger": "<prefix>.<name>", "payload": {...}}.
type HTTPBus struct {
	endpoint httpEndpoint
}

// NewHTTPBus constructs a bus dispatcher.
func NewHTTPBus(busURL, apiKey, prefix string, opts ...HTTPOption) *HTTPBus {
	return &HTTPBus{endpoint: newEndpoint(busURL, apiKey, prefix, opts)}
}

// Ref returns the fully qualified trigger reference sent for trigger.
func (b *HTTPBus) Ref(trigger string) string { return b.endpoint.ref(trigger) }

func (b *HTTPBus) Dispatch(ctx context.Context, event Event) error {
	payload := event.Payload
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(map[string]any{
		"trigger": b.endpoint.ref(event.Trigger),
		"payload": payload,
	})
	if err != nil {
		return services.Wrap(services.ErrDispatch, "events", "dispatch", "encode event", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint.url, bytes.NewReader(data))
	if err != nil {
		return services.Wrap(services.ErrDispatch, "events", "dispatch", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = b.endpoint.do(req, "dispatch")
	return err
}

// HTTPHistory reads trigger instances back from the event bus API.
type HTTPHistory struct {
	endpoint httpEndpoint
}

// NewHTTPHistory constructs a history reader rooted at apiURL.
func NewHTTPHistory(apiURL, apiKey, prefix string, opts ...HTTPOption) *HTTPHistory {
	return &HTTPHistory{endpoint: newEndpoint(apiURL, apiKey, prefix, opts)}
}

type triggerInstance struct {
	Trigger string          `json:"trigger"`
	Payload json.RawMessage `json:"payload"`
}

func (h *HTTPHistory) Query(ctx context.Context, trigger string, since time.Time) ([]Payload, error) {
	query := url.Values{}
	query.Set("trigger", h.endpoint.ref(trigger))
	query.Set("timestamp_gt", since.UTC().Format("2006-01-02T15:04:05.000000Z"))
	endpoint := h.endpoint.url + "/triggerinstances?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrDispatch, "events", "history", "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	body, err := h.endpoint.do(req, "history")
	if err != nil {
		return nil, err
	}
	var instances []triggerInstance
	if err := json.Unmarshal(body, &instances); err != nil {
		return nil, services.Wrap(services.ErrParse, "events", "history", "decode trigger instances", err)
	}
	out := make([]Payload, 0, len(instances))
	for _, inst := range instances {
		if len(inst.Payload) == 0 {
			continue
		}
		p, err := DecodePayload(inst.Payload)
		if err != nil {
			return nil, services.Wrap(services.ErrParse, "events", "history", "decode payload", err)
		}
		out = append(out, p)
	}
	return out, nil
}
