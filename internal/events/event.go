package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Trigger names.
const (
	TriggerNewDirectory        = "new_directory"
	TriggerStateChange         = "state_change"
	TriggerNewSampleSheet      = "new_samplesheet"
	TriggerIncompleteDirectory = "incomplete_directory"
	TriggerDuplicateRun        = "duplicate_run"
)

// Payload keys.
const (
	KeyRunID           = "run_id"
	KeyAnalysisID      = "analysis_id"
	KeyPath            = "path"
	KeyState           = "state"
	KeyDirectoryType   = "directory_type"
	KeyPlatform        = "platform"
	KeyTargetDirectory = "target_directory"
	KeyRunParameters   = "runparameters"
	KeyRunInfo         = "runinfo"
	KeySummaryFile     = "summary_file"
	KeySampleSheet     = "samplesheet"
	KeyMessage         = "message"
	KeyEmail           = "email"
	KeyDuplicatePath   = "duplicate_path"
)

// Deduplicated reports whether trigger is routed through the Deduplicator.
func Deduplicated(trigger string) bool {
	return trigger == TriggerIncompleteDirectory || trigger == TriggerDuplicateRun
}

// Payload is the flat body of an event. Values are strings, string lists,
// or nil.
type Payload map[string]any

// Event is one emitted trigger.
type Event struct {
	Trigger string
	Payload Payload
}

// New constructs an event.
func New(trigger string, payload Payload) Event {
	if payload == nil {
		payload = Payload{}
	}
	return Event{Trigger: trigger, Payload: payload}
}

func (e Event) String() string {
	keys := make([]string, 0, len(e.Payload))
	for k := range e.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Payload[k]))
	}
	return e.Trigger + "{" + strings.Join(parts, " ") + "}"
}

// Nullable returns nil for an empty string so the payload carries null.
func Nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// String returns the string stored at key, or "" for missing and null values.
func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// Strings returns the string list stored at key.
func (p Payload) Strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// IsNull reports whether key is present with a null value.
func (p Payload) IsNull(key string) bool {
	v, ok := p[key]
	return ok && v == nil
}

// Canonical encodes p as JSON with sorted keys.
func Canonical(p Payload) ([]byte, error) {
	if p == nil {
		p = Payload{}
	}
	return json.Marshal(map[string]any(p))
}

// Equal compares two payloads by their canonical JSON encoding, so values
// that round-tripped through storage compare equal to freshly built ones.
func Equal(a, b Payload) bool {
	ca, errA := Canonical(a)
	cb, errB := Canonical(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}

// DecodePayload parses a JSON object into a Payload.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}
