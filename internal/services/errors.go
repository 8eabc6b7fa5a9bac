package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrParse         = errors.New("parse error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrRegistry      = errors.New("registry error")
	ErrDispatch      = errors.New("dispatch error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrRegistry
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Failure pairs a classification marker with a message that reads well on its
// own. Error returns only the message, so it can be placed in event payloads
// verbatim while errors.Is still reports the marker.
type Failure struct {
	Marker  error
	Message string
	Err     error
}

// Fail constructs a Failure with a formatted message.
func Fail(marker error, format string, args ...any) *Failure {
	return &Failure{Marker: marker, Message: fmt.Sprintf(format, args...)}
}

// FailWith constructs a Failure that also wraps an underlying cause.
func FailWith(marker error, cause error, format string, args ...any) *Failure {
	return &Failure{Marker: marker, Message: fmt.Sprintf(format, args...), Err: cause}
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	if strings.TrimSpace(f.Message) != "" {
		return f.Message
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	if f.Marker != nil {
		return f.Marker.Error()
	}
	return "failure"
}

func (f *Failure) Unwrap() []error {
	if f == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if f.Marker != nil {
		out = append(out, f.Marker)
	}
	if f.Err != nil {
		out = append(out, f.Err)
	}
	return out
}

// Kind returns the short name of the first marker err carries, or "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrRegistry):
		return "registry"
	case errors.Is(err, ErrDispatch):
		return "dispatch"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
