package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of failure categories the modeling layer can
// report. Callers branch on kinds, never on backend error text; mapping raw
// tool output to a kind happens inside this package only.
type Kind string

const (
	// KindOOM marks accelerator or system memory exhaustion.
	KindOOM Kind = "oom"
	// KindAuth marks a missing or rejected access credential.
	KindAuth Kind = "auth"
	// KindCorruptModel marks an unreadable cached model file.
	KindCorruptModel Kind = "corrupt_model"
	// KindUnavailable marks a backend that is not usable in this build or
	// environment.
	KindUnavailable Kind = "unavailable"
	// KindInternal is every other backend failure.
	KindInternal Kind = "internal"
)

// Error is a kind-tagged failure from the modeling layer boundary.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// Error formats the failure for logs and user-facing short messages.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf extracts the failure kind, defaulting to KindInternal for errors
// that did not come from the modeling layer.
func KindOf(err error) Kind {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	return KindInternal
}

// IsOOM reports whether err is a memory exhaustion failure.
func IsOOM(err error) bool {
	return KindOf(err) == KindOOM
}

// classify wraps a backend failure with the kind inferred from tool output.
// String sniffing is confined here because the external tools only speak
// through exit text.
func classify(op, output string, err error) error {
	lower := strings.ToLower(output)

	kind := KindInternal
	switch {
	case strings.Contains(lower, "out of memory") ||
		strings.Contains(lower, "cuda_error_out_of_memory") ||
		strings.Contains(lower, "cublas_status_alloc_failed"):
		kind = KindOOM
	case strings.Contains(lower, "401") ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "authentication") ||
		strings.Contains(lower, "invalid token") ||
		strings.Contains(lower, "token is required"):
		kind = KindAuth
	case strings.Contains(lower, "not a zip file") ||
		strings.Contains(lower, "corrupted") ||
		strings.Contains(lower, "invalid load key"):
		kind = KindCorruptModel
	}

	return &Error{
		Kind: kind,
		Op:   op,
		Msg:  firstLine(output),
		Err:  err,
	}
}

// firstLine trims tool output down to a single short message.
func firstLine(output string) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	// Tools tend to print the actionable error last.
	return strings.TrimSpace(lines[len(lines)-1])
}
