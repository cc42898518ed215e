package detection

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline boundary. Per-feature lookup failures
// never surface as errors; they become failure markers that the assembler
// imputes over. These are the cases that do escape.
var (
	// ErrInvalidInput: the URL cannot be decomposed into at least a host.
	// Terminal for that URL, no extraction runs.
	ErrInvalidInput = errors.New("invalid input URL")

	// ErrSchemaMismatch: an extractor produced a feature name the loaded
	// schema does not know. Configuration/version drift, not a runtime
	// condition; must be reported loudly, never imputed away.
	ErrSchemaMismatch = errors.New("feature schema mismatch")

	// ErrArtifactIncompatible: the bundle's model width, schema, and stats
	// disagree with each other.
	ErrArtifactIncompatible = errors.New("model artifact incompatible")

	// ErrModelLoad: the bundle file could not be read or decoded.
	ErrModelLoad = errors.New("model load failed")
)

// MalformedURLError wraps ErrInvalidInput with the offending input.
type MalformedURLError struct {
	Input  string
	Reason string
}

func (e *MalformedURLError) Error() string {
	return fmt.Sprintf("malformed URL %q: %s", e.Input, e.Reason)
}

func (e *MalformedURLError) Unwrap() error { return ErrInvalidInput }

// Failure reason codes recorded on individual features.
const (
	ReasonTimeout      = "timeout"
	ReasonLookup       = "lookup_failure"
	ReasonCancelled    = "cancelled"
	ReasonNotHTML      = "not_html"
	ReasonParse        = "parse_failure"
	ReasonFetch        = "fetch_failure"
	ReasonUncomputable = "uncomputable"
)
