package invoice

import (
	"errors"
	"fmt"
)

// Kind classifies a terminal pipeline failure
type Kind string

const (
	// KindConversion means the document could not be rasterized
	KindConversion Kind = "ConversionError"
	// KindNoText means recognition produced no usable text
	KindNoText Kind = "NoTextExtracted"
	// KindModelUnavailable means every model attempt failed
	KindModelUnavailable Kind = "ModelUnavailable"
	// KindInvalidJSON means the model reply held no parsable object
	KindInvalidJSON Kind = "InvalidJson"
)

// Message is the caller-facing text for the kind
func (k Kind) Message() string {
	switch k {
	case KindConversion:
		return "Failed to convert document to image"
	case KindNoText:
		return "No text extracted from image"
	case KindModelUnavailable:
		return "Failed to process with AI model"
	case KindInvalidJSON:
		return "Invalid JSON response from AI"
	default:
		return "Failed to process invoice"
	}
}

// ErrNoJSONObject is returned when a model reply contains no JSON object
var ErrNoJSONObject = errors.New("no JSON object found in response")

// Error is a terminal pipeline failure
type Error struct {
	// Kind classifies the failure
	Kind Kind
	// Op is the pipeline stage that failed
	Op string
	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invoice: %s failed: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("invoice: %s failed: %s", e.Op, e.Kind)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same Kind, so callers can write
// errors.Is(err, &Error{Kind: KindNoText}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind of err, if it is or wraps an *Error
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
