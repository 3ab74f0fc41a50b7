package types

import (
	"errors"
	"fmt"
)

// Kind classifies failures of the headshot pipeline
type Kind string

const (
	KindInvalidParameter   Kind = "invalid_parameter"
	KindDecodeError        Kind = "decode_error"
	KindUnsupportedFormat  Kind = "unsupported_format"
	KindNoFaceDetected     Kind = "no_face_detected"     // informational, never fatal
	KindNoHistoryAvailable Kind = "no_history_available" // undo on an empty stack
	KindInternal           Kind = "internal"
)

// Error is a classified pipeline error.
type Error struct {
	Kind    Kind   // Machine-readable kind
	Op      string // Operation that failed (e.g. "geometry.crop")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given kind, operation, and formatted message.
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a kind and context.
func Wrap(err error, kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the kind of the first classified error in the chain,
// KindInternal for unclassified errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
