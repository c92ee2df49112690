package domain

import (
	"errors"
	"fmt"
)

// ErrorClassifier lets errors declare a kind for reporting and retry decisions.
type ErrorClassifier interface {
	ErrorKind() string
}

// Kind returns the classification of err, or "unknown".
func Kind(err error) string {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return "unknown"
}

// TransportError is a network, timeout or HTTP status failure.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error     { return e.Err }
func (e *TransportError) ErrorKind() string { return "transport" }

// ResponseFormatError means the response lacked the expected envelope.
type ResponseFormatError struct {
	Reason string
	Err    error
}

func (e *ResponseFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed catalog response: %s: %v", e.Reason, e.Err)
	}
	return "malformed catalog response: " + e.Reason
}

func (e *ResponseFormatError) Unwrap() error     { return e.Err }
func (e *ResponseFormatError) ErrorKind() string { return "response_format" }

// ValidationError rejects input before any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) ErrorKind() string { return "validation" }

// FilesystemError wraps a failed write or read on durable storage.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error     { return e.Err }
func (e *FilesystemError) ErrorKind() string { return "filesystem" }
