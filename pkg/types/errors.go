package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to callers
type ErrorKind string

const (
	KindInvalidInput         ErrorKind = "invalid_input"
	KindDocumentsUnavailable ErrorKind = "documents_unavailable"
	KindEmbeddingFailed      ErrorKind = "embedding_failed"
	KindNoRelevantContent    ErrorKind = "no_relevant_content"
	KindSynthesisFailed      ErrorKind = "synthesis_failed"
	KindCacheWriteFailed     ErrorKind = "cache_write_failed"
	KindIngestionFailed      ErrorKind = "ingestion_failed"
	KindInternal             ErrorKind = "internal"
)

// Error is the typed error returned by the query and ingest boundaries.
// Message is safe to show to callers; Err holds the cause for logs.
type Error struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the Err* sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons
var (
	ErrInvalidInput         = &Error{Kind: KindInvalidInput}
	ErrDocumentsUnavailable = &Error{Kind: KindDocumentsUnavailable}
	ErrEmbeddingFailed      = &Error{Kind: KindEmbeddingFailed}
	ErrNoRelevantContent    = &Error{Kind: KindNoRelevantContent}
	ErrSynthesisFailed      = &Error{Kind: KindSynthesisFailed}
	ErrCacheWriteFailed     = &Error{Kind: KindCacheWriteFailed}
	ErrIngestionFailed      = &Error{Kind: KindIngestionFailed}
)

// NewError builds a typed error wrapping cause
func NewError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		Retryable: isTimeout(cause),
		Err:       cause,
	}
}

// KindOf returns the kind of err, or KindInternal for untyped errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsKind normalizes err to a typed error. Typed errors pass through
// unchanged; anything else is wrapped with the given kind and message.
func AsKind(err error, kind ErrorKind, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Message: message, Retryable: isTimeout(err), Err: err}
}

// IsRetryable reports whether the failure was transient
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return isTimeout(err)
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
