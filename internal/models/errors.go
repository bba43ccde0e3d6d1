package models

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input to a core operation (mismatched
// sequence lengths, non-positive k). It is surfaced to the caller, never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// DimensionMismatchError reports an embedding whose length disagrees with the
// store's configured dimension. This indicates a configuration error (model
// changed without reindexing) and is never retried.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: got %d, expected %d", e.Got, e.Want)
}

// ProviderError reports a failed remote embedding or LLM call (network, auth,
// quota). Retry policy is per component: the generator retries with backoff,
// the embedder does not.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StorageError reports a durable read or write failure in the vector store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ExtractionError reports a document that could not be converted to text
// before the pipeline ran (corrupt or unsupported file).
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsDimensionMismatch reports whether err is (or wraps) a DimensionMismatchError.
func IsDimensionMismatch(err error) bool {
	var de *DimensionMismatchError
	return errors.As(err, &de)
}

// IsProvider reports whether err is (or wraps) a ProviderError.
func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
