package errors

import "fmt"

// HibikidoError is the structured error type returned by the core
// components (docstore, vectorindex, retrieval, orchestrator) so the
// server core can translate failures into /error messages without
// inspecting free-form strings.
type HibikidoError struct {
	Code     string
	Message  string
	Category Category
	Severity Severity
	Details  map[string]string
	Cause    error
}

func (e *HibikidoError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *HibikidoError) Unwrap() error {
	return e.Cause
}

func (e *HibikidoError) Is(target error) bool {
	t, ok := target.(*HibikidoError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail attaches a key-value detail, returning the error for chaining.
func (e *HibikidoError) WithDetail(key, value string) *HibikidoError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New constructs a HibikidoError, deriving category and severity from the code.
func New(code, message string, cause error) *HibikidoError {
	return &HibikidoError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// ValidationError reports a bad argument, out-of-range value, or missing field.
func ValidationError(message string, cause error) *HibikidoError {
	return New(ErrCodeInvalidInput, message, cause)
}

// ReferentialError reports a dangling foreign key (unknown source_path,
// segmentation_id, or effect_path).
func ReferentialError(message string) *HibikidoError {
	return New(ErrCodeDangling, message, nil)
}

// ConflictError reports a duplicate path or id on an upsert-sensitive add.
func ConflictError(message string) *HibikidoError {
	return New(ErrCodeConflict, message, nil)
}

// NotFoundError reports a missing document or row.
func NotFoundError(message string) *HibikidoError {
	return New(ErrCodeNotFound, message, nil)
}

// StoreError wraps a persistence-layer failure from the document store.
func StoreError(message string, cause error) *HibikidoError {
	return New(ErrCodeStoreIO, message, cause)
}

// IndexError wraps a vector-index I/O failure.
func IndexError(message string, cause error) *HibikidoError {
	return New(ErrCodeIndexIO, message, cause)
}

// EmbeddingError wraps an embedding-provider failure.
func EmbeddingError(message string, cause error) *HibikidoError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// InternalError wraps an unexpected internal failure.
func InternalError(message string, cause error) *HibikidoError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal reports whether err (if a HibikidoError) has fatal severity.
func IsFatal(err error) bool {
	he, ok := err.(*HibikidoError)
	return ok && he.Severity == SeverityFatal
}

// Code extracts the error code, or "" if err is not a HibikidoError.
func Code(err error) string {
	if he, ok := err.(*HibikidoError); ok {
		return he.Code
	}
	return ""
}
