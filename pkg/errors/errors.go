package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Configuration errors (fatal to the whole run)
	ErrConfigLoad        ErrorCode = "CONFIG_LOAD"
	ErrConfigParse       ErrorCode = "CONFIG_PARSE"
	ErrConfigInvalid     ErrorCode = "CONFIG_INVALID"
	ErrManifestVersion   ErrorCode = "MANIFEST_VERSION"
	ErrTemplateInvalid   ErrorCode = "TEMPLATE_INVALID"
	ErrVarUnresolved     ErrorCode = "VAR_UNRESOLVED"
	ErrCyclicVariable    ErrorCode = "CYCLIC_VARIABLE"
	ErrCaptureOutOfRange ErrorCode = "CAPTURE_OUT_OF_RANGE"

	// Target errors (fatal to one target only)
	ErrSourceMissing  ErrorCode = "SOURCE_MISSING"
	ErrDestUnwritable ErrorCode = "DEST_UNWRITABLE"

	// Pipeline errors
	ErrPipelineInvalid ErrorCode = "PIPELINE_INVALID"
	ErrStepNotFound    ErrorCode = "STEP_NOT_FOUND"
	ErrPipelineStep    ErrorCode = "PIPELINE_STEP"

	// Version store errors
	ErrVersionNotFound ErrorCode = "VERSION_NOT_FOUND"
	ErrSymlinkCreate   ErrorCode = "SYMLINK_CREATE"
	ErrCopy            ErrorCode = "COPY"

	// FileSystem errors
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrFileAccess   ErrorCode = "FILE_ACCESS"
	ErrFileWrite    ErrorCode = "FILE_WRITE"
	ErrDirCreate    ErrorCode = "DIR_CREATE"
)

// DistError represents a structured error with code and details
type DistError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *DistError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *DistError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *DistError) Is(target error) bool {
	var targetErr *DistError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new DistError with the given code and message
func New(code ErrorCode, message string) *DistError {
	return &DistError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new DistError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *DistError {
	return &DistError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a DistError
func Wrap(err error, code ErrorCode, message string) *DistError {
	if err == nil {
		return nil
	}
	return &DistError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *DistError {
	if err == nil {
		return nil
	}
	return &DistError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *DistError) WithDetail(key string, value interface{}) *DistError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var distErr *DistError
	if errors.As(err, &distErr) {
		return distErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if
// not a DistError
func GetErrorCode(err error) ErrorCode {
	var distErr *DistError
	if errors.As(err, &distErr) {
		return distErr.Code
	}
	return ErrUnknown
}

// IsFatal reports whether an error aborts the whole run rather than a
// single target. Configuration and template errors are detected before
// any filesystem mutation, so nothing is safe to attempt after them.
func IsFatal(err error) bool {
	switch GetErrorCode(err) {
	case ErrConfigLoad, ErrConfigParse, ErrConfigInvalid, ErrManifestVersion,
		ErrTemplateInvalid, ErrVarUnresolved, ErrCyclicVariable,
		ErrCaptureOutOfRange, ErrPipelineInvalid:
		return true
	}
	return false
}
