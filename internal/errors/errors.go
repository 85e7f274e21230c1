package errors

import (
	"errors"
	"fmt"
)

// Standard application errors
var (
	ErrEmptyInput        = errors.New("input is empty or contains only whitespace")
	ErrInvalidJSON       = errors.New("invalid JSON format")
	ErrTrailingData      = errors.New("unexpected data after the root value")
	ErrFileNotFound      = errors.New("file not found")
	ErrFileEmpty         = errors.New("file is empty")
	ErrNoInput           = errors.New("no input provided: please specify a file with -i or pipe JSON data to stdin")
	ErrInvalidFilePath   = errors.New("invalid file path")
	ErrUnclassifiable    = errors.New("type has no serialization capability")
	ErrUnsupportedFormat = errors.New("unsupported wire format")
)

// ErrorType categorizes errors
type ErrorType string

const (
	ErrorTypeInput          ErrorType = "input"
	ErrorTypeParsing        ErrorType = "parsing"
	ErrorTypeClassification ErrorType = "classification"
	ErrorTypeRegistry       ErrorType = "registry"
	ErrorTypeFormat         ErrorType = "format"
	ErrorTypeOutput         ErrorType = "output"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// AppError is an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *AppError of the same type.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewInputError creates a new error related to input processing
func NewInputError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInput,
		Message: message,
		Err:     err,
	}
}

// NewParsingError creates a new error related to reading wire text
func NewParsingError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeParsing,
		Message: message,
		Err:     err,
	}
}

// NewClassificationError creates a new error for a type that cannot be serialized
func NewClassificationError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeClassification,
		Message: message,
		Err:     err,
	}
}

// NewRegistryError creates a new error related to override registration
func NewRegistryError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeRegistry,
		Message: message,
		Err:     err,
	}
}

// NewFormatError creates a new error related to rendering a value
func NewFormatError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeFormat,
		Message: message,
		Err:     err,
	}
}

// NewOutputError creates a new error related to output processing
func NewOutputError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeOutput,
		Message: message,
		Err:     err,
	}
}

// NewConfigError creates a new error related to configuration loading
func NewConfigError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeConfig,
		Message: message,
		Err:     err,
	}
}

// UserFriendlyError returns a user-friendly error message
func UserFriendlyError(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case ErrorTypeInput:
			return fmt.Sprintf("Input error: %s", appErr.Message)
		case ErrorTypeParsing:
			if appErr.Err != nil && !errors.Is(appErr.Err, ErrInvalidJSON) {
				return fmt.Sprintf("JSON parsing error: %s (%v)", appErr.Message, appErr.Err)
			}
			return fmt.Sprintf("JSON parsing error: %s", appErr.Message)
		case ErrorTypeClassification:
			return fmt.Sprintf("Type classification error: %s", appErr.Message)
		case ErrorTypeRegistry:
			return fmt.Sprintf("Override registry error: %s", appErr.Message)
		case ErrorTypeFormat:
			return fmt.Sprintf("Formatting error: %s", appErr.Message)
		case ErrorTypeOutput:
			return fmt.Sprintf("Output error: %s", appErr.Message)
		case ErrorTypeConfig:
			return fmt.Sprintf("Configuration error: %s", appErr.Message)
		default:
			return fmt.Sprintf("Error: %s", appErr.Message)
		}
	}

	// Handle standard errors
	if errors.Is(err, ErrEmptyInput) {
		return "Error: The input is empty. Please provide valid JSON data."
	}
	if errors.Is(err, ErrInvalidJSON) {
		return "Error: The input contains invalid JSON. Please check your JSON syntax."
	}
	if errors.Is(err, ErrTrailingData) {
		return "Error: Unexpected data after the first JSON value. Please provide a single JSON value."
	}
	if errors.Is(err, ErrFileNotFound) {
		return "Error: The specified file could not be found. Please check the file path."
	}
	if errors.Is(err, ErrFileEmpty) {
		return "Error: The specified file is empty. Please provide a file with valid JSON content."
	}
	if errors.Is(err, ErrNoInput) {
		return "Error: No input provided. Please specify a file with -i or pipe JSON data to stdin."
	}
	if errors.Is(err, ErrInvalidFilePath) {
		return "Error: Invalid file path. Please provide a valid file path."
	}
	if errors.Is(err, ErrUnsupportedFormat) {
		return "Error: Unsupported output format. Use one of: json, text."
	}

	// Generic error message for unknown errors
	return fmt.Sprintf("Error: %v", err)
}
