package common

import (
	"errors"
	"fmt"
)

// Error codes. The first three are fatal for the case they occur in;
// TOOL_INVOCATION and MISSING_ARTIFACT are recorded as diagnostics.
const (
	CodeSchema          = "SCHEMA_ERROR"
	CodeNetwork         = "NETWORK_ERROR"
	CodeParse           = "PARSE_ERROR"
	CodeToolInvocation  = "TOOL_INVOCATION_ERROR"
	CodeMissingArtifact = "MISSING_ARTIFACT_ERROR"
	CodeIO              = "IO_ERROR"
	CodeConfig          = "CONFIG_ERROR"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match an AppError against the sentinel of its code.
func (e *AppError) Is(target error) bool {
	s, ok := sentinels[e.Code]
	return ok && s == target
}

// Common application errors
var (
	ErrSchema          = errors.New("schema error")
	ErrNetwork         = errors.New("network error")
	ErrParse           = errors.New("parse error")
	ErrToolInvocation  = errors.New("tool invocation error")
	ErrMissingArtifact = errors.New("missing artifact")
	ErrIO              = errors.New("io error")
	ErrInvalidInput    = errors.New("invalid input")
)

var sentinels = map[string]error{
	CodeSchema:          ErrSchema,
	CodeNetwork:         ErrNetwork,
	CodeParse:           ErrParse,
	CodeToolInvocation:  ErrToolInvocation,
	CodeMissingArtifact: ErrMissingArtifact,
	CodeIO:              ErrIO,
	CodeConfig:          ErrInvalidInput,
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func SchemaError(message string) *AppError {
	return NewAppError(CodeSchema, message, nil)
}

func NetworkError(message string, cause error) *AppError {
	return NewAppError(CodeNetwork, message, cause)
}

func ParseError(message string, cause error) *AppError {
	return NewAppError(CodeParse, message, cause)
}

func ToolInvocationError(message string, cause error) *AppError {
	return NewAppError(CodeToolInvocation, message, cause)
}

func MissingArtifactError(path string) *AppError {
	return NewAppError(CodeMissingArtifact, fmt.Sprintf("'%s': No such file or directory", path), nil)
}

func IOError(message string, cause error) *AppError {
	return NewAppError(CodeIO, message, cause)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodeOf returns the AppError code found in err's chain, or "" if none.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsFatal reports whether err must end processing of the current case.
// Anything that is not explicitly a diagnostic kind is treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case CodeToolInvocation, CodeMissingArtifact:
		return false
	}
	return true
}
