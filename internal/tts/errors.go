package tts

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per failure kind. A *TTSError matches the sentinel of
// its code under errors.Is.
var (
	// ErrInvalidRequest indicates a malformed text, language, voice or option.
	ErrInvalidRequest = errors.New("invalid synthesis request")

	// ErrIO indicates the cache storage could not be read or written.
	ErrIO = errors.New("cache storage failure")

	// ErrBackendUnavailable indicates a local engine is not installed or disabled.
	ErrBackendUnavailable = errors.New("TTS backend unavailable")

	// ErrAuthentication indicates missing or rejected provider credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrQuota indicates the provider rejected the call for rate or quota reasons.
	ErrQuota = errors.New("quota exceeded")

	// ErrNetwork indicates a transport failure or timeout talking to a provider.
	ErrNetwork = errors.New("network failure")

	// ErrSynthesis indicates the backend ran but produced no usable audio.
	ErrSynthesis = errors.New("text synthesis failed")
)

// ErrorCode identifies specific error types
type ErrorCode string

const (
	ErrorCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrorCodeIO                 ErrorCode = "IO_FAILURE"
	ErrorCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrorCodeAuthentication     ErrorCode = "AUTHENTICATION_FAILURE"
	ErrorCodeQuota              ErrorCode = "QUOTA_FAILURE"
	ErrorCodeNetwork            ErrorCode = "NETWORK_FAILURE"
	ErrorCodeSynthesis          ErrorCode = "SYNTHESIS_FAILURE"
)

var codeSentinels = map[ErrorCode]error{
	ErrorCodeInvalidRequest:     ErrInvalidRequest,
	ErrorCodeIO:                 ErrIO,
	ErrorCodeBackendUnavailable: ErrBackendUnavailable,
	ErrorCodeAuthentication:     ErrAuthentication,
	ErrorCodeQuota:              ErrQuota,
	ErrorCodeNetwork:            ErrNetwork,
	ErrorCodeSynthesis:          ErrSynthesis,
}

// TTSError represents a TTS-specific error with additional context
type TTSError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *TTSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TTSError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this error's code.
func (e *TTSError) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}

// NewTTSError creates a new TTS error with context
func NewTTSError(code ErrorCode, message string, cause error) *TTSError {
	return &TTSError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *TTSError) WithContext(key string, value interface{}) *TTSError {
	e.Context[key] = value
	return e
}

// IsRetryable returns true if the operation can be retried.
// Only transport failures qualify; auth and quota failures never do.
func (e *TTSError) IsRetryable() bool {
	return e.Code == ErrorCodeNetwork
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not a TTSError.
func CodeOf(err error) ErrorCode {
	var te *TTSError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsRetryable reports whether err is a retryable TTSError.
func IsRetryable(err error) bool {
	var te *TTSError
	return errors.As(err, &te) && te.IsRetryable()
}

// Convenience constructors for each failure kind.

func InvalidRequest(message string, cause error) *TTSError {
	return NewTTSError(ErrorCodeInvalidRequest, message, cause)
}

func IOFailure(message string, cause error) *TTSError {
	return NewTTSError(ErrorCodeIO, message, cause)
}

func BackendUnavailable(message string, cause error) *TTSError {
	return NewTTSError(ErrorCodeBackendUnavailable, message, cause)
}

func AuthenticationFailure(message string, cause error) *TTSError {
	return NewTTSError(ErrorCodeAuthentication, message, cause)
}

func QuotaFailure(message string, cause error) *TTSError {
	return NewTTSError(ErrorCodeQuota, message, cause)
}

func NetworkFailure(message string, cause error) *TTSError {
	return NewTTSError(ErrorCodeNetwork, message, cause)
}

func SynthesisFailure(message string, cause error) *TTSError {
	return NewTTSError(ErrorCodeSynthesis, message, cause)
}
