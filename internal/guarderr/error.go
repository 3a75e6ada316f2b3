// Package guarderr defines the error types that decide how a failure is
// reported to a webhook sender.
package guarderr

import (
	"errors"
	"fmt"
)

// ErrEventNotImplemented is returned for webhook events that are valid but
// not handled.
var ErrEventNotImplemented = errors.New("event not implemented")

// VerificationReason describes why a webhook signature was rejected.
type VerificationReason string

const (
	ReasonMissingHeader     VerificationReason = "missing-header"
	ReasonMalformedHeader   VerificationReason = "malformed-header"
	ReasonSignatureMismatch VerificationReason = "signature-mismatch"
)

// VerificationError is returned when the authenticity of a webhook request
// could not be verified.
type VerificationError struct {
	Reason VerificationReason
	// Err is the wrapped original error, it can be nil.
	Err error
}

func NewVerificationError(reason VerificationReason, err error) *VerificationError {
	return &VerificationError{Reason: reason, Err: err}
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

func (e *VerificationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("webhook verification failed: %s", e.Reason)
	}

	return fmt.Sprintf("webhook verification failed: %s: %s", e.Reason, e.Err)
}

// PayloadError is returned when the payload of a supported event does not
// have the expected shape.
type PayloadError struct {
	EventType string
	Err       error
}

func NewPayloadError(eventType string, err error) *PayloadError {
	return &PayloadError{EventType: eventType, Err: err}
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("invalid %s event payload: %s", e.EventType, e.Err)
}

// UpstreamError is returned when a GitHub API call failed.
type UpstreamError struct {
	// Op is the name of the failed operation.
	Op string
	// StatusCode is the HTTP status code of the response, 0 if no
	// response was received.
	StatusCode int
	Err        error
}

func NewUpstreamError(op string, statusCode int, err error) *UpstreamError {
	return &UpstreamError{Op: op, StatusCode: statusCode, Err: err}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("github api: %s failed: %s", e.Op, e.Err)
	}

	return fmt.Sprintf("github api: %s failed with status %d: %s", e.Op, e.StatusCode, e.Err)
}

// AuthError is returned when an installation token could not be retrieved.
// When the token exchange failed, Err is an *UpstreamError.
type AuthError struct {
	InstallationID int64
	Err            error
}

func NewAuthError(installationID int64, err error) *AuthError {
	return &AuthError{InstallationID: installationID, Err: err}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("retrieving token for installation %d failed: %s", e.InstallationID, e.Err)
}

// ConfigError is returned when the configuration is invalid.
type ConfigError struct {
	Field string
	Err   error
}

func NewConfigError(field, msg string) *ConfigError {
	return &ConfigError{Field: field, Err: errors.New(msg)}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Err)
}

// IsUpstream returns true if err is caused by a failed GitHub API call or a
// failed token retrieval.
func IsUpstream(err error) bool {
	var upstreamErr *UpstreamError
	var authErr *AuthError

	return errors.As(err, &upstreamErr) || errors.As(err, &authErr)
}
