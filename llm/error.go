package llm

import "fmt"

// SdkErrorKind classifies a provider failure so callers can decide whether
// to retry, surface to the user, or escalate (spec §4.2).
type SdkErrorKind string

const (
	SdkErrorInvalidRequest  SdkErrorKind = "invalid_request"
	SdkErrorAuthentication  SdkErrorKind = "authentication"
	SdkErrorRateLimited     SdkErrorKind = "rate_limited"
	SdkErrorServer          SdkErrorKind = "server"
	SdkErrorStream          SdkErrorKind = "stream"
	SdkErrorNetworkTimeout  SdkErrorKind = "network_timeout"
	SdkErrorCancelled       SdkErrorKind = "cancelled"
)

// ProviderDetails carries the raw, provider-specific diagnostic payload
// alongside the normalized SdkError, so callers that need provider-exact
// detail (e.g. surfacing a provider's own error code in a UI) aren't
// limited to the normalized Kind/Message.
type ProviderDetails struct {
	Provider   string
	StatusCode int
	RawBody    string
	RequestID  string
}

// SdkError is the normalized error type returned by every provider
// translator, regardless of which SDK actually produced the underlying
// failure.
type SdkError struct {
	Kind     SdkErrorKind
	Message  string
	Details  ProviderDetails
	cause    error
}

// NewSdkError constructs an SdkError of the given kind.
func NewSdkError(kind SdkErrorKind, message string) *SdkError {
	return &SdkError{Kind: kind, Message: message}
}

// WrapSdkError constructs an SdkError wrapping a lower-level cause.
func WrapSdkError(kind SdkErrorKind, cause error, details ProviderDetails) *SdkError {
	return &SdkError{Kind: kind, Message: cause.Error(), Details: details, cause: cause}
}

// Error implements the error interface.
func (e *SdkError) Error() string {
	return fmt.Sprintf("llm: %s (%s): %s", e.Kind, e.Details.Provider, e.Message)
}

// Unwrap supports errors.Is/As against the underlying provider SDK error.
func (e *SdkError) Unwrap() error { return e.cause }

// IsRetryable reports whether the failure is worth retrying with backoff:
// rate limiting, transient server errors, network timeouts, and mid-stream
// hiccups, but never invalid requests, auth failures, or cancellation.
func (e *SdkError) IsRetryable() bool {
	switch e.Kind {
	case SdkErrorRateLimited, SdkErrorServer, SdkErrorNetworkTimeout, SdkErrorStream:
		return true
	default:
		return false
	}
}
