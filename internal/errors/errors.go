// Package errors provides the structured error type reported by calendar
// fetchers. The status engine treats every FetchError the same way; the
// code only distinguishes causes in logs.
//
//nolint:revive // Package name intentionally shadows stdlib errors for convenience.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/url"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeNotInitialized Code = "F101"
	CodeNetwork        Code = "F201"
	CodeProvider       Code = "F301"
	CodeDecode         Code = "F302"
)

// FetchError is returned by a calendar fetcher when a poll could not
// produce an event list.
type FetchError struct {
	Code Code `json:"code"`

	// Message is the provider's message when one was reported.
	Message string `json:"message"`

	// URL is the endpoint involved, already redacted for logging.
	URL string `json:"url,omitempty"`

	// StatusCode is the HTTP status (0 if none was received).
	StatusCode int `json:"statusCode,omitempty"`

	// Hint is actionable advice for the operator.
	Hint string `json:"hint,omitempty"`

	Cause error `json:"-"`
}

func (e *FetchError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Is matches another *FetchError with the same Code.
func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithHint sets the hint and returns the error for chaining.
func (e *FetchError) WithHint(hint string) *FetchError {
	e.Hint = hint
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotInitialized = &FetchError{Code: CodeNotInitialized}
	ErrNetwork        = &FetchError{Code: CodeNetwork}
	ErrProvider       = &FetchError{Code: CodeProvider}
)

// NotInitialized reports a fetch attempted before the client handshake.
func NotInitialized() *FetchError {
	return &FetchError{
		Code:    CodeNotInitialized,
		Message: "calendar client not initialized",
		Hint:    "call Init before the first fetch",
	}
}

// Network wraps a transport-level failure.
func Network(url string, cause error) *FetchError {
	return &FetchError{
		Code:    CodeNetwork,
		Message: "calendar request failed",
		URL:     url,
		Cause:   cause,
	}
}

// Provider reports an error payload returned by the calendar provider.
func Provider(url string, statusCode int, message string) *FetchError {
	if message == "" {
		message = "calendar provider error"
	}
	return &FetchError{
		Code:       CodeProvider,
		Message:    message,
		URL:        url,
		StatusCode: statusCode,
	}
}

// Decode reports a response body that could not be interpreted.
func Decode(url string, cause error) *FetchError {
	return &FetchError{
		Code:    CodeDecode,
		Message: "calendar response could not be decoded",
		URL:     url,
		Cause:   cause,
	}
}

// AsFetchError extracts a *FetchError from err's chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if stderrors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// RedactURL keeps only the scheme and host of raw, since paths and query
// strings of calendar URLs carry keys and private tokens.
func RedactURL(raw string) string {
	const redacted = "...(redacted)"
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return redacted
	}
	return u.Scheme + "://" + u.Host + "/" + redacted
}
