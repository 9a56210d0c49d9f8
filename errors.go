package audit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrSessionActive indicates Open was called while another session is
	// still streaming.
	ErrSessionActive = errors.New("a stream session is already active")

	// ErrUnauthenticated indicates the credential was missing or rejected.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrTransport indicates the request could not be sent or the
	// connection dropped.
	ErrTransport = errors.New("transport error")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")
)

// StatusError is returned when the pipeline service answers with a
// non-success HTTP status. Body is captured verbatim.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Is makes 401 and 403 responses match ErrUnauthenticated.
func (e *StatusError) Is(target error) bool {
	if target != ErrUnauthenticated {
		return false
	}
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// UpstreamError is an application-level error record received mid-stream.
// Code is the optional structured error kind sent by the service.
type UpstreamError struct {
	Message string
	Code    string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream error (%s): %s", e.Code, e.Message)
	}
	return "upstream error: " + e.Message
}

// Overloaded reports whether the error signals exhausted upstream capacity.
// The structured code is authoritative when present; the substring checks
// remain for services that only send free text.
func (e *UpstreamError) Overloaded() bool {
	switch strings.ToLower(e.Code) {
	case "overloaded", "unavailable", "resource_exhausted", "503":
		return true
	case "":
	default:
		return false
	}
	return strings.Contains(e.Message, "503") || strings.Contains(strings.ToLower(e.Message), "overloaded")
}

// User-facing messages.
const (
	MessageOverloaded   = "System is currently overloaded. Please wait a moment and try again."
	MessageHighTraffic  = "The audit service is currently experiencing high traffic. Please try again in 30 seconds."
	MessageConnectivity = "Unable to reach the audit service. Check your connection and try again."
	MessageAuth         = "Authentication failed. Sign in again and retry."
)

// ErrorMessage formats err as the markdown content shown in place of the
// assistant's answer. It returns an empty string for a nil error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		msg := upstream.Message
		if upstream.Overloaded() {
			msg = MessageOverloaded
		}
		return "⚠️ **System Alert**: " + msg
	}

	var body string
	var status *StatusError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		body = MessageAuth
	case errors.As(err, &status):
		if status.StatusCode == http.StatusServiceUnavailable {
			body = MessageHighTraffic
		} else {
			body = "Server Error (" + strconv.Itoa(status.StatusCode) + "): " + status.Body
		}
	case errors.Is(err, ErrTransport):
		body = MessageConnectivity
	default:
		body = err.Error()
	}
	return "### ⚠️ Connection Interrupted\n\n" + body
}
