package tokensdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	CodeInvalidArgument   = "invalid_argument"
	CodeUnauthenticated   = "unauthenticated"
	CodeInternal          = "internal"
	CodeUnavailable       = "unavailable"
	CodeDeadlineExceeded  = "deadline_exceeded"
	CodeResourceExhausted = "resource_exhausted"
)

// StatusForCode returns the HTTP status the token service uses for code.
func StatusForCode(code string) int {
	switch code {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case CodeResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// Error
// ============================================================================

// Error is the typed error of the token RPC. The server writes it, the client
// decodes it back, and failures that never reached the server (no endpoint,
// connection refused, deadline) are reported with the same type.
type Error struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is one of the Code* constants
	Code string `json:"code"`

	// Message is a human-readable description of the error
	Message string `json:"message"`

	// Err is the underlying cause for client-side failures
	Err error `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WriteError writes e as the JSON error body with no-cache headers.
func (e *Error) WriteError(w http.ResponseWriter) {
	status := e.StatusCode
	if status == 0 {
		status = StatusForCode(e.Code)
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Code: e.Code, Message: e.Message})
}

// NewError builds an Error whose status follows the code.
func NewError(code, message string) *Error {
	return &Error{StatusCode: StatusForCode(code), Code: code, Message: message}
}

// CodeOf extracts the error code from err, or "" when err is not an *Error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	ErrInvalidBody = NewError(CodeInvalidArgument, "request body must be a JSON object")
	ErrMissingSub  = NewError(CodeInvalidArgument, "sub is required")
	ErrMissingAud  = NewError(CodeInvalidArgument, "aud is required")
	ErrMissingVal  = NewError(CodeInvalidArgument, "value is required")
	ErrInternal    = NewError(CodeInternal, "internal server error")
)

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into an *Error. Bodies that are
// not ours (a proxy page, an empty 502) fall back to the status code.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Code != "" {
		return &Error{
			StatusCode: resp.StatusCode,
			Code:       errResp.Code,
			Message:    errResp.Message,
		}
	}

	code := CodeInternal
	switch resp.StatusCode {
	case http.StatusBadRequest:
		code = CodeInvalidArgument
	case http.StatusUnauthorized:
		code = CodeUnauthenticated
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		code = CodeUnavailable
	case http.StatusTooManyRequests:
		code = CodeResourceExhausted
	case http.StatusGatewayTimeout:
		code = CodeDeadlineExceeded
	}

	return &Error{
		StatusCode: resp.StatusCode,
		Code:       code,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}

// transportError classifies a failure to get any response at all. A
// cancelled context is passed through untouched so callers can tell the
// client went away.
func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}

	var timeout interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &timeout) && timeout.Timeout()) {
		return &Error{
			StatusCode: http.StatusGatewayTimeout,
			Code:       CodeDeadlineExceeded,
			Message:    "token service did not answer in time",
			Err:        err,
		}
	}

	return &Error{
		StatusCode: http.StatusServiceUnavailable,
		Code:       CodeUnavailable,
		Message:    "token service unreachable",
		Err:        err,
	}
}
