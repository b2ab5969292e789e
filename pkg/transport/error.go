package transport

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/immodoc/immodoc/pkg/errors"
)

// TransportError is the typed failure returned by Call. Latency is always
// populated, even for failed requests.
type TransportError struct {
	Status    int
	IsTimeout bool
	Message   string
	Latency   time.Duration
}

// Error implements the error interface
func (e *TransportError) Error() string {
	switch {
	case e.IsTimeout:
		return fmt.Sprintf("request timed out after %s", e.Latency.Round(time.Millisecond))
	case e.Status > 0:
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("network error: %s", e.Message)
	}
}

// Code maps the transport failure onto the structured error taxonomy.
func (e *TransportError) Code() apperrors.ErrorCode {
	switch {
	case e.IsTimeout:
		return apperrors.ErrCodeTimeout
	case e.Status == http.StatusUnauthorized:
		return apperrors.ErrCodeUnauthorized
	case e.Status == http.StatusRequestEntityTooLarge:
		return apperrors.ErrCodePayloadTooLarge
	case e.Status == http.StatusTooManyRequests:
		return apperrors.ErrCodeRateLimited
	case e.Status == 0:
		return apperrors.ErrCodeNetworkUnreachable
	default:
		return apperrors.ErrCodeServerRejected
	}
}

// Fixed user-facing messages for failures where the server text is either
// absent or must not be shown.
const (
	msgTimeout     = "The request took too long. Please try again."
	msgUnreachable = "Cannot reach the server. Please check your connection and the API address."
	msgSessionOver = "Your session has expired. Please sign in again."
	msgTooLarge    = "The file is too large to upload."
	msgRateLimited = "Too many requests. Please wait a moment and try again."
	msgGeneric     = "Something went wrong. Please try again."
)

// internalsPattern matches server-side implementation detail that must not
// leak into user-facing messages (stack traces, ORM/database errors).
var internalsPattern = regexp.MustCompile(`(?i)traceback|stack\s*trace|exception|sqlalchemy|psycopg|sqlite3|panic:|goroutine\s+\d|internal server error|nonetype|keyerror|valueerror`)

// UserMessage normalizes a transport failure into a message safe to show
// to users. Server-provided text passes through verbatim unless it looks
// like leaked internals.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	te, ok := err.(*TransportError)
	if !ok {
		if appErr, isApp := err.(*apperrors.Error); isApp {
			return apperrors.UserMessageOf(appErr)
		}
		return msgGeneric
	}

	switch {
	case te.IsTimeout:
		return msgTimeout
	case te.Status == http.StatusUnauthorized:
		return msgSessionOver
	case te.Status == http.StatusRequestEntityTooLarge:
		if msg := strings.TrimSpace(te.Message); msg != "" && !internalsPattern.MatchString(msg) {
			return msg
		}
		return msgTooLarge
	case te.Status == http.StatusTooManyRequests:
		if msg := strings.TrimSpace(te.Message); msg != "" && !internalsPattern.MatchString(msg) {
			return msg
		}
		return msgRateLimited
	case te.Status == 0:
		return msgUnreachable
	}

	msg := strings.TrimSpace(te.Message)
	if msg == "" || internalsPattern.MatchString(msg) {
		return msgGeneric
	}
	return msg
}
