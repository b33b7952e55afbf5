package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/codexmonitor/daemonctl/internal/errors"
)

var (
	// ErrTimeout is returned when the response deadline elapses.
	ErrTimeout = errors.New("timed out waiting for daemon response")
	// ErrConnectionClosed is returned when the daemon closes the stream.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrMissingResult is returned for a response with neither result nor error.
	ErrMissingResult = errors.New("daemon response missing result")
)

// Response is a decoded response line.
type Response struct {
	ID     uint64
	Result json.RawMessage // nil when the response has no result field
	Error  json.RawMessage // nil when the response has no error field
}

// ErrorMessage returns error.message when the response carries one.
// Error objects without a string message are not treated as failures.
func (r *Response) ErrorMessage() (string, bool) {
	if r.Error == nil {
		return "", false
	}
	var body map[string]any
	if err := json.Unmarshal(r.Error, &body); err != nil {
		return "", false
	}
	message, ok := body["message"].(string)
	return message, ok
}

// TransportError is a failure of the underlying connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for the controller.
func (e *TransportError) ErrorKind() apperrors.Kind { return apperrors.KindTransport }

// ProtocolError is a malformed or incomplete message.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return e.Err.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for the controller.
func (e *ProtocolError) ErrorKind() apperrors.Kind { return apperrors.KindProtocol }

// RemoteError is a business-level rejection reported by the daemon.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// ErrorKind classifies the error for the controller.
func (e *RemoteError) ErrorKind() apperrors.Kind { return apperrors.KindRemote }

// IsAuthError reports whether a daemon error message means the request was
// rejected for missing or bad credentials.
func IsAuthError(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid token")
}

// IsAuthRejection reports whether err is a daemon error response whose
// message is an auth failure. Transport and framing errors never are,
// whatever text they carry.
func IsAuthRejection(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && IsAuthError(remote.Message)
}

// IsTimeout reports whether err is a response or connect timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
