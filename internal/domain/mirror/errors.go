package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// InvalidRequestCode tags upstream 4xx rejections (other than 404) so clients can tell
// them apart from local validation failures.
const InvalidRequestCode = 1000

var (
	ErrUnavailable    = errors.New("github api is currently unavailable")
	ErrNotFound       = errors.New("resource not found on github")
	ErrInvalidRequest = errors.New("github rejected the request")
	ErrValidation     = errors.New("invalid input")
)

// RemoteError is the normalized failure of one upstream call. It unwraps to one of
// ErrUnavailable, ErrNotFound or ErrInvalidRequest, plus the transport cause if any.
type RemoteError struct {
	Kind       error
	Method     string
	URL        string
	StatusCode int
	Message    string
	Code       int
	Payload    json.RawMessage
	Cause      error
}

func (e *RemoteError) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RemoteError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

func (e *RemoteError) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("remote_method", e.Method),
		slog.String("remote_url", e.URL),
		slog.Int("remote_status", e.StatusCode),
	}
	if e.Code != 0 {
		attrs = append(attrs, slog.Int("remote_code", e.Code))
	}
	return attrs
}

func NewUnavailable(method string, url string, status int, message string, cause error) *RemoteError {
	return &RemoteError{
		Kind:       ErrUnavailable,
		Method:     method,
		URL:        url,
		StatusCode: status,
		Message:    message,
		Cause:      cause,
	}
}

func NewNotFound(method string, url string) *RemoteError {
	return &RemoteError{
		Kind:       ErrNotFound,
		Method:     method,
		URL:        url,
		StatusCode: 404,
	}
}

func NewInvalidRequest(method string, url string, status int, message string, payload json.RawMessage) *RemoteError {
	return &RemoteError{
		Kind:       ErrInvalidRequest,
		Method:     method,
		URL:        url,
		StatusCode: status,
		Message:    message,
		Code:       InvalidRequestCode,
		Payload:    payload,
	}
}

// AsRemoteError returns the RemoteError in err's chain, if any.
func AsRemoteError(err error) (*RemoteError, bool) {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote, true
	}
	return nil, false
}

// Validationf builds an ErrValidation-wrapped error.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
