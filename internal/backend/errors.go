package backend

import (
	"github.com/pkg/errors"
)

// Kind classifies a failed backend call.
type Kind int

const (
	// KindUnexpected covers failures that are neither transport nor HTTP.
	KindUnexpected Kind = iota
	// KindTransport means no response was received.
	KindTransport
	// KindServer is a non-2xx response other than 401.
	KindServer
	// KindUnauthorized is a 401 on an authenticated call; the session is stale.
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unexpected"
	}
}

// User-facing messages.
const (
	MsgNetwork    = "Network error. Please check your internet connection."
	MsgUnexpected = "An unexpected error occurred. Please try again."
	MsgNoIdentity = "Login successful, but no valid instructor ID was received from the server. Please contact your system administrator."
)

// Error is returned by every Client call that fails.
type Error struct {
	Kind    Kind
	Status  int
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// ErrNoIdentity is returned by Login when no usable instructor id was found.
var ErrNoIdentity = errors.New(MsgNoIdentity)

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsUnauthorized reports whether err means the backend rejected the session token.
func IsUnauthorized(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindUnauthorized
}
