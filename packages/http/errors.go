package http

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure by how far the exchange got.
type Kind int

const (
	// KindInvalidRequest means the descriptor was rejected and nothing was sent.
	KindInvalidRequest Kind = iota + 1
	// KindTransport means the request was attempted but the exchange failed.
	KindTransport
	// KindInternal means a response was received but could not be serialized.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindTransport:
		return "transport"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the tagged error returned by Execute and Fetch.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == KindTransport {
		// transport messages pass through verbatim
		return e.Err.Error()
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError tags err with kind. It lets callers that validate input before a
// descriptor exists report failures in the same taxonomy.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func invalidRequest(op string, err error) *Error {
	return &Error{Kind: KindInvalidRequest, Op: op, Err: err}
}

func transportError(err error) *Error {
	return &Error{Kind: KindTransport, Op: "send", Err: err}
}

func internalError(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// KindOf reports the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// IsInvalidRequest reports whether err was raised before any network I/O.
func IsInvalidRequest(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindInvalidRequest
}

// IsTransport reports whether err came from the network exchange.
func IsTransport(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindTransport
}
