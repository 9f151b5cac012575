package dispatch

import (
	"errors"
	"fmt"
)

var ErrUnknownService = errors.New("unknown service")

// Kind classifies a failed outbound call. The distinction between a
// timeout and a transport failure is load-bearing: the boundary maps
// them to 504 and 502 respectively.
type Kind int

const (
	KindTimeout Kind = iota
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is a classified outbound call failure.
type Error struct {
	Kind    Kind
	Service string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch to %s failed (%s): %v", e.Service, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
