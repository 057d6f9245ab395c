package types

import "errors"

// ErrorKind classifies errors surfaced by the engine.
type ErrorKind int

const (
	KindTransport ErrorKind = iota + 1
	KindCrypto
	KindProtocol
	KindHistory
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindCrypto:
		return "crypto"
	case KindProtocol:
		return "protocol"
	case KindHistory:
		return "history"
	default:
		return "unknown"
	}
}

// Error is a classified sentinel error. Compare with errors.Is against the
// package-level sentinels; classify with IsKind.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// NewError returns a classified sentinel.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// IsKind reports whether any error in err's chain is an *Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
