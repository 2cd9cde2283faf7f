package interfaces

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the network client.
type ErrorKind int

const (
	KindHandshake ErrorKind = iota + 1
	KindNetwork
	KindCrypto
	KindConfig
	KindAccessControl
)

func (k ErrorKind) String() string {
	switch k {
	case KindHandshake:
		return "handshake error"
	case KindNetwork:
		return "network error"
	case KindCrypto:
		return "crypto error"
	case KindConfig:
		return "config error"
	case KindAccessControl:
		return "access control conditions error"
	default:
		return "error"
	}
}

// Error is a classified error. Errors built by the kind constructors carry the
// text of Err in Msg; NewError keeps Msg and Err separate.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind-only sentinels such as ErrNetwork.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrHandshake     = &Error{Kind: KindHandshake}
	ErrNetwork       = &Error{Kind: KindNetwork}
	ErrCrypto        = &Error{Kind: KindCrypto}
	ErrConfig        = &Error{Kind: KindConfig}
	ErrAccessControl = &Error{Kind: KindAccessControl}
)

// Causes carried by classified errors, matched with errors.Is.
var (
	// ErrInsufficientSuccesses means fewer nodes answered successfully than the
	// operation needs.
	ErrInsufficientSuccesses = errors.New("insufficient successful responses")
	// ErrInsufficientNodes means fewer nodes are available than the threshold.
	ErrInsufficientNodes = errors.New("insufficient nodes")
	ErrHandshakeTimeout  = errors.New("handshake timed out")
)

// NewError returns an error of the given kind caused by cause.
func NewError(kind ErrorKind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

func newError(kind ErrorKind, format string, args ...any) error {
	wrapped := fmt.Errorf(format, args...)
	e := &Error{Kind: kind, Msg: wrapped.Error()}
	if u, ok := wrapped.(interface{ Unwrap() error }); ok {
		e.Err = u.Unwrap()
	}
	return e
}

// HandshakeError returns a KindHandshake error. The format supports %w.
func HandshakeError(format string, args ...any) error {
	return newError(KindHandshake, format, args...)
}

// NetworkError returns a KindNetwork error. The format supports %w.
func NetworkError(format string, args ...any) error {
	return newError(KindNetwork, format, args...)
}

// CryptoError returns a KindCrypto error. The format supports %w.
func CryptoError(format string, args ...any) error {
	return newError(KindCrypto, format, args...)
}

// ConfigError returns a KindConfig error. The format supports %w.
func ConfigError(format string, args ...any) error {
	return newError(KindConfig, format, args...)
}

// AccessControlError returns a KindAccessControl error. The format supports %w.
func AccessControlError(format string, args ...any) error {
	return newError(KindAccessControl, format, args...)
}
