package crypterr

import (
	"errors"
	"fmt"
)

// Kind identifies which class of failure an error belongs to.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors that did not originate in
	// this module.
	KindUnknown Kind = iota
	// KindConfiguration is missing or malformed key material or settings.
	// Fatal at startup.
	KindConfiguration
	// KindEncryption means a cipher could not be initialised or used for
	// encryption. A programming or configuration error, never retried.
	KindEncryption
	// KindDecryption is malformed input or an authentication tag mismatch on a
	// stored value.
	KindDecryption
	// KindHandshakeDecode is malformed handshake material: bad base64, bad
	// block length, bad padding or an unparseable reply.
	KindHandshakeDecode
	// KindHandshakeKey means handshake material could not be decrypted with
	// the private key at hand.
	KindHandshakeKey
	// KindHandshakeTransport is a network-level handshake failure, including
	// timeouts and non-2xx replies.
	KindHandshakeTransport
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindEncryption:
		return "EncryptionFailure"
	case KindDecryption:
		return "DecryptionFailure"
	case KindHandshakeDecode:
		return "HandshakeDecodeFailure"
	case KindHandshakeKey:
		return "HandshakeKeyFailure"
	case KindHandshakeTransport:
		return "HandshakeTransportFailure"
	default:
		return "Unknown"
	}
}

// Sentinels for use with errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrEncryption         = errors.New("encryption failure")
	ErrDecryption         = errors.New("decryption failure")
	ErrHandshakeDecode    = errors.New("handshake decode failure")
	ErrHandshakeKey       = errors.New("handshake key failure")
	ErrHandshakeTransport = errors.New("handshake transport failure")
)

var sentinels = map[Kind]error{
	KindConfiguration:      ErrConfiguration,
	KindEncryption:         ErrEncryption,
	KindDecryption:         ErrDecryption,
	KindHandshakeDecode:    ErrHandshakeDecode,
	KindHandshakeKey:       ErrHandshakeKey,
	KindHandshakeTransport: ErrHandshakeTransport,
}

// Error is a classified failure. Op names the operation that failed, for
// example "envelope.Decrypt".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New returns an *Error of the given kind. err may be nil.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted underlying error.
func Newf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := sentinelMessage(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.Kind]
	return ok && target == sentinel
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func sentinelMessage(k Kind) string {
	if s, ok := sentinels[k]; ok {
		return s.Error()
	}
	return "unknown failure"
}
