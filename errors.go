package http2

import (
	"errors"
	"fmt"
)

// ErrorCode is an HTTP/2 error code as carried by RST_STREAM and GOAWAY.
//
// https://tools.ietf.org/html/rfc7540#section-7
type ErrorCode uint32

const (
	NoError            ErrorCode = 0x0
	ProtocolError      ErrorCode = 0x1
	InternalError      ErrorCode = 0x2
	FlowControlError   ErrorCode = 0x3
	SettingsTimeout    ErrorCode = 0x4
	StreamClosedError  ErrorCode = 0x5
	FrameSizeError     ErrorCode = 0x6
	RefusedStreamError ErrorCode = 0x7
	StreamCanceled     ErrorCode = 0x8
	CompressionError   ErrorCode = 0x9
	ConnectError       ErrorCode = 0xa
	EnhanceYourCalm    ErrorCode = 0xb
	InadequateSecurity ErrorCode = 0xc
	HTTP11Required     ErrorCode = 0xd
)

func (e ErrorCode) String() string {
	switch e {
	case NoError:
		return "NoError"
	case ProtocolError:
		return "ProtocolError"
	case InternalError:
		return "InternalError"
	case FlowControlError:
		return "FlowControlError"
	case SettingsTimeout:
		return "SettingsTimeout"
	case StreamClosedError:
		return "StreamClosedError"
	case FrameSizeError:
		return "FrameSizeError"
	case RefusedStreamError:
		return "RefusedStreamError"
	case StreamCanceled:
		return "StreamCanceled"
	case CompressionError:
		return "CompressionError"
	case ConnectError:
		return "ConnectError"
	case EnhanceYourCalm:
		return "EnhanceYourCalm"
	case InadequateSecurity:
		return "InadequateSecurity"
	case HTTP11Required:
		return "HTTP11Required"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint32(e))
	}
}

// scope distinguishes a connection-fatal error (answered with GOAWAY) from
// a stream-local one (answered with RST_STREAM).
type scope uint8

const (
	scopeStream scope = iota
	scopeConnection
)

// Error is the error type produced by the frame dispatch and admission
// paths. Its scope tells writeError whether to emit GOAWAY or RST_STREAM.
type Error struct {
	code     ErrorCode
	msg      string
	scope    scope
	stream   uint32
	closeNow bool // PROTOCOL_CLOSE_IMMEDIATELY: close without GOAWAY
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.code.String()
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *Error) Code() ErrorCode {
	return e.code
}

func (e *Error) Stream() uint32 {
	return e.stream
}

// NewGoAwayError builds a connection-scoped error that results in a GOAWAY
// being sent with the given code before the connection closes.
func NewGoAwayError(code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, scope: scopeConnection}
}

// NewGoAwayErrorImmediate builds a connection-scoped error that closes the
// socket without sending GOAWAY at all, for cases like a malformed preface
// where the peer cannot be trusted to be speaking HTTP/2.
func NewGoAwayErrorImmediate(code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, scope: scopeConnection, closeNow: true}
}

// NewResetStreamError builds a stream-scoped error that results in a
// RST_STREAM for the given stream; the connection continues.
func NewResetStreamError(stream uint32, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, scope: scopeStream, stream: stream}
}

// NewError is a lower-level constructor for frame types whose Error()
// method needs to surface their own code: it builds a stream-scoped error
// with no stream id, which writeError answers with RST_STREAM.
func NewError(code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, scope: scopeStream}
}

func isConnectionError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.scope == scopeConnection
	}
	return false
}

var (
	ErrMissingBytes     = errors.New("http2: frame missing bytes")
	ErrUnknowFrameType  = errors.New("http2: unknown frame type")
	ErrPayloadExceeds   = errors.New("http2: payload exceeds max frame size")
	ErrBadPreface       = errors.New("http2: bad preface")
	ErrInvalidState     = errors.New("http2: invalid stream state transition")
	ErrZeroPayload      = errors.New("http2: zero-length payload where one was required")
	ErrNotSupportedFlow = errors.New("http2: flow control window overflow")
)
