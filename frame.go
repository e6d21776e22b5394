package http2

import "fmt"

// FrameType is the 8-bit frame type field of the frame header.
//
// https://tools.ietf.org/html/rfc7540#section-4.1
type FrameType uint8

const (
	FrameData        FrameType = 0x0
	FrameHeaders     FrameType = 0x1
	// FramePriority = 0x2 is declared in priority.go, alongside the Priority type.
	FrameResetStream FrameType = 0x3
	FrameSettings     FrameType = 0x4
	FramePushPromise  FrameType = 0x5
	FramePing         FrameType = 0x6
	FrameGoAway       FrameType = 0x7
	FrameWindowUpdate FrameType = 0x8
	FrameContinuation FrameType = 0x9
	FrameOrigin       FrameType = 0xc
)

func (ft FrameType) String() string {
	switch ft {
	case FrameData:
		return "Data"
	case FrameHeaders:
		return "Headers"
	case FramePriority:
		return "Priority"
	case FrameResetStream:
		return "RstStream"
	case FrameSettings:
		return "Settings"
	case FramePushPromise:
		return "PushPromise"
	case FramePing:
		return "Ping"
	case FrameGoAway:
		return "GoAway"
	case FrameWindowUpdate:
		return "WindowUpdate"
	case FrameContinuation:
		return "Continuation"
	case FrameOrigin:
		return "Origin"
	default:
		return fmt.Sprintf("UnknownFrame(%d)", uint8(ft))
	}
}

// FrameFlags is the 8-bit flags field of the frame header. Meaning is
// frame-type dependent; only the bits actually used by this engine are
// named.
type FrameFlags uint8

func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag == flag
}

// Add returns ff with flag set. Frame Serialize methods chain it through
// SetFlags rather than mutating in place, e.g. fr.SetFlags(fr.Flags().Add(FlagAck)).
func (ff FrameFlags) Add(flag FrameFlags) FrameFlags {
	return ff | flag
}

// Frame is implemented by every concrete frame payload type. A FrameHeader
// owns exactly one Frame, acquired from the pool matching its Type.
type Frame interface {
	Type() FrameType
	Reset()
	Deserialize(fr *FrameHeader) error
	Serialize(fr *FrameHeader)
}

// AcquireFrame returns a pooled, reset Frame implementation for the given
// type. Unknown types return nil; callers must check.
func AcquireFrame(t FrameType) Frame {
	switch t {
	case FrameData:
		return acquireData()
	case FrameHeaders:
		return acquireHeaders()
	case FramePriority:
		return acquirePriority()
	case FrameResetStream:
		return acquireRstStream()
	case FrameSettings:
		return acquireSettings()
	case FramePushPromise:
		return acquirePushPromise()
	case FramePing:
		return acquirePing()
	case FrameGoAway:
		return acquireGoAway()
	case FrameWindowUpdate:
		return AcquireWindowUpdate()
	case FrameContinuation:
		return acquireContinuation()
	case FrameOrigin:
		return acquireOrigin()
	default:
		return nil
	}
}

// ReleaseFrame returns fr to its type-specific pool. A nil Frame (the body
// of a FrameHeader that never had one set) is a no-op.
func ReleaseFrame(fr Frame) {
	if fr == nil {
		return
	}

	switch f := fr.(type) {
	case *Data:
		releaseData(f)
	case *Headers:
		releaseHeaders(f)
	case *Priority:
		releasePriority(f)
	case *RstStream:
		releaseRstStream(f)
	case *Settings:
		releaseSettings(f)
	case *PushPromise:
		releasePushPromise(f)
	case *Ping:
		releasePing(f)
	case *GoAway:
		releaseGoAway(f)
	case *WindowUpdate:
		ReleaseWindowUpdate(f)
	case *Continuation:
		releaseContinuation(f)
	case *Origin:
		releaseOrigin(f)
	}
}

// FrameWithHeaders is implemented by frame types that carry a header block
// fragment (HEADERS, PUSH_PROMISE, CONTINUATION).
type FrameWithHeaders interface {
	Frame
	Headers() []byte
}
