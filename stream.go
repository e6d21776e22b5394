package http2

import (
	"time"

	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

// StreamState is the stream lifecycle state machine of spec §4.4.
type StreamState int8

const (
	StreamStateIdle StreamState = iota
	StreamStateRecvHeaders
	StreamStateRecvBody
	StreamStateReqPending
	StreamStateSendHeaders
	StreamStateSendBody
	StreamStateSendBodyIsFinal
	StreamStateEndStream
)

func (ss StreamState) String() string {
	switch ss {
	case StreamStateIdle:
		return "Idle"
	case StreamStateRecvHeaders:
		return "RecvHeaders"
	case StreamStateRecvBody:
		return "RecvBody"
	case StreamStateReqPending:
		return "ReqPending"
	case StreamStateSendHeaders:
		return "SendHeaders"
	case StreamStateSendBody:
		return "SendBody"
	case StreamStateSendBodyIsFinal:
		return "SendBodyIsFinal"
	case StreamStateEndStream:
		return "EndStream"
	}
	return "Unknown"
}

// IsClosed reports whether the stream has reached a terminal state and
// may be evicted from the stream map / reparented into the scheduler's
// recently-closed ring.
func (ss StreamState) IsClosed() bool {
	return ss == StreamStateEndStream
}

// ReqBodyState is the strictly-monotonic request-body sub-state machine
// of spec §4.4, tracked independently of StreamState. A request that
// enters RecvBody moves to OpenBeforeFirstFrame at the same time.
type ReqBodyState int8

const (
	ReqBodyNone ReqBodyState = iota
	ReqBodyOpenBeforeFirstFrame
	ReqBodyOpen
	ReqBodyCloseQueued
	ReqBodyCloseDelivered
)

func (rb ReqBodyState) String() string {
	switch rb {
	case ReqBodyNone:
		return "None"
	case ReqBodyOpenBeforeFirstFrame:
		return "OpenBeforeFirstFrame"
	case ReqBodyOpen:
		return "Open"
	case ReqBodyCloseQueued:
		return "CloseQueued"
	case ReqBodyCloseDelivered:
		return "CloseDelivered"
	}
	return "Unknown"
}

// PriorityRecord is a stream's current dependency/weight/exclusive
// triple, defaulting to {0, 16, false} per spec §3.
type PriorityRecord struct {
	Dependency uint32
	Weight     uint16
	Exclusive  bool
}

var defaultPriority = PriorityRecord{Dependency: 0, Weight: DefaultWeight, Exclusive: false}

// Stream is one HTTP/2 stream's full engine-side state: lifecycle,
// both flow-control windows, the request-body sub-state machine, and
// the callbacks the application uses to stream a response (and,
// for a streamed/tunneled request, to pull more body).
type Stream struct {
	id      uint32
	state   StreamState
	origType FrameType

	inWindow  Window
	outWindow Window

	reqBodyState ReqBodyState
	reqBody      bytebufferpool.ByteBuffer
	reqBodyBytesReceived int64
	contentLength        int64 // declared via the content-length header, -1 if absent

	// streamed is never set by this package, so every request body is
	// buffered: the streamed branches in handleDataFrame and the
	// admission gate are not taken, and proceedReq/writeReq stay nil.
	streamed        bool
	tunnel          bool
	blockedByServer bool
	admitted        bool

	priority PriorityRecord

	headersFinished      bool
	previousHeaderBytes  []byte
	headerBlockNum       int
	scheme               []byte

	ctx       *fasthttp.RequestCtx
	startedAt time.Time

	// proceedReq is invoked by the application after consuming `written`
	// bytes of a streamed request body (spec §4.7).
	proceedReq func(written int)
	// writeReq hands the application the next body chunk; isEnd marks the
	// final call for this stream.
	writeReq func(entity []byte, isEnd bool) error

	// pushParentID/pushPromiseSent are set on server-initiated streams.
	pushParentID   uint32
	pushPromiseSent bool
}

func NewStream(id uint32, inWin, outWin int32) *Stream {
	s := &Stream{id: id}
	s.inWindow.init(inWin)
	s.outWindow.init(outWin)
	s.priority = defaultPriority
	s.contentLength = -1
	return s
}

func (s *Stream) ID() uint32 { return s.id }

func (s *Stream) State() StreamState     { return s.state }
func (s *Stream) SetState(st StreamState) { s.state = st }

func (s *Stream) ReqBodyState() ReqBodyState { return s.reqBodyState }

// SetReqBodyState asserts the strictly-monotonic advance required by
// spec §4.4 and, on reaching CloseDelivered, clears proceedReq and lets
// the caller account for streaming/tunnel counters.
func (s *Stream) SetReqBodyState(next ReqBodyState) {
	if next <= s.reqBodyState {
		panic("http2: request body sub-state must advance monotonically")
	}
	s.reqBodyState = next
	if next == ReqBodyCloseDelivered {
		s.proceedReq = nil
	}
}

func (s *Stream) IsPull() bool { return s.id&1 == 1 }
func (s *Stream) IsPush() bool { return s.id&1 == 0 }

func (s *Stream) Priority() PriorityRecord        { return s.priority }
func (s *Stream) SetPriority(p PriorityRecord)    { s.priority = p }

func (s *Stream) IsTunnel() bool         { return s.tunnel }
func (s *Stream) IsStreamed() bool       { return s.streamed }
func (s *Stream) BlockedByServer() bool  { return s.blockedByServer }
func (s *Stream) Admitted() bool         { return s.admitted }

func (s *Stream) Data() interface{} { return s.ctx }
func (s *Stream) SetData(ctx *fasthttp.RequestCtx) { s.ctx = ctx }
