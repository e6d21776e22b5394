package http2

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

var stdLogger = log.New(os.Stdout, "[HTTP/2] ", log.LstdFlags)

// connLifecycle is the connection-level state of spec §3: OPEN,
// HALF_CLOSED (this side has sent a GOAWAY) and IS_CLOSING
// (draining in-flight writes before the socket closes).
type connLifecycle int32

const (
	connOpen connLifecycle = iota
	connHalfClosed
	connIsClosing
)

func (cl connLifecycle) String() string {
	switch cl {
	case connOpen:
		return "Open"
	case connHalfClosed:
		return "HalfClosed"
	case connIsClosing:
		return "IsClosing"
	}
	return "Unknown"
}

// clientPreface is the fixed 24-byte prefix every HTTP/2 connection opens
// with (RFC 7540 §3.5).
const clientPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// Connection is the server-side HTTP/2 connection engine: spec §2
// component 6, the owner of the stream map, both HPACK tables, both
// connection-level windows, the write buffer, and the preface/shutdown
// state machines.
type Connection struct {
	c net.Conn
	h fasthttp.RequestHandler

	cfg *ServerConfig

	br *bufio.Reader
	bw *bufio.Writer

	enc *HPACK // outbound table, used to encode responses
	dec *HPACK // inbound table, used to decode request header blocks

	streams *Streams
	sched   *Scheduler

	connInWindow  Window
	connOutWindow Window

	st      Settings // what we advertised
	clientS Settings // what the peer advertised

	lifecycle int32 // atomic connLifecycle

	maxOpenPullID uint32
	maxOpenPushID uint32

	numOpenPull               int
	numHalfClosedPull         int
	numOpenPush               int
	numHalfClosedPush         int
	numBlockedByServer        int
	numReqStreamingInProgress int
	numTunnels                int

	// goAwayLastID is the last-stream-id *this side* advertised in its
	// own GOAWAY (meaningful once goAwaySent is set); peerLastID is the one
	// the peer sent us. Nothing reads peerLastID: the engine opens no push
	// streams, so there is no admission for it to gate.
	goAwaySent   bool
	goAwayLastID uint32
	peerLastID   uint32
	peerGoAway   bool

	writer chan *FrameHeader
	reader chan *FrameHeader
	closer chan struct{}

	idleTimer       *time.Timer
	shutdownTimer1  *time.Timer
	shutdownTimer2  *time.Timer
	pingTimer       *time.Timer
	maxRequestTimer *time.Timer

	debug  bool
	logger Logger

	// preload, if set before Serve's goroutines start, is admitted as the
	// first order of business in handleStreams: the stream 1 request an
	// h2c upgrade already parsed over HTTP/1.1 (spec §4.9).
	preload *Stream

	// upgradeRequest, if non-nil, is copied into stream 1 once Serve has
	// finished setting up timers, and cleared.
	upgradeRequest *fasthttp.Request
}

// NewConnection wires up a Connection ready to Serve c with cfg. cfg must
// already have had defaults() applied.
func NewConnection(c net.Conn, h fasthttp.RequestHandler, cfg *ServerConfig) *Connection {
	conn := &Connection{
		c:         c,
		h:         h,
		cfg:       cfg,
		br:        bufio.NewReader(c),
		bw:        bufio.NewWriter(c),
		enc:       AcquireHPACK(),
		dec:       AcquireHPACK(),
		streams:   NewStreams(),
		sched:     NewScheduler(cfg.ChromiumPriorityHeuristic),
		writer:    make(chan *FrameHeader, 16),
		reader:    make(chan *FrameHeader, 16),
		debug:     cfg.Debug,
		logger:    cfg.Logger,
	}
	conn.st.Reset()
	conn.st.SetMaxConcurrentStreams(cfg.MaxConcurrentRequests)
	conn.clientS.Reset()
	conn.connInWindow.init(int32(defaultMaxWindowSize))
	conn.connOutWindow.init(int32(defaultMaxWindowSize))
	conn.peerLastID = 1<<31 - 1
	return conn
}

func (c *Connection) state() connLifecycle {
	return connLifecycle(atomic.LoadInt32(&c.lifecycle))
}

func (c *Connection) setState(s connLifecycle) {
	atomic.StoreInt32(&c.lifecycle, int32(s))
}

// preface performs spec §4.9: wait for the exact client preface, then
// emit the fixed server preface (SETTINGS + a connection WINDOW_UPDATE
// raising the input window to the configured target).
func (c *Connection) preface() error {
	buf := make([]byte, len(clientPreface))
	if _, err := io.ReadFull(c.br, buf); err != nil {
		return err
	}
	if string(buf) != clientPreface {
		return NewGoAwayErrorImmediate(ProtocolError, "bad preface")
	}

	settingsFrame := AcquireFrameHeader()
	st := AcquireFrame(FrameSettings).(*Settings)
	st.SetMaxConcurrentStreams(c.cfg.MaxConcurrentRequests)
	settingsFrame.SetBody(st)
	if _, err := settingsFrame.WriteTo(c.bw); err != nil {
		ReleaseFrameHeader(settingsFrame)
		return err
	}
	ReleaseFrameHeader(settingsFrame)

	target := c.cfg.ConnectionWindowTarget
	delta := target - int32(defaultMaxWindowSize)
	if delta > 0 {
		c.connInWindow.init(target)

		wuFrame := AcquireFrameHeader()
		wu := AcquireWindowUpdate()
		wu.SetIncrement(uint32(delta))
		wuFrame.SetBody(wu)
		if _, err := wuFrame.WriteTo(c.bw); err != nil {
			ReleaseFrameHeader(wuFrame)
			return err
		}
		ReleaseFrameHeader(wuFrame)
	}

	return c.bw.Flush()
}

// Serve drives the connection to completion: preface, then the
// read/write/dispatch loops until the socket closes or a fatal error
// occurs.
func (c *Connection) Serve() error {
	if err := c.preface(); err != nil {
		return err
	}

	c.closer = make(chan struct{})
	c.maxRequestTimer = time.NewTimer(time.Hour)
	c.maxRequestTimer.Stop()

	if c.cfg.IdleTimeout > 0 {
		c.idleTimer = time.AfterFunc(c.cfg.IdleTimeout, c.closeIdleConn)
	}

	if c.upgradeRequest != nil {
		strm := c.createStream(1, FrameHeaders)
		strm.headersFinished = true
		c.upgradeRequest.CopyTo(&strm.Data().(*fasthttp.RequestCtx).Request)
		strm.SetState(StreamStateReqPending)
		c.preload = strm
		c.upgradeRequest = nil
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Printf("Serve panicked: %s\n%s\n", r, debug.Stack())
		}
	}()

	go func() {
		defer func() { _ = c.c.Close() }()
		c.writeLoop()
	}()

	go func() {
		c.handleStreams()
		close(c.writer)
	}()

	defer close(c.reader)

	_ = c.c.SetWriteDeadline(time.Time{})
	_ = c.c.SetReadDeadline(time.Time{})

	err := c.readLoop()
	if errors.Is(err, io.EOF) {
		err = nil
	}

	c.teardown()

	return err
}

func (c *Connection) closeIdleConn() {
	c.writeGoAway(0, NoError, "connection has been idle for a long time")
	select {
	case <-c.closer:
	default:
		close(c.closer)
	}
}

func (c *Connection) teardown() {
	if c.pingTimer != nil {
		c.pingTimer.Stop()
	}
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	if c.maxRequestTimer != nil {
		c.maxRequestTimer.Stop()
	}
	if c.shutdownTimer1 != nil {
		c.shutdownTimer1.Stop()
	}
	if c.shutdownTimer2 != nil {
		c.shutdownTimer2.Stop()
	}
	ReleaseHPACK(c.enc)
	ReleaseHPACK(c.dec)
}

func (c *Connection) readLoop() (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Printf("readLoop panicked: %s\n%s\n", r, debug.Stack())
		}
	}()

	var fr *FrameHeader

	for err == nil {
		fr, err = ReadFrameFromWithSize(c.br, c.clientS.MaxFrameSize())
		if err != nil {
			break
		}

		if fr.Stream() != 0 {
			if verr := c.checkFrameWithStream(fr); verr != nil {
				c.writeError(nil, verr)
			} else {
				c.reader <- fr
			}
			continue
		}

		switch fr.Type() {
		case FrameSettings:
			st := fr.Body().(*Settings)
			if !st.IsAck() {
				c.handleSettings(st)
			}
		case FrameWindowUpdate:
			win := int32(fr.Body().(*WindowUpdate).Increment())
			if uerr := c.connOutWindow.Update(win); uerr != nil {
				c.writeError(nil, uerr)
			}
		case FramePing:
			ping := fr.Body().(*Ping)
			if !ping.IsAck() {
				c.handlePing(ping)
			}
		case FrameGoAway:
			ga := fr.Body().(*GoAway)
			c.peerGoAway = true
			c.peerLastID = ga.LastStreamID()
			if ga.Code() == NoError {
				err = io.EOF
			} else {
				err = fmt.Errorf("goaway: %s: %s", ga.Code(), ga.Data())
			}
		case FrameOrigin:
			// server-to-client only; a client sending one is ignored.
		default:
			c.writeGoAway(0, ProtocolError, "invalid frame")
		}

		ReleaseFrameHeader(fr)
	}

	return
}

func (c *Connection) checkFrameWithStream(fr *FrameHeader) error {
	if fr.Stream()&1 == 0 && fr.Type() != FrameData && fr.Type() != FrameHeaders &&
		fr.Type() != FrameContinuation && fr.Type() != FramePriority &&
		fr.Type() != FrameResetStream && fr.Type() != FrameWindowUpdate {
		return NewGoAwayError(ProtocolError, "invalid stream id")
	}

	switch fr.Type() {
	case FramePing:
		return NewGoAwayError(ProtocolError, "ping is carrying a stream id")
	case FramePushPromise:
		return NewGoAwayError(ProtocolError, "clients can't send push_promise frames")
	}

	return nil
}

func (c *Connection) handleSettings(st *Settings) {
	prevWindow := int32(c.clientS.MaxWindowSize())
	st.CopyTo(&c.clientS)
	c.enc.SetMaxTableSize(c.clientS.HeaderTableSize())

	// spec §4.6: a changed INITIAL_WINDOW_SIZE adjusts every open stream's
	// output window by the delta, not just future ones.
	delta := int32(c.clientS.MaxWindowSize()) - prevWindow
	if delta != 0 {
		for _, strm := range c.streams.byID {
			if err := strm.outWindow.Update(delta); err != nil {
				c.writeError(strm, NewResetStreamError(strm.ID(), FlowControlError, "window is above limits"))
			}
		}
	}

	fr := AcquireFrameHeader()
	ack := AcquireFrame(FrameSettings).(*Settings)
	ack.SetAck(true)
	fr.SetBody(ack)
	c.writer <- fr
}

func (c *Connection) handlePing(ping *Ping) {
	fr := AcquireFrameHeader()
	ping.SetAck(true)
	fr.SetBody(ping)
	c.writer <- fr
}

func (c *Connection) writePing() {
	fr := AcquireFrameHeader()
	ping := AcquireFrame(FramePing).(*Ping)
	ping.SetCurrentTime()
	fr.SetBody(ping)
	c.writer <- fr
}

func (c *Connection) writeReset(stream uint32, code ErrorCode) {
	fr := AcquireFrameHeader()
	fr.SetStream(stream)
	r := AcquireFrame(FrameResetStream).(*RstStream)
	r.SetCode(code)
	fr.SetBody(r)
	c.writer <- fr

	if c.debug {
		c.logger.Printf("%s: Reset(stream=%d, code=%s)\n", c.c.RemoteAddr(), stream, code)
	}
}

func (c *Connection) writeGoAway(stream uint32, code ErrorCode, message string) {
	fr := AcquireFrameHeader()
	ga := AcquireFrame(FrameGoAway).(*GoAway)
	ga.SetLastStreamID(c.maxOpenPullID)
	ga.SetCode(code)
	ga.SetData([]byte(message))
	fr.SetBody(ga)
	c.writer <- fr

	c.goAwaySent = true
	c.goAwayLastID = c.maxOpenPullID
	if c.state() == connOpen {
		c.setState(connHalfClosed)
	}

	if c.debug {
		c.logger.Printf("%s: GoAway(stream=%d, code=%s): %s\n", c.c.RemoteAddr(), stream, code, message)
	}
}

func (c *Connection) writeError(strm *Stream, err error) {
	var herr *Error
	if !errors.As(err, &herr) {
		if strm != nil {
			c.writeReset(strm.ID(), InternalError)
			strm.SetState(StreamStateEndStream)
		} else {
			c.writeGoAway(0, InternalError, err.Error())
		}
		return
	}

	switch herr.scope {
	case scopeConnection:
		id := herr.stream
		if strm != nil {
			id = strm.ID()
		}
		c.writeGoAway(id, herr.Code(), herr.Error())
	case scopeStream:
		id := herr.stream
		if strm != nil {
			id = strm.ID()
		}
		c.writeReset(id, herr.Code())
	}

	if strm != nil {
		strm.SetState(StreamStateEndStream)
	}
}

func (c *Connection) writeLoop() {
	if c.cfg.PingInterval > 0 {
		c.pingTimer = time.AfterFunc(c.cfg.PingInterval, c.sendPingAndSchedule)
	}

	buffered := 0
	for fr := range c.writer {
		_, err := fr.WriteTo(c.bw)
		if err == nil && (len(c.writer) == 0 || buffered > 10) {
			err = c.bw.Flush()
			buffered = 0
		} else if err == nil {
			buffered++
		}

		ReleaseFrameHeader(fr)

		if err != nil {
			c.logger.Printf("ERROR: writeLoop: %s\n", err)
			return
		}
	}
}

func (c *Connection) sendPingAndSchedule() {
	c.writePing()
	c.pingTimer.Reset(c.cfg.PingInterval)
}


var logger = defaultLogger{}

// defaultLogger satisfies Logger with fmt.Printf-to-stdout-via-log
// semantics, used whenever a ServerConfig doesn't supply its own.
type defaultLogger struct{}

func (defaultLogger) Printf(format string, args ...interface{}) {
	stdLogger.Printf(format, args...)
}
