package http2

import (
	"bytes"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

var ctxPool = sync.Pool{
	New: func() interface{} {
		return &fasthttp.RequestCtx{}
	},
}

// handleStreams is the connection's single dispatch goroutine: it owns the
// stream map, the scheduler, and every piece of per-stream state, so none
// of it needs locking.
func (c *Connection) handleStreams() {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Printf("handleStreams panicked: %s\n%s\n", r, debug.Stack())
		}
	}()

	closedStrms := make(map[uint32]struct{})

	closeStream := func(strm *Stream) {
		c.accountClosed(strm)
		closedStrms[strm.ID()] = struct{}{}
		c.streams.Dequeue(strm)
		c.streams.Del(strm.ID())
		c.sched.Close(strm.ID())

		if ctx, ok := strm.Data().(*fasthttp.RequestCtx); ok && ctx != nil {
			ctxPool.Put(ctx)
		}

		if c.debug {
			c.logger.Printf("Stream destroyed %d\n", strm.ID())
		}

		c.tryAdmitPending()
		c.tryFinishShutdown()
	}

	if c.preload != nil {
		strm := c.preload
		c.preload = nil
		c.enqueueRequest(strm)
		if strm.State() == StreamStateEndStream {
			closeStream(strm)
		}
	}

	for {
		select {
		case <-c.closer:
			return
		case <-c.maxRequestTimer.C:
			c.reapTimedOutStreams(closeStream)
		case fr, ok := <-c.reader:
			if !ok {
				return
			}
			c.dispatchFrame(fr, closedStrms, closeStream)
			ReleaseFrameHeader(fr)
		}
	}
}

func (c *Connection) reapTimedOutStreams(closeStream func(*Stream)) {
	if c.cfg.MaxRequestTime <= 0 {
		return
	}
	now := time.Now()
	var timedOut []*Stream
	for _, strm := range c.streams.All() {
		if strm.startedAt.IsZero() {
			continue
		}
		if now.After(strm.startedAt.Add(c.cfg.MaxRequestTime)) {
			timedOut = append(timedOut, strm)
		}
	}
	for _, strm := range timedOut {
		if c.debug {
			c.logger.Printf("Stream timed out: %d\n", strm.ID())
		}
		c.writeReset(strm.ID(), StreamCanceled)
		strm.SetState(StreamStateEndStream)
		closeStream(strm)
	}
	c.maxRequestTimer.Reset(c.cfg.MaxRequestTime)
}

func (c *Connection) accountClosed(strm *Stream) {
	if strm.IsPull() {
		c.numOpenPull--
		if strm.Admitted() {
			c.numHalfClosedPull--
		}
	} else {
		c.numOpenPush--
		if strm.Admitted() {
			c.numHalfClosedPush--
		}
	}
	if strm.IsTunnel() {
		c.numTunnels--
	}
	if strm.IsStreamed() && strm.Admitted() {
		c.numReqStreamingInProgress--
	}
	if strm.BlockedByServer() {
		c.numBlockedByServer--
	}
}

func (c *Connection) dispatchFrame(fr *FrameHeader, closedStrms map[uint32]struct{}, closeStream func(*Stream)) {
	strm := c.streams.Get(fr.Stream())

	if strm == nil {
		if fr.Type() == FrameResetStream {
			if _, ok := closedStrms[fr.Stream()]; !ok {
				c.writeGoAway(fr.Stream(), ProtocolError, "rst_stream on idle stream")
			}
			return
		}

		if _, ok := closedStrms[fr.Stream()]; ok {
			if fr.Type() != FramePriority {
				c.writeGoAway(fr.Stream(), StreamClosedError, "frame on closed stream")
			}
			return
		}

		if fr.Stream() < c.maxOpenPullID && fr.Type() == FrameHeaders {
			c.writeGoAway(fr.Stream(), ProtocolError, "stream id lower than latest")
			return
		}

		if c.goAwaySent {
			c.writeReset(fr.Stream(), RefusedStreamError)
			return
		}

		strm = c.createStream(fr.Stream(), fr.Type())
	}

	if err := c.handleFrame(strm, fr); err != nil {
		c.writeError(strm, err)
		strm.SetState(StreamStateEndStream)
	}

	if strm.State() == StreamStateEndStream {
		closeStream(strm)
	}
}

func (c *Connection) createStream(id uint32, originType FrameType) *Stream {
	strm := NewStream(id, int32(c.cfg.ActiveStreamWindowSize), int32(c.clientS.MaxWindowSize()))
	strm.origType = originType
	strm.startedAt = time.Now()

	ctx := ctxPool.Get().(*fasthttp.RequestCtx)
	ctx.Request.Reset()
	ctx.Response.Reset()
	ctx.Init2(c.c, c.logger, false)
	strm.SetData(ctx)

	c.streams.Insert(strm)
	c.sched.Open(id, 0, DefaultWeight, false)

	if id&1 == 1 {
		c.numOpenPull++
		if id > c.maxOpenPullID {
			c.maxOpenPullID = id
		}
	} else {
		c.numOpenPush++
		if id > c.maxOpenPushID {
			c.maxOpenPushID = id
		}
	}

	if c.idleTimer != nil {
		c.idleTimer.Reset(c.cfg.IdleTimeout)
	}
	if c.cfg.MaxRequestTime > 0 {
		c.maxRequestTimer.Reset(c.cfg.MaxRequestTime)
	}

	return strm
}

func (c *Connection) handleFrame(strm *Stream, fr *FrameHeader) error {
	if err := c.verifyState(strm, fr); err != nil {
		return err
	}

	switch fr.Type() {
	case FrameHeaders, FrameContinuation:
		return c.handleHeaderFrame(strm, fr)
	case FrameData:
		return c.handleDataFrame(strm, fr)
	case FrameResetStream:
		strm.SetState(StreamStateEndStream)
		return nil
	case FramePriority:
		return c.handlePriorityFrame(strm, fr)
	case FrameWindowUpdate:
		win := int32(fr.Body().(*WindowUpdate).Increment())
		if err := strm.outWindow.Update(win); err != nil {
			return NewResetStreamError(strm.ID(), FlowControlError, "window is above limits")
		}
		return nil
	default:
		return NewGoAwayError(ProtocolError, "invalid frame on stream")
	}
}

func (c *Connection) verifyState(strm *Stream, fr *FrameHeader) error {
	switch strm.State() {
	case StreamStateIdle:
		if fr.Type() != FrameHeaders && fr.Type() != FramePriority {
			return NewGoAwayError(ProtocolError, "wrong frame on idle stream")
		}
	case StreamStateEndStream:
		if fr.Type() != FrameWindowUpdate && fr.Type() != FramePriority && fr.Type() != FrameResetStream {
			return NewGoAwayError(StreamClosedError, "wrong frame on closed stream")
		}
	}
	return nil
}

func (c *Connection) handlePriorityFrame(strm *Stream, fr *FrameHeader) error {
	p := fr.Body().(*Priority)
	if p.Stream() == strm.ID() {
		return NewGoAwayError(ProtocolError, "stream that depends on itself")
	}
	strm.SetPriority(PriorityRecord{Dependency: p.Stream(), Weight: p.Weight(), Exclusive: p.Exclusive()})
	c.sched.Rebind(strm.ID(), p.Stream(), p.Weight(), p.Exclusive())
	return nil
}

// handleHeaderFrame accumulates the header block fragment; once END_HEADERS
// arrives the whole block is decoded in one shot (spec §4.9 simplifies the
// field-by-field retry the wire format otherwise forces on a CONTINUATION
// boundary).
func (c *Connection) handleHeaderFrame(strm *Stream, fr *FrameHeader) error {
	if strm.headersFinished {
		return NewGoAwayError(ProtocolError, "headers already finished")
	}

	if h, ok := fr.Body().(*Headers); ok && h.HasPriority() {
		if h.Dependency() == strm.ID() {
			return NewGoAwayError(ProtocolError, "stream that depends on itself")
		}
		strm.SetPriority(PriorityRecord{Dependency: h.Dependency(), Weight: h.Weight(), Exclusive: h.Exclusive()})
		c.sched.Rebind(strm.ID(), h.Dependency(), h.Weight(), h.Exclusive())
	}

	strm.previousHeaderBytes = append(strm.previousHeaderBytes, fr.Body().(FrameWithHeaders).Headers()...)

	if !fr.Flags().Has(FlagEndHeaders) {
		return nil
	}

	block := strm.previousHeaderBytes
	fields, err := c.dec.DecodeFull(block)
	strm.previousHeaderBytes = strm.previousHeaderBytes[:0]
	if err != nil {
		return err
	}

	strm.headersFinished = true

	if err := c.applyRequestHeaders(strm, fields); err != nil {
		return err
	}

	if strm.IsTunnel() {
		c.admitTunnel(strm)
		return nil
	}

	endStream := fr.Type() == FrameHeaders && fr.Body().(*Headers).EndStream()
	if endStream {
		strm.SetState(StreamStateReqPending)
		c.enqueueRequest(strm)
	} else {
		strm.SetState(StreamStateRecvBody)
		strm.SetReqBodyState(ReqBodyOpenBeforeFirstFrame)
	}

	return nil
}

func (c *Connection) applyRequestHeaders(strm *Stream, fields []HeaderField) error {
	req := &strm.Data().(*fasthttp.RequestCtx).Request
	var method, authority []byte
	var hasContentLength bool

	for i := range fields {
		hf := &fields[i]
		k, v := []byte(hf.Key()), []byte(hf.Value())

		if !hf.IsPseudo() {
			if bytes.EqualFold(k, StringUserAgent) {
				req.Header.SetUserAgentBytes(v)
			} else if bytes.EqualFold(k, StringContentType) {
				req.Header.SetContentTypeBytes(v)
			} else if bytes.EqualFold(k, StringContentLength) {
				hasContentLength = true
				if n, err := strconv.ParseInt(string(v), 10, 64); err == nil {
					strm.contentLength = n
				}
				req.Header.AddBytesKV(k, v)
			} else {
				req.Header.AddBytesKV(k, v)
			}
			continue
		}

		name := k[1:]
		switch string(name) {
		case "method":
			method = v
			req.Header.SetMethodBytes(v)
		case "path":
			req.Header.SetRequestURIBytes(v)
		case "scheme":
			strm.scheme = append(strm.scheme[:0], v...)
		case "authority":
			authority = v
			req.Header.SetHostBytes(v)
			req.Header.AddBytesV("Host", v)
		default:
			return NewGoAwayError(ProtocolError, fmt.Sprintf("unknown pseudo-header %s", name))
		}
	}

	if bytes.Equal(method, []byte("CONNECT")) {
		if hasContentLength {
			return NewResetStreamError(strm.ID(), ProtocolError, "CONNECT request carrying content-length")
		}
		if len(authority) == 0 {
			return NewResetStreamError(strm.ID(), ProtocolError, "CONNECT request missing authority")
		}
		strm.tunnel = true
	} else if len(strm.scheme) > 0 {
		req.URI().SetSchemeBytes(strm.scheme)
	}

	return nil
}

func (c *Connection) handleDataFrame(strm *Stream, fr *FrameHeader) error {
	if !strm.headersFinished {
		return NewGoAwayError(ProtocolError, "data before headers finished")
	}

	data := fr.Body().(*Data)
	n := int32(len(data.Data()))

	strm.inWindow.Consume(n)
	c.connInWindow.Consume(n)
	strm.reqBodyBytesReceived += int64(n)

	if strm.contentLength >= 0 && strm.reqBodyBytesReceived > strm.contentLength {
		return NewResetStreamError(strm.ID(), ProtocolError, "body exceeds declared content-length")
	}
	if strm.reqBodyBytesReceived > c.cfg.MaxRequestEntitySize {
		return NewResetStreamError(strm.ID(), RefusedStreamError, "body exceeds max entity size")
	}

	if strm.IsStreamed() && strm.writeReq != nil {
		if err := strm.writeReq(data.Data(), data.EndStream()); err != nil {
			return NewResetStreamError(strm.ID(), InternalError, err.Error())
		}
	} else {
		strm.reqBody.Write(data.Data())
	}

	c.maybeGrantStreamWindow(strm)
	c.maybeGrantConnWindow()

	if data.EndStream() {
		if strm.IsStreamed() {
			strm.SetReqBodyState(ReqBodyCloseQueued)
		} else {
			strm.SetState(StreamStateReqPending)
			c.enqueueRequest(strm)
		}
	}

	return nil
}

func (c *Connection) maybeGrantStreamWindow(strm *Stream) {
	if strm.inWindow.Avail() > c.cfg.ActiveStreamWindowSize/2 {
		return
	}
	grant := c.cfg.ActiveStreamWindowSize - strm.inWindow.Avail()
	if grant <= 0 {
		return
	}
	_ = strm.inWindow.Update(grant)

	fr := AcquireFrameHeader()
	fr.SetStream(strm.ID())
	wu := AcquireWindowUpdate()
	wu.SetIncrement(uint32(grant))
	fr.SetBody(wu)
	c.writer <- fr
}

func (c *Connection) maybeGrantConnWindow() {
	target := c.cfg.ConnectionWindowTarget
	if c.connInWindow.Avail() > target/2 {
		return
	}
	grant := target - c.connInWindow.Avail()
	if grant <= 0 {
		return
	}
	_ = c.connInWindow.Update(grant)

	fr := AcquireFrameHeader()
	wu := AcquireWindowUpdate()
	wu.SetIncrement(uint32(grant))
	fr.SetBody(wu)
	c.writer <- fr
}

func fasthttpResponseHeaders(dst *Headers, hp *HPACK, res *fasthttp.Response) {
	hf := AcquireHeaderField()
	defer ReleaseHeaderField(hf)

	hf.SetKeyBytes(StringStatus)
	hf.SetValue(strconv.FormatInt(int64(res.Header.StatusCode()), 10))
	dst.AppendHeaderField(hp, hf, true)

	if !res.IsBodyStream() {
		res.Header.SetContentLength(len(res.Body()))
	}
	res.Header.Del("Connection")
	res.Header.Del("Transfer-Encoding")

	res.Header.VisitAll(func(k, v []byte) {
		hf.SetBytes(ToLower(append([]byte(nil), k...)), v)
		dst.AppendHeaderField(hp, hf, false)
	})
}
