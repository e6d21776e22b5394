package http2

import (
	"errors"
	"io"
	"sync"

	"github.com/valyala/fasthttp"
)

var copyBufPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 1<<14)
	},
}

// dispatchRequest runs the application handler and writes its response
// back as HEADERS (+ DATA, if any). One handler call per stream, run
// synchronously on the connection's dispatch goroutine; the handler itself
// is responsible for any further concurrency it wants.
func (c *Connection) dispatchRequest(strm *Stream) {
	ctx, ok := strm.Data().(*fasthttp.RequestCtx)
	if !ok || ctx == nil {
		return
	}

	ctx.Request.Header.SetProtocolBytes(StringHTTP2)
	c.h(ctx)

	strm.SetState(StreamStateSendHeaders)

	hasBody := ctx.Response.IsBodyStream() || len(ctx.Response.Body()) > 0

	fr := AcquireFrameHeader()
	fr.SetStream(strm.ID())

	h := AcquireFrame(FrameHeaders).(*Headers)
	h.SetEndHeaders(true)
	h.SetEndStream(!hasBody)
	fr.SetBody(h)

	fasthttpResponseHeaders(h, c.enc, &ctx.Response)

	c.writer <- fr

	if !hasBody {
		strm.SetState(StreamStateEndStream)
		return
	}

	strm.SetState(StreamStateSendBody)

	if ctx.Response.IsBodyStream() {
		sw := acquireStreamWrite()
		sw.strm = strm
		sw.writer = c.writer
		sw.size = int64(ctx.Response.Header.ContentLength())
		_ = ctx.Response.BodyWriteTo(sw)
		releaseStreamWrite(sw)
	} else {
		c.writeData(strm, ctx.Response.Body())
	}

	strm.SetState(StreamStateEndStream)
}

var streamWritePool = sync.Pool{New: func() interface{} { return &streamWrite{} }}

type streamWrite struct {
	size    int64
	written int64
	strm    *Stream
	writer  chan<- *FrameHeader
}

func acquireStreamWrite() *streamWrite {
	return streamWritePool.Get().(*streamWrite)
}

func releaseStreamWrite(sw *streamWrite) {
	sw.Reset()
	streamWritePool.Put(sw)
}

func (s *streamWrite) Reset() {
	s.size = 0
	s.written = 0
	s.strm = nil
	s.writer = nil
}

func (s *streamWrite) Write(body []byte) (int, error) {
	if (s.size <= 0 && s.written > 0) || (s.size > 0 && s.written >= s.size) {
		return 0, errors.New("http2: stream writer closed")
	}

	step := 1 << 14

	n := len(body)
	s.written += int64(n)

	end := s.size < 0 || s.written >= s.size
	for i := 0; i < n; i += step {
		chunkEnd := i + step
		if chunkEnd > n {
			chunkEnd = n
		}

		fr := AcquireFrameHeader()
		fr.SetStream(s.strm.ID())

		data := AcquireFrame(FrameData).(*Data)
		data.SetEndStream(end && chunkEnd == n)
		data.SetData(body[i:chunkEnd])
		fr.SetBody(data)

		s.writer <- fr
	}

	return n, nil
}

func (s *streamWrite) ReadFrom(r io.Reader) (int64, error) {
	buf := copyBufPool.Get().([]byte)
	defer copyBufPool.Put(buf)

	if s.size < 0 {
		if lrSize := limitedReaderSize(r); lrSize >= 0 {
			s.size = lrSize
		}
	}

	var num int64
	for {
		n, err := r.Read(buf)
		if n <= 0 && err == nil {
			err = errors.New("http2: BUG: io.Reader returned 0, nil")
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return num, nil
			}
			return num, err
		}

		fr := AcquireFrameHeader()
		fr.SetStream(s.strm.ID())

		data := AcquireFrame(FrameData).(*Data)
		data.SetEndStream(s.size >= 0 && num+int64(n) >= s.size)
		data.SetData(buf[:n])
		fr.SetBody(data)

		s.writer <- fr

		num += int64(n)
		if s.size >= 0 && num >= s.size {
			return num, nil
		}
	}
}

// writeData chunks body into DATA frames no larger than the peer's
// advertised MAX_FRAME_SIZE or its current stream window, whichever is
// smaller.
func (c *Connection) writeData(strm *Stream, body []byte) {
	step := int(c.clientS.MaxFrameSize())
	if w := int(strm.outWindow.Avail()); w > 0 && step > w {
		step = w
	}
	if step <= 0 {
		step = 1 << 14
	}

	for i := 0; i < len(body); i += step {
		chunkEnd := i + step
		if chunkEnd > len(body) {
			chunkEnd = len(body)
		}

		fr := AcquireFrameHeader()
		fr.SetStream(strm.ID())

		data := AcquireFrame(FrameData).(*Data)
		data.SetEndStream(chunkEnd == len(body))
		data.SetData(body[i:chunkEnd])
		fr.SetBody(data)

		strm.outWindow.Consume(int32(chunkEnd - i))
		c.connOutWindow.Consume(int32(chunkEnd - i))

		c.writer <- fr
	}
}

func limitedReaderSize(r io.Reader) int64 {
	lr, ok := r.(*io.LimitedReader)
	if !ok {
		return -1
	}
	return lr.N
}
