package http2

import (
	"bufio"
	"net"
)

// ConnOpts configures a test Conn. Left empty in every test this engine
// ships; it exists so a future client-side test can grow pacing knobs
// without changing every call site.
type ConnOpts struct{}

// Conn is a minimal client-side driver used only by this package's own
// tests: it speaks just enough of the wire protocol to perform the
// connection preface and push/pull raw frames, so a test can assert on
// exactly what the server writes without going through a real HTTP/2
// client implementation.
type Conn struct {
	c net.Conn

	br *bufio.Reader
	bw *bufio.Writer

	enc *HPACK
	dec *HPACK

	serverS Settings
}

func NewConn(c net.Conn, _ ConnOpts) *Conn {
	return &Conn{
		c:   c,
		br:  bufio.NewReader(c),
		bw:  bufio.NewWriter(c),
		enc: AcquireHPACK(),
		dec: AcquireHPACK(),
	}
}

// doHandshake sends the client connection preface and an initial
// SETTINGS frame, then consumes the server's opening SETTINGS and
// connection WINDOW_UPDATE (spec §4.9), acking the former.
func (c *Conn) doHandshake() error {
	if _, err := c.bw.WriteString(clientPreface); err != nil {
		return err
	}

	fr := AcquireFrameHeader()
	st := AcquireFrame(FrameSettings).(*Settings)
	st.Reset()
	fr.SetBody(st)
	if _, err := fr.WriteTo(c.bw); err != nil {
		ReleaseFrameHeader(fr)
		return err
	}
	ReleaseFrameHeader(fr)

	if err := c.bw.Flush(); err != nil {
		return err
	}

	for i := 0; i < 2; i++ {
		fr, err := ReadFrameFrom(c.br)
		if err != nil {
			return err
		}
		switch b := fr.Body().(type) {
		case *Settings:
			if !b.IsAck() {
				b.CopyTo(&c.serverS)
				c.writeFrame(c.ackSettings())
			}
		case *WindowUpdate:
			// connection window bump, nothing to track on the client side
		}
		ReleaseFrameHeader(fr)
	}

	return nil
}

func (c *Conn) ackSettings() *FrameHeader {
	fr := AcquireFrameHeader()
	st := AcquireFrame(FrameSettings).(*Settings)
	st.Reset()
	st.SetAck(true)
	fr.SetBody(st)
	return fr
}

// writeFrame writes and flushes fr, releasing it afterwards.
func (c *Conn) writeFrame(fr *FrameHeader) {
	_, _ = fr.WriteTo(c.bw)
	_ = c.bw.Flush()
	ReleaseFrameHeader(fr)
}

// readNext returns the next frame that isn't purely connection
// bookkeeping: it transparently handles SETTINGS (acking the server's)
// and PING along the way, but hands GOAWAY, RST_STREAM, HEADERS and
// DATA back to the caller to inspect, same as a real client would see
// them on the wire.
func (c *Conn) readNext() (*FrameHeader, error) {
	for {
		fr, err := ReadFrameFrom(c.br)
		if err != nil {
			return nil, err
		}

		switch b := fr.Body().(type) {
		case *Settings:
			if !b.IsAck() {
				b.CopyTo(&c.serverS)
				c.writeFrame(c.ackSettings())
			}
		case *Ping:
			if !b.IsAck() {
				ack := AcquireFrameHeader()
				p := AcquireFrame(FramePing).(*Ping)
				p.SetData(b.Data())
				p.SetAck(true)
				ack.SetBody(p)
				c.writeFrame(ack)
			}
		default:
			return fr, nil
		}

		ReleaseFrameHeader(fr)
	}
}

func (c *Conn) Close() error {
	ReleaseHPACK(c.enc)
	ReleaseHPACK(c.dec)
	return c.c.Close()
}

// writeData chunks body into 16 KiB DATA frames reusing fh's stream id,
// the shape every handler-driven response write in this package follows.
func writeData(bw *bufio.Writer, fh *FrameHeader, body []byte) error {
	step := 1 << 14
	data := AcquireFrame(FrameData).(*Data)
	fh.SetBody(data)

	for i := 0; i < len(body); i += step {
		end := i + step
		if end > len(body) {
			end = len(body)
		}
		data.SetEndStream(end == len(body))
		data.SetPadding(false)
		data.SetData(body[i:end])
		if _, err := fh.WriteTo(bw); err != nil {
			return err
		}
	}
	return nil
}
