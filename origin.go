package http2

import "sync"

var _ Frame = &Origin{}

// Origin is the ORIGIN frame (RFC 8336): server-to-client only, advertises
// additional origins this connection is authoritative for. The engine
// provides the wire encoding only: no code path emits one (the preface
// does not), and one received on stream 0 is ignored.
//
// https://tools.ietf.org/html/rfc8336#section-2
type Origin struct {
	origins [][]byte
}

var originPool = sync.Pool{New: func() interface{} { return &Origin{} }}

func acquireOrigin() *Origin {
	o := originPool.Get().(*Origin)
	o.Reset()
	return o
}

func releaseOrigin(o *Origin) {
	originPool.Put(o)
}

func (o *Origin) Type() FrameType {
	return FrameOrigin
}

func (o *Origin) Reset() {
	o.origins = o.origins[:0]
}

// AddOrigin appends one ASCII-serialized origin (e.g. "https://example.com").
func (o *Origin) AddOrigin(origin []byte) {
	o.origins = append(o.origins, append([]byte(nil), origin...))
}

func (o *Origin) Origins() [][]byte {
	return o.origins
}

func (o *Origin) Deserialize(fr *FrameHeader) error {
	b := fr.payload
	o.origins = o.origins[:0]

	for len(b) >= 2 {
		n := int(b[0])<<8 | int(b[1])
		b = b[2:]
		if n > len(b) {
			return NewGoAwayError(FrameSizeError, "origin entry length exceeds payload")
		}
		o.origins = append(o.origins, append([]byte(nil), b[:n]...))
		b = b[n:]
	}

	return nil
}

func (o *Origin) Serialize(fr *FrameHeader) {
	dst := fr.payload[:0]
	for _, origin := range o.origins {
		n := len(origin)
		dst = append(dst, byte(n>>8), byte(n))
		dst = append(dst, origin...)
	}
	fr.payload = dst
}
