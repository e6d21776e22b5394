package http2

import (
	"sync"

	"github.com/latticeforge/h2core/http2utils"
)

var (
	_ Frame            = &Headers{}
	_ FrameWithHeaders = &Headers{}
)

// Headers is the HEADERS frame: a header block fragment plus, optionally,
// the stream's priority record (RFC 7540 6.2's PRIORITY sub-fields).
//
// https://tools.ietf.org/html/rfc7540#section-6.2
type Headers struct {
	padded bool

	hasPriority bool
	dependency  uint32
	weight      uint16
	exclusive   bool

	endStream  bool
	endHeaders bool
	rawHeaders []byte
}

var headersPool = sync.Pool{New: func() interface{} { return &Headers{} }}

func acquireHeaders() *Headers {
	h := headersPool.Get().(*Headers)
	h.Reset()
	return h
}

func releaseHeaders(h *Headers) {
	headersPool.Put(h)
}

func (h *Headers) Reset() {
	h.padded = false
	h.hasPriority = false
	h.dependency = 0
	h.weight = DefaultWeight
	h.exclusive = false
	h.endStream = false
	h.endHeaders = false
	h.rawHeaders = h.rawHeaders[:0]
}

func (h *Headers) CopyTo(h2 *Headers) {
	h2.padded = h.padded
	h2.hasPriority = h.hasPriority
	h2.dependency = h.dependency
	h2.weight = h.weight
	h2.exclusive = h.exclusive
	h2.endStream = h.endStream
	h2.endHeaders = h.endHeaders
	h2.rawHeaders = append(h2.rawHeaders[:0], h.rawHeaders...)
}

func (h *Headers) Type() FrameType {
	return FrameHeaders
}

func (h *Headers) Headers() []byte {
	return h.rawHeaders
}

func (h *Headers) SetHeaders(b []byte) {
	h.rawHeaders = append(h.rawHeaders[:0], b...)
}

func (h *Headers) AppendRawHeaders(b []byte) {
	h.rawHeaders = append(h.rawHeaders, b...)
}

func (h *Headers) AppendHeaderField(hp *HPACK, hf *HeaderField, store bool) {
	h.rawHeaders = hp.AppendHeaderField(h.rawHeaders, hf, store)
}

func (h *Headers) EndStream() bool        { return h.endStream }
func (h *Headers) SetEndStream(v bool)    { h.endStream = v }
func (h *Headers) EndHeaders() bool       { return h.endHeaders }
func (h *Headers) SetEndHeaders(v bool)   { h.endHeaders = v }
func (h *Headers) Padding() bool          { return h.padded }
func (h *Headers) SetPadding(v bool)      { h.padded = v }

// HasPriority reports whether a priority sub-field was present (received)
// or should be emitted (sending).
func (h *Headers) HasPriority() bool { return h.hasPriority }

// Dependency, Weight and Exclusive expose the optional priority sub-field.
// Weight is in the 1..256 range, already adjusted from the wire's 0..255.
func (h *Headers) Dependency() uint32 { return h.dependency }
func (h *Headers) Weight() uint16     { return h.weight }
func (h *Headers) Exclusive() bool    { return h.exclusive }

// SetPriority arms the frame to carry a priority sub-field on send.
func (h *Headers) SetPriority(dependency uint32, weight uint16, exclusive bool) {
	h.hasPriority = true
	h.dependency = dependency
	h.weight = weight
	h.exclusive = exclusive
}

func (h *Headers) Deserialize(frh *FrameHeader) error {
	flags := frh.Flags()
	payload := frh.payload

	if flags.Has(FlagPadded) {
		var err error
		payload, err = http2utils.CutPadding(payload, frh.Len())
		if err != nil {
			return NewResetStreamError(frh.Stream(), ProtocolError, err.Error())
		}
	}

	if flags.Has(FlagPriority) {
		if len(payload) < 5 {
			return ErrMissingBytes
		}

		dep := http2utils.BytesToUint32(payload)
		h.hasPriority = true
		h.exclusive = dep&(1<<31) != 0
		h.dependency = dep & (1<<31 - 1)
		h.weight = uint16(payload[4]) + 1
		payload = payload[5:]
	}

	h.endStream = flags.Has(FlagEndStream)
	h.endHeaders = flags.Has(FlagEndHeaders)
	h.rawHeaders = append(h.rawHeaders[:0], payload...)

	return nil
}

func (h *Headers) Serialize(frh *FrameHeader) {
	if h.endStream {
		frh.SetFlags(frh.Flags().Add(FlagEndStream))
	}

	if h.endHeaders {
		frh.SetFlags(frh.Flags().Add(FlagEndHeaders))
	}

	payload := frh.payload[:0]

	if h.hasPriority {
		frh.SetFlags(frh.Flags().Add(FlagPriority))

		dep := h.dependency & (1<<31 - 1)
		if h.exclusive {
			dep |= 1 << 31
		}

		payload = http2utils.AppendUint32Bytes(payload, dep)
		w := h.weight
		if w == 0 {
			w = 1
		}
		payload = append(payload, byte(w-1))
	}

	payload = append(payload, h.rawHeaders...)

	if h.padded {
		frh.SetFlags(frh.Flags().Add(FlagPadded))
		payload = http2utils.AddPadding(payload)
	}

	frh.payload = payload
}
