package http2

import (
	"sync"

	"golang.org/x/net/http2/hpack"
)

// HPACK wraps golang.org/x/net/http2/hpack's Encoder/Decoder pair into the
// single encode+decode handle the rest of this engine expects: one HPACK
// per direction per connection, each owning its own dynamic table.
//
// https://tools.ietf.org/html/rfc7541
type HPACK struct {
	enc *hpack.Encoder
	buf []byte

	dec    *hpack.Decoder
	fields []HeaderField
}

var hpackPool = sync.Pool{
	New: func() interface{} {
		h := &HPACK{}
		h.enc = hpack.NewEncoder(&hpackBufWriter{h: h})
		h.dec = hpack.NewDecoder(defaultHeaderTableSize, nil)
		return h
	},
}

// AcquireHPACK returns a pooled HPACK codec with an empty dynamic table.
func AcquireHPACK() *HPACK {
	h := hpackPool.Get().(*HPACK)
	h.Reset()
	return h
}

func ReleaseHPACK(h *HPACK) {
	hpackPool.Put(h)
}

func (h *HPACK) Reset() {
	h.buf = h.buf[:0]
	h.fields = h.fields[:0]
	h.enc = hpack.NewEncoder(&hpackBufWriter{h: h})
	h.dec = hpack.NewDecoder(defaultHeaderTableSize, nil)
}

// SetMaxTableSize applies a new HEADER_TABLE_SIZE to the encoder's dynamic
// table, in response to the peer advertising its own decoder's capacity.
func (h *HPACK) SetMaxTableSize(n uint32) {
	h.enc.SetMaxDynamicTableSize(n)
}

// SetMaxDecoderTableSize applies a new HEADER_TABLE_SIZE to the decoder's
// dynamic table, used when this side advertises its own limit.
func (h *HPACK) SetMaxDecoderTableSize(n uint32) {
	h.dec.SetMaxDynamicTableSize(n)
}

// hpackBufWriter adapts an HPACK's internal buffer to io.Writer, since
// hpack.Encoder streams each field's encoding out via a single Write call.
type hpackBufWriter struct{ h *HPACK }

func (w *hpackBufWriter) Write(p []byte) (int, error) {
	w.h.buf = append(w.h.buf, p...)
	return len(p), nil
}

// AppendHeaderField encodes hf onto dst and returns the grown slice.
// never index forces the "never indexed" wire representation regardless of
// field size, for values such as :path whose cardinality makes indexing
// pure table churn; sensitive fields (hf.IsSensible()) always get this
// treatment regardless of the flag.
func (h *HPACK) AppendHeaderField(dst []byte, hf *HeaderField, neverIndex bool) []byte {
	h.buf = h.buf[:0]

	f := hpack.HeaderField{
		Name:      hf.Key(),
		Value:     hf.Value(),
		Sensitive: neverIndex || hf.IsSensible(),
	}

	_ = h.enc.WriteField(f)

	return append(dst, h.buf...)
}

// DecodeFull decodes an entire header block fragment (already reassembled
// across HEADERS + CONTINUATION) into the codec's internal field slice,
// reused until the next DecodeFull/Reset call. Callers must copy out
// anything they need to keep past that point.
func (h *HPACK) DecodeFull(block []byte) ([]HeaderField, error) {
	h.fields = h.fields[:0]
	h.dec.SetEmitFunc(func(f hpack.HeaderField) {
		h.fields = append(h.fields, HeaderField{})
		last := &h.fields[len(h.fields)-1]
		last.SetKey(f.Name)
		last.SetValue(f.Value)
		last.sensible = f.Sensitive
	})

	if _, err := h.dec.Write(block); err != nil {
		return nil, NewResetStreamError(0, CompressionError, err.Error())
	}
	if err := h.dec.Close(); err != nil {
		h.dec = hpack.NewDecoder(defaultHeaderTableSize, nil)
		return nil, NewGoAwayError(CompressionError, err.Error())
	}

	return h.fields, nil
}
