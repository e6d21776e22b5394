package http2

import (
	"sync"

	"github.com/latticeforge/h2core/http2utils"
)

var _ FrameWithHeaders = &PushPromise{}

// PushPromise is PUSH_PROMISE: server-initiated, announces a promised
// stream id on the stream it is sent on. This engine rejects PUSH_PROMISE
// on receipt (server-side, RFC 7540 6.6); no code path emits one either.
//
// https://tools.ietf.org/html/rfc7540#section-6.6
type PushPromise struct {
	padded      bool
	endHeaders  bool
	promisedID  uint32
	rawHeaders  []byte
}

var pushPromisePool = sync.Pool{New: func() interface{} { return &PushPromise{} }}

func acquirePushPromise() *PushPromise {
	pp := pushPromisePool.Get().(*PushPromise)
	pp.Reset()
	return pp
}

func releasePushPromise(pp *PushPromise) {
	pushPromisePool.Put(pp)
}

func (pp *PushPromise) Type() FrameType {
	return FramePushPromise
}

func (pp *PushPromise) Reset() {
	pp.padded = false
	pp.endHeaders = false
	pp.promisedID = 0
	pp.rawHeaders = pp.rawHeaders[:0]
}

func (pp *PushPromise) Headers() []byte {
	return pp.rawHeaders
}

func (pp *PushPromise) SetHeaders(h []byte) {
	pp.rawHeaders = append(pp.rawHeaders[:0], h...)
}

func (pp *PushPromise) PromisedStreamID() uint32     { return pp.promisedID }
func (pp *PushPromise) SetPromisedStreamID(id uint32) { pp.promisedID = id & (1<<31 - 1) }
func (pp *PushPromise) EndHeaders() bool             { return pp.endHeaders }
func (pp *PushPromise) SetEndHeaders(v bool)         { pp.endHeaders = v }

func (pp *PushPromise) Deserialize(fr *FrameHeader) error {
	payload := fr.payload

	if fr.Flags().Has(FlagPadded) {
		var err error
		payload, err = http2utils.CutPadding(payload, fr.Len())
		if err != nil {
			return err
		}
	}

	if len(payload) < 4 {
		return ErrMissingBytes
	}

	pp.promisedID = http2utils.BytesToUint32(payload) & (1<<31 - 1)
	pp.rawHeaders = append(pp.rawHeaders[:0], payload[4:]...)
	pp.endHeaders = fr.Flags().Has(FlagEndHeaders)

	return nil
}

func (pp *PushPromise) Serialize(fr *FrameHeader) {
	if pp.endHeaders {
		fr.SetFlags(fr.Flags().Add(FlagEndHeaders))
	}

	payload := http2utils.AppendUint32Bytes(fr.payload[:0], pp.promisedID)
	payload = append(payload, pp.rawHeaders...)

	if pp.padded {
		fr.SetFlags(fr.Flags().Add(FlagPadded))
		payload = http2utils.AddPadding(payload)
	}

	fr.payload = payload
}
