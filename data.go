package http2

import (
	"sync"

	"github.com/latticeforge/h2core/http2utils"
)

var _ Frame = &Data{}

// Data is the DATA frame payload: the body bytes for one stream.
//
// https://tools.ietf.org/html/rfc7540#section-6.1
type Data struct {
	endStream bool
	padded    bool
	b         []byte
}

var dataPool = sync.Pool{New: func() interface{} { return &Data{} }}

func acquireData() *Data {
	d := dataPool.Get().(*Data)
	d.Reset()
	return d
}

func releaseData(d *Data) {
	dataPool.Put(d)
}

func (data *Data) Type() FrameType {
	return FrameData
}

func (data *Data) Reset() {
	data.endStream = false
	data.padded = false
	data.b = data.b[:0]
}

func (data *Data) CopyTo(d *Data) {
	d.padded = data.padded
	d.endStream = data.endStream
	d.b = append(d.b[:0], data.b...)
}

func (data *Data) SetEndStream(v bool) { data.endStream = v }
func (data *Data) EndStream() bool     { return data.endStream }

// Data returns the payload bytes, excluding any padding.
func (data *Data) Data() []byte {
	return data.b
}

// SetData replaces the payload bytes.
func (data *Data) SetData(b []byte) {
	data.b = append(data.b[:0], b...)
}

func (data *Data) Padding() bool       { return data.padded }
func (data *Data) SetPadding(v bool)   { data.padded = v }

// Append appends b to the existing payload; Write is built on it.
func (data *Data) Append(b []byte) {
	data.b = append(data.b, b...)
}

func (data *Data) Len() int {
	return len(data.b)
}

func (data *Data) Write(b []byte) (int, error) {
	data.Append(b)
	return len(b), nil
}

func (data *Data) Deserialize(fr *FrameHeader) error {
	payload := fr.payload

	if fr.Flags().Has(FlagPadded) {
		var err error
		payload, err = http2utils.CutPadding(payload, fr.Len())
		if err != nil {
			return NewResetStreamError(fr.Stream(), ProtocolError, err.Error())
		}
	}

	data.endStream = fr.Flags().Has(FlagEndStream)
	data.b = append(data.b[:0], payload...)

	return nil
}

func (data *Data) Serialize(fr *FrameHeader) {
	if data.endStream {
		fr.SetFlags(fr.Flags().Add(FlagEndStream))
	}

	if data.padded {
		fr.SetFlags(fr.Flags().Add(FlagPadded))
		data.b = http2utils.AddPadding(data.b)
	}

	fr.setPayload(data.b)
}
