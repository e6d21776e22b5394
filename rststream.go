package http2

import (
	"sync"

	"github.com/latticeforge/h2core/http2utils"
)

var _ Frame = &RstStream{}

// RstStream carries the error code for RST_STREAM, which immediately
// terminates a stream without affecting the rest of the connection.
//
// https://tools.ietf.org/html/rfc7540#section-6.4
type RstStream struct {
	code ErrorCode
}

var rstStreamPool = sync.Pool{New: func() interface{} { return &RstStream{} }}

func acquireRstStream() *RstStream {
	r := rstStreamPool.Get().(*RstStream)
	r.Reset()
	return r
}

func releaseRstStream(r *RstStream) {
	rstStreamPool.Put(r)
}

func (rst *RstStream) Type() FrameType {
	return FrameResetStream
}

func (rst *RstStream) Code() ErrorCode     { return rst.code }
func (rst *RstStream) SetCode(c ErrorCode) { rst.code = c }

func (rst *RstStream) Reset() {
	rst.code = NoError
}

func (rst *RstStream) CopyTo(r *RstStream) {
	r.code = rst.code
}

func (rst *RstStream) Deserialize(fr *FrameHeader) error {
	if len(fr.payload) < 4 {
		return ErrMissingBytes
	}

	rst.code = ErrorCode(http2utils.BytesToUint32(fr.payload))

	return nil
}

func (rst *RstStream) Serialize(fr *FrameHeader) {
	fr.payload = http2utils.AppendUint32Bytes(fr.payload[:0], uint32(rst.code))
}
