package http2

import (
	"fmt"
	"sync"

	"github.com/latticeforge/h2core/http2utils"
)

var _ Frame = &GoAway{}

// GoAway is GOAWAY: tells the peer that no stream beyond LastStreamID will
// be processed further.
//
// https://tools.ietf.org/html/rfc7540#section-6.8
type GoAway struct {
	lastStreamID uint32
	code         ErrorCode
	data         []byte
}

var goAwayPool = sync.Pool{New: func() interface{} { return &GoAway{} }}

func acquireGoAway() *GoAway {
	ga := goAwayPool.Get().(*GoAway)
	ga.Reset()
	return ga
}

func releaseGoAway(ga *GoAway) {
	goAwayPool.Put(ga)
}

func (ga *GoAway) Error() string {
	return fmt.Sprintf("last_stream_id=%d, code=%s, data=%s", ga.lastStreamID, ga.code, ga.data)
}

func (ga *GoAway) Type() FrameType {
	return FrameGoAway
}

func (ga *GoAway) Reset() {
	ga.lastStreamID = 0
	ga.code = NoError
	ga.data = ga.data[:0]
}

func (ga *GoAway) CopyTo(other *GoAway) {
	other.lastStreamID = ga.lastStreamID
	other.code = ga.code
	other.data = append(other.data[:0], ga.data...)
}

func (ga *GoAway) Code() ErrorCode       { return ga.code }
func (ga *GoAway) SetCode(code ErrorCode) { ga.code = code }

// LastStreamID returns the highest stream id the sender will process.
// When received from a peer, this MUST be honored: no new server-initiated
// (push) stream above it may be opened.
func (ga *GoAway) LastStreamID() uint32 { return ga.lastStreamID }

func (ga *GoAway) SetLastStreamID(id uint32) {
	ga.lastStreamID = id & (1<<31 - 1)
}

func (ga *GoAway) Data() []byte {
	return ga.data
}

func (ga *GoAway) SetData(b []byte) {
	ga.data = append(ga.data[:0], b...)
}

func (ga *GoAway) Deserialize(fr *FrameHeader) error {
	if len(fr.payload) < 8 {
		return ErrMissingBytes
	}

	ga.lastStreamID = http2utils.BytesToUint32(fr.payload[:4]) & (1<<31 - 1)
	ga.code = ErrorCode(http2utils.BytesToUint32(fr.payload[4:8]))

	if rest := fr.payload[8:]; len(rest) != 0 {
		ga.data = append(ga.data[:0], rest...)
	}

	return nil
}

func (ga *GoAway) Serialize(fr *FrameHeader) {
	fr.payload = http2utils.AppendUint32Bytes(fr.payload[:0], ga.lastStreamID)
	fr.payload = http2utils.AppendUint32Bytes(fr.payload, uint32(ga.code))
	fr.payload = append(fr.payload, ga.data...)
}
