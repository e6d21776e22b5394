package http2

import (
	"sync"

	"github.com/latticeforge/h2core/http2utils"
)

const (
	defaultHeaderTableSize = 4096
	defaultMaxWindowSize   = 1 << 16 - 1 // 65535
	defaultConcurrentStreams = 100
)

// settings parameter identifiers, RFC 7540 section 6.5.2.
const (
	settingHeaderTableSize     uint16 = 0x1
	settingEnablePush          uint16 = 0x2
	settingMaxConcurrentStream uint16 = 0x3
	settingInitialWindowSize   uint16 = 0x4
	settingMaxFrameSize        uint16 = 0x5
	settingMaxHeaderListSize   uint16 = 0x6
)

var _ Frame = &Settings{}

// Settings represents both a SETTINGS frame on the wire and the resolved
// settings state for one direction of a connection (the Connection keeps
// one Settings for what it has sent/negotiated and one for the peer's).
//
// https://tools.ietf.org/html/rfc7540#section-6.5
type Settings struct {
	ack bool

	headerTableSize      uint32
	enablePush           bool
	maxConcurrentStreams uint32
	maxWindowSize        uint32
	maxFrameSize         uint32
	maxHeaderListSize    uint32
}

var settingsPool = sync.Pool{
	New: func() interface{} {
		return &Settings{}
	},
}

func acquireSettings() *Settings {
	st := settingsPool.Get().(*Settings)
	st.Reset()
	return st
}

func releaseSettings(st *Settings) {
	settingsPool.Put(st)
}

func (st *Settings) Type() FrameType {
	return FrameSettings
}

func (st *Settings) Reset() {
	st.ack = false
	st.headerTableSize = defaultHeaderTableSize
	st.enablePush = true
	st.maxConcurrentStreams = defaultConcurrentStreams
	st.maxWindowSize = defaultMaxWindowSize
	st.maxFrameSize = defaultMaxLen
	st.maxHeaderListSize = 0 // 0 means unlimited/unset
}

func (st *Settings) CopyTo(dst *Settings) {
	dst.ack = st.ack
	dst.headerTableSize = st.headerTableSize
	dst.enablePush = st.enablePush
	dst.maxConcurrentStreams = st.maxConcurrentStreams
	dst.maxWindowSize = st.maxWindowSize
	dst.maxFrameSize = st.maxFrameSize
	dst.maxHeaderListSize = st.maxHeaderListSize
}

func (st *Settings) IsAck() bool      { return st.ack }
func (st *Settings) SetAck(ack bool)  { st.ack = ack }

func (st *Settings) HeaderTableSize() uint32        { return st.headerTableSize }
func (st *Settings) SetHeaderTableSize(n uint32)    { st.headerTableSize = n }
func (st *Settings) Push() bool                     { return st.enablePush }
func (st *Settings) SetPush(v bool)                 { st.enablePush = v }
func (st *Settings) MaxConcurrentStreams() uint32   { return st.maxConcurrentStreams }
func (st *Settings) SetMaxConcurrentStreams(n uint32) { st.maxConcurrentStreams = n }
func (st *Settings) MaxWindowSize() uint32          { return st.maxWindowSize }
func (st *Settings) SetMaxWindowSize(n uint32)      { st.maxWindowSize = n }
func (st *Settings) MaxFrameSize() uint32           { return st.maxFrameSize }
func (st *Settings) SetMaxFrameSize(n uint32)       { st.maxFrameSize = n }
func (st *Settings) MaxHeaderListSize() uint32      { return st.maxHeaderListSize }
func (st *Settings) SetMaxHeaderListSize(n uint32)  { st.maxHeaderListSize = n }

func (st *Settings) Deserialize(fr *FrameHeader) error {
	if fr.Flags().Has(FlagAck) {
		st.ack = true
		return nil
	}

	b := fr.payload
	if len(b)%6 != 0 {
		return NewGoAwayError(FrameSizeError, "settings payload not a multiple of 6")
	}

	for len(b) >= 6 {
		id := uint16(b[0])<<8 | uint16(b[1])
		val := http2utils.BytesToUint32(b[2:6])
		b = b[6:]

		switch id {
		case settingHeaderTableSize:
			st.headerTableSize = val
		case settingEnablePush:
			st.enablePush = val == 1
		case settingMaxConcurrentStream:
			st.maxConcurrentStreams = val
		case settingInitialWindowSize:
			if val > maxWindowSize {
				return NewGoAwayError(FlowControlError, "initial window size too large")
			}
			st.maxWindowSize = val
		case settingMaxFrameSize:
			if val < defaultMaxLen || val > 1<<24-1 {
				return NewGoAwayError(ProtocolError, "invalid max frame size")
			}
			st.maxFrameSize = val
		case settingMaxHeaderListSize:
			st.maxHeaderListSize = val
		}
		// unknown settings parameters are ignored, per RFC 7540 6.5.2.
	}

	return nil
}

func (st *Settings) Serialize(fr *FrameHeader) {
	if st.ack {
		fr.SetFlags(fr.Flags().Add(FlagAck))
		fr.payload = fr.payload[:0]
		return
	}

	dst := fr.payload[:0]
	dst = appendSetting(dst, settingHeaderTableSize, st.headerTableSize)
	dst = appendSetting(dst, settingEnablePush, boolToUint32(st.enablePush))
	dst = appendSetting(dst, settingMaxConcurrentStream, st.maxConcurrentStreams)
	dst = appendSetting(dst, settingInitialWindowSize, st.maxWindowSize)
	dst = appendSetting(dst, settingMaxFrameSize, st.maxFrameSize)
	if st.maxHeaderListSize > 0 {
		dst = appendSetting(dst, settingMaxHeaderListSize, st.maxHeaderListSize)
	}
	fr.payload = dst
}

func appendSetting(dst []byte, id uint16, val uint32) []byte {
	dst = append(dst, byte(id>>8), byte(id))
	return http2utils.AppendUint32Bytes(dst, val)
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
