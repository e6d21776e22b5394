package http2

import (
	"encoding/binary"
	"sync"
	"time"
)

var _ Frame = &Ping{}

// Ping is PING: an 8-byte opaque round trip probe. The engine answers the
// peer's pings and stamps its own with the send time; it does not read
// the ACKs of its own pings.
//
// https://tools.ietf.org/html/rfc7540#section-6.7
type Ping struct {
	ack  bool
	data [8]byte
}

var pingPool = sync.Pool{New: func() interface{} { return &Ping{} }}

func acquirePing() *Ping {
	p := pingPool.Get().(*Ping)
	p.Reset()
	return p
}

func releasePing(p *Ping) {
	pingPool.Put(p)
}

func (ping *Ping) Type() FrameType {
	return FramePing
}

func (ping *Ping) Reset() {
	ping.ack = false
	ping.data = [8]byte{}
}

func (ping *Ping) CopyTo(p *Ping) {
	p.ack = ping.ack
	p.data = ping.data
}

func (ping *Ping) IsAck() bool    { return ping.ack }
func (ping *Ping) SetAck(v bool)  { ping.ack = v }

func (ping *Ping) SetData(b []byte) {
	copy(ping.data[:], b)
}

func (ping *Ping) Data() []byte {
	return ping.data[:]
}

// SetCurrentTime encodes the current monotonic clock reading into the
// opaque payload so a later matching ACK lets the caller compute RTT by
// decoding it back with SentAt.
func (ping *Ping) SetCurrentTime() {
	binary.BigEndian.PutUint64(ping.data[:], uint64(time.Now().UnixNano()))
}

// SentAt decodes the timestamp written by SetCurrentTime. Only meaningful
// on pings this engine originated.
func (ping *Ping) SentAt() time.Time {
	ns := binary.BigEndian.Uint64(ping.data[:])
	return time.Unix(0, int64(ns))
}

func (ping *Ping) Deserialize(frh *FrameHeader) error {
	if len(frh.payload) != 8 {
		return NewGoAwayError(FrameSizeError, "ping payload must be 8 bytes")
	}

	ping.ack = frh.Flags().Has(FlagAck)
	ping.SetData(frh.payload)

	return nil
}

func (ping *Ping) Serialize(fr *FrameHeader) {
	if ping.ack {
		fr.SetFlags(fr.Flags().Add(FlagAck))
	}

	fr.setPayload(ping.data[:])
}
