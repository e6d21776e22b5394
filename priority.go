package http2

import (
	"sync"

	"github.com/latticeforge/h2core/http2utils"
)

const FramePriority FrameType = 0x2

var _ Frame = &Priority{}

var priorityPool = sync.Pool{New: func() interface{} { return &Priority{} }}

func acquirePriority() *Priority {
	p := priorityPool.Get().(*Priority)
	p.Reset()
	return p
}

func releasePriority(p *Priority) {
	priorityPool.Put(p)
}

// DefaultWeight is the weight assigned to a stream that never received an
// explicit PRIORITY frame or HEADERS priority sub-field.
const DefaultWeight = 16

// Priority represents the PRIORITY frame payload and doubles as the
// priority record carried by a Stream (dependency, weight, exclusive).
//
// https://tools.ietf.org/html/rfc7540#section-6.3
type Priority struct {
	stream    uint32
	weight    uint16
	exclusive bool
}

func (pry *Priority) Type() FrameType {
	return FramePriority
}

func (pry *Priority) Reset() {
	pry.stream = 0
	pry.weight = DefaultWeight
	pry.exclusive = false
}

func (pry *Priority) CopyTo(p *Priority) {
	p.stream = pry.stream
	p.weight = pry.weight
	p.exclusive = pry.exclusive
}

// Stream returns the dependency's stream id.
func (pry *Priority) Stream() uint32 {
	return pry.stream
}

func (pry *Priority) SetStream(stream uint32) {
	pry.stream = stream & (1<<31 - 1)
}

// Weight returns the weight in the 1..256 range already adjusted from the
// legacy 0..255 wire encoding.
func (pry *Priority) Weight() uint16 {
	return pry.weight
}

// SetWeight accepts a weight in the 1..256 range.
func (pry *Priority) SetWeight(w uint16) {
	if w == 0 {
		w = 1
	}
	if w > 256 {
		w = 256
	}
	pry.weight = w
}

func (pry *Priority) Exclusive() bool {
	return pry.exclusive
}

func (pry *Priority) SetExclusive(e bool) {
	pry.exclusive = e
}

func (pry *Priority) Deserialize(fr *FrameHeader) (err error) {
	if len(fr.payload) < 5 {
		return ErrMissingBytes
	}

	dep := http2utils.BytesToUint32(fr.payload)
	pry.exclusive = dep&(1<<31) != 0
	pry.stream = dep & (1<<31 - 1)
	pry.weight = uint16(fr.payload[4]) + 1

	return nil
}

func (pry *Priority) Serialize(fr *FrameHeader) {
	dep := pry.stream & (1<<31 - 1)
	if pry.exclusive {
		dep |= 1 << 31
	}

	fr.payload = http2utils.AppendUint32Bytes(fr.payload[:0], dep)

	w := pry.weight
	if w == 0 {
		w = 1
	}
	fr.payload = append(fr.payload, byte(w-1))
}
