package http2

// Streams is the connection's stream map (spec §3: "mapping from
// stream-id to stream"), plus the FIFO pending-request queue of streams
// awaiting admission (spec §4.5). The map does not own streams; it is
// the engine's only strong index into them.
type Streams struct {
	byID    map[uint32]*Stream
	order   []*Stream // insertion order, for deterministic sweeps (timeouts, shutdown drain)
	pending []*Stream
}

func NewStreams() *Streams {
	return &Streams{byID: make(map[uint32]*Stream)}
}

func (s *Streams) Insert(strm *Stream) {
	s.byID[strm.id] = strm
	s.order = append(s.order, strm)
}

func (s *Streams) Get(id uint32) *Stream {
	return s.byID[id]
}

func (s *Streams) Del(id uint32) *Stream {
	strm := s.byID[id]
	delete(s.byID, id)
	for i, p := range s.order {
		if p == strm {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return strm
}

// All returns every open stream in the order it was created, oldest
// first, so timeout sweeps and shutdown drain checks behave
// deterministically instead of depending on map iteration order.
func (s *Streams) All() []*Stream {
	return s.order
}

func (s *Streams) Len() int {
	return len(s.byID)
}

// Enqueue appends strm to the admission FIFO. The caller is expected to
// have already set its state to StreamStateReqPending.
func (s *Streams) Enqueue(strm *Stream) {
	s.pending = append(s.pending, strm)
}

// Dequeue removes strm from the pending queue, e.g. because it was
// reset before ever being admitted.
func (s *Streams) Dequeue(strm *Stream) {
	for i, p := range s.pending {
		if p == strm {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// Pending exposes the admission FIFO for iteration by the admission gate.
func (s *Streams) Pending() []*Stream {
	return s.pending
}

// RemovePendingAt drops the queue entry at index i, preserving order.
func (s *Streams) RemovePendingAt(i int) {
	s.pending = append(s.pending[:i], s.pending[i+1:]...)
}
