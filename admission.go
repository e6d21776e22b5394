package http2

// enqueueRequest places strm on the FIFO admission queue (spec §4.5) and
// immediately tries to admit it, since admission may have slack right now.
func (c *Connection) enqueueRequest(strm *Stream) {
	c.streams.Enqueue(strm)
	c.tryAdmitPending()
}

// admissible reports whether strm may be dispatched right now: pull+push
// half-closed count under the connection limit, and, for streamed bodies,
// under the streaming-specific limit too.
func (c *Connection) admissible(strm *Stream) bool {
	total := c.numHalfClosedPull + c.numHalfClosedPush
	if uint32(total) >= c.cfg.MaxConcurrentRequests {
		return false
	}
	if strm.IsStreamed() && uint32(c.numReqStreamingInProgress) >= c.cfg.MaxConcurrentStreamingRequests {
		return false
	}
	return true
}

// tryAdmitPending walks the pending queue once, admitting every stream it
// can and leaving the rest in place (spec §4.5: "skip but continue
// scanning" rather than stopping at the first inadmissible entry).
func (c *Connection) tryAdmitPending() {
	for i := 0; i < len(c.streams.Pending()); {
		strm := c.streams.Pending()[i]
		if !c.admissible(strm) {
			if !strm.blockedByServer {
				strm.blockedByServer = true
				c.numBlockedByServer++
			}
			i++
			continue
		}
		if strm.blockedByServer {
			strm.blockedByServer = false
			c.numBlockedByServer--
		}
		c.streams.RemovePendingAt(i)
		c.admitRequest(strm)
	}
}

func (c *Connection) admitRequest(strm *Stream) {
	strm.blockedByServer = false
	strm.admitted = true
	if strm.IsPull() {
		c.numHalfClosedPull++
	} else {
		c.numHalfClosedPush++
	}
	if strm.IsStreamed() {
		c.numReqStreamingInProgress++
	}
	c.dispatchRequest(strm)
}

// admitTunnel dispatches a CONNECT request immediately, bypassing the
// admission queue entirely per spec §4.4.
func (c *Connection) admitTunnel(strm *Stream) {
	strm.SetState(StreamStateReqPending)
	strm.admitted = true
	c.numTunnels++
	c.numHalfClosedPull++
	c.dispatchRequest(strm)
}
