package http2

import "time"

// Shutdown begins the staged graceful shutdown of spec §4.8: an advisory
// GOAWAY with last-stream-id set to the maximum possible value (telling
// the peer "don't start new streams, but anything already in flight up to
// any id is still fine"), followed a second later by the real GOAWAY
// naming the actual last stream this connection will process, followed,
// if streams are still open once GracefulShutdownTimeout elapses, by a
// forced close.
func (c *Connection) Shutdown() {
	if c.state() != connOpen {
		return
	}
	c.setState(connHalfClosed)

	c.writeAdvisoryGoAway()

	c.shutdownTimer1 = time.AfterFunc(gracefulShutdownFirstStage, c.enterDraining)
}

func (c *Connection) writeAdvisoryGoAway() {
	fr := AcquireFrameHeader()
	ga := AcquireFrame(FrameGoAway).(*GoAway)
	ga.SetLastStreamID(1<<31 - 1)
	ga.SetCode(NoError)
	fr.SetBody(ga)
	c.writer <- fr
}

// enterDraining sends the real GOAWAY bounding admission to streams
// already opened, then arms the forced-close timer.
func (c *Connection) enterDraining() {
	c.setState(connIsClosing)
	c.writeGoAway(0, NoError, "")

	if c.cfg.GracefulShutdownTimeout > 0 {
		c.shutdownTimer2 = time.AfterFunc(c.cfg.GracefulShutdownTimeout, c.forceClose)
	} else {
		c.tryFinishShutdown()
	}
}

func (c *Connection) forceClose() {
	select {
	case <-c.closer:
	default:
		close(c.closer)
	}
}

// tryFinishShutdown closes the connection once a GOAWAY naming a real
// last-stream-id has been sent (the draining one, or one sent for a
// connection error) and every pull stream at or below that id has closed.
func (c *Connection) tryFinishShutdown() {
	if !c.goAwaySent {
		return
	}
	ref := c.goAwayLastID
	for _, strm := range c.streams.All() {
		if strm.IsPull() && strm.ID() <= ref {
			return
		}
	}
	c.forceClose()
}
