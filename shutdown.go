package h2io

import "golang.org/x/net/http2"

// shutdown.go implements spec.md §4.8: graceful termination sends
// GOAWAY and lets in-flight streams finish; CloseAsync layers a
// completion handoff on top; Destroy tears everything down immediately.

// GracefulTerminate implements spec.md §4.8: "when no active streams
// remain, send GOAWAY with NO_ERROR and kick the writer". It always
// stops admitting new submissions immediately; the GOAWAY itself is
// deferred until active_streams has actually drained (existing streams
// still complete — each one's own Finished call is what ultimately
// triggers the deferred send via finishTerminate).
func (c *ConnIO) GracefulTerminate() error {
	c.isShutdown = true
	if !c.goawaySent && len(c.activeStreams) == 0 {
		return c.sendGoAwayNow()
	}
	return nil
}

// sendGoAwayNow actually writes the GOAWAY frame exactly once.
func (c *ConnIO) sendGoAwayNow() error {
	if c.goawaySent {
		return nil
	}
	c.goawaySent = true
	err := c.session.SubmitGoAway(0, http2.ErrCodeNo)
	c.kickWriter()
	return err
}

// finishTerminate implements spec.md §4.9 step 6 ("finish terminate"):
// called once active_streams has just become empty while is_shutdown is
// set. It sends the deferred GOAWAY if one hasn't gone out yet, or, if
// it already has, just flushes the writer so the pending close token
// (afterDrain) is delivered.
func (c *ConnIO) finishTerminate() {
	if !c.goawaySent {
		c.sendGoAwayNow()
		return
	}
	c.kickWriter()
}

// CloseAsync implements spec.md §4.8's close_async / §6 close_async:
// "returns false if GOAWAY was already sent; otherwise installs a close
// token and triggers terminate". The token is delivered later by
// afterDrain, once the GOAWAY (sent immediately if idle, or deferred
// until the last in-flight stream's Finished call) has fully drained.
func (c *ConnIO) CloseAsync(done func()) bool {
	if c.goawaySent {
		return false
	}
	c.closeToken = done
	_ = c.GracefulTerminate()
	return true
}

// Destroy implements spec.md §4.8's destroy: an immediate, non-graceful
// teardown. Every in-flight stream fails with ErrClosed and the
// underlying byte stream is closed synchronously.
func (c *ConnIO) Destroy() error {
	c.isShutdown = true
	c.sessionTerminated = true
	if c.terminalErr == nil {
		c.terminalErr = &ConnError{Op: "destroy", Err: ErrClosed}
	}

	for _, s := range c.activeStreams {
		s.fail(ErrClosed)
		s.canBeRestarted = false
	}
	for s := range c.closingStreams {
		s.fail(ErrClosed)
	}
	c.pollPendingReads()
	c.cancelIdleTimer()

	// spec.md §4.8 "destroy": free registries (which drops each stream
	// state) — no callbacks run against them again afterward (spec.md §8
	// property 3).
	c.activeStreams = nil
	c.closingStreams = nil
	c.byStreamID = nil
	c.pendingReads = nil

	return c.conn.Close()
}
