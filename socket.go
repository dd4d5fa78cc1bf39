package h2io

import (
	"errors"
	"io"

	"code.hybscloud.com/iox"
)

// socket driver (spec.md §4.2): two coupled sources over the duplex byte
// stream. The read source polls the input half; the write source is only
// installed when a write would block. Both speak the same would-block
// vocabulary, iox.ErrWouldBlock, that hayabusa-cloud-framer's framer.go
// already surfaces for non-blocking transports in this pack.

// armRead registers the one-shot readable subscription.
func (c *ConnIO) armRead() {
	if c.sched == nil || c.terminalErr != nil {
		return
	}
	c.sched.OnReadable(c.conn, c.handleReadable)
}

// handleReadable implements spec.md §4.2's read algorithm.
func (c *ConnIO) handleReadable() {
	if c.terminalErr != nil {
		return
	}

	for {
		n, err := c.conn.Read(c.readScratch[:])
		if err != nil {
			if errors.Is(err, iox.ErrWouldBlock) {
				c.armRead()
				return
			}
			c.failTransport("read", err)
			return
		}
		if n == 0 {
			c.armRead()
			return
		}

		if _, ferr := c.session.FeedInput(c.readScratch[:n]); ferr != nil {
			c.failTransport("decode", ferr)
			return
		}

		c.pollPendingReads()
		c.kickWriter()
	}
}

// pollPendingReads walks pending_reads and poll-completes any whose
// stream has advanced past READ_DATA_START, errored, or been cancelled
// (spec.md §4.2 step 4).
func (c *ConnIO) pollPendingReads() {
	if len(c.pendingReads) == 0 {
		return
	}
	remaining := c.pendingReads[:0]
	for _, s := range c.pendingReads {
		if c.tryCompletePendingRead(s) {
			continue
		}
		remaining = append(remaining, s)
	}
	c.pendingReads = remaining
}

// tryCompletePendingRead completes s.pending if eligible, returning true
// if it did.
func (c *ConnIO) tryCompletePendingRead(s *StreamState) bool {
	p := s.pending
	if p == nil || p.fired {
		return true
	}
	if s.err != nil {
		p.fired = true
		p.done(s.err)
		return true
	}
	if p.ctx != nil && p.ctx.Err() != nil {
		p.fired = true
		p.done(ErrCancelled)
		return true
	}
	if s.paused {
		// spec.md §4.7: pausing skips further state-progression polls;
		// error/cancel completion above is unaffected.
		return false
	}
	if s.state >= StateReadData {
		p.fired = true
		p.done(nil)
		return true
	}
	return false
}

// kickWriter implements spec.md §4.2's write algorithm. It refuses to
// refill the output window while a codec callback is in progress
// (spec.md §4.1, §9's re-entrancy rule).
func (c *ConnIO) kickWriter() {
	if c.terminalErr != nil || c.session.InCallback() > 0 {
		return
	}

	for c.session.WantsWrite() {
		window := c.session.OutputWindow()
		n, err := c.conn.Write(window)
		if n > 0 {
			c.session.Advance(n)
		}
		if err != nil {
			if errors.Is(err, iox.ErrWouldBlock) {
				if c.sched != nil {
					c.sched.OnWritable(c.conn, c.onWritable)
				}
				return
			}
			c.failTransport("write", err)
			return
		}
	}

	c.afterDrain()
}

func (c *ConnIO) onWritable() {
	c.kickWriter()
}

// afterDrain runs once the output window has been fully flushed: it
// completes a pending graceful-close handoff (§4.8) and refreshes the
// idle timer (SPEC_FULL.md §12).
func (c *ConnIO) afterDrain() {
	for s := range c.closingStreams {
		delete(c.closingStreams, s)
	}

	if c.closeToken != nil && c.goawaySent && len(c.activeStreams) == 0 {
		token := c.closeToken
		c.closeToken = nil
		if c.sched != nil {
			c.sched.OnIdle(token)
		} else {
			token()
		}
	}
	c.resetIdleTimer()
}

// blockingWrite is the synchronous write variant spec.md §4.2 names: it
// differs only in using blocking stream writes and never installs the
// write source.
func (c *ConnIO) blockingWrite() error {
	for c.session.WantsWrite() {
		if c.session.InCallback() > 0 {
			return nil
		}
		window := c.session.OutputWindow()
		n, err := c.conn.Write(window)
		if n > 0 {
			c.session.Advance(n)
		}
		if err != nil && !errors.Is(err, iox.ErrWouldBlock) {
			c.failTransport("write", err)
			return err
		}
		if errors.Is(err, iox.ErrWouldBlock) {
			continue // blocking callers tolerate a retry loop, no source install
		}
	}
	return nil
}

// blockingRead performs exactly one blocking read-decode step, the
// "io_run" primitive run_until_read (spec.md §4.4) drives.
func (c *ConnIO) blockingRead() error {
	n, err := c.conn.Read(c.readScratch[:])
	if err != nil {
		if errors.Is(err, iox.ErrWouldBlock) {
			return nil
		}
		c.failTransport("read", err)
		return err
	}
	if n == 0 {
		return io.EOF
	}
	if _, ferr := c.session.FeedInput(c.readScratch[:n]); ferr != nil {
		c.failTransport("decode", ferr)
		return ferr
	}
	c.pollPendingReads()
	return c.blockingWrite()
}

// ioRun performs one blocking read-or-write step depending on current
// state, matching spec.md §4.4's run_until_read_sync description: if the
// session still wants to write, write; otherwise read.
func (c *ConnIO) ioRun() error {
	if c.session.WantsWrite() {
		return c.blockingWrite()
	}
	return c.blockingRead()
}

// failTransport latches a sticky transport error and propagates it by
// copying to every active and pending stream (spec.md §7).
func (c *ConnIO) failTransport(op string, err error) {
	if c.terminalErr != nil {
		return
	}
	c.terminalErr = &ConnError{Op: op, Err: err}
	c.log.WithError(err).WithField("op", op).Error("transport error")

	for _, s := range c.activeStreams {
		s.fail(&ConnError{Op: op, Err: err})
		s.canBeRestarted = false
	}
	for s := range c.closingStreams {
		s.fail(&ConnError{Op: op, Err: err})
	}
	c.pollPendingReads()
}
