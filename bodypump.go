package h2io

import (
	"errors"
	"io"

	"code.hybscloud.com/iox"
)

const pumpChunkSize = 16 << 10

// pumpBody bridges a foreign request body producer into the codec's
// pull-based DATA emission (spec.md §4.6). It is invoked once at submit
// time (or deferral after 100-continue) and again every time a
// would-block or async read resolves.
func (c *ConnIO) pumpBody(s *StreamState) {
	switch {
	case s.msg.Pollable != nil:
		c.pumpPollable(s)
	case s.msg.Blocking != nil:
		c.pumpBlocking(s)
	}
}

// pumpPollable drains a non-blocking producer until it would block, it
// hits EOF, or it errors (spec.md §4.6 "Pollable").
func (c *ConnIO) pumpPollable(s *StreamState) {
	buf := make([]byte, pumpChunkSize)
	for {
		n, err := s.msg.Pollable.TryRead(buf)
		eof := errors.Is(err, io.EOF)

		if n > 0 {
			c.writeDataChunk(s, buf[:n], eof)
		} else if eof {
			c.writeDataChunk(s, nil, true)
		}

		if eof {
			s.advance(StateWriteDone)
			c.kickWriter()
			return
		}

		if errors.Is(err, iox.ErrWouldBlock) || (err == nil && n == 0) {
			s.msg.Pollable.PollReadable(func() { c.resumeBodyPollable(s) })
			return
		}

		if err != nil {
			s.fail(err)
			c.finishStream(s)
			return
		}
		// n > 0, err == nil, !eof: loop for more without yielding.
	}
}

// resumeBodyPollable fires when a previously would-blocked pollable
// producer becomes readable again; it calls the would-be codec's
// resume_data and retries the write (spec.md §4.6).
func (c *ConnIO) resumeBodyPollable(s *StreamState) {
	if s.err != nil {
		return
	}
	c.pumpPollable(s)
	c.kickWriter()
}

// pumpBlocking drives a blocking producer's scratch-buffer protocol
// (spec.md §4.6 "Blocking").
func (c *ConnIO) pumpBlocking(s *StreamState) {
	if s.blockingErr != nil {
		s.fail(s.blockingErr)
		c.finishStream(s)
		return
	}
	if len(s.blockingBuf) > 0 {
		chunk := s.blockingBuf
		s.blockingBuf = nil
		eof := s.blockingEOF && len(chunk) > 0
		c.writeDataChunk(s, chunk, eof)
		if eof {
			s.advance(StateWriteDone)
		}
		c.kickWriter()
		if !eof {
			c.pumpBlocking(s)
		}
		return
	}
	if s.blockingEOF {
		c.writeDataChunk(s, nil, true)
		s.advance(StateWriteDone)
		c.kickWriter()
		return
	}
	if s.blockingInFly {
		return
	}
	s.blockingInFly = true
	scratch := make([]byte, pumpChunkSize)
	s.msg.Blocking.ReadAsync(scratch, func(n int, err error) {
		c.onBlockingBodyRead(s, scratch[:n], err)
	})
}

// onBlockingBodyRead records the outcome of an async scratch-buffer read
// and resumes the pump (spec.md §4.6 "when it completes, record
// bytes/EOF/error, then resume_data").
func (c *ConnIO) onBlockingBodyRead(s *StreamState, data []byte, err error) {
	s.blockingInFly = false
	if len(data) > 0 {
		s.blockingBuf = append(s.blockingBuf[:0], data...)
	}
	if errors.Is(err, io.EOF) {
		s.blockingEOF = true
	} else if err != nil {
		s.blockingErr = err
	}
	c.pumpBlocking(s)
}

// writeDataChunk submits one DATA frame for s, advancing WRITE_HEADERS ->
// WRITE_DATA on the first byte and forwarding the chunk to the optional
// request logger (spec.md §4.6 last bullet, §4.4 transition table).
func (c *ConnIO) writeDataChunk(s *StreamState, data []byte, endStream bool) {
	if s.state == StateWriteHeaders && len(data) > 0 {
		s.advance(StateWriteData)
	}
	if err := c.session.SubmitData(s.streamID, data, endStream); err != nil {
		s.fail(&ConnError{Op: "submit-data", Err: err})
		c.finishStream(s)
		return
	}
	if len(data) > 0 {
		s.msg.Metrics.RequestBodyBytesSent += int64(len(data))
		if s.msg.Logger != nil {
			s.msg.Logger(data)
		}
	}
	if endStream && s.state < StateWriteDone {
		s.advance(StateWriteDone)
	}
}
