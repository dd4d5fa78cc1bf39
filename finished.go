package h2io

import (
	"time"

	"golang.org/x/net/http2"
)

// finishStream implements spec.md §4.9: the CALLER (the enclosing
// session, reached here through MessageIO.Finished) signals that a
// single stream is done. Frame callbacks (RST_STREAM, GOAWAY, a
// completed END_STREAM) only ever set state/error on a StreamState;
// they never call this directly except where spec.md explicitly says
// "finish" (stream-id exhaustion in submit.go, local encode/transport
// failures that have no consumer left to signal). Everything else
// leaves the stream in active_streams until the consumer, having
// observed completion or error, calls Finished.
func (c *ConnIO) finishStream(s *StreamState) {
	if _, stillActive := c.activeStreams[s.msg]; !stillActive {
		return
	}
	delete(c.activeStreams, s.msg)
	delete(c.byStreamID, s.streamID)

	complete := s.state >= StateReadDone
	// spec.md §6 "Metrics timestamps": RESPONSE_END is recorded on
	// client-stream EOF (finishReadSide's complete path already sets it)
	// or on an interrupted finish that is not restart-eligible.
	if !complete && !s.canBeRestarted {
		s.msg.Metrics.ResponseEnd = time.Now()
	}

	// spec.md §4.9 steps 3-4: only emit our own RST_STREAM, and only
	// move to closing_streams pending its send, when the connection
	// itself is not already tearing down.
	if !c.isShutdown && s.streamID != 0 {
		code := http2.ErrCodeNo
		if !complete {
			code = http2.ErrCodeCancel
		}
		_ = c.session.SubmitRSTStream(s.streamID, code)
		c.closingStreams[s] = struct{}{}
	}

	if s.onComplete != nil {
		s.onComplete(s.msg, s.err)
	}

	c.resetIdleTimer()

	if c.isShutdown {
		if len(c.activeStreams) == 0 {
			c.finishTerminate()
		}
		return
	}
	c.kickWriter()
}
