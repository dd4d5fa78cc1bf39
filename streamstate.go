package h2io

import (
	"context"
)

// State is the per-stream state machine of spec.md §4.4. It is
// monotonically non-decreasing; see (*StreamState).advance.
type State int8

const (
	StateNone State = iota
	StateWriteHeaders
	StateWriteData
	StateWriteDone
	StateReadHeaders
	StateReadDataStart
	StateReadData
	StateReadDone
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateWriteHeaders:
		return "WRITE_HEADERS"
	case StateWriteData:
		return "WRITE_DATA"
	case StateWriteDone:
		return "WRITE_DONE"
	case StateReadHeaders:
		return "READ_HEADERS"
	case StateReadDataStart:
		return "READ_DATA_START"
	case StateReadData:
		return "READ_DATA"
	case StateReadDone:
		return "READ_DONE"
	default:
		return "UNKNOWN"
	}
}

// pendingRead is a registered run_until_read_async completion (§6, §4.4).
// ctx is the caller-supplied cancellation token (§5 "cancellation
// semantics"); the caller owns cancelling it, we only ever read ctx.Err().
type pendingRead struct {
	ctx   context.Context
	done  func(err error)
	fired bool
}

// StreamState is one in-flight request's bookkeeping (spec.md §3).
type StreamState struct {
	io  *ConnIO // non-owning back-reference
	msg *Message

	streamID uint32 // 0 until the codec assigns one

	state State

	// raw is the raw-body buffer fed by on_data_chunk_recv; it stays nil
	// until the first DATA frame is seen. decoded accumulates the status
	// and headers of the HEADERS block being decoded (§4.5 on_header) and
	// is nil between header blocks.
	raw     *bodyBuffer
	decoded *Message

	pending *pendingRead

	paused bool

	// body-producer bookkeeping for a non-pollable (blocking) producer:
	// a lazily-filled buffer plus eof/error latches (§3).
	blockingBuf   []byte
	blockingEOF   bool
	blockingErr   error
	blockingInFly bool

	expectContinue bool
	// deferredBody is true once a 100-continue response has arrived and
	// the body is now pending submission as standalone DATA (§4.3 step 4,
	// §4.5 HEADERS/1xx branch).
	deferredBody bool

	canBeRestarted bool

	err error

	// sniffing latch (§4.4, §9): sniffDone is the single-shot flag,
	// inSniff is the re-entrancy guard around the sniffer callback.
	sniffDone bool
	inSniff   bool

	onComplete func(msg *Message, err error)
}

// CanBeRestarted exposes whether this stream is safely retransmittable on
// a fresh connection (REFUSED_STREAM or stream-id exhaustion, §7).
func (s *StreamState) CanBeRestarted() bool { return s.canBeRestarted }

// ID returns the assigned HTTP/2 stream id, or 0 if none has been
// assigned yet.
func (s *StreamState) ID() uint32 { return s.streamID }

// State returns the current state.
func (s *StreamState) State() State { return s.state }

// Err returns the first terminal error recorded for this stream, if any.
func (s *StreamState) Err() error { return s.err }

// fail latches the first observed error on the stream; subsequent errors
// are swallowed to preserve the most informative one (spec.md §7
// "Propagation policy"). It also fails the raw body buffer, if any, so a
// consumer blocked reading the response body observes the error instead
// of stalling on a "needs more data" retry forever.
func (s *StreamState) fail(err error) {
	if s.err == nil {
		s.err = err
		if s.raw != nil {
			s.raw.fail(err)
		}
	}
}

// advance attempts a forward transition. A backward request is logged and
// ignored, and a no-op request is ignored silently; neither is ever
// applied (spec.md §4.4, §9 "programming error").
func (s *StreamState) advance(next State) {
	if next <= s.state {
		if next < s.state {
			logger.WithFields(fieldsForStream(s)).
				WithField("from", s.state).WithField("to", next).
				Warn("refusing backward stream state transition")
		}
		return
	}
	s.state = next
}
