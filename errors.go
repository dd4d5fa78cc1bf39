package h2io

import (
	"errors"
	"fmt"

	"golang.org/x/net/http2"
)

// Sentinel errors, mirroring the teacher's flat var-block of errors.New
// values rather than a generated table.
var (
	// ErrShutdown is returned by Submit once the connection has entered
	// graceful shutdown; no new streams are accepted past this point.
	ErrShutdown = errors.New("h2io: connection is shutting down")
	// ErrClosed is returned by operations attempted after Destroy.
	ErrClosed = errors.New("h2io: connection is destroyed")
	// ErrNoSuchStream is returned when a caller references a message that
	// has no corresponding stream in either registry.
	ErrNoSuchStream = errors.New("h2io: no stream for message")
	// ErrStolenUnsupported mirrors the façade's `stolen` operation, which
	// HTTP/2 never supports (a stream cannot be handed to a second
	// consumer mid-flight).
	ErrStolenUnsupported = errors.New("h2io: stream stealing is not supported over HTTP/2")
	// ErrRunUnsupported mirrors the façade's `run` (fully synchronous)
	// operation, which HTTP/2 cannot offer: all I/O is driven by the
	// socket driver from above.
	ErrRunUnsupported = errors.New("h2io: synchronous run is not supported over HTTP/2, use run_until_read")
	// ErrBackwardTransition names a refused backward move of a stream's
	// state machine. It is never returned to a caller: (*StreamState).advance
	// in streamstate.go logs such a request as a warning without it.
	ErrBackwardTransition = errors.New("h2io: refusing to move stream state backward")
	// ErrStreamIDExhausted is surfaced on a stream when the codec reports
	// the connection has run out of stream IDs to assign (§4.3 step 6).
	ErrStreamIDExhausted = errors.New("h2io: connection exhausted its stream id space")
	// ErrCancelled is the terminal error observed by a pending async read
	// whose cancellation token fired (§4.7).
	ErrCancelled = errors.New("h2io: read cancelled")
)

// GoAwayError is the synthetic error attached to streams affected by a
// peer GOAWAY (§4.5, §7). It carries the HTTP/2 error code's name the way
// spec.md asks ("surface the HTTP/2 error string").
type GoAwayError struct {
	Code         http2.ErrCode
	LastStreamID uint32
}

func (e *GoAwayError) Error() string {
	return fmt.Sprintf("h2io: GOAWAY last_stream_id=%d code=%s", e.LastStreamID, e.Code)
}

// StreamError is the terminal error recorded for a stream the peer reset
// with an RST_STREAM carrying a non-zero code. Other terminal errors (a
// ConnError copied down from the connection, a GoAwayError,
// ErrStreamIDExhausted) are recorded as they are. The first one observed
// wins; see (*StreamState).fail.
type StreamError struct {
	StreamID uint32
	Code     http2.ErrCode // zero when Cause is not an HTTP/2 error code
	Cause    error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("h2io: stream %d: %s", e.StreamID, e.Cause)
	}
	return fmt.Sprintf("h2io: stream %d: %s", e.StreamID, e.Code)
}

func (e *StreamError) Unwrap() error { return e.Cause }

// ConnError is the terminal, sticky error latched on a ConnIO by a
// transport-level I/O failure (§7 "Transport error"). It is copied (not
// shared) into every active and pending stream, mirroring spec.md's
// "propagated to every active and pending stream by copying".
type ConnError struct {
	Op  string
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("h2io: %s: %s", e.Op, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

func (e *ConnError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// RestartDisposition is what the enclosing session is told once a
// stream's terminal error is delivered (§7 "Restart classification").
type RestartDisposition int

const (
	// DispositionResponseEnd means the error surfaces to the caller as-is.
	DispositionResponseEnd RestartDisposition = iota
	// DispositionRestarting means the stream failed in a way that
	// guarantees the peer never acted on the request (CanBeRestarted was
	// set); the message should be requeued on a fresh connection.
	DispositionRestarting
)

// classifyRestart implements §7's restart classification rule.
func classifyRestart(s *StreamState) RestartDisposition {
	if s.CanBeRestarted() {
		return DispositionRestarting
	}
	return DispositionResponseEnd
}
