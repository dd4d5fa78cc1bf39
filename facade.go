package h2io

import (
	"context"
	"io"
)

// MessageIO is the per-request façade spec.md §6 describes: a handle
// bound to one Message that dispatches to the owning ConnIO and its
// Stream State without exposing either directly.
type MessageIO struct {
	conn   *ConnIO
	msg    *Message
	stream *StreamState
}

// NewMessageIO binds msg to a façade over c (spec.md §6).
func (c *ConnIO) NewMessageIO(msg *Message) *MessageIO {
	return &MessageIO{conn: c, msg: msg}
}

// SendItem submits the bound message (spec.md §6 send_item -> §4.3).
func (m *MessageIO) SendItem(onComplete func(*Message, error)) error {
	s, err := m.conn.Submit(m.msg, onComplete)
	if s != nil {
		m.stream = s
	}
	return err
}

// Destroy tears down the whole connection this message lives on
// (spec.md §6 destroy -> §4.8).
func (m *MessageIO) Destroy() error { return m.conn.Destroy() }

// Finished implements spec.md §6/§4.9's finished(msg) operation: the
// caller signals that it is done with this stream (successfully or
// because it gave up on it), and the connection tears it down — RST_STREAM
// if still needed, registry removal, completion callback.
func (m *MessageIO) Finished() {
	if m.stream == nil {
		return
	}
	m.conn.finishStream(m.stream)
}

// IsDone reports whether the stream has reached its terminal state,
// successfully or otherwise, without tearing anything down. Useful to
// decide whether it is time to call Finished.
func (m *MessageIO) IsDone() bool {
	return m.stream != nil && (m.stream.state == StateReadDone || m.stream.err != nil)
}

// Stolen is not supported: this façade never hands raw socket ownership
// to a caller (spec.md §6 stolen, Non-goals).
func (m *MessageIO) Stolen() error { return ErrStolenUnsupported }

// Run is not supported: blocking the whole program until completion has
// no place in the cooperative event-loop model (spec.md §6 run,
// Non-goals).
func (m *MessageIO) Run() error { return ErrRunUnsupported }

// RunUntilRead drives the connection's blocking I/O primitive until
// this stream's response headers are available or it fails (spec.md §6
// run_until_read -> §4.4).
func (m *MessageIO) RunUntilRead() error {
	if m.stream == nil {
		return ErrNoSuchStream
	}
	for m.stream.state < StateReadData && m.stream.err == nil {
		if err := m.conn.ioRun(); err != nil {
			return err
		}
	}
	return m.stream.err
}

// RunUntilReadAsync registers a pending read completed by the event
// loop once response headers are available, cancellable through ctx
// (spec.md §6 run_until_read_async -> §4.2 step 4).
func (m *MessageIO) RunUntilReadAsync(ctx context.Context, done func(error)) {
	if m.stream == nil {
		done(ErrNoSuchStream)
		return
	}
	if m.stream.state >= StateReadData || m.stream.err != nil {
		done(m.stream.err)
		return
	}
	if ctx == nil {
		ctx = noopCtx
	}
	m.stream.pending = &pendingRead{ctx: ctx, done: done}
	m.conn.pendingReads = append(m.conn.pendingReads, m.stream)
	m.conn.pollPendingReads()
}

// GetResponseIstream returns the response body as a streaming Reader
// (spec.md §6 get_response_istream).
func (m *MessageIO) GetResponseIstream() io.Reader {
	if m.stream == nil || m.stream.raw == nil {
		return emptyBodyStream{}
	}
	s := m.stream
	return &ResponseStream{Reader: s.raw, onEOF: func() {
		if s.state < StateReadDone {
			s.advance(StateReadDone)
		}
	}}
}

// Pause/Unpause/IsPaused/Skip/GetCancellable delegate to the underlying
// Stream State (spec.md §6 -> §4.7).

func (m *MessageIO) Pause() {
	if m.stream != nil {
		m.stream.Pause()
	}
}

func (m *MessageIO) Unpause() {
	if m.stream != nil {
		m.stream.Unpause()
	}
}

func (m *MessageIO) IsPaused() bool {
	return m.stream != nil && m.stream.IsPaused()
}

func (m *MessageIO) Skip() {
	if m.stream != nil {
		m.stream.Skip()
	}
}

func (m *MessageIO) GetCancellable() context.Context {
	if m.stream == nil {
		return noopCtx
	}
	return m.stream.GetCancellable()
}

// CloseAsync forwards to the connection-level graceful shutdown
// (spec.md §6 close_async -> §4.8).
func (m *MessageIO) CloseAsync(done func()) bool { return m.conn.CloseAsync(done) }

// Disposition implements spec.md §7's restart classification: once a
// stream's terminal error has been delivered (via the completion
// callback passed to SendItem), the caller consults this to decide
// whether to requeue the message on a fresh connection (Restarting) or
// surface the error as-is (ResponseEnd).
func (m *MessageIO) Disposition() RestartDisposition {
	if m.stream == nil {
		return DispositionResponseEnd
	}
	return classifyRestart(m.stream)
}

// IsOpen, InProgress, IsReusable mirror the connection-level checks
// (spec.md §6).
func (m *MessageIO) IsOpen() bool     { return m.conn.IsOpen() }
func (m *MessageIO) InProgress() bool { return m.conn.InProgress(m.msg) }
func (m *MessageIO) IsReusable() bool { return m.conn.IsReusable() }
