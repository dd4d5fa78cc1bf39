package h2io

import (
	"context"

	"golang.org/x/net/http2"
)

// pause.go implements spec.md §4.7. Pausing a stream stops it from
// completing pending reads without touching the wire. Neither cancel
// nor skip tears the stream down by itself — that is Finished's job
// (spec.md §4.9); cancel only fails the pending read, and skip ends local
// reading and emits a wire-level RST_STREAM.

// Pause marks s paused; a paused stream's pending read (if any) is left
// outstanding until Unpause.
func (s *StreamState) Pause() {
	s.paused = true
}

// Unpause clears the pause flag and re-drives any pending read that was
// already satisfiable.
func (s *StreamState) Unpause() {
	if !s.paused {
		return
	}
	s.paused = false
	s.io.pollPendingReads()
	s.io.kickWriter()
}

// IsPaused reports the current pause state.
func (s *StreamState) IsPaused() bool { return s.paused }

// Cancel implements spec.md §4.7's cancel semantics: the pending read
// completes with ErrCancelled and detaches from pending_reads. "No
// stream teardown is performed here — finished from the session is what
// tears the stream down, sending a RST_STREAM with CANCEL" (spec.md
// §4.7, §5 cancellation semantics).
func (s *StreamState) Cancel() {
	if s.pending != nil && !s.pending.fired {
		s.pending.fired = true
		s.pending.done(ErrCancelled)
	}
}

// Skip implements spec.md §4.7's skip: if the consumer abandons reading
// before END_STREAM, submit RST_STREAM(STREAM_CLOSED) and kick the
// writer. It also marks the raw body buffer complete (so further reads
// return EOF once it is drained) and completes any pending read with a nil
// error. The registries are still only touched by Finished.
func (s *StreamState) Skip() {
	if s.raw != nil {
		s.raw.markComplete()
	}
	if s.pending != nil && !s.pending.fired {
		s.pending.fired = true
		s.pending.done(nil)
	}
	if s.streamID != 0 && s.state < StateReadDone {
		_ = s.io.session.SubmitRSTStream(s.streamID, http2.ErrCodeStreamClosed)
		s.io.kickWriter()
	}
}

// GetCancellable exposes a context usable to cancel a pending read from
// outside the event loop (spec.md §6 get_cancellable).
func (s *StreamState) GetCancellable() context.Context {
	if s.pending != nil && s.pending.ctx != nil {
		return s.pending.ctx
	}
	return noopCtx
}
