package h2io

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler is the external single-threaded cooperative event loop
// collaborator spec.md §1 assumes: ConnIO registers one-shot
// readable/writable/idle subscriptions on it rather than embedding its
// own loop (spec.md §9 "Multi-source I/O").
type Scheduler interface {
	// OnReadable arms a one-shot callback for when r next has bytes (or
	// an error) ready without blocking.
	OnReadable(r io.Reader, cb func())
	// OnWritable arms a one-shot callback for when w can next accept a
	// write without blocking.
	OnWritable(w io.Writer, cb func())
	// OnIdle arms a one-shot callback for the next idle tick (§4.8
	// "schedule it to complete on the next idle tick").
	OnIdle(cb func())
	// OnTimeout arms a one-shot callback to fire after d elapses on the
	// loop's own thread, returning a cancel function that disarms it if
	// called before it fires. Used for the §12 idle-connection timeout,
	// modeled as the same kind of one-shot event subscription as the
	// other sources (§9 "Multi-source I/O") rather than a raw timer
	// goroutine that would touch the Session off-thread (§5).
	OnTimeout(d time.Duration, cb func()) (cancel func())
}

// Config configures a ConnIO (SPEC_FULL.md §13).
type Config struct {
	InitialWindowSize uint32 // default 32 MiB
	HeaderTableSize   uint32 // default 64 KiB
	IdleTimeout       time.Duration
	Logger            *logrus.Logger
}

// ConnIO is the Connection IO of spec.md §3: it owns the duplex byte
// stream, the Session codec, the stream registries and the per-stream
// state machines multiplexed over the connection.
type ConnIO struct {
	conn io.ReadWriteCloser // duplex byte stream (input half == output half)
	sched Scheduler

	session *Session
	log     *logrus.Entry

	activeStreams  map[*Message]*StreamState
	closingStreams map[*StreamState]struct{}
	byStreamID     map[uint32]*StreamState

	pendingReads []*StreamState

	isShutdown        bool
	sessionTerminated bool
	goawaySent        bool

	terminalErr error

	closeToken func() // invoked once shutdown has fully drained, §4.8

	idleTimeout time.Duration
	idleCancel  func() // cancels the in-flight Scheduler.OnTimeout subscription, if any

	readScratch [8 << 10]byte // 8 KiB scratch buffer, spec.md §4.2 step 2
}

// New builds a ConnIO over an already-established duplex byte stream
// (TLS handshake, ALPN selection and proxy negotiation are external
// collaborators per spec.md §1).
func New(conn io.ReadWriteCloser, sched Scheduler, cfg Config) *ConnIO {
	if cfg.InitialWindowSize == 0 {
		cfg.InitialWindowSize = defaultInitialWindowSize
	}
	if cfg.HeaderTableSize == 0 {
		cfg.HeaderTableSize = defaultHeaderTableSize
	}
	log := logger
	if cfg.Logger != nil {
		log = cfg.Logger
	}

	c := &ConnIO{
		conn:           conn,
		sched:          sched,
		activeStreams:  make(map[*Message]*StreamState),
		closingStreams: make(map[*StreamState]struct{}),
		byStreamID:     make(map[uint32]*StreamState),
		idleTimeout:    cfg.IdleTimeout,
		log:            log.WithField("component", "h2io.ConnIO"),
	}

	c.session = NewSession(Callbacks{
		OnBeginFrame:   c.onBeginFrame,
		OnHeaderField:  c.onHeaderField,
		OnHeadersDone:  c.onHeadersDone,
		OnDataChunk:    c.onDataChunk,
		OnDataDone:     c.onDataDone,
		OnRSTStream:    c.onRSTStream,
		OnGoAway:       c.onGoAway,
		OnWindowUpdate: c.onWindowUpdate,
		OnSettings:     c.onSettings,
		OnSettingsAck:  c.onSettingsAck,
	})
	c.session.initialWindowSize = cfg.InitialWindowSize
	c.session.headerTableSize = cfg.HeaderTableSize
	c.session.SendPreface()

	c.armRead()
	c.kickWriter()

	return c
}

// IsOpen implements the façade's `is_open` (spec.md §6):
// "session.check_request_allowed() ∧ ¬is_shutdown ∧ error == null".
func (c *ConnIO) IsOpen() bool {
	return !c.isShutdown && c.terminalErr == nil && !c.session.goAwaySent
}

// IsReusable is the same definition as IsOpen (spec.md §6).
func (c *ConnIO) IsReusable() bool { return c.IsOpen() }

// InProgress implements `in_progress(msg)`.
func (c *ConnIO) InProgress(msg *Message) bool {
	_, ok := c.activeStreams[msg]
	return ok
}

func (c *ConnIO) resetIdleTimer() {
	c.cancelIdleTimer()
	if c.idleTimeout <= 0 || c.sched == nil {
		return
	}
	if len(c.activeStreams) == 0 && len(c.closingStreams) == 0 {
		c.scheduleIdleClose()
	}
}

func (c *ConnIO) scheduleIdleClose() {
	// SPEC_FULL.md §12: close an idle connection after IdleTimeout with
	// zero active streams, wired through Scheduler.OnTimeout — the same
	// one-shot-subscription model §9 uses for every other source — so
	// the callback runs on the dispatch thread instead of a raw timer
	// goroutine reaching into the Session and registries off-thread (§5).
	if c.idleTimeout <= 0 || c.sched == nil {
		return
	}
	c.idleCancel = c.sched.OnTimeout(c.idleTimeout, c.onIdleTimeout)
}

func (c *ConnIO) onIdleTimeout() {
	c.idleCancel = nil
	if len(c.activeStreams) == 0 && len(c.closingStreams) == 0 {
		_ = c.GracefulTerminate()
	}
}

func (c *ConnIO) cancelIdleTimer() {
	if c.idleCancel != nil {
		c.idleCancel()
		c.idleCancel = nil
	}
}

// lookupByID resolves a stream id to its StreamState, or nil.
func (c *ConnIO) lookupByID(id uint32) *StreamState {
	return c.byStreamID[id]
}

// noopCtx is used where an async operation needs a context but the
// caller supplied none.
var noopCtx = context.Background()
