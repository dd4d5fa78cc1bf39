package h2io

import (
	"bytes"
	"io"
	"sync"
	"time"

	"code.hybscloud.com/iox"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// harness_test.go builds the fixtures every scenario test in conn_test.go
// shares: a non-blocking in-memory duplex byte stream standing in for
// the TLS/proxy collaborator spec.md §1 treats as external, a
// synchronous fake Scheduler standing in for the cooperative event loop
// spec.md §1 also treats as external, and a small peer-side frame writer
// built directly on golang.org/x/net/http2 (the same codec the Session
// itself wraps) for constructing server responses byte-for-byte.

// fakeConn is a duplex byte stream with independent inbound/outbound
// queues. Read surfaces iox.ErrWouldBlock when the inbound queue is
// empty, matching the non-blocking socket contract spec.md §4.2 assumes.
type fakeConn struct {
	mu     sync.Mutex
	in     bytes.Buffer
	out    bytes.Buffer
	closed bool
}

func (f *fakeConn) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.in.Len() == 0 {
		if f.closed {
			return 0, io.EOF
		}
		return 0, iox.ErrWouldBlock
	}
	return f.in.Read(p)
}

func (f *fakeConn) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, io.ErrClosedPipe
	}
	return f.out.Write(p)
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// feed appends bytes a peer would have sent, available on the next Read.
func (f *fakeConn) feed(b []byte) {
	f.mu.Lock()
	f.in.Write(b)
	f.mu.Unlock()
}

// drainOut returns and clears everything written so far.
func (f *fakeConn) drainOut() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := append([]byte(nil), f.out.Bytes()...)
	f.out.Reset()
	return b
}

// fakeScheduler is a synchronous stand-in for the cooperative event loop
// (spec.md §1, §9 "multi-source I/O"). OnIdle fires immediately, since
// tests drive every other source by hand and have no use for a real
// "next idle tick" distinction.
type fakeScheduler struct {
	onReadable func()
	onWritable func()
	onTimeout  func()
}

func (f *fakeScheduler) OnReadable(r io.Reader, cb func()) { f.onReadable = cb }
func (f *fakeScheduler) OnWritable(w io.Writer, cb func()) { f.onWritable = cb }
func (f *fakeScheduler) OnIdle(cb func())                  { cb() }

// OnTimeout records cb without a real timer; tests that exercise the idle
// timeout drive it explicitly via fireTimeout. Cancelling detaches cb so a
// later fireTimeout (if any slips through) is a no-op.
func (f *fakeScheduler) OnTimeout(d time.Duration, cb func()) (cancel func()) {
	f.onTimeout = cb
	return func() {
		if f.onTimeout != nil {
			f.onTimeout = nil
		}
	}
}

// fireTimeout simulates the armed OnTimeout subscription firing.
func (f *fakeScheduler) fireTimeout() {
	if f.onTimeout != nil {
		cb := f.onTimeout
		f.onTimeout = nil
		cb()
	}
}

// fireReadable simulates the event loop noticing the input half is
// ready, the only way test code drives fakeConn's inbound queue into
// the Session.
func (f *fakeScheduler) fireReadable() {
	if f.onReadable != nil {
		cb := f.onReadable
		cb()
	}
}

// peerFramer writes raw HTTP/2 frames into buf as an independent server
// peer would, reusing the very Framer/hpack packages the Session wraps
// (spec.md §4.1's "external, pre-built incremental frame codec").
type peerFramer struct {
	buf *bytes.Buffer
	fr  *http2.Framer
}

func newPeerFramer() *peerFramer {
	buf := &bytes.Buffer{}
	return &peerFramer{
		buf: buf,
		fr:  http2.NewFramer(buf, nil),
	}
}

func (p *peerFramer) encode(fields []hpack.HeaderField) []byte {
	var hbuf bytes.Buffer
	enc := hpack.NewEncoder(&hbuf)
	for _, f := range fields {
		_ = enc.WriteField(f)
	}
	return hbuf.Bytes()
}

func (p *peerFramer) headers(streamID uint32, status int, extra []hpack.HeaderField, endStream bool) []byte {
	fields := append([]hpack.HeaderField{{Name: ":status", Value: itoa(status)}}, extra...)
	block := p.encode(fields)
	_ = p.fr.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: block,
		EndStream:     endStream,
		EndHeaders:    true,
	})
	return p.take()
}

func (p *peerFramer) data(streamID uint32, payload []byte, endStream bool) []byte {
	_ = p.fr.WriteData(streamID, endStream, payload)
	return p.take()
}

func (p *peerFramer) rstStream(streamID uint32, code http2.ErrCode) []byte {
	_ = p.fr.WriteRSTStream(streamID, code)
	return p.take()
}

func (p *peerFramer) goAway(lastStreamID uint32, code http2.ErrCode) []byte {
	_ = p.fr.WriteGoAway(lastStreamID, code, nil)
	return p.take()
}

func (p *peerFramer) settings(settings ...http2.Setting) []byte {
	_ = p.fr.WriteSettings(settings...)
	return p.take()
}

func (p *peerFramer) take() []byte {
	b := append([]byte(nil), p.buf.Bytes()...)
	p.buf.Reset()
	return b
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits [20]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		digits[i] = '-'
	}
	return string(digits[i:])
}
