package h2io

import (
	"io"
	"sync"

	"github.com/valyala/bytebufferpool"
)

// bodyBuffer is a stream's raw-body byte buffer. Bytes arrive via
// appendChunk from on_data_chunk_recv (§4.5); Read drains them in order.
// It has an out-of-band "needs more data" hook (needMore), but the hook
// ConnIO installs does nothing, so reading never drives the socket read
// path: new bytes appear only after the socket driver has read them.
//
// Grounded on libsoup's soup_body_input_stream.
type bodyBuffer struct {
	mu       sync.Mutex
	buf      bytebufferpool.ByteBuffer
	off      int
	complete bool // true once END_STREAM has been observed
	err      error

	// needMore is invoked from Read when the buffer is empty and not yet
	// complete. ConnIO installs requestMoreData (dispatch.go), which does
	// nothing; it does not run a socket read/write step.
	needMore func()
}

func newBodyBuffer(needMore func()) *bodyBuffer {
	return &bodyBuffer{needMore: needMore}
}

func (b *bodyBuffer) appendChunk(p []byte) {
	b.mu.Lock()
	b.buf.Write(p)
	b.mu.Unlock()
}

func (b *bodyBuffer) markComplete() {
	b.mu.Lock()
	b.complete = true
	b.mu.Unlock()
}

func (b *bodyBuffer) fail(err error) {
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
}

// Read implements io.Reader. It never blocks the caller on its own; if no
// bytes are buffered and the stream is not complete it calls needMore and
// returns (0, nil) so the caller can retry.
func (b *bodyBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return 0, b.err
	}
	remaining := b.buf.Len() - b.off
	if remaining > 0 {
		n := copy(p, b.buf.B[b.off:])
		b.off += n
		if b.off == b.buf.Len() {
			b.buf.Reset()
			b.off = 0
		}
		return n, nil
	}
	if b.complete {
		return 0, io.EOF
	}
	if b.needMore != nil {
		b.needMore()
	}
	return 0, nil
}

// emptyBodyStream is substituted for get_response_istream when no body is
// expected (e.g. a 204, or a HEADERS frame carrying END_STREAM) per
// spec.md §6.
type emptyBodyStream struct{}

func (emptyBodyStream) Read([]byte) (int, error) { return 0, io.EOF }

// ResponseStream wraps a stream's decoded body in the client-facing
// io.Reader the façade's get_response_istream returns. The first read
// that hits the underlying EOF calls onEOF, which advances READ_DATA ->
// READ_DONE (spec.md §6); that wiring lives in facade.go since it needs
// the owning StreamState.
type ResponseStream struct {
	io.Reader
	onEOF func()
	eofed bool
}

func (r *ResponseStream) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if err == io.EOF && !r.eofed {
		r.eofed = true
		if r.onEOF != nil {
			r.onEOF()
		}
	}
	return n, err
}
