package h2io

import (
	"bytes"

	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

// ContentSniffer inspects the first bytes of a response body to infer its
// media type when declared information (Content-Type) is insufficient
// (spec.md §4.4 "Sniffing"). Feed is called with every newly-arrived chunk
// of raw body until it reports done.
type ContentSniffer interface {
	Feed(chunk []byte) (done bool)
}

// PollableBodySource is a non-blocking request body producer (§4.6).
// TryRead never blocks: it returns bytes immediately available, or
// (0, iox.ErrWouldBlock) if none are ready yet, or (n, io.EOF) on the
// final chunk.
type PollableBodySource interface {
	TryRead(p []byte) (int, error)
	// PollReadable arms a one-shot callback fired the next time the
	// source has more bytes (or EOF/error) after a would-block.
	PollReadable(ready func())
}

// BlockingBodySource is a request body producer with no non-blocking
// primitive of its own (§4.6 "Blocking"). ReadAsync starts a read into p
// and reports the result via done once available. The body pump handles
// the result inside done itself, on whichever goroutine calls it; it does
// not reschedule the call onto the connection's event loop.
type BlockingBodySource interface {
	ReadAsync(p []byte, done func(n int, err error))
}

// Message is the external "message object" collaborator spec.md §1 treats
// as already available: request line, headers, URI, priority and body are
// modeled on top of fasthttp's header/URI types exactly as the teacher's
// Client.Do(req *fasthttp.Request, res *fasthttp.Response) already does,
// extended with the session-level bookkeeping (priority, sniffer, body
// producer, metrics, hooks) spec.md's Stream State needs a handle to.
//
// A *Message is used as the active/closing stream registry key (its
// identity), matching spec.md §3's "message identity -> Stream State".
type Message struct {
	Method []byte
	URI    *fasthttp.URI

	RequestHeader  fasthttp.RequestHeader
	ResponseHeader fasthttp.ResponseHeader

	// OptionsPing marks the OPTIONS-ping sentinel request whose :path is
	// literally "*" rather than the URI path (§4.3 step 2).
	OptionsPing bool

	priority Priority

	// Pollable and Blocking are mutually exclusive request body
	// producers; both nil means no request body.
	Pollable PollableBodySource
	Blocking BlockingBodySource

	Sniffer ContentSniffer

	// Logger receives every byte successfully handed to the codec for
	// this stream's DATA frames, approximating "data hitting the wire"
	// (§4.6 last bullet).
	Logger func([]byte)

	// BeforeSend lets an external collaborator (auth, cookies) mutate
	// headers immediately before Submit builds the HEADERS frame
	// (SPEC_FULL.md §12).
	BeforeSend func(*Message)

	Metrics Metrics

	respBody bytebufferpool.ByteBuffer
}

// NewMessage allocates a Message for the given method and URI at normal
// priority.
func NewMessage(method string, uri *fasthttp.URI) *Message {
	m := &Message{
		URI:      uri,
		priority: PriorityNormal,
	}
	m.Method = append(m.Method[:0], method...)
	return m
}

// Priority returns the message's current priority level.
func (m *Message) Priority() Priority { return m.priority }

// SetPriority updates the message's priority. If the stream has already
// been assigned an id, the caller is expected to follow up with ConnIO's
// priority-change submission (spec.md §8 round-trip law: "exactly one
// PRIORITY frame ... each time the message's priority property changes
// while stream_id != 0").
func (m *Message) SetPriority(p Priority) { m.priority = p }

// HasExpectContinue reports whether the request declares the 100-continue
// expectation (§4.3 step 4).
func (m *Message) HasExpectContinue() bool {
	return bytes.EqualFold(m.RequestHeader.Peek("Expect"), []byte("100-continue"))
}

// HasBody reports whether the message carries a request body producer.
func (m *Message) HasBody() bool {
	return m.Pollable != nil || m.Blocking != nil
}

// AppendResponseBody appends a chunk of decoded response body to the
// message's own buffer. ConnIO does not call it; the response body it
// receives is read through MessageIO.GetResponseIstream.
func (m *Message) AppendResponseBody(b []byte) {
	m.respBody.Write(b)
}

// ResponseBody returns the decoded response body accumulated so far.
func (m *Message) ResponseBody() []byte {
	return m.respBody.B
}

// hopByHopHeaders is the case-insensitive blacklist stripped from outbound
// HEADERS (spec.md §4.3 step 2, §6).
var hopByHopHeaders = [][]byte{
	[]byte("Connection"),
	[]byte("Keep-Alive"),
	[]byte("Proxy-Connection"),
	[]byte("Transfer-Encoding"),
	[]byte("Upgrade"),
}

func isHopByHop(key []byte) bool {
	for _, h := range hopByHopHeaders {
		if bytes.EqualFold(key, h) {
			return true
		}
	}
	return false
}
