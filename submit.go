package h2io

import (
	"bytes"
	"net"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

var defaultPortForScheme = map[string]string{
	"http":  "80",
	"https": "443",
}

// buildAuthority builds :authority as host[:port], including the port
// iff it is non-default for the scheme (spec.md §4.3 step 2).
func buildAuthority(scheme, host string) string {
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return host // no explicit port in the original host
	}
	if def, ok := defaultPortForScheme[scheme]; ok && port == def {
		return h
	}
	return host
}

// buildPath builds :path. A query string, when present, is appended
// after '?'; DESIGN.md records why this deliberately differs from the
// original's ambiguous NUL-vs-'?' encoding (spec.md Open Question #1).
func buildPath(path, query string) string {
	if path == "" {
		path = "/"
	}
	if query == "" {
		return path
	}
	return path + "?" + query
}

// newStreamState allocates a StreamState and registers it in
// active_streams, keyed by message identity (spec.md §3).
func (c *ConnIO) newStreamState(msg *Message, onComplete func(*Message, error)) *StreamState {
	s := &StreamState{
		io:         c,
		msg:        msg,
		state:      StateNone,
		onComplete: onComplete,
	}
	c.activeStreams[msg] = s
	c.cancelIdleTimer()
	return s
}

// buildHeaderFields implements spec.md §4.3 step 2: pseudo-headers in
// :method, :scheme, :authority, :path order, then every request header
// except the hop-by-hop blacklist.
func buildHeaderFields(msg *Message) []hpack.HeaderField {
	uri := msg.URI
	scheme := string(uri.Scheme())
	path := buildPath(string(uri.Path()), string(uri.QueryString()))
	if msg.OptionsPing {
		path = "*"
	}

	fields := make([]hpack.HeaderField, 0, 4+msg.RequestHeader.Len())
	fields = append(fields,
		hpack.HeaderField{Name: ":method", Value: string(msg.Method)},
		hpack.HeaderField{Name: ":scheme", Value: scheme},
		hpack.HeaderField{Name: ":authority", Value: buildAuthority(scheme, string(uri.Host()))},
		hpack.HeaderField{Name: ":path", Value: path},
	)

	msg.RequestHeader.VisitAll(func(k, v []byte) {
		if isHopByHop(k) {
			return
		}
		fields = append(fields, hpack.HeaderField{
			Name:  string(bytes.ToLower(k)),
			Value: string(v),
		})
	})

	return fields
}

// Submit implements spec.md §4.3: allocate the Stream State, build and
// send the HEADERS frame (deferring the body when 100-continue is in
// play), and record the assigned stream id.
func (c *ConnIO) Submit(msg *Message, onComplete func(*Message, error)) (*StreamState, error) {
	if c.terminalErr != nil {
		return nil, c.terminalErr
	}
	if c.isShutdown {
		return nil, ErrShutdown
	}

	if msg.BeforeSend != nil {
		msg.BeforeSend(msg)
	}

	s := c.newStreamState(msg, onComplete)

	streamID, err := c.session.AllocateStreamID()
	if err != nil {
		// spec.md §4.3 step 6: stream id space exhausted.
		s.canBeRestarted = true
		s.fail(err)
		c.finishStream(s)
		return s, err
	}

	s.streamID = streamID
	c.byStreamID[streamID] = s
	s.advance(StateWriteHeaders)

	fields := buildHeaderFields(msg)
	priority := http2.PriorityParam{Weight: msg.Priority().Weight()}

	hasBody := msg.HasBody()
	expectContinue := hasBody && msg.HasExpectContinue()
	s.expectContinue = expectContinue

	// A request with no body sets END_STREAM on the HEADERS frame itself;
	// one whose body is deferred behind 100-continue does not, since its
	// DATA follows later (spec.md §4.3 steps 4-5).
	endStream := !hasBody

	if err := c.session.SubmitHeaders(streamID, fields, endStream, &priority); err != nil {
		s.fail(&ConnError{Op: "submit-headers", Err: err})
		c.finishStream(s)
		return s, err
	}

	if !hasBody {
		s.advance(StateWriteDone)
	} else if expectContinue {
		// headers sent without END_STREAM; body deferred, state stays
		// WRITE_HEADERS until the 100-continue arrives.
	} else {
		c.pumpBody(s)
	}

	msg.Metrics.RequestHeaderBytesSent += headerFrameByteEstimate(fields)

	c.kickWriter()

	return s, nil
}

// headerFrameByteEstimate is a best-effort byte count for
// RequestHeaderBytesSent (SPEC_FULL.md §13); exact HPACK-encoded size
// isn't observable without re-running the encoder, so this counts the
// uncompressed name/value bytes plus the 32-byte-per-field RFC 7541
// accounting overhead used for HPACK table-size bookkeeping.
func headerFrameByteEstimate(fields []hpack.HeaderField) int64 {
	var n int64
	for _, f := range fields {
		n += int64(len(f.Name)) + int64(len(f.Value)) + 32
	}
	return n
}

// Reprioritize sends a PRIORITY frame for msg's current priority, used
// whenever the priority property changes after stream_id != 0 (spec.md
// §8 round-trip law).
func (c *ConnIO) Reprioritize(msg *Message) error {
	s, ok := c.activeStreams[msg]
	if !ok || s.streamID == 0 {
		return ErrNoSuchStream
	}
	if err := c.session.SubmitPriority(s.streamID, msg.Priority().Weight()); err != nil {
		return err
	}
	c.kickWriter()
	return nil
}

// submitDeferredBody sends the request body as a standalone DATA
// sequence once a 100-continue response has arrived (spec.md §4.3 step
// 4, §4.5 HEADERS/1xx branch).
func (c *ConnIO) submitDeferredBody(s *StreamState) {
	if !s.expectContinue || s.deferredBody {
		return
	}
	s.deferredBody = true
	c.pumpBody(s)
}
