package h2io

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// Default client SETTINGS, spec.md §4.1.
const (
	defaultInitialWindowSize = 32 << 20 // 32 MiB
	defaultHeaderTableSize   = 64 << 10 // 64 KiB
	maxDataFrameSize         = 1 << 14  // conservative default SETTINGS_MAX_FRAME_SIZE
)

// swappableReader lets a single *http2.Framer read whichever byte range
// FeedInput has just proven to be a complete frame, without allocating a
// new Framer per frame.
type swappableReader struct{ r *bytes.Reader }

func (s *swappableReader) Read(p []byte) (int, error) {
	if s.r == nil {
		return 0, io.EOF
	}
	return s.r.Read(p)
}

// Callbacks are the per-frame hooks ConnIO wires into the Session
// (spec.md §4.5). They run with Session.inCallback > 0; implementations
// must not call back into Session write methods that touch the output
// window (SubmitSettingsAck/SubmitRSTStream/... append to a pending
// buffer and are fine; only draining the output window through the
// socket is forbidden while in a callback, see socket.go).
type Callbacks struct {
	OnBeginFrame   func(streamID uint32, frameType http2.FrameType)
	OnHeaderField  func(streamID uint32, f hpack.HeaderField)
	OnHeadersDone  func(streamID uint32, endStream bool, trailers bool)
	OnDataChunk    func(streamID uint32, data []byte)
	OnDataDone     func(streamID uint32, endStream bool)
	OnRSTStream    func(streamID uint32, code http2.ErrCode)
	OnGoAway       func(lastStreamID uint32, code http2.ErrCode, debug []byte)
	OnWindowUpdate func(streamID uint32, incr uint32)
	OnSettings     func(settings []http2.Setting)
	OnSettingsAck  func()
	OnPing         func(data [8]byte, ack bool)
}

// Session wraps golang.org/x/net/http2's Framer and HPACK encoder/decoder
// as the external, pre-built incremental frame codec spec.md §4.1 assumes
// (see SPEC_FULL.md §11 for why this dependency plays that role instead
// of a hand-rolled parser).
type Session struct {
	cb Callbacks

	fr   *http2.Framer
	rdr  *swappableReader
	out  bytes.Buffer // owned output buffer, drained by the socket driver
	sent int          // cursor into out: [0, sent) already handed to the socket

	in bytes.Buffer // accumulator fed by FeedInput, consumed frame by frame

	enc    *hpack.Encoder
	encBuf bytes.Buffer

	nextStreamID uint32

	inCallback int

	headerTableSize   uint32
	initialWindowSize uint32

	goAwaySent     bool
	goAwayReceived bool
}

// NewSession builds a client Session with the SETTINGS spec.md §4.1 names:
// INITIAL_WINDOW_SIZE = 32 MiB, HEADER_TABLE_SIZE = 64 KiB, ENABLE_PUSH = 0.
func NewSession(cb Callbacks) *Session {
	s := &Session{
		cb:                cb,
		rdr:               &swappableReader{},
		nextStreamID:      1,
		headerTableSize:   defaultHeaderTableSize,
		initialWindowSize: defaultInitialWindowSize,
	}
	s.fr = http2.NewFramer(&s.out, s.rdr)
	s.fr.ReadMetaHeaders = hpack.NewDecoder(defaultHeaderTableSize, nil)

	s.encBuf.Grow(4096)
	s.enc = hpack.NewEncoder(&s.encBuf)
	return s
}

// SendPreface writes the client connection preface, the initial SETTINGS
// frame and a connection-level WINDOW_UPDATE bringing the local window up
// to InitialWindowSize (spec.md §4.1 "Local connection-level window is
// also set to 32 MiB").
func (s *Session) SendPreface() {
	s.out.WriteString("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n")
	s.fr.WriteSettings(
		http2.Setting{ID: http2.SettingInitialWindowSize, Val: s.initialWindowSize},
		http2.Setting{ID: http2.SettingHeaderTableSize, Val: s.headerTableSize},
		http2.Setting{ID: http2.SettingEnablePush, Val: 0},
	)
	extra := uint32(s.initialWindowSize - 65535)
	if extra > 0 {
		s.fr.WriteWindowUpdate(0, extra)
	}
}

// InCallback reports the current re-entrancy depth (spec.md §9).
func (s *Session) InCallback() int { return s.inCallback }

// WantsWrite reports whether the output window has undrained bytes.
func (s *Session) WantsWrite() bool { return s.out.Len() > s.sent }

// OutputWindow returns the borrowed slice of pending output bytes
// (spec.md §3's owned output buffer window).
func (s *Session) OutputWindow() []byte { return s.out.Bytes()[s.sent:] }

// Advance moves the write cursor forward by n bytes written to the
// socket, retiring and resetting the window once fully drained.
func (s *Session) Advance(n int) {
	s.sent += n
	if s.sent >= s.out.Len() {
		s.out.Reset()
		s.sent = 0
	}
}

// AllocateStreamID returns the next client-initiated (odd) stream id, or
// an error if the 31-bit id space is exhausted (spec.md §4.3 step 6, §7).
func (s *Session) AllocateStreamID() (uint32, error) {
	if s.nextStreamID > 1<<31-2 {
		return 0, ErrStreamIDExhausted
	}
	id := s.nextStreamID
	s.nextStreamID += 2
	return id, nil
}

// EncodeHeaders HPACK-encodes fields into a fresh block fragment.
func (s *Session) EncodeHeaders(fields []hpack.HeaderField) ([]byte, error) {
	s.encBuf.Reset()
	for _, f := range fields {
		if err := s.enc.WriteField(f); err != nil {
			return nil, err
		}
	}
	return s.encBuf.Bytes(), nil
}

// SubmitHeaders writes a HEADERS frame (spec.md §4.3).
func (s *Session) SubmitHeaders(streamID uint32, fields []hpack.HeaderField, endStream bool, priority *http2.PriorityParam) error {
	block, err := s.EncodeHeaders(fields)
	if err != nil {
		return err
	}
	p := http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: block,
		EndStream:     endStream,
		EndHeaders:    true,
	}
	if priority != nil {
		p.Priority = *priority
		p.PadLength = 0
	}
	return s.fr.WriteHeaders(p)
}

// SubmitData writes one or more DATA frames, chunked at maxDataFrameSize,
// mirroring the teacher's writeData loop (client.go) but against the
// x/net/http2 Framer.
func (s *Session) SubmitData(streamID uint32, data []byte, endStream bool) error {
	if len(data) == 0 {
		return s.fr.WriteData(streamID, endStream, nil)
	}
	for off := 0; off < len(data); {
		end := off + maxDataFrameSize
		if end > len(data) {
			end = len(data)
		}
		last := end == len(data)
		if err := s.fr.WriteData(streamID, endStream && last, data[off:end]); err != nil {
			return err
		}
		off = end
	}
	return nil
}

// SubmitPriority writes a PRIORITY frame carrying only a weight, never a
// dependency (priority trees beyond one weight per stream are a
// non-goal, spec.md §1).
func (s *Session) SubmitPriority(streamID uint32, weight byte) error {
	return s.fr.WritePriority(streamID, http2.PriorityParam{Weight: weight})
}

// SubmitRSTStream writes an RST_STREAM frame.
func (s *Session) SubmitRSTStream(streamID uint32, code http2.ErrCode) error {
	return s.fr.WriteRSTStream(streamID, code)
}

// SubmitWindowUpdate writes a WINDOW_UPDATE frame.
func (s *Session) SubmitWindowUpdate(streamID uint32, incr uint32) error {
	if incr == 0 {
		return nil
	}
	return s.fr.WriteWindowUpdate(streamID, incr)
}

// SubmitGoAway writes a GOAWAY frame (spec.md §4.8).
func (s *Session) SubmitGoAway(lastStreamID uint32, code http2.ErrCode) error {
	s.goAwaySent = true
	return s.fr.WriteGoAway(lastStreamID, code, nil)
}

// SubmitSettingsAck acknowledges a peer SETTINGS frame.
func (s *Session) SubmitSettingsAck() error { return s.fr.WriteSettingsAck() }

// SetPeerHeaderTableSize applies a peer HEADER_TABLE_SIZE SETTINGS value to
// our encoder's bound (SPEC_FULL.md §12: the original applies the peer's
// value to both directions; the decoder side is handled by
// ReadMetaHeaders's own dynamic table tracking internally).
func (s *Session) SetPeerHeaderTableSize(v uint32) {
	s.enc.SetMaxDynamicTableSize(v)
}

// FeedInput appends newly-read bytes and decodes as many complete frames
// as are now available, firing Callbacks for each. It returns the number
// of bytes handed to the codec this call (spec.md §4.1 "feed_input(bytes)
// → progress").
func (s *Session) FeedInput(data []byte) (int, error) {
	s.in.Write(data)

	for {
		buf := s.in.Bytes()
		if len(buf) < 9 {
			break
		}
		length := int(buf[0])<<16 | int(buf[1])<<8 | int(buf[2])
		total := 9 + length
		if len(buf) < total {
			break
		}

		frameBytes := make([]byte, total)
		copy(frameBytes, buf[:total])
		// drop the consumed prefix
		remaining := append([]byte(nil), buf[total:]...)
		s.in.Reset()
		s.in.Write(remaining)

		s.rdr.r = bytes.NewReader(frameBytes)

		s.inCallback++
		fr, err := s.fr.ReadFrame()
		if err != nil {
			s.inCallback--
			return 0, fmt.Errorf("h2io: decoding frame: %w", err)
		}
		s.dispatch(fr)
		s.inCallback--
	}

	return len(data), nil
}

func (s *Session) dispatch(fr http2.Frame) {
	sid := fr.Header().StreamID

	switch f := fr.(type) {
	case *http2.MetaHeadersFrame:
		if s.cb.OnBeginFrame != nil {
			s.cb.OnBeginFrame(sid, http2.FrameHeaders)
		}
		for _, field := range f.Fields {
			if s.cb.OnHeaderField != nil {
				s.cb.OnHeaderField(sid, field)
			}
		}
		if s.cb.OnHeadersDone != nil {
			s.cb.OnHeadersDone(sid, f.StreamEnded(), false)
		}
	case *http2.DataFrame:
		if s.cb.OnBeginFrame != nil {
			s.cb.OnBeginFrame(sid, http2.FrameData)
		}
		if len(f.Data()) > 0 && s.cb.OnDataChunk != nil {
			s.cb.OnDataChunk(sid, f.Data())
		}
		if s.cb.OnDataDone != nil {
			s.cb.OnDataDone(sid, f.StreamEnded())
		}
	case *http2.RSTStreamFrame:
		if s.cb.OnRSTStream != nil {
			s.cb.OnRSTStream(sid, f.ErrCode)
		}
	case *http2.GoAwayFrame:
		s.goAwayReceived = true
		if s.cb.OnGoAway != nil {
			s.cb.OnGoAway(f.LastStreamID, f.ErrCode, f.DebugData())
		}
	case *http2.WindowUpdateFrame:
		if s.cb.OnWindowUpdate != nil {
			s.cb.OnWindowUpdate(sid, f.Increment)
		}
	case *http2.SettingsFrame:
		if f.IsAck() {
			if s.cb.OnSettingsAck != nil {
				s.cb.OnSettingsAck()
			}
			return
		}
		var settings []http2.Setting
		_ = f.ForeachSetting(func(st http2.Setting) error {
			settings = append(settings, st)
			return nil
		})
		if s.cb.OnSettings != nil {
			s.cb.OnSettings(settings)
		}
		_ = s.SubmitSettingsAck()
	case *http2.PingFrame:
		if s.cb.OnPing != nil {
			s.cb.OnPing(f.Data, f.IsAck())
		}
		if !f.IsAck() {
			_ = s.fr.WritePing(true, f.Data)
		}
	default:
		// unknown/unhandled frame types are swallowed at the decode
		// boundary, spec.md §7 "Protocol error".
	}
}

// frameLengthPrefix is exposed for tests constructing raw frame bytes.
func frameLengthPrefix(length int) [3]byte {
	var b [3]byte
	b[0] = byte(length >> 16)
	b[1] = byte(length >> 8)
	b[2] = byte(length)
	return b
}
