// Package h2io implements a client-side HTTP/2 multiplexed transport: a
// single object, ConnIO, that drives a duplex byte stream as an HTTP/2
// connection and multiplexes many concurrent request/response exchanges
// ("streams") over it.
//
// ConnIO owns the HTTP/2 frame codec (session.go, built on
// golang.org/x/net/http2), the cooperative socket driver (socket.go), the
// stream registries and per-stream state machine (conn.go, streamstate.go),
// the request body pump (bodypump.go) and graceful shutdown (shutdown.go).
// It assumes a single-threaded cooperative caller: ConnIO registers
// one-shot readable/writable/idle/timeout callbacks on an external event
// loop (the Scheduler interface) and does not run its own goroutines.
//
// Connection establishment, TLS/ALPN negotiation, HTTP/1.x transport,
// and message middleware (auth, cookies, logging, content decoding) are
// external collaborators; see Message for the hook points ConnIO expects
// from them.
package h2io
