package h2io

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGracefulTerminateSendsGoAwayWhenIdle(t *testing.T) {
	c, fc, _ := newTestConn(t)

	require.NoError(t, c.GracefulTerminate())
	assert.False(t, c.IsOpen())
	assert.NotEmpty(t, fc.drainOut()) // GOAWAY sent immediately, no active streams

	msg := NewMessage("GET", newTestURI("/x"))
	mio := c.NewMessageIO(msg)
	assert.ErrorIs(t, mio.SendItem(func(*Message, error) {}), ErrShutdown)
}

func TestGracefulTerminateDefersGoAwayUntilDrained(t *testing.T) {
	c, fc, _ := newTestConn(t)

	msg := NewMessage("GET", newTestURI("/x"))
	mio := c.NewMessageIO(msg)
	require.NoError(t, mio.SendItem(func(*Message, error) {}))
	fc.drainOut()

	require.NoError(t, c.GracefulTerminate())
	assert.Empty(t, fc.drainOut()) // one active stream: GOAWAY deferred

	mio.Finished()
	assert.NotEmpty(t, fc.drainOut()) // draining to zero active streams flushes it
}

func TestCloseAsyncFalseOnceGoAwaySent(t *testing.T) {
	c, _, _ := newTestConn(t)

	assert.True(t, c.CloseAsync(func() {}))
	assert.False(t, c.CloseAsync(func() {}))
}

func TestCloseAsyncCompletesTokenAfterDrain(t *testing.T) {
	c, fc, sched := newTestConn(t)

	var closed bool
	assert.True(t, c.CloseAsync(func() { closed = true }))
	assert.True(t, closed) // no active streams: GOAWAY sends and drains immediately
	_ = fc
	_ = sched
}

func TestDestroyFailsActiveStreamsAndClosesConn(t *testing.T) {
	c, fc, _ := newTestConn(t)

	msg := NewMessage("GET", newTestURI("/x"))
	mio := c.NewMessageIO(msg)
	require.NoError(t, mio.SendItem(func(*Message, error) {}))

	require.NoError(t, c.Destroy())
	assert.Error(t, mio.stream.Err())
	assert.ErrorIs(t, mio.stream.Err(), ErrClosed)
	assert.True(t, fc.closed)
}
