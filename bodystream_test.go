package h2io

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBodyBufferReadDrainsInOrder(t *testing.T) {
	b := newBodyBuffer(nil)
	b.appendChunk([]byte("hel"))
	b.appendChunk([]byte("lo"))
	b.markComplete()

	got, err := io.ReadAll(b)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestBodyBufferNeedMoreCalledWhenEmptyAndIncomplete(t *testing.T) {
	var calls int
	b := newBodyBuffer(func() { calls++ })

	n, err := b.Read(make([]byte, 8))
	assert.Equal(t, 0, n)
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)

	// still incomplete and empty: needMore fires again on next Read
	_, _ = b.Read(make([]byte, 8))
	assert.Equal(t, 2, calls)
}

func TestBodyBufferEOFOnlyAfterComplete(t *testing.T) {
	b := newBodyBuffer(func() {})
	b.markComplete()

	n, err := b.Read(make([]byte, 8))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestBodyBufferFailLatchesFirstError(t *testing.T) {
	b := newBodyBuffer(nil)
	b.appendChunk([]byte("partial"))

	first := errors.New("first")
	second := errors.New("second")
	b.fail(first)
	b.fail(second)

	// a buffered chunk is still delivered before the latched error
	buf := make([]byte, 7)
	n, err := b.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, "partial", string(buf[:n]))

	_, err = b.Read(make([]byte, 8))
	assert.ErrorIs(t, err, first)
}

func TestEmptyBodyStreamIsImmediateEOF(t *testing.T) {
	var s emptyBodyStream
	n, err := s.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestResponseStreamFiresOnEOFOnce(t *testing.T) {
	b := newBodyBuffer(nil)
	b.appendChunk([]byte("x"))
	b.markComplete()

	var calls int
	rs := &ResponseStream{Reader: b, onEOF: func() { calls++ }}

	buf := make([]byte, 8)
	_, _ = rs.Read(buf) // "x"
	_, err := rs.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, calls)

	_, _ = rs.Read(buf)
	assert.Equal(t, 1, calls) // onEOF does not fire again
}
