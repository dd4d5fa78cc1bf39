package h2io

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestStreamState() *StreamState {
	return &StreamState{state: StateNone}
}

func TestStreamStateAdvanceMonotonic(t *testing.T) {
	s := newTestStreamState()
	s.advance(StateWriteHeaders)
	assert.Equal(t, StateWriteHeaders, s.State())

	s.advance(StateWriteData)
	assert.Equal(t, StateWriteData, s.State())

	// backward transitions are refused, never applied
	s.advance(StateWriteHeaders)
	assert.Equal(t, StateWriteData, s.State())

	// a no-op (same state) request is also refused
	s.advance(StateWriteData)
	assert.Equal(t, StateWriteData, s.State())
}

func TestStreamStateFailLatchesFirstError(t *testing.T) {
	s := newTestStreamState()
	first := errors.New("first")
	second := errors.New("second")

	s.fail(first)
	s.fail(second)

	assert.Equal(t, first, s.Err())
}

func TestStreamStateFailPropagatesToRawBody(t *testing.T) {
	s := newTestStreamState()
	s.raw = newBodyBuffer(nil)

	want := errors.New("boom")
	s.fail(want)

	_, err := s.raw.Read(make([]byte, 8))
	assert.ErrorIs(t, err, want)
}

func TestStreamStateIDDefaultsToZero(t *testing.T) {
	s := newTestStreamState()
	assert.Equal(t, uint32(0), s.ID())
}
