package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAbortSignal_NotifiesListeners(t *testing.T) {
	s := NewAbortSignal()
	calls := 0
	s.AddListener(func() { calls++ })
	s.AddListener(func() { panic("ignored") })
	s.AddListener(func() { calls++ })

	assert.False(t, s.Aborted())
	s.Abort()

	assert.True(t, s.Aborted())
	assert.Equal(t, 2, calls)
	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestAbortSignal_RemoveListener(t *testing.T) {
	s := NewAbortSignal()
	calls := 0
	remove := s.AddListener(func() { calls++ })
	remove()

	s.Abort()
	assert.Equal(t, 0, calls)
}

func TestAbortSignal_StaysAborted(t *testing.T) {
	s := NewAbortSignal()
	s.Abort()
	s.Abort()
	assert.True(t, s.Aborted())
}

func TestAbortSignal_ZeroValue(t *testing.T) {
	var s AbortSignal
	calls := 0
	remove := s.AddListener(func() { calls++ })

	s.Abort()
	remove()
	s.Abort()

	assert.True(t, s.Aborted())
	assert.Equal(t, 1, calls)
	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestAbortSignal_ZeroValueDoneBeforeAbort(t *testing.T) {
	var s AbortSignal
	done := s.Done()
	s.Abort()
	select {
	case <-done:
	default:
		t.Fatal("done channel not closed")
	}
}
