package lifo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStack(t *testing.T) {
	var s Stack[int]
	assert.True(t, s.Empty())
	assert.Equal(t, 0, s.Len())

	_, ok := s.Pop()
	assert.False(t, ok)
	_, ok = s.Peek()
	assert.False(t, ok)

	s.Push(1)
	s.Push(2)
	s.Push(3)
	assert.Equal(t, 3, s.Len())

	v, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 3, s.Len(), "peek must not remove")

	v, ok = s.Pop()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = s.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.False(t, s.Empty())
}

func TestSnapshot(t *testing.T) {
	var s Stack[string]
	s.Push("bottom")
	s.Push("middle")
	s.Push("top")

	assert.Equal(t, []string{"top", "middle", "bottom"}, s.Snapshot())
	assert.Equal(t, 3, s.Len(), "snapshot must not drain the stack")
}
