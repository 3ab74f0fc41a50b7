package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/headshot/pkg/types"
)

func params(shift int) types.Params {
	p := types.DefaultParams()
	p.ShiftX = shift
	return p
}

func TestStack_BoundAndOrder(t *testing.T) {
	s := New()
	for i := 1; i <= 8; i++ {
		s.Push(params(i))
	}
	require.Equal(t, 5, s.Len())

	for want := 8; want >= 4; want-- {
		p, ok := s.Undo()
		require.True(t, ok)
		assert.Equal(t, want, p.ShiftX)
	}

	_, ok := s.Undo()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStack_UndoEmpty(t *testing.T) {
	p, ok := New().Undo()
	assert.False(t, ok)
	assert.Equal(t, types.Params{}, p)
}

func TestStack_Reset(t *testing.T) {
	s := New()
	s.Push(params(1))
	s.Push(params(2))
	s.Reset()
	assert.Equal(t, 0, s.Len())
	_, ok := s.Undo()
	assert.False(t, ok)

	s.Push(params(3))
	assert.Equal(t, 1, s.Len())
}

func TestStack_Snapshots(t *testing.T) {
	s := NewWithCapacity(3)
	for i := 1; i <= 4; i++ {
		s.Push(params(i))
	}
	snaps := s.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, []int{4, 3, 2}, []int{snaps[0].ShiftX, snaps[1].ShiftX, snaps[2].ShiftX})

	// snapshots are copies
	snaps[0].ShiftX = 99
	p, _ := s.Undo()
	assert.Equal(t, 4, p.ShiftX)
}

func TestNewWithCapacity_Default(t *testing.T) {
	s := NewWithCapacity(0)
	for i := 0; i < 10; i++ {
		s.Push(params(i))
	}
	assert.Equal(t, DefaultCapacity, s.Len())
}
