package linkstack

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStack_PushPop(t *testing.T) {
	t.Parallel()

	s := New[int]()

	_, ok := s.Pop()
	assert.False(t, ok)

	s.Push(1)
	s.Push(2)
	s.Push(3)

	v, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = s.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	assert.Equal(t, 1, s.Len())
}

func TestStack_Snapshot(t *testing.T) {
	t.Parallel()

	s := New[int]()
	s.Push(1)
	s.Push(2)

	items := s.Snapshot()
	assert.ElementsMatch(t, []int{1, 2}, items)
	assert.Equal(t, 2, s.Len())

	v, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestStack_ConcurrentPushPop(t *testing.T) {
	t.Parallel()

	s := New[int]()
	wg := sync.WaitGroup{}

	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range 100 {
				s.Push(n*100 + j)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1000, s.Len())

	seen := make(map[int]bool)
	for {
		v, ok := s.Pop()
		if !ok {
			break
		}
		require.False(t, seen[v], "duplicate value popped: %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, 1000)
}
