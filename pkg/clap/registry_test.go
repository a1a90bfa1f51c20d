package clap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	var r registry[string]
	_, ok := r.get(1)
	require.False(t, ok)

	a := r.add("a")
	b := r.add("b")
	require.NotEqual(t, a, b)
	require.NotZero(t, a)

	v, ok := r.get(b)
	require.True(t, ok)
	require.Equal(t, "b", v)

	r.remove(a)
	_, ok = r.get(a)
	require.False(t, ok)
	require.Equal(t, 1, r.len())

	// ids are never reused
	require.Greater(t, r.add("c"), b)
}

func TestRegistryConcurrent(t *testing.T) {
	var r registry[int]
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := r.add(j)
				v, ok := r.get(id)
				assert.True(t, ok)
				assert.Equal(t, j, v)
				r.remove(id)
			}
		}()
	}
	wg.Wait()
	require.Zero(t, r.len())
}
