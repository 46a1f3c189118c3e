package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGet(t *testing.T) {
	c := NewMemory[string](time.Minute, 0)
	c.Set("a", "hello", 0)

	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "hello", got)
}

func TestGetMissing(t *testing.T) {
	c := NewMemory[int](time.Minute, 0)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := NewMemory[string](time.Minute, 0)
	c.Set("a", "soon gone", 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestDelete(t *testing.T) {
	c := NewMemory[string](time.Minute, 0)
	c.Set("a", "x", 0)
	c.Delete("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestEvictsOldestWhenFull(t *testing.T) {
	c := NewMemory[int](time.Minute, 2)
	c.Set("first", 1, 0)
	time.Sleep(time.Millisecond)
	c.Set("second", 2, 0)
	time.Sleep(time.Millisecond)
	c.Set("third", 3, 0)

	_, ok := c.Get("first")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = c.Get("second")
	assert.True(t, ok)
	_, ok = c.Get("third")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	c := NewMemory[int](time.Minute, 2)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("a", 10, 0)

	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 10, got)
	_, ok = c.Get("b")
	assert.True(t, ok)
}
