package kcache

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestKey(t *testing.T) {
	a := Key([]byte(`{"nodes":{}}`), "runtime", "fp")
	assert.Equal(t, 64, len(a))
	assert.Equal(t, a, Key([]byte(`{"nodes":{}}`), "runtime", "fp"))

	assert.NotEqual(t, a, Key([]byte(`{"nodes":{}}`), "runtime2", "fp"))
	assert.NotEqual(t, a, Key([]byte(`{"nodes":{}}`), "runtime", "fp2"))
	// Parts are length prefixed, so shifting bytes between them changes the key.
	assert.NotEqual(t, Key([]byte("ab"), "c", ""), Key([]byte("a"), "bc", ""))
}

func testCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrKeyNotFound))

	assert.NoError(t, c.Set(ctx, "k", []byte("v1")))
	v, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	assert.NoError(t, c.Set(ctx, "k", []byte("v2")))
	v, err = c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	testCache(t, m)

	// Returned values are copies.
	v, err := m.Get(context.Background(), "k")
	assert.NoError(t, err)
	v[0] = 'x'
	again, _ := m.Get(context.Background(), "k")
	assert.Equal(t, []byte("v2"), again)
	assert.NoError(t, m.Close())
}

func TestPebble(t *testing.T) {
	dir := t.TempDir()
	p, err := OpenPebble(dir)
	assert.NoError(t, err)
	testCache(t, p)
	assert.NoError(t, p.Close())

	// Values survive a reopen.
	p, err = OpenPebble(dir)
	assert.NoError(t, err)
	v, err := p.Get(context.Background(), "k")
	assert.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)
	assert.NoError(t, p.Close())
}

func TestLayered(t *testing.T) {
	ctx := context.Background()
	front, back := NewMemory(), NewMemory()
	l := NewLayered(front, back)
	testCache(t, l)
	assert.Equal(t, 1, front.Len())
	assert.Equal(t, 1, back.Len())

	assert.NoError(t, back.Set(ctx, "only-back", []byte("b")))
	v, err := l.Get(ctx, "only-back")
	assert.NoError(t, err)
	assert.Equal(t, []byte("b"), v)

	// The hit was promoted.
	v, err = front.Get(ctx, "only-back")
	assert.NoError(t, err)
	assert.Equal(t, []byte("b"), v)

	assert.NoError(t, l.Close())
}
