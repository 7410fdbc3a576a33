package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedBook struct {
	Title  string `json:"title"`
	Copies int    `json:"copies"`
}

func setupTestCache(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestClient_SetGetDelete(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "book:1", []byte("dune"), time.Minute))

	got, err := c.Get(ctx, "book:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("dune"), got)

	require.NoError(t, c.Delete(ctx, "book:1"))
	got, err = c.Get(ctx, "book:1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClient_TTL(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	got, _ := c.Get(ctx, "k")
	assert.Nil(t, got)
}

func TestClient_JSON(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	c.SetJSON(ctx, "book:2", cachedBook{Title: "Emma", Copies: 3}, time.Minute)

	var out cachedBook
	require.True(t, c.GetJSON(ctx, "book:2", &out))
	assert.Equal(t, cachedBook{Title: "Emma", Copies: 3}, out)

	require.NoError(t, mr.Set("bad", "not-json"))
	assert.False(t, c.GetJSON(ctx, "bad", &out))
	assert.False(t, c.GetJSON(ctx, "missing", &out))
}

func TestClient_FailSafe(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()
	mr.Close()

	assert.Error(t, c.Ping(ctx))
	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestClient_Nil(t *testing.T) {
	var c *Client
	ctx := context.Background()

	assert.Error(t, c.Ping(ctx))
	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Close())
}
