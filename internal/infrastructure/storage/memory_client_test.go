package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_ReportsProgressPerChunk(t *testing.T) {
	m := NewMemoryStorage("mem://bucket", 4)

	var seen []int64
	url, err := m.Upload(context.Background(), "chats/image/alice-1", "image/png", strings.NewReader("0123456789"), func(n int64) {
		seen = append(seen, n)
	})
	require.NoError(t, err)

	assert.Equal(t, "mem://bucket/chats/image/alice-1", url)
	assert.Equal(t, []int64{4, 8, 10}, seen)

	data, ok := m.Object("chats/image/alice-1")
	require.True(t, ok)
	assert.Equal(t, "0123456789", string(data))
}

func TestMemoryStorage_Delete(t *testing.T) {
	m := NewMemoryStorage("mem://bucket", 0)
	url, err := m.Upload(context.Background(), "k", "", strings.NewReader("x"), nil)
	require.NoError(t, err)

	require.NoError(t, m.Delete(context.Background(), url))
	assert.Error(t, m.Delete(context.Background(), url))
}

func TestMemoryStorage_CancelledContext(t *testing.T) {
	m := NewMemoryStorage("mem://bucket", 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Upload(ctx, "k", "", strings.NewReader("abc"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
