package platform

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBucket(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBucket()

	require.NoError(t, b.Put(ctx, "u1/c1/a.png", "image/png", strings.NewReader("png-bytes")))
	assert.True(t, b.Has("u1/c1/a.png"))
	assert.Equal(t, 1, b.Len())

	r, err := b.Get(ctx, "u1/c1/a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	_, err = b.Get(ctx, "u1/c1/missing.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, 2, b.Reads())

	require.NoError(t, b.Delete(ctx, "u1/c1/a.png"))
	assert.False(t, b.Has("u1/c1/a.png"))
	assert.ErrorIs(t, b.Delete(ctx, "u1/c1/a.png"), ErrObjectNotFound)
}

func TestGetDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "duration string", value: "36h", want: "36h0m0s"},
		{name: "seconds", value: "90", want: "1m30s"},
		{name: "invalid falls back", value: "soon", want: "24h0m0s"},
		{name: "unset falls back", value: "", want: "24h0m0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ORPHAN_MAX_AGE", tt.value)
			cfg := LoadConfig("does-not-exist.env")
			assert.Equal(t, tt.want, cfg.OrphanMaxAge.String())
		})
	}
}
