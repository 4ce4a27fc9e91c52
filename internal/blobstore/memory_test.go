// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PutHeadGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ok, err := m.HeadExists(ctx, "mem://a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "mem://a", []byte("x"), "text/plain"))
	ok, err = m.HeadExists(ctx, "mem://a")
	require.NoError(t, err)
	assert.True(t, ok)

	b, ok := m.Get("mem://a")
	require.True(t, ok)
	assert.Equal(t, "x", string(b.Payload))
	assert.Equal(t, "text/plain", b.ContentType)
	assert.Equal(t, 2, m.Heads())
	assert.Equal(t, 1, m.Puts())
}

func TestMemory_CopyUsesSource(t *testing.T) {
	m := NewMemory()
	m.Source = func(ctx context.Context, source string) ([]byte, string, error) {
		return []byte("from " + source), "image/png", nil
	}
	require.NoError(t, m.ServerSideCopy(context.Background(), "mem://b", "https://src/a.png"))
	b, ok := m.Get("mem://b")
	require.True(t, ok)
	assert.Equal(t, "from https://src/a.png", string(b.Payload))
	assert.Equal(t, 1, m.Copies())
}

func TestMemory_CopyErrHook(t *testing.T) {
	m := NewMemory()
	m.CopyErr = func(uri, source string) error {
		return &CopyError{URI: uri, Source: source, StatusCode: 400, SourceStatusCode: 301}
	}
	err := m.ServerSideCopy(context.Background(), "mem://c", "https://src/a.png")
	assert.True(t, errors.Is(err, ErrRedirectCopyUnsupported))
	assert.Equal(t, 0, m.Len())
}
