// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blobstore

import (
	"context"
	"errors"
	"sync"
)

// SourceFunc reads the bytes behind a copy source.
type SourceFunc func(ctx context.Context, source string) ([]byte, string, error)

// Blob is one object held by Memory.
type Blob struct {
	Payload     []byte
	ContentType string
}

// Memory is an in-process blob store. Counters record every call so tests
// can assert on network behavior.
type Memory struct {
	// Source backs ServerSideCopy. Without it copies fail.
	Source SourceFunc
	// CopyErr, when set, is consulted before every copy and its error
	// returned as-is.
	CopyErr func(uri, source string) error
	// HeadErr, when set, is returned by every HeadExists call.
	HeadErr error
	// PutErr, when set, is returned by every Put call.
	PutErr error

	mu     sync.Mutex
	blobs  map[string]Blob
	heads  int
	puts   int
	copies int
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]Blob)}
}

func (m *Memory) HeadExists(ctx context.Context, uri string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heads++
	if m.HeadErr != nil {
		return false, m.HeadErr
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := m.blobs[uri]
	return ok, nil
}

func (m *Memory) Put(ctx context.Context, uri string, payload []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.PutErr != nil {
		return m.PutErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.store(uri, payload, contentType)
	return nil
}

func (m *Memory) ServerSideCopy(ctx context.Context, uri, source string) error {
	m.mu.Lock()
	m.copies++
	copyErr, src := m.CopyErr, m.Source
	m.mu.Unlock()

	if copyErr != nil {
		if err := copyErr(uri, source); err != nil {
			return err
		}
	}
	if src == nil {
		return errors.New("memory store has no copy source")
	}
	payload, contentType, err := src(ctx, source)
	if err != nil {
		return &CopyError{URI: uri, Source: source, StatusCode: 400, Code: "CannotVerifyCopySource", Message: err.Error()}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(uri, payload, contentType)
	return nil
}

func (m *Memory) store(uri string, payload []byte, contentType string) {
	if m.blobs == nil {
		m.blobs = make(map[string]Blob)
	}
	m.blobs[uri] = Blob{Payload: append([]byte(nil), payload...), ContentType: contentType}
}

// Get returns the blob stored at uri.
func (m *Memory) Get(uri string) (Blob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[uri]
	return b, ok
}

// Len returns the number of stored blobs.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// Heads, Puts and Copies return call counts.
func (m *Memory) Heads() int  { m.mu.Lock(); defer m.mu.Unlock(); return m.heads }
func (m *Memory) Puts() int   { m.mu.Lock(); defer m.mu.Unlock(); return m.puts }
func (m *Memory) Copies() int { m.mu.Lock(); defer m.mu.Unlock(); return m.copies }
