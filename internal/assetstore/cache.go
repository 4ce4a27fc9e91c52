// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assetstore

import (
	"sync"

	"github.com/pdiddy/blog-importer/pkg/types"
)

// Entry is one resolution outcome. Exactly one of Resource and NotFound is
// meaningful.
type Entry struct {
	Resource *types.ExternalResource
	NotFound bool
}

// Cache maps source references to resolution outcomes for the lifetime of
// one migration run. Entries are never evicted and never hold payloads.
// Racing inserts for the same reference are harmless: the last one wins.
type Cache struct {
	mu sync.RWMutex
	m  map[string]Entry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{m: make(map[string]Entry)}
}

// Get returns the entry recorded for ref.
func (c *Cache) Get(ref string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.m[ref]
	if ok && e.Resource != nil {
		e.Resource = e.Resource.Clone()
	}
	return e, ok
}

// Put records e under ref. Empty references are ignored.
func (c *Cache) Put(ref string, e Entry) {
	if ref == "" {
		return
	}
	if e.Resource != nil {
		e.Resource = e.Resource.Clone()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]Entry)
	}
	c.m[ref] = e
}

// Len returns the number of cached references.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
