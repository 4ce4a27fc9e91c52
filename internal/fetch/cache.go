// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// PageCache keeps fetched pages on disk as {Dir}/{path}.html where path is
// the URL path with its slashes removed. It has no eviction policy; clear
// the directory between migrations of different sites.
type PageCache struct {
	Dir string
}

// Path returns the cache file for locator, or "" when the locator has no
// usable path.
func (c *PageCache) Path(locator string) string {
	u, err := url.Parse(locator)
	if err != nil {
		return ""
	}
	name := strings.ReplaceAll(u.Path, "/", "")
	if name == "" {
		return ""
	}
	return filepath.Join(c.Dir, name+".html")
}

// Load returns the cached body for locator.
func (c *PageCache) Load(locator string) ([]byte, bool) {
	p := c.Path(locator)
	if p == "" {
		return nil, false
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	return b, true
}

// Save writes body for locator using a temporary file and rename.
func (c *PageCache) Save(locator string, body []byte) error {
	p := c.Path(locator)
	if p == "" {
		return nil
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(c.Dir, ".page-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, werr := tmp.Write(body)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing cache file: %w", errors.Join(werr, cerr))
	}
	if err := os.Rename(tmpPath, p); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}
