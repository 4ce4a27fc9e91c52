// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "blog-importer-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "image/png")
		fmt.Fprint(w, "png-bytes")
	}))
	defer ts.Close()

	c := &Client{UserAgent: "blog-importer-test", Timeout: 2 * time.Second}
	resp, err := c.Fetch(context.Background(), ts.URL+"/a.png")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.ContentType)
	assert.Equal(t, "png-bytes", string(resp.Body))
}

func TestFetch_StatusClassification(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantNotFound bool
		wantRedirect bool
	}{
		{"404 is not found", http.StatusNotFound, true, false},
		{"410 is not found", http.StatusGone, true, false},
		{"500 is a failure", http.StatusInternalServerError, false, false},
		{"403 is a failure", http.StatusForbidden, false, false},
		{"301 is a redirect", http.StatusMovedPermanently, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status >= 300 && tt.status < 400 {
					w.Header().Set("Location", "/elsewhere")
				}
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			c := &Client{Timeout: 2 * time.Second}
			_, err := c.Fetch(context.Background(), ts.URL+"/page")
			require.Error(t, err)

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.wantNotFound, IsNotFound(err))
			assert.Equal(t, tt.wantRedirect, IsRedirect(err))
			assert.False(t, IsTimeout(err))
		})
	}
}

func TestFetch_FollowRedirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old.png" {
			http.Redirect(w, r, "/new.png", http.StatusMovedPermanently)
			return
		}
		fmt.Fprint(w, "moved-bytes")
	}))
	defer ts.Close()

	c := &Client{Timeout: 2 * time.Second, FollowRedirects: true}
	resp, err := c.Fetch(context.Background(), ts.URL+"/old.png")
	require.NoError(t, err)
	assert.Equal(t, "moved-bytes", string(resp.Body))
}

func TestFetch_TimeoutIsNotNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	c := &Client{Timeout: 50 * time.Millisecond}
	_, err := c.Fetch(context.Background(), ts.URL)
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "got %v", err)
	assert.False(t, IsNotFound(err))
}

func TestFetch_RejectsNonHTTP(t *testing.T) {
	c := &Client{}
	_, err := c.Fetch(context.Background(), "file:///etc/hosts")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestStream_HandsOpenBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "streamed")
	}))
	defer ts.Close()

	c := &Client{}
	var got string
	err := c.Stream(context.Background(), ts.URL, func(resp *http.Response) error {
		b, err := io.ReadAll(resp.Body)
		got = string(b)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "streamed", got)
}

func TestFetch_PageCache(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, "<html>post</html>")
	}))
	defer ts.Close()

	dir := t.TempDir()
	c := &Client{Cache: &PageCache{Dir: dir}}

	first, err := c.Fetch(context.Background(), ts.URL+"/2020/01/my-post/")
	require.NoError(t, err)
	second, err := c.Fetch(context.Background(), ts.URL+"/2020/01/my-post/")
	require.NoError(t, err)

	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	_, err = os.Stat(filepath.Join(dir, "202001my-post.html"))
	assert.NoError(t, err)
}

func TestPageCache_Path(t *testing.T) {
	c := &PageCache{Dir: "/cache"}
	assert.Equal(t, filepath.Join("/cache", "ab.html"), c.Path("https://blog.example/a/b"))
	assert.Equal(t, "", c.Path("https://blog.example/"))
}
