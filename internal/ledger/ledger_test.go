// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/blog-importer/pkg/types"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "state", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestOpenCreatesDBFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestPutGet(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Put(ctx, types.ImportRecord{
		URL:        "https://blog.example.com/a.html",
		Date:       "2020/03/15",
		Path:       "en/drafts/migrated/2020/03/15/a.md",
		Status:     types.ImportDone,
		ImportedAt: at,
	}))

	rec, ok, err := l.Get(ctx, "https://blog.example.com/a.html")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2020/03/15", rec.Date)
	assert.Equal(t, "en/drafts/migrated/2020/03/15/a.md", rec.Path)
	assert.Equal(t, types.ImportDone, rec.Status)
	assert.True(t, at.Equal(rec.ImportedAt))

	_, ok, err = l.Get(ctx, "https://blog.example.com/missing.html")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutReplaces(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	u := "https://blog.example.com/a.html"

	require.NoError(t, l.Put(ctx, types.ImportRecord{URL: u, Status: types.ImportFailed, Error: "HTTP 500"}))
	require.NoError(t, l.Put(ctx, types.ImportRecord{URL: u, Date: "2020/01/02", Status: types.ImportDone}))

	rec, ok, err := l.Get(ctx, u)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.ImportDone, rec.Status)
	assert.Empty(t, rec.Error)

	all, err := l.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPutDefaults(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Put(ctx, types.ImportRecord{URL: "u", Status: types.ImportRedirect}))

	rec, _, err := l.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "unknown", rec.Date)
	assert.False(t, rec.ImportedAt.IsZero())
}

func TestPutRequiresURL(t *testing.T) {
	l := testLedger(t)
	assert.Error(t, l.Put(context.Background(), types.ImportRecord{Status: types.ImportDone}))
}

func TestListFilterAndOrder(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	for _, rec := range []types.ImportRecord{
		{URL: "https://b/2", Date: "2021/01/01", Status: types.ImportDone},
		{URL: "https://b/1", Date: "2019/05/05", Status: types.ImportDone},
		{URL: "https://b/3", Date: "2020/01/01", Status: types.ImportRedirect},
	} {
		require.NoError(t, l.Put(ctx, rec))
	}

	tests := []struct {
		status types.ImportStatus
		want   []string
	}{
		{"", []string{"https://b/1", "https://b/3", "https://b/2"}},
		{types.ImportDone, []string{"https://b/1", "https://b/2"}},
		{types.ImportRedirect, []string{"https://b/3"}},
		{types.ImportFailed, nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			recs, err := l.List(ctx, tt.status)
			require.NoError(t, err)
			var got []string
			for _, r := range recs {
				got = append(got, r.URL)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExportYAML(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Put(ctx, types.ImportRecord{URL: "https://b/1", Date: "2019/05/05", Status: types.ImportDone, Path: "p.md"}))
	require.NoError(t, l.Put(ctx, types.ImportRecord{URL: "https://b/2", Status: types.ImportFailed, Error: "HTTP 500"}))

	var buf bytes.Buffer
	require.NoError(t, l.ExportYAML(ctx, &buf, ""))

	var got []types.ImportRecord
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "https://b/1", got[0].URL)
	assert.Equal(t, "p.md", got[0].Path)
	assert.Equal(t, types.ImportFailed, got[1].Status)
	assert.Equal(t, "HTTP 500", got[1].Error)
}

func TestExportYAMLEmpty(t *testing.T) {
	l := testLedger(t)
	var buf bytes.Buffer
	require.NoError(t, l.ExportYAML(context.Background(), &buf, types.ImportDone))
	assert.Equal(t, "[]\n", buf.String())
}

func TestInMemory(t *testing.T) {
	l, err := Open("")
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.Put(ctx, types.ImportRecord{URL: "u", Status: types.ImportDone}))
	_, ok, err := l.Get(ctx, "u")
	require.NoError(t, err)
	assert.True(t, ok)
}
