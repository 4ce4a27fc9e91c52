// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/blog-importer/internal/blobstore"
	"github.com/pdiddy/blog-importer/internal/fetch"
	"github.com/pdiddy/blog-importer/internal/resolve"
	"github.com/pdiddy/blog-importer/internal/secrets"
	"github.com/pdiddy/blog-importer/internal/transform"
	"github.com/pdiddy/blog-importer/pkg/types"
)

func testViper(t *testing.T, cfg map[string]any) *viper.Viper {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	if cfg != nil {
		data, err := yaml.Marshal(cfg)
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "blog-importer.yaml")
		require.NoError(t, os.WriteFile(path, data, 0o644))
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func testCommand(args ...string) *cobra.Command {
	cmd := &cobra.Command{Use: "import"}
	addImportFlags(cmd)
	_ = cmd.Flags().Parse(args)
	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(testViper(t, nil), testCommand())
	require.NoError(t, err)

	assert.Equal(t, "sha1", cfg.Store.Hash)
	assert.Equal(t, types.StrategyReference, cfg.Store.Strategy)
	assert.Equal(t, 10*time.Second, cfg.Store.HeadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Store.CopyTimeout)
	assert.Equal(t, 10, cfg.Import.BatchSize)
	assert.Equal(t, 4, cfg.Import.Workers)
	assert.Equal(t, "blog", cfg.Import.Ruleset)
	assert.Equal(t, filepath.Join(".blog-importer", "ledger.db"), cfg.Import.LedgerPath)
}

func TestLoadConfigFile(t *testing.T) {
	v := testViper(t, map[string]any{
		"store": map[string]any{
			"base_uri":     "https://acct.blob.core.windows.net/assets",
			"hash":         "blake3",
			"copy_timeout": "90s",
		},
		"import": map[string]any{
			"output_dir": "site",
			"workers":    8,
		},
	})
	cfg, err := loadConfig(v, testCommand())
	require.NoError(t, err)

	assert.Equal(t, "https://acct.blob.core.windows.net/assets", cfg.Store.BaseURI)
	assert.Equal(t, "blake3", cfg.Store.Hash)
	assert.Equal(t, 90*time.Second, cfg.Store.CopyTimeout)
	assert.Equal(t, "site", cfg.Import.OutputDir)
	assert.Equal(t, 8, cfg.Import.Workers)
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	v := testViper(t, map[string]any{"import": map[string]any{"output_dir": "site"}})
	cfg, err := loadConfig(v, testCommand("--output-dir", "out", "--force", "--strategy", "local", "--workers", "2"))
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.Import.OutputDir)
	assert.True(t, cfg.Import.Force)
	assert.Equal(t, types.StrategyLocal, cfg.Store.Strategy)
	assert.Equal(t, 2, cfg.Import.Workers)
}

func TestLoadConfigRejectsUnknownStrategy(t *testing.T) {
	_, err := loadConfig(testViper(t, nil), testCommand("--strategy", "carrier-pigeon"))
	assert.ErrorContains(t, err, "unknown strategy")
}

func TestNewStore(t *testing.T) {
	cfg, err := loadConfig(testViper(t, nil), testCommand())
	require.NoError(t, err)

	t.Run("requires a signature", func(t *testing.T) {
		cfg := cfg
		cfg.Store.BaseURI = "https://b/c"
		_, err := newStore(cfg, secrets.Secrets{}, assetClient(cfg.Import), zerolog.Nop())
		assert.ErrorContains(t, err, secrets.BlobSAS)
	})
	t.Run("secrets fill credentials", func(t *testing.T) {
		sec := secrets.Secrets{secrets.BlobSAS: "sig=x", secrets.BlobURI: "https://b/c"}
		store, err := newStore(cfg, sec, assetClient(cfg.Import), zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, "https://b/c", store.BaseURI)
		assert.IsType(t, &blobstore.Azure{}, store.Remote)
	})
	t.Run("dry run", func(t *testing.T) {
		cfg := cfg
		cfg.Import.DryRun = true
		store, err := newStore(cfg, secrets.Secrets{}, assetClient(cfg.Import), zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, dryRunBaseURI, store.BaseURI)
		assert.IsType(t, &blobstore.Memory{}, store.Remote)
	})
}

func TestNewImporterRuleset(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfig(testViper(t, nil), testCommand("--dry-run", "--check-related",
		"--ledger", filepath.Join(dir, "ledger.db"), "--output-dir", dir))
	require.NoError(t, err)

	im, closeLedger, err := newImporter(cfg, secrets.Secrets{}, zerolog.Nop())
	require.NoError(t, err)
	defer closeLedger()
	blog, ok := im.Transformer.(*transform.Blog)
	require.True(t, ok)
	assert.NotNil(t, blog.Existing)
	assert.Same(t, im.Pages, blog.Fetcher, "author pages use the page client")
	pages, ok := blog.Fetcher.(*fetch.Client)
	require.True(t, ok)
	assert.False(t, pages.FollowRedirects)

	cfg.Import.Ruleset = "wiki"
	_, _, err = newImporter(cfg, secrets.Secrets{}, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown ruleset")
}

func TestNewImporterLocalStrategy(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfig(testViper(t, nil), testCommand("--strategy", "local",
		"--ledger", filepath.Join(dir, "ledger.db"), "--output-dir", dir))
	require.NoError(t, err)
	require.Empty(t, cfg.Store.BaseURI)

	im, closeLedger, err := newImporter(cfg, secrets.Secrets{}, zerolog.Nop())
	require.NoError(t, err)
	defer closeLedger()
	assert.Nil(t, im.Store)
	assert.Equal(t, types.StrategyLocal, im.Strategy)
}

func TestAssetResolver(t *testing.T) {
	base, err := loadConfig(testViper(t, nil), testCommand("--dry-run"))
	require.NoError(t, err)

	tests := []struct {
		strategy types.ResolveStrategy
		want     any
		wantErr  string
	}{
		{types.StrategyReference, resolve.ByReference{}, ""},
		{"", resolve.ByReference{}, ""},
		{types.StrategyBytes, resolve.ByBytes{}, ""},
		{types.StrategyLocal, nil, "use import"},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			cfg := base
			cfg.Store.Strategy = tt.strategy
			r, err := assetResolver(cfg)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, r)
		})
	}
}

func TestReadURLs(t *testing.T) {
	urls, err := readURLs(strings.NewReader("# posts\nhttps://b/1.html\n\n  https://b/2.html  \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://b/1.html", "https://b/2.html"}, urls)
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "blog-importer dev\n", buf.String())
}
