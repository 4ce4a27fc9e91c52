// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/blog-importer/internal/assetstore"
	"github.com/pdiddy/blog-importer/internal/blobstore"
	"github.com/pdiddy/blog-importer/internal/fetch"
	"github.com/pdiddy/blog-importer/internal/importer"
	"github.com/pdiddy/blog-importer/internal/ledger"
	"github.com/pdiddy/blog-importer/internal/secrets"
	"github.com/pdiddy/blog-importer/internal/sink"
	"github.com/pdiddy/blog-importer/internal/transform"
	"github.com/pdiddy/blog-importer/pkg/types"
)

const (
	defaultRetries = 3
	dryRunBaseURI  = "memory://assets"
)

// loadConfig reads the pipeline configuration and applies any flags the
// user set on cmd.
func loadConfig(v *viper.Viper, cmd *cobra.Command) (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}

	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	if changed("output-dir") {
		cfg.Import.OutputDir, _ = flags.GetString("output-dir")
	}
	if changed("cache-dir") {
		cfg.Import.CacheDir, _ = flags.GetString("cache-dir")
	}
	if changed("ledger") {
		cfg.Import.LedgerPath, _ = flags.GetString("ledger")
	}
	if changed("force") {
		cfg.Import.Force, _ = flags.GetBool("force")
	}
	if changed("check-related") {
		cfg.Import.CheckRelatedExists, _ = flags.GetBool("check-related")
	}
	if changed("dry-run") {
		cfg.Import.DryRun, _ = flags.GetBool("dry-run")
	}
	if changed("ruleset") {
		cfg.Import.Ruleset, _ = flags.GetString("ruleset")
	}
	if changed("batch-size") {
		cfg.Import.BatchSize, _ = flags.GetInt("batch-size")
	}
	if changed("workers") {
		cfg.Import.Workers, _ = flags.GetInt("workers")
	}
	if changed("timeout") {
		cfg.Import.Timeout, _ = flags.GetDuration("timeout")
	}
	if changed("strategy") {
		s, _ := flags.GetString("strategy")
		cfg.Store.Strategy = types.ResolveStrategy(s)
	}
	if changed("hash") {
		cfg.Store.Hash, _ = flags.GetString("hash")
	}

	switch cfg.Store.Strategy {
	case "", types.StrategyReference, types.StrategyBytes, types.StrategyLocal:
	default:
		return cfg, fmt.Errorf("unknown strategy %q (want reference, bytes, or local)", cfg.Store.Strategy)
	}
	return cfg, nil
}

// addImportFlags registers the flags shared by import and batch.
func addImportFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("output-dir", "", "directory documents are written under")
	f.String("cache-dir", "", "keep fetched pages on disk and reuse them")
	f.String("ledger", "", "import ledger database")
	f.Bool("force", false, "re-import pages already in the ledger")
	f.Bool("check-related", false, "skip author, topic, and product documents that already exist")
	f.Bool("dry-run", false, "resolve assets against an in-memory store")
	f.String("ruleset", "", "page ruleset: blog or generic")
	f.Int("batch-size", 0, "pages imported concurrently (default 10)")
	f.Int("workers", 0, "concurrent asset resolutions per document (default 4)")
	f.Duration("timeout", 0, "page and asset fetch timeout (default 60s)")
	f.String("strategy", "", "asset strategy: reference, bytes, or local")
	f.String("hash", "", "fingerprint algorithm: sha1, sha256, blake3, or cid")
}

func assetClient(cfg types.ImportConfig) *fetch.Client {
	return &fetch.Client{
		UserAgent:       cfg.UserAgent,
		Timeout:         cfg.Timeout,
		FollowRedirects: true,
		MaxRetries:      defaultRetries,
	}
}

// newStore builds the asset store. Dry runs use an in-memory remote that
// copies by downloading the source itself.
func newStore(cfg types.PipelineConfig, sec secrets.Secrets, assets *fetch.Client, log zerolog.Logger) (*assetstore.Store, error) {
	storeCfg := cfg.Store
	storeCfg.BaseURI = sec.Or(secrets.BlobURI, storeCfg.BaseURI)

	var remote assetstore.Remote
	if cfg.Import.DryRun {
		mem := blobstore.NewMemory()
		mem.Source = func(ctx context.Context, src string) ([]byte, string, error) {
			resp, err := assets.Fetch(ctx, src)
			if err != nil {
				return nil, "", err
			}
			return resp.Body, resp.ContentType, nil
		}
		remote = mem
		if storeCfg.BaseURI == "" {
			storeCfg.BaseURI = dryRunBaseURI
		}
	} else {
		sas := sec.Or(secrets.BlobSAS, storeCfg.SAS)
		if sas == "" {
			return nil, fmt.Errorf("no shared access signature: set store.sas or .secrets/%s", secrets.BlobSAS)
		}
		az := blobstore.NewAzure(sas)
		az.MaxRetries = defaultRetries
		remote = az
	}

	store, err := assetstore.New(storeCfg, remote, assets, log)
	if err != nil {
		return nil, err
	}
	store.FetchTimeout = cfg.Import.Timeout
	return store, nil
}

// newImporter wires the pipeline. The returned close function releases the
// ledger.
func newImporter(cfg types.PipelineConfig, sec secrets.Secrets, log zerolog.Logger) (*importer.Importer, func() error, error) {
	ic := cfg.Import
	pages := &fetch.Client{
		UserAgent:  ic.UserAgent,
		Timeout:    ic.Timeout,
		MaxRetries: defaultRetries,
	}
	if ic.CacheDir != "" {
		pages.Cache = &fetch.PageCache{Dir: ic.CacheDir}
	}
	assets := assetClient(ic)

	// The local strategy writes assets into the sink and never touches the
	// blob store.
	var store *assetstore.Store
	if cfg.Store.Strategy != types.StrategyLocal {
		var err error
		if store, err = newStore(cfg, sec, assets, log); err != nil {
			return nil, nil, err
		}
	}
	out := sink.NewFS(ic.OutputDir)

	var tr transform.Transformer
	switch ic.Ruleset {
	case "", "blog":
		blog := &transform.Blog{Fetcher: pages, Logger: log}
		if ic.CheckRelatedExists {
			blog.Existing = out
		}
		tr = blog
	case "generic":
		tr = &transform.Generic{Logger: log}
	default:
		return nil, nil, fmt.Errorf("unknown ruleset %q (want blog or generic)", ic.Ruleset)
	}

	l, err := ledger.Open(ic.LedgerPath)
	if err != nil {
		return nil, nil, err
	}

	im := &importer.Importer{
		Pages:       pages,
		Assets:      assets,
		Transformer: tr,
		Store:       store,
		Sink:        out,
		Ledger:      l,
		Strategy:    cfg.Store.Strategy,
		Force:       ic.Force,
		Workers:     ic.Workers,
		BatchSize:   ic.BatchSize,
		Logger:      log,
	}
	return im, l.Close, nil
}
