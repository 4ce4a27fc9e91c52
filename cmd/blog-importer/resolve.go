// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/blog-importer/internal/assetstore"
	"github.com/pdiddy/blog-importer/internal/resolve"
	"github.com/pdiddy/blog-importer/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [asset-urls...]",
	Short: "Store single assets and print their canonical URIs",
	Long: `Resolve copies each asset into the content-addressed store, the same way
import does for the images of a page, and prints "source -> canonical URI".
Assets whose source does not exist are reported as not found.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().Bool("dry-run", false, "resolve against an in-memory store")
	resolveCmd.Flags().Duration("timeout", 0, "asset fetch timeout (default 60s)")
	resolveCmd.Flags().String("hash", "", "fingerprint algorithm: sha1, sha256, blake3, or cid")
	resolveCmd.Flags().String("strategy", "", "reference (default) or bytes")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more asset URLs")
	}
	cfg, err := loadConfig(viper.GetViper(), cmd)
	if err != nil {
		return err
	}
	r, err := assetResolver(cfg)
	if err != nil {
		return err
	}

	ctx := logger.WithContext(cmd.Context())
	w := cmd.OutOrStdout()
	var failed int
	for i, a := range args {
		uri, err := r.Resolve(ctx, resolve.Ref{Literal: a, Index: i})
		switch {
		case errors.Is(err, assetstore.ErrNotFound):
			fmt.Fprintf(w, "missing: %s\n", a)
		case err != nil:
			fmt.Fprintf(w, "failed:  %s (%v)\n", a, err)
			failed++
		default:
			fmt.Fprintf(w, "%s -> %s\n", a, uri)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d asset(s) failed", failed)
	}
	return nil
}

// assetResolver builds the store-backed resolver for cfg. Local storage
// needs a document to place assets next to, so it is refused here.
func assetResolver(cfg types.PipelineConfig) (resolve.Resolver, error) {
	if cfg.Store.Strategy == types.StrategyLocal {
		return nil, fmt.Errorf("strategy %q stores assets next to a document; use import", types.StrategyLocal)
	}
	assets := assetClient(cfg.Import)
	store, err := newStore(cfg, loadedSecrets, assets, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Strategy == types.StrategyBytes {
		return resolve.ByBytes{Store: store, Fetcher: assets}, nil
	}
	return resolve.ByReference{Store: store}, nil
}
