// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var importCmd = &cobra.Command{
	Use:   "import [urls...]",
	Short: "Import blog pages as Markdown documents",
	Long: `Import fetches each page, converts it with the configured ruleset, moves
its images into the content-addressed store, and writes the document under
the output directory. Author, topic, and product documents found on the
page are written alongside it.

Pages already recorded in the ledger are skipped unless --force is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("provide one or more page URLs")
		}
		return runImport(cmd, args)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Import every page listed in a file",
	Long: `Batch reads page URLs from a file, one per line (blank lines and lines
starting with # are ignored), and imports them concurrently.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("opening url list: %w", err)
		}
		defer f.Close()
		urls, err := readURLs(f)
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}
		if len(urls) == 0 {
			return fmt.Errorf("%s lists no URLs", file)
		}
		return runImport(cmd, urls)
	},
}

func init() {
	addImportFlags(importCmd)
	addImportFlags(batchCmd)
	batchCmd.Flags().String("file", "", "file listing page URLs")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(batchCmd)
}

func runImport(cmd *cobra.Command, urls []string) error {
	cfg, err := loadConfig(viper.GetViper(), cmd)
	if err != nil {
		return err
	}
	im, closeLedger, err := newImporter(cfg, loadedSecrets, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	ctx := logger.WithContext(cmd.Context())
	result := im.ImportBatch(ctx, urls, cmd.OutOrStdout())

	if im.Store != nil {
		st := im.Store.Stats()
		logger.Info().
			Int64("heads", st.Heads).
			Int64("puts", st.Puts).
			Int64("copies", st.Copies).
			Int64("fetches", st.Fetches).
			Int64("cache_hits", st.CacheHits).
			Msg("asset store")
	}

	if result.HasFailures() {
		return fmt.Errorf("%d page(s) failed import", result.Failed)
	}
	return nil
}

// readURLs returns the non-empty, non-comment lines of r.
func readURLs(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, sc.Err()
}
