// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the blog-importer CLI.
package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/blog-importer/internal/blobstore"
	"github.com/pdiddy/blog-importer/internal/fetch"
	"github.com/pdiddy/blog-importer/internal/importer"
	"github.com/pdiddy/blog-importer/internal/resolve"
	"github.com/pdiddy/blog-importer/internal/secrets"
	"github.com/pdiddy/blog-importer/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds credentials loaded from .secrets/ at startup.
	loadedSecrets secrets.Secrets
	logger        = zerolog.Nop()
)

// rootCmd is the base command for the blog-importer CLI.
var rootCmd = &cobra.Command{
	Use:   "blog-importer",
	Short: "Migrate blog pages into Markdown documents with deduplicated assets",
	Long: `blog-importer fetches blog pages, converts them to Markdown and moves
every image they reference into a content-addressed blob container. Assets
with identical bytes are stored once and every reference to them is
rewritten to the same canonical URI.

Imported pages are recorded in a ledger so a migration can be resumed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).With().Timestamp().Logger()
		if verbose {
			blobstore.ForwardSDKLog(logger.With().Str("component", "azblob").Logger())
		}

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := s.Keys()
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Debug().Str("file", f).Msg("using config file")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./blog-importer.yaml or ~/.config/blog-importer/blog-importer.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("blog-importer")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "blog-importer"))
		}
	}

	viper.SetEnvPrefix("BLOG_IMPORTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	_ = viper.ReadInConfig()
}

// setDefaults registers every configuration key so environment variables
// are honored by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("store.base_uri", "")
	v.SetDefault("store.sas", "")
	v.SetDefault("store.hash", "sha1")
	v.SetDefault("store.head_timeout", 10*time.Second)
	v.SetDefault("store.upload_timeout", 10*time.Second)
	v.SetDefault("store.copy_timeout", 60*time.Second)
	v.SetDefault("store.strategy", string(types.StrategyReference))

	v.SetDefault("import.timeout", fetch.DefaultTimeout)
	v.SetDefault("import.user_agent", fetch.DefaultUserAgent)
	v.SetDefault("import.output_dir", ".")
	v.SetDefault("import.cache_dir", "")
	v.SetDefault("import.ledger_path", filepath.Join(".blog-importer", "ledger.db"))
	v.SetDefault("import.force", false)
	v.SetDefault("import.check_related_exists", false)
	v.SetDefault("import.batch_size", importer.DefaultBatchSize)
	v.SetDefault("import.workers", resolve.DefaultWorkers)
	v.SetDefault("import.ruleset", "blog")
	v.SetDefault("import.dry_run", false)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
