// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the configuration and records shared by the
// blog-importer pipeline stages.
package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout bounds a full page or asset fetch.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "blog-importer/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// ResolveStrategy selects how the asset resolution pass obtains canonical
// locations for the references found in a document.
type ResolveStrategy string

const (
	// StrategyReference asks the remote store to copy the asset from its
	// source location, falling back to download and re-upload.
	StrategyReference ResolveStrategy = "reference"

	// StrategyBytes downloads every asset and uploads the bytes.
	StrategyBytes ResolveStrategy = "bytes"

	// StrategyLocal stores assets next to the document in the sink.
	StrategyLocal ResolveStrategy = "local"
)

// StoreConfig holds settings for the content-addressed asset store.
type StoreConfig struct {
	// BaseURI is the container location canonical URIs are built from:
	// {BaseURI}/{fingerprint}.
	BaseURI string `json:"base_uri" yaml:"base_uri" mapstructure:"base_uri"`

	// SAS is the shared access signature query appended to write requests.
	SAS string `json:"sas,omitempty" yaml:"sas,omitempty" mapstructure:"sas"`

	// Hash names the fingerprint algorithm: sha1 (default), sha256, blake3, cid.
	Hash string `json:"hash" yaml:"hash" mapstructure:"hash"`

	// HeadTimeout bounds existence checks (default 10s).
	HeadTimeout time.Duration `json:"head_timeout" yaml:"head_timeout" mapstructure:"head_timeout"`

	// UploadTimeout bounds uploads (default 10s).
	UploadTimeout time.Duration `json:"upload_timeout" yaml:"upload_timeout" mapstructure:"upload_timeout"`

	// CopyTimeout bounds server-side copy requests (default 60s).
	CopyTimeout time.Duration `json:"copy_timeout" yaml:"copy_timeout" mapstructure:"copy_timeout"`

	// Strategy selects the resolution strategy (default reference).
	Strategy ResolveStrategy `json:"strategy" yaml:"strategy" mapstructure:"strategy"`
}

// ImportConfig holds settings for the page import stage.
type ImportConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// OutputDir is the root directory documents are written under.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// CacheDir, when set, keeps a copy of every fetched page and serves
	// subsequent imports of the same page from disk.
	CacheDir string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty" mapstructure:"cache_dir"`

	// LedgerPath is the SQLite database recording imported pages.
	LedgerPath string `json:"ledger_path" yaml:"ledger_path" mapstructure:"ledger_path"`

	// Force re-imports pages already recorded in the ledger.
	Force bool `json:"force" yaml:"force" mapstructure:"force"`

	// CheckRelatedExists skips related documents (authors, topics,
	// products) already present in the sink.
	CheckRelatedExists bool `json:"check_related_exists" yaml:"check_related_exists" mapstructure:"check_related_exists"`

	// BatchSize caps how many pages are imported concurrently (default 10).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// Workers caps concurrent asset resolutions within one document (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// Ruleset selects the page transformer: blog (default) or generic.
	Ruleset string `json:"ruleset" yaml:"ruleset" mapstructure:"ruleset"`

	// DryRun resolves assets against an in-memory store instead of the
	// configured remote.
	DryRun bool `json:"dry_run" yaml:"dry_run" mapstructure:"dry_run"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Store  StoreConfig  `json:"store" yaml:"store" mapstructure:"store"`
	Import ImportConfig `json:"import" yaml:"import" mapstructure:"import"`
}
