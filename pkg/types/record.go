// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ImportStatus records the outcome of importing one page.
type ImportStatus string

const (
	ImportDone     ImportStatus = "imported"
	ImportRedirect ImportStatus = "redirect"
	ImportFailed   ImportStatus = "failed"
)

// ImportRecord is one row of the import ledger.
type ImportRecord struct {
	// URL is the page that was imported.
	URL string `json:"url" yaml:"url"`

	// Date is the publication date path segment (YYYY/MM/DD or "unknown").
	Date string `json:"date" yaml:"date"`

	// Path is the sink path of the written document.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	Status ImportStatus `json:"status" yaml:"status"`

	// Error holds the failure message for failed imports.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// ImportedAt is when the record was written.
	ImportedAt time.Time `json:"imported_at" yaml:"imported_at"`
}
