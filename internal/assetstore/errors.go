// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assetstore

import (
	"errors"

	"github.com/pdiddy/blog-importer/internal/blobstore"
)

var (
	// ErrSourceUnreachable means the asset source could not be read for a
	// reason other than an explicit not-found answer (timeouts included).
	ErrSourceUnreachable = errors.New("asset source unreachable")

	// ErrNotFound means the source explicitly reported the asset absent, or
	// could not be reached while computing its fingerprint. Callers keep the
	// original reference.
	ErrNotFound = errors.New("asset not found")

	// ErrStoreUnavailable means the existence check against the blob store
	// failed.
	ErrStoreUnavailable = errors.New("blob store unavailable")

	// ErrUploadFailed means the payload (or server-side copy) did not reach
	// the canonical URI.
	ErrUploadFailed = errors.New("asset upload failed")

	// ErrRedirectCopyUnsupported is the copy failure class that triggers the
	// download and re-upload fallback.
	ErrRedirectCopyUnsupported = blobstore.ErrRedirectCopyUnsupported
)
