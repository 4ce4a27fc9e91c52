// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/pdiddy/blog-importer/internal/assetstore"
	"github.com/pdiddy/blog-importer/internal/fetch"
	"github.com/pdiddy/blog-importer/internal/sink"
)

// ByReference resolves references through the asset store's copy-by-reference
// path and substitutes the canonical URI.
type ByReference struct {
	Store *assetstore.Store
}

func (r ByReference) Resolve(ctx context.Context, ref Ref) (string, error) {
	res, err := r.Store.Resolve(ctx, Locator(ref.Literal))
	if err != nil {
		return "", err
	}
	return res.CanonicalURI, nil
}

// ByBytes downloads each asset and stores the bytes. Any source failure
// other than a timeout counts as not found and is remembered for the run.
type ByBytes struct {
	Store   *assetstore.Store
	Fetcher assetstore.Fetcher
}

func (r ByBytes) Resolve(ctx context.Context, ref Ref) (string, error) {
	loc := Locator(ref.Literal)
	if res, notFound, ok := r.Store.LookupCached(loc); ok {
		if notFound {
			return "", fmt.Errorf("%w: %s", assetstore.ErrNotFound, loc)
		}
		return res.CanonicalURI, nil
	}
	resp, err := r.Fetcher.Fetch(ctx, loc)
	if err != nil {
		if fetch.IsTimeout(err) || ctx.Err() != nil {
			return "", fmt.Errorf("%w: %s: %w", assetstore.ErrSourceUnreachable, loc, err)
		}
		r.Store.MarkNotFound(loc)
		return "", fmt.Errorf("%w: %s: %w", assetstore.ErrNotFound, loc, err)
	}
	res, err := r.Store.ResolveFromBytes(ctx, resp.Body, resp.ContentType, loc)
	if err != nil {
		return "", err
	}
	return res.CanonicalURI, nil
}

// Local stores assets next to the document in a sink as
// {Dir}/{Name}[-{index}]{ext} and substitutes the absolute path.
type Local struct {
	Sink    sink.Sink
	Fetcher assetstore.Fetcher
	Dir     string
	// Name is the sanitized document name.
	Name string
}

func (r Local) Resolve(ctx context.Context, ref Ref) (string, error) {
	loc := Locator(ref.Literal)
	resp, err := r.Fetcher.Fetch(ctx, loc)
	if err != nil {
		return "", classifyFetch(loc, err)
	}
	name := r.Name
	if ref.Index > 0 {
		name = fmt.Sprintf("%s-%d", name, ref.Index)
	}
	p := path.Join(r.Dir, name+Extension(loc, resp.Header.Get("Content-Disposition"), resp.ContentType))
	if err := r.Sink.WriteBlob(ctx, p, resp.Body); err != nil {
		return "", fmt.Errorf("storing %s: %w", p, err)
	}
	return "/" + p, nil
}

// Locator percent-encodes a reference taken from markup so it can be fetched.
func Locator(literal string) string {
	u, err := url.Parse(strings.TrimSpace(literal))
	if err != nil {
		return literal
	}
	return u.String()
}

// Extension picks a file extension for an asset from its URL path, then
// its Content-Disposition filename, then its content type.
func Extension(locator, disposition, contentType string) string {
	if u, err := url.Parse(locator); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return ext
		}
	}
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if ext := path.Ext(params["filename"]); ext != "" {
				return ext
			}
		}
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if _, sub, ok := strings.Cut(mt, "/"); ok && sub != "" {
			return "." + sub
		}
	}
	return ""
}

// classifyFetch treats only a definite not-found answer as missing.
func classifyFetch(loc string, err error) error {
	if fetch.IsNotFound(err) {
		return fmt.Errorf("%w: %s: %w", assetstore.ErrNotFound, loc, err)
	}
	return fmt.Errorf("%w: %s: %w", assetstore.ErrSourceUnreachable, loc, err)
}
