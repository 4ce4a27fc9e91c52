// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assetstore turns asset payloads and source references into
// canonical, content-addressed blob URIs. Each distinct fingerprint is
// uploaded at most once: the blob store's existence check is authoritative,
// and a per-run cache keyed by source reference avoids repeating round trips
// for references already seen.
package assetstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/blog-importer/internal/fetch"
	"github.com/pdiddy/blog-importer/internal/hasher"
	"github.com/pdiddy/blog-importer/pkg/types"
)

// Default timeouts for blob store operations.
const (
	DefaultHeadTimeout   = 10 * time.Second
	DefaultUploadTimeout = 10 * time.Second
	DefaultCopyTimeout   = 60 * time.Second
	DefaultFetchTimeout  = fetch.DefaultTimeout
)

const defaultContentType = "application/octet-stream"

// Remote is the blob store the canonical URIs live in.
type Remote interface {
	HeadExists(ctx context.Context, uri string) (bool, error)
	Put(ctx context.Context, uri string, payload []byte, contentType string) error
	// ServerSideCopy asks the store to read source itself. Failures the
	// store cannot recover from because the source redirects must satisfy
	// errors.Is(err, ErrRedirectCopyUnsupported).
	ServerSideCopy(ctx context.Context, uri, source string) error
}

// Fetcher reads asset sources. *fetch.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) (*fetch.Response, error)
	Stream(ctx context.Context, locator string, fn func(*http.Response) error) error
}

// Digester computes fingerprints. hasher.Hasher implements it.
type Digester interface {
	Sum(b []byte) string
	Stream(r io.Reader) (string, int64, error)
}

// Stats counts the work a Store has done.
type Stats struct {
	Heads     int64
	Puts      int64
	Copies    int64
	Fetches   int64
	CacheHits int64
}

// Store resolves assets to canonical URIs of the form {BaseURI}/{fingerprint}.
type Store struct {
	Remote  Remote
	Fetcher Fetcher
	BaseURI string
	// Hasher defaults to SHA-1.
	Hasher Digester
	// Cache is created on first use when nil.
	Cache *Cache

	HeadTimeout   time.Duration
	UploadTimeout time.Duration
	CopyTimeout   time.Duration
	FetchTimeout  time.Duration

	Logger zerolog.Logger

	// inflight collapses concurrent resolutions of one reference and
	// concurrent existence checks, copies and uploads of one canonical URI.
	inflight singleflight.Group

	heads, puts, copies, fetches, hits atomic.Int64
	cacheInit                          atomic.Pointer[Cache]
}

// New builds a Store from configuration.
func New(cfg types.StoreConfig, remote Remote, fetcher Fetcher, logger zerolog.Logger) (*Store, error) {
	if cfg.BaseURI == "" {
		return nil, errors.New("store base URI is required")
	}
	h, err := hasher.Parse(cfg.Hash)
	if err != nil {
		return nil, err
	}
	return &Store{
		Remote:        remote,
		Fetcher:       fetcher,
		BaseURI:       cfg.BaseURI,
		Hasher:        h,
		Cache:         NewCache(),
		HeadTimeout:   cfg.HeadTimeout,
		UploadTimeout: cfg.UploadTimeout,
		CopyTimeout:   cfg.CopyTimeout,
		Logger:        logger,
	}, nil
}

// CanonicalURI returns the blob URI for fingerprint.
func (s *Store) CanonicalURI(fingerprint string) string {
	return strings.TrimRight(s.BaseURI, "/") + "/" + fingerprint
}

// LookupCached reports what a previous resolution of ref produced without
// any I/O. ok is false when ref has not been resolved in this run.
func (s *Store) LookupCached(ref string) (res *types.ExternalResource, notFound bool, ok bool) {
	e, ok := s.cache().Get(ref)
	if !ok {
		return nil, false, false
	}
	return e.Resource, e.NotFound, true
}

// MarkNotFound records that ref could not be obtained, so later lookups in
// this run report it missing without I/O.
func (s *Store) MarkNotFound(ref string) {
	s.cache().Put(ref, Entry{NotFound: true})
}

// Resolve returns the cached outcome for ref or resolves it by reference.
// Concurrent calls for the same ref share one resolution.
func (s *Store) Resolve(ctx context.Context, ref string) (*types.ExternalResource, error) {
	if res, ok, err := s.cached(ref); ok {
		return res, err
	}
	v, err, _ := s.inflight.Do("ref:"+ref, func() (any, error) {
		// A resolution that finished since the lookup above is not repeated.
		if res, ok, err := s.cached(ref); ok {
			return res, err
		}
		return s.ResolveFromReference(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.ExternalResource).Clone(), nil
}

func (s *Store) cached(ref string) (*types.ExternalResource, bool, error) {
	res, notFound, ok := s.LookupCached(ref)
	if !ok {
		return nil, false, nil
	}
	s.hits.Add(1)
	if notFound {
		return nil, true, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return res, true, nil
}

// ResolveFromBytes stores payload under its fingerprint, uploading only when
// the blob store does not have it yet. The returned record carries no
// payload. A non-empty sourceRef is cached.
func (s *Store) ResolveFromBytes(ctx context.Context, payload []byte, contentType, sourceRef string) (*types.ExternalResource, error) {
	if contentType == "" {
		contentType = defaultContentType
	}
	res := &types.ExternalResource{
		SourceReference:    sourceRef,
		ContentFingerprint: s.digester().Sum(payload),
		ContentType:        contentType,
		ContentLength:      int64(len(payload)),
		Payload:            payload,
	}
	res.CanonicalURI = s.CanonicalURI(res.ContentFingerprint)

	_, err, _ := s.inflight.Do(res.CanonicalURI, func() (any, error) {
		exists, err := s.exists(ctx, res.CanonicalURI)
		if err != nil || exists {
			return nil, err
		}
		return nil, s.upload(ctx, res)
	})
	res.Payload = nil
	if err != nil {
		return nil, err
	}
	s.cache().Put(sourceRef, Entry{Resource: res})
	return res, nil
}

// ResolveFromReference resolves an asset known only by its source locator.
// It hashes the source, checks the blob store, and asks the store to copy
// the source itself. When the store cannot follow the source's redirect the
// bytes are downloaded and uploaded directly.
//
// A source that cannot be read while hashing, or that explicitly answers
// not-found, yields an error wrapping ErrNotFound. Timeouts and store
// failures yield other errors and are never reported as not-found.
func (s *Store) ResolveFromReference(ctx context.Context, ref string) (*types.ExternalResource, error) {
	log := s.Logger.With().Str("ref", ref).Logger()
	ctx = log.WithContext(ctx)

	res, err := s.computeTargetHash(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.cache().Put(ref, Entry{NotFound: true})
		}
		return nil, err
	}

	v, err, _ := s.inflight.Do("copy:"+res.CanonicalURI, func() (any, error) {
		return s.storeByReference(ctx, res)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.cache().Put(ref, Entry{NotFound: true})
		}
		return nil, err
	}
	out := v.(*types.ExternalResource).Clone()
	out.SourceReference = ref
	s.cache().Put(ref, Entry{Resource: out})
	return out, nil
}

// storeByReference makes sure the blob for res exists, copying it from its
// source or falling back to a download.
func (s *Store) storeByReference(ctx context.Context, res *types.ExternalResource) (*types.ExternalResource, error) {
	log := zerolog.Ctx(ctx)
	exists, err := s.exists(ctx, res.CanonicalURI)
	if err != nil {
		return nil, err
	}
	if exists {
		log.Debug().Str("uri", res.CanonicalURI).Msg("asset already stored")
		return res, nil
	}

	err = s.copy(ctx, res.CanonicalURI, res.SourceReference)
	switch {
	case err == nil:
		log.Debug().Str("uri", res.CanonicalURI).Msg("asset copied by reference")
		return res, nil
	case errors.Is(err, ErrRedirectCopyUnsupported):
		log.Info().Err(err).Msg("server-side copy refused, downloading asset")
		return s.fallbackDownload(ctx, res)
	default:
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
}

// Stats returns a snapshot of the store's counters.
func (s *Store) Stats() Stats {
	return Stats{
		Heads:     s.heads.Load(),
		Puts:      s.puts.Load(),
		Copies:    s.copies.Load(),
		Fetches:   s.fetches.Load(),
		CacheHits: s.hits.Load(),
	}
}

// computeTargetHash streams the source through the hasher.
func (s *Store) computeTargetHash(ctx context.Context, ref string) (*types.ExternalResource, error) {
	ctx, cancel := withTimeout(ctx, s.FetchTimeout, DefaultFetchTimeout)
	defer cancel()

	s.fetches.Add(1)
	res := &types.ExternalResource{SourceReference: ref}
	err := s.Fetcher.Stream(ctx, ref, func(resp *http.Response) error {
		fp, n, err := s.digester().Stream(resp.Body)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", ref, err)
		}
		res.ContentFingerprint = fp
		res.ContentLength = n
		res.ContentType = resp.Header.Get("Content-Type")
		return nil
	})
	if err != nil {
		if fetch.IsTimeout(err) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnreachable, ref, err)
		}
		zerolog.Ctx(ctx).Warn().Err(err).Msg("asset source unreadable, treating as missing")
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, ref, err)
	}
	if res.ContentType == "" {
		res.ContentType = defaultContentType
	}
	res.CanonicalURI = s.CanonicalURI(res.ContentFingerprint)
	return res, nil
}

func (s *Store) fallbackDownload(ctx context.Context, res *types.ExternalResource) (*types.ExternalResource, error) {
	ref := res.SourceReference
	fctx, cancel := withTimeout(ctx, s.FetchTimeout, DefaultFetchTimeout)
	defer cancel()

	s.fetches.Add(1)
	resp, err := s.Fetcher.Fetch(fctx, ref)
	if err != nil {
		if fetch.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, ref, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnreachable, ref, err)
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = res.ContentType
	}
	// The source may have changed since it was hashed; the downloaded bytes
	// decide the address.
	if s.digester().Sum(resp.Body) != res.ContentFingerprint {
		return s.ResolveFromBytes(ctx, resp.Body, contentType, ref)
	}

	out := res.Clone()
	out.ContentType = contentType
	out.ContentLength = int64(len(resp.Body))
	out.Payload = resp.Body
	_, err, _ = s.inflight.Do(out.CanonicalURI, func() (any, error) {
		return nil, s.upload(ctx, out)
	})
	out.Payload = nil
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) exists(ctx context.Context, uri string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.HeadTimeout, DefaultHeadTimeout)
	defer cancel()

	s.heads.Add(1)
	ok, err := s.Remote.HeadExists(ctx, uri)
	if err != nil {
		return false, fmt.Errorf("%w: checking %s: %w", ErrStoreUnavailable, uri, err)
	}
	return ok, nil
}

func (s *Store) upload(ctx context.Context, res *types.ExternalResource) error {
	ctx, cancel := withTimeout(ctx, s.UploadTimeout, DefaultUploadTimeout)
	defer cancel()

	s.puts.Add(1)
	if err := s.Remote.Put(ctx, res.CanonicalURI, res.Payload, res.ContentType); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUploadFailed, res.CanonicalURI, err)
	}
	s.Logger.Debug().
		Str("uri", res.CanonicalURI).
		Int64("bytes", res.ContentLength).
		Msg("asset uploaded")
	return nil
}

func (s *Store) copy(ctx context.Context, uri, source string) error {
	ctx, cancel := withTimeout(ctx, s.CopyTimeout, DefaultCopyTimeout)
	defer cancel()

	s.copies.Add(1)
	return s.Remote.ServerSideCopy(ctx, uri, source)
}

func (s *Store) digester() Digester {
	if s.Hasher != nil {
		return s.Hasher
	}
	return hasher.Hasher{}
}

func (s *Store) cache() *Cache {
	if s.Cache != nil {
		return s.Cache
	}
	if c := s.cacheInit.Load(); c != nil {
		return c
	}
	s.cacheInit.CompareAndSwap(nil, NewCache())
	return s.cacheInit.Load()
}

func withTimeout(ctx context.Context, d, def time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = def
	}
	return context.WithTimeout(ctx, d)
}
