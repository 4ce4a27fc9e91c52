// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package importer drives one page through the conversion pipeline: fetch,
// transform, serialize, resolve assets, write. Related documents produced
// by the transformer go through the same steps before the page itself.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/blog-importer/internal/assetstore"
	"github.com/pdiddy/blog-importer/internal/doctree"
	"github.com/pdiddy/blog-importer/internal/fetch"
	"github.com/pdiddy/blog-importer/internal/markdown"
	"github.com/pdiddy/blog-importer/internal/resolve"
	"github.com/pdiddy/blog-importer/internal/sink"
	"github.com/pdiddy/blog-importer/internal/transform"
	"github.com/pdiddy/blog-importer/pkg/types"
)

// DefaultBatchSize caps concurrent page imports.
const DefaultBatchSize = 10

// ErrPageUnavailable is returned when the page itself cannot be fetched.
var ErrPageUnavailable = errors.New("page unavailable")

// Ledger remembers import outcomes. *ledger.Ledger implements it.
type Ledger interface {
	Get(ctx context.Context, url string) (types.ImportRecord, bool, error)
	Put(ctx context.Context, rec types.ImportRecord) error
}

// Importer converts pages into documents in a sink.
type Importer struct {
	// Pages fetches the pages to import.
	Pages transform.PageFetcher
	// Assets fetches asset bytes for the bytes and local strategies.
	Assets      assetstore.Fetcher
	Transformer transform.Transformer
	// Store is not used by the local strategy and may be nil there.
	Store *assetstore.Store
	Sink  sink.Sink
	// Ledger is optional.
	Ledger   Ledger
	Strategy types.ResolveStrategy
	// Force re-imports pages the ledger already knows.
	Force bool
	// Workers bounds concurrent asset resolutions per document.
	Workers int
	// BatchSize bounds concurrent pages in ImportBatch.
	BatchSize int
	Logger    zerolog.Logger
}

// PageResult describes one ImportPage call.
type PageResult struct {
	URL  string
	Date string
	// Path is the sink path of the page's document.
	Path string
	// Related lists the sink paths of related documents written.
	Related []string
	// Rewritten counts asset references substituted across all documents.
	Rewritten int
	// Missing lists asset references left untouched because their source
	// does not exist.
	Missing []string
	Skipped bool
	// Reason explains a skip.
	Reason string
}

// ImportPage fetches, converts and writes url. Pages recorded in the ledger
// are skipped unless Force is set.
func (im *Importer) ImportPage(ctx context.Context, url string) (*PageResult, error) {
	log := im.Logger.With().Str("url", url).Logger()
	ctx = log.WithContext(ctx)

	if reason, skip := im.known(ctx, url); skip {
		log.Debug().Str("reason", reason).Msg("skipping page")
		return &PageResult{URL: url, Skipped: true, Reason: reason}, nil
	}

	resp, err := im.Pages.Fetch(ctx, url)
	if err != nil {
		status := types.ImportFailed
		if fetch.IsRedirect(err) {
			status = types.ImportRedirect
		}
		im.record(ctx, types.ImportRecord{URL: url, Status: status, Error: err.Error()})
		return nil, fmt.Errorf("%w: %s: %w", ErrPageUnavailable, url, err)
	}

	doc, err := im.Transformer.Transform(ctx, transform.Page{URL: url, HTML: resp.Body})
	if err != nil {
		im.record(ctx, types.ImportRecord{URL: url, Status: types.ImportFailed, Error: err.Error()})
		return nil, fmt.Errorf("transforming %s: %w", url, err)
	}

	out := &PageResult{URL: url, Date: doc.Date}
	for _, rel := range doc.Related {
		p, res, err := im.write(ctx, rel.Dir, rel.Name, rel.Body)
		if err != nil {
			im.record(ctx, types.ImportRecord{URL: url, Date: doc.Date, Status: types.ImportFailed, Error: err.Error()})
			return nil, err
		}
		out.Related = append(out.Related, p)
		out.Rewritten += res.Rewritten
		out.Missing = append(out.Missing, res.Missing...)
	}

	p, res, err := im.write(ctx, doc.Dir, doc.Name, doc.Body)
	if err != nil {
		im.record(ctx, types.ImportRecord{URL: url, Date: doc.Date, Status: types.ImportFailed, Error: err.Error()})
		return nil, err
	}
	out.Path = p
	out.Rewritten += res.Rewritten
	out.Missing = append(out.Missing, res.Missing...)

	im.record(ctx, types.ImportRecord{URL: url, Date: doc.Date, Path: p, Status: types.ImportDone})
	log.Info().
		Str("path", p).
		Str("date", doc.Date).
		Int("related", len(out.Related)).
		Int("rewritten", out.Rewritten).
		Int("missing", len(out.Missing)).
		Msg("page imported")
	return out, nil
}

// BatchResult holds the outcome of a batch import.
type BatchResult struct {
	Imported int
	Skipped  int
	Failed   int
	Pages    []*PageResult
}

// Total returns the number of pages processed.
func (r BatchResult) Total() int {
	return r.Imported + r.Skipped + r.Failed
}

// HasFailures reports whether any page failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ImportBatch imports urls with up to BatchSize pages in flight, then
// prints per-page status in input order followed by a summary. Individual
// failures do not stop the batch.
func (im *Importer) ImportBatch(ctx context.Context, urls []string, w io.Writer) BatchResult {
	results := make([]*PageResult, len(urls))
	errs := make([]error, len(urls))

	var g errgroup.Group
	g.SetLimit(im.batchSize())
	for i, u := range urls {
		g.Go(func() error {
			results[i], errs[i] = im.ImportPage(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	var result BatchResult
	for i, u := range urls {
		switch res := results[i]; {
		case errs[i] != nil:
			fmt.Fprintf(w, "failed:  %s (%v)\n", u, errs[i])
			result.Failed++
		case res.Skipped:
			fmt.Fprintf(w, "skipped: %s (%s)\n", u, res.Reason)
			result.Skipped++
			result.Pages = append(result.Pages, res)
		default:
			fmt.Fprintf(w, "imported: %s -> %s\n", u, res.Path)
			for _, m := range res.Missing {
				fmt.Fprintf(w, "  warning: asset not found: %s\n", m)
			}
			result.Imported++
			result.Pages = append(result.Pages, res)
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d imported, %d skipped, %d failed (total: %d)\n",
		result.Imported, result.Skipped, result.Failed, result.Total())
	return result
}

// write serializes body, resolves its asset references and stores the
// result under dir/name.md.
func (im *Importer) write(ctx context.Context, dir, name string, body *doctree.Node) (string, resolve.Result, error) {
	p := sink.DocumentPath(dir, name)
	pass := resolve.Pass{
		Resolver: im.resolver(dir, name),
		Workers:  im.Workers,
		Logger:   *zerolog.Ctx(ctx),
	}
	res, err := pass.Run(ctx, markdown.Serialize(body), doctree.References(body))
	if err != nil {
		return "", res, fmt.Errorf("resolving assets for %s: %w", p, err)
	}
	if err := im.Sink.Write(ctx, p, res.Text); err != nil {
		return "", res, fmt.Errorf("writing %s: %w", p, err)
	}
	return p, res, nil
}

func (im *Importer) resolver(dir, name string) resolve.Resolver {
	switch im.Strategy {
	case types.StrategyBytes:
		return resolve.ByBytes{Store: im.Store, Fetcher: im.Assets}
	case types.StrategyLocal:
		return resolve.Local{Sink: im.Sink, Fetcher: im.Assets, Dir: dir, Name: sink.Sanitize(name)}
	default:
		return resolve.ByReference{Store: im.Store}
	}
}

// known reports whether the ledger already holds an outcome for url.
func (im *Importer) known(ctx context.Context, url string) (string, bool) {
	if im.Ledger == nil || im.Force {
		return "", false
	}
	rec, ok, err := im.Ledger.Get(ctx, url)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("cannot read ledger")
		return "", false
	}
	if !ok {
		return "", false
	}
	if rec.Status == types.ImportDone {
		return "already imported", true
	}
	return "previously " + string(rec.Status), true
}

// record stores rec. A failure never replaces an earlier successful import,
// so a forced retry that fails leaves the imported record in place.
func (im *Importer) record(ctx context.Context, rec types.ImportRecord) {
	if im.Ledger == nil {
		return
	}
	if rec.Status != types.ImportDone {
		prev, ok, err := im.Ledger.Get(ctx, rec.URL)
		if err == nil && ok && prev.Status == types.ImportDone {
			zerolog.Ctx(ctx).Warn().Str("status", string(rec.Status)).Str("error", rec.Error).
				Msg("keeping earlier import record")
			return
		}
	}
	if err := im.Ledger.Put(ctx, rec); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("cannot record import")
	}
}

func (im *Importer) batchSize() int {
	if im.BatchSize > 0 {
		return im.BatchSize
	}
	return DefaultBatchSize
}
