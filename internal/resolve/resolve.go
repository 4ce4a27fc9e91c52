// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve rewrites the asset references of a serialized document to
// their resolved locations. Only references still present in the text are
// resolved; assets reported missing keep their original reference.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/blog-importer/internal/assetstore"
	"github.com/pdiddy/blog-importer/internal/doctree"
)

// DefaultWorkers bounds concurrent resolutions within one document.
const DefaultWorkers = 4

// Ref is one distinct reference of a document. Index is its position among
// the document's distinct asset references, in document order.
type Ref struct {
	Literal string
	Index   int
}

// Resolver maps a reference to the text that replaces it. Errors wrapping
// assetstore.ErrNotFound leave the reference untouched; any other error
// fails the document.
type Resolver interface {
	Resolve(ctx context.Context, ref Ref) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, ref Ref) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, ref Ref) (string, error) { return f(ctx, ref) }

// Result is a rewritten document.
type Result struct {
	Text string
	// Rewritten counts distinct references that were replaced.
	Rewritten int
	// Missing lists references left untouched because the asset was not
	// found, in document order.
	Missing []string
}

// Pass rewrites asset references through a Resolver.
type Pass struct {
	Resolver Resolver
	Workers  int
	Logger   zerolog.Logger
}

type outcome struct {
	replacement string
	missing     bool
}

// Run resolves refs against text. Embed targets and references absent from
// text are skipped without any resolution. Duplicate references are
// resolved once and every occurrence is replaced.
func (p *Pass) Run(ctx context.Context, text string, refs []doctree.Reference) (Result, error) {
	var todo []Ref
	seen := make(map[string]bool)
	for _, r := range refs {
		if r.Embed || r.Literal == "" || seen[r.Literal] {
			continue
		}
		seen[r.Literal] = true
		if !strings.Contains(text, r.Literal) {
			p.Logger.Debug().Str("ref", r.Literal).Msg("reference not in output, skipping")
			continue
		}
		todo = append(todo, Ref{Literal: r.Literal, Index: len(todo)})
	}
	if len(todo) == 0 {
		return Result{Text: text}, nil
	}

	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	outcomes := make([]outcome, len(todo))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ref := range todo {
		g.Go(func() error {
			repl, err := p.Resolver.Resolve(gctx, ref)
			switch {
			case err == nil:
				outcomes[i].replacement = repl
			case errors.Is(err, assetstore.ErrNotFound):
				p.Logger.Warn().Err(err).Str("ref", ref.Literal).Msg("asset not found, keeping original reference")
				outcomes[i].missing = true
			default:
				return fmt.Errorf("resolving %s: %w", ref.Literal, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{}
	order := make([]int, len(todo))
	for i, o := range outcomes {
		order[i] = i
		if o.missing {
			res.Missing = append(res.Missing, todo[i].Literal)
		} else if o.replacement != "" {
			res.Rewritten++
		}
	}
	res.Text = substitute(text, todo, outcomes, order)
	return res, nil
}

// substitute replaces every reference in one left-to-right scan. At each
// position longer literals win, ties going to the earlier reference, so a
// literal that is a substring of another never rewrites inside it. Missing
// references map to themselves to shield their text.
func substitute(text string, todo []Ref, outcomes []outcome, order []int) string {
	sort.SliceStable(order, func(a, b int) bool {
		return len(todo[order[a]].Literal) > len(todo[order[b]].Literal)
	})
	oldnew := make([]string, 0, 2*len(order))
	for _, i := range order {
		repl := outcomes[i].replacement
		if outcomes[i].missing || repl == "" {
			repl = todo[i].Literal
		}
		oldnew = append(oldnew, todo[i].Literal, repl)
	}
	return strings.NewReplacer(oldnew...).Replace(text)
}
