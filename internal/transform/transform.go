// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transform holds the per-site rulesets that turn a fetched page
// into a document tree plus the related documents (authors, topics,
// products) it refers to.
package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/pdiddy/blog-importer/internal/doctree"
	"github.com/pdiddy/blog-importer/internal/fetch"
)

// Output layout under the sink root.
const (
	OutputPath  = "en"
	DirAuthors  = OutputPath + "/authors"
	DirPosts    = OutputPath + "/drafts/migrated"
	DirTopics   = OutputPath + "/topics"
	DirProducts = OutputPath + "/products"
)

// UnknownDate is used when a page carries no usable publish date.
const UnknownDate = "unknown"

// ErrNoContent is returned when a page has no element the ruleset can
// convert.
var ErrNoContent = errors.New("page has no convertible content")

// Page is a fetched page.
type Page struct {
	URL  string
	HTML []byte
}

// Related is an additional document produced while transforming a page.
type Related struct {
	Dir  string
	Name string
	Body *doctree.Node
}

// Result is a transformed page.
type Result struct {
	// Name is the document's file name without extension.
	Name string
	// Dir is the directory the document is written to.
	Dir string
	// Date is the publish date as YYYY/MM/DD, or UnknownDate.
	Date    string
	Body    *doctree.Node
	Related []Related
}

// Transformer converts a page.
type Transformer interface {
	Transform(ctx context.Context, page Page) (*Result, error)
}

// PageFetcher downloads related pages. *fetch.Client implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, locator string) (*fetch.Response, error)
}

// Checker reports whether a document is already stored. sink.Sink
// implements it.
type Checker interface {
	Exists(ctx context.Context, p string) (bool, error)
}

// Generic converts the page's <main>, <article> or <body> without any
// site-specific rules.
type Generic struct {
	// Dir is the output directory prefix; the publish date is appended.
	// Defaults to DirPosts.
	Dir    string
	Logger zerolog.Logger
}

func (g *Generic) Transform(ctx context.Context, page Page) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", page.URL, err)
	}
	content := doc.Find("main").First()
	if content.Length() == 0 {
		content = doc.Find("article").First()
	}
	if content.Length() == 0 {
		content = doc.Find("body").First()
	}
	if content.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", page.URL, ErrNoContent)
	}
	absolutizeImages(content, page.URL)

	date := publishedDate(doc)
	dir := g.Dir
	if dir == "" {
		dir = DirPosts
	}
	g.Logger.Debug().Str("url", page.URL).Str("date", date).Msg("generic transform")
	return &Result{
		Name: PageName(page.URL),
		Dir:  path.Join(dir, date),
		Date: date,
		Body: doctree.FromNode(content.Nodes[0]),
	}, nil
}

// PageName returns the last path segment of locator without its extension.
func PageName(locator string) string {
	p := locator
	if u, err := url.Parse(locator); err == nil {
		p = u.Path
	}
	base := path.Base(strings.TrimRight(p, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// publishedDate reads the article:published_time meta tag.
func publishedDate(doc *goquery.Document) string {
	v, ok := doc.Find(`[property="article:published_time"]`).First().Attr("content")
	if !ok {
		return UnknownDate
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
			return t.Format("2006/01/02")
		}
	}
	return UnknownDate
}

// absolutizeImages resolves relative image sources against base so they
// can be fetched later.
func absolutizeImages(sel *goquery.Selection, base string) {
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return
	}
	sel.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		ref, err := url.Parse(strings.TrimSpace(src))
		if err != nil || ref.IsAbs() || src == "" {
			return
		}
		img.SetAttr("src", b.ResolveReference(ref).String())
	})
}

func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
