// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/pdiddy/blog-importer/internal/doctree"
	"github.com/pdiddy/blog-importer/internal/fetch"
	"github.com/pdiddy/blog-importer/internal/sink"
)

// BrowserUserAgent is sent when resolving embeds; some players only expose
// their canonical link to browsers.
const BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_14_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.132 Safari/537.36"

// EmbedPattern rewrites the src of matching embed iframes.
type EmbedPattern struct {
	Match   *regexp.Regexp
	Extract func(ctx context.Context, src string) string
}

// Blog is the ruleset for the migrated blog's article pages.
type Blog struct {
	// Fetcher downloads author pages.
	Fetcher PageFetcher
	// Existing, when set, suppresses related documents already stored.
	Existing Checker
	// EmbedFetcher resolves embed players. Defaults to a client sending
	// BrowserUserAgent.
	EmbedFetcher PageFetcher
	// Embeds defaults to SoundCloud player resolution.
	Embeds []EmbedPattern
	Logger zerolog.Logger
}

var (
	backgroundURL = regexp.MustCompile(`background-image\s*:\s*url\(([^)]+)\)`)
	whitespace    = regexp.MustCompile(`\s`)
	wordRun       = regexp.MustCompile(`[A-Za-z0-9_]+`)
)

// Transform applies the blog rules to page.
func (b *Blog) Transform(ctx context.Context, page Page) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", page.URL, err)
	}
	main := doc.Find(".main-content").First()
	if main.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", page.URL, ErrNoContent)
	}
	log := b.Logger.With().Str("url", page.URL).Logger()

	postedOn := strings.ToLower(strings.TrimSpace(doc.Find(".post-date").Text()))
	date := postDate(doc, postedOn)

	main.Find("hr").Remove()
	main.Find(".hidden-md-down, .hidden-xs-down").Remove()

	doc.Find(".article-header").AfterHtml("<hr>")
	heroHr := doc.Find(".article-hero").AfterHtml("<hr>").Next()
	heroHr.AfterHtml("<hr>")

	res := &Result{Name: PageName(page.URL), Date: date}
	res.Dir = path.Join(DirPosts, date)

	author, authorLink := byline(doc)
	heroHr.AfterHtml("<p>by " + html.EscapeString(author) + "</p><p>" + html.EscapeString(postedOn) + "</p>")
	if rel, err := b.authorDocument(ctx, page.URL, author, authorLink); err != nil {
		return nil, err
	} else if rel != nil {
		res.Related = append(res.Related, *rel)
	}

	topics, topicDocs := b.topics(ctx, doc)
	products, productDocs := b.products(ctx, doc)
	res.Related = append(res.Related, topicDocs...)
	res.Related = append(res.Related, productDocs...)

	main.AppendHtml("<hr><p>Topics: " + topics + "</p><p>Products: " + html.EscapeString(products) + "</p>")

	if doc.Find(".article-header").Length() == 0 {
		row := doc.Find(".article-title-row")
		doc.Find(".article-content").PrependSelection(row)
		row.AfterHtml("<hr>")
	}
	for _, sel := range []string{
		".article-collection-header",
		".article-author-wrap",
		".article-footer",
		"#article-nav-wrap",
		".article-body-products",
		".comments",
	} {
		doc.Find(sel).Remove()
	}

	b.replaceEmbeds(ctx, main)
	absolutizeImages(main, page.URL)

	res.Body = doctree.FromNode(main.Nodes[0])
	log.Debug().
		Str("date", date).
		Int("related", len(res.Related)).
		Msg("blog transform")
	return res, nil
}

// postDate reads .post-date as MM-DD-YYYY, falling back to the
// article:published_time meta tag.
func postDate(doc *goquery.Document, postedOn string) string {
	if postedOn == "" {
		return publishedDate(doc)
	}
	if t, err := time.Parse("1-2-2006", postedOn); err == nil {
		return t.Format("2006/01/02")
	}
	return UnknownDate
}

func byline(doc *goquery.Document) (name, link string) {
	a := doc.Find(".author-link").First()
	name, _, _ = strings.Cut(a.Text(), ",")
	link, _ = a.Attr("href")
	return strings.TrimSpace(name), link
}

// authorDocument converts the author's page header into a related document.
func (b *Blog) authorDocument(ctx context.Context, pageURL, author, link string) (*Related, error) {
	name := whitespace.ReplaceAllString(strings.ToLower(author), "-")
	if name == "" || link == "" {
		return nil, nil
	}
	if b.exists(ctx, DirAuthors, name) {
		return nil, nil
	}
	link = resolveURL(pageURL, link)
	resp, err := b.Fetcher.Fetch(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("fetching author page %s: %w", link, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing author page %s: %w", link, err)
	}
	header := doc.Find(".author-header").First()
	if header.Length() == 0 {
		zerolog.Ctx(ctx).Warn().Str("author", author).Msg("author page has no header")
		return nil, nil
	}

	img := header.Find(".author-img")
	style, _ := img.Attr("style")
	if m := backgroundURL.FindStringSubmatch(style); m != nil {
		src := strings.Trim(strings.TrimSpace(m[1]), `'"`)
		header.PrependHtml(`<img src="` + html.EscapeString(src) + `">`)
	}
	img.Remove()
	absolutizeImages(header, link)

	return &Related{Dir: DirAuthors, Name: name, Body: doctree.FromNode(header.Nodes[0])}, nil
}

// topics returns the "Topics:" line as HTML and one document per new topic.
func (b *Blog) topics(ctx context.Context, doc *goquery.Document) (string, []Related) {
	var parts []string
	doc.Find(".article-footer-topics-wrap .text").Each(func(_ int, s *goquery.Selection) {
		h, _ := s.Html()
		parts = append(parts, h)
	})
	line := strings.Join(parts, ", ")

	var docs []Related
	for _, t := range strings.Split(line, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		name := strings.ToLower(strings.ReplaceAll(whitespace.ReplaceAllString(t, "-"), "&amp;", ""))
		if b.exists(ctx, DirTopics, name) {
			continue
		}
		body, err := doctree.FromHTML("<h1>" + t + "</h1>")
		if err != nil {
			continue
		}
		b.Logger.Info().Str("topic", name).Msg("found a new topic")
		docs = append(docs, Related{Dir: DirTopics, Name: name, Body: body})
	}
	return line, docs
}

// products returns the "Products:" line and one document per new product.
func (b *Blog) products(ctx context.Context, doc *goquery.Document) (string, []Related) {
	var names []string
	var docs []Related
	doc.Find(".sidebar-products-row .product-team-link").Each(func(_ int, p *goquery.Selection) {
		href, _ := p.Attr("href")
		src, _ := p.Find("img").Attr("src")
		name := PageName(href)
		// some links point at the site root; the image name identifies the product
		if name == OutputPath {
			name = PageName(src)
		}
		name = capitalizeWords(strings.ReplaceAll(name, "-", " "))
		if name == "" {
			return
		}
		names = append(names, name)

		fileName := strings.ToLower(whitespace.ReplaceAllString(name, "-"))
		if b.exists(ctx, DirProducts, fileName) {
			return
		}
		body, err := doctree.FromHTML(fmt.Sprintf(`<h1>%s</h1><a href="%s"><img src="%s"></a>`,
			html.EscapeString(name), html.EscapeString(href), html.EscapeString(src)))
		if err != nil {
			return
		}
		b.Logger.Info().Str("product", name).Msg("found a new product")
		docs = append(docs, Related{Dir: DirProducts, Name: fileName, Body: body})
	})
	return strings.Join(names, ", "), docs
}

// capitalizeWords upper-cases the first letter of every word that starts
// with at least three lowercase letters.
func capitalizeWords(s string) string {
	return wordRun.ReplaceAllStringFunc(s, func(w string) string {
		if len(w) < 3 {
			return w
		}
		for i := 0; i < 3; i++ {
			if w[i] < 'a' || w[i] > 'z' {
				return w
			}
		}
		return string(unicode.ToUpper(rune(w[0]))) + w[1:]
	})
}

// replaceEmbeds swaps embed iframes for raw embed markers.
func (b *Blog) replaceEmbeds(ctx context.Context, main *goquery.Selection) {
	patterns := b.Embeds
	if patterns == nil {
		patterns = []EmbedPattern{b.soundCloud()}
	}
	main.Find(".embed-wrapper").Each(func(_ int, w *goquery.Selection) {
		f := w.Find("iframe")
		src, ok := f.Attr("src")
		if !ok || src == "" {
			return
		}
		for _, p := range patterns {
			if p.Match.MatchString(src) {
				src = p.Extract(ctx, src)
			}
		}
		w.AppendHtml(`<img src="` + html.EscapeString(src) + `" class="` + doctree.EmbedClass + `">`)
		f.Remove()
	})
}

// soundCloud maps a player URL to the track page named by the player's
// canonical link. Any failure keeps the player URL.
func (b *Blog) soundCloud() EmbedPattern {
	return EmbedPattern{
		Match: regexp.MustCompile(`w.soundcloud.com/player`),
		Extract: func(ctx context.Context, src string) string {
			f := b.EmbedFetcher
			if f == nil {
				f = &fetch.Client{
					FollowRedirects: true,
					UserAgent:       BrowserUserAgent,
				}
			}
			resp, err := f.Fetch(ctx, src)
			if err != nil {
				b.Logger.Warn().Err(err).Str("src", src).Msg("cannot resolve soundcloud embed")
				return src
			}
			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
			if err != nil {
				return src
			}
			if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok && canonical != "" {
				return canonical
			}
			return src
		},
	}
}

func (b *Blog) exists(ctx context.Context, dir, name string) bool {
	if b.Existing == nil {
		return false
	}
	ok, err := b.Existing.Exists(ctx, sink.DocumentPath(dir, name))
	if err != nil {
		b.Logger.Warn().Err(err).Str("name", name).Msg("cannot check related document")
		return false
	}
	return ok
}
