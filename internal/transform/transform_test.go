// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/blog-importer/internal/doctree"
	"github.com/pdiddy/blog-importer/internal/fetch"
	"github.com/pdiddy/blog-importer/internal/markdown"
)

const blogPage = `<html><head>
<meta property="article:published_time" content="2019-01-01T00:00:00Z">
</head><body>
<div class="article-collection-header">Collection</div>
<div class="main-content">
  <div class="article-header"><h1>A Great Post</h1></div>
  <div class="article-hero"><img src="/images/hero.jpg" alt="hero"></div>
  <div class="article-author-wrap">
    <a class="author-link" href="/en/authors/jane-doe.html">Jane Doe, Senior Writer</a>
    <span class="post-date">03-15-2020</span>
  </div>
  <div class="article-content">
    <p>Intro text.</p>
    <hr>
    <p class="hidden-md-down">desktop only</p>
    <p><img src="https://src.example/a.png"></p>
    <div class="embed-wrapper"><iframe src="https://www.youtube.com/embed/xyz"></iframe></div>
    <div class="article-body-products">products in article</div>
  </div>
  <div class="article-footer">
    <div class="article-footer-topics-wrap"><span class="text">Design &amp; UX</span><span class="text">Photography</span></div>
  </div>
  <div id="article-nav-wrap">next / previous</div>
  <div class="comments">comments</div>
</div>
<div class="sidebar-products-row">
  <a class="product-team-link" href="https://www.example.com/products/photoshop-lightroom.html"><img src="https://src.example/lr.png"></a>
  <a class="product-team-link" href="https://www.example.com/en"><img src="https://src.example/premiere-pro.png"></a>
</div>
</body></html>`

const authorPage = `<html><body>
<div class="author-header">
  <div class="author-img" style="background-image: url('https://src.example/jane.jpg')"></div>
  <h2>Jane Doe</h2><p>Writes things.</p>
</div></body></html>`

// pageFetcher serves canned pages by URL suffix.
type pageFetcher map[string]string

func (f pageFetcher) Fetch(ctx context.Context, locator string) (*fetch.Response, error) {
	for suffix, body := range f {
		if strings.HasSuffix(locator, suffix) {
			return &fetch.Response{URL: locator, StatusCode: 200, Body: []byte(body)}, nil
		}
	}
	return nil, &fetch.StatusError{URL: locator, StatusCode: http.StatusNotFound}
}

// existing reports a fixed set of paths as stored.
type existing map[string]bool

func (e existing) Exists(ctx context.Context, p string) (bool, error) { return e[p], nil }

func TestBlog_Transform(t *testing.T) {
	b := &Blog{Fetcher: pageFetcher{"/en/authors/jane-doe.html": authorPage}}
	res, err := b.Transform(context.Background(), Page{
		URL:  "https://blog.example.com/en/publish/2020/03/15/a-great-post.html",
		HTML: []byte(blogPage),
	})
	require.NoError(t, err)

	assert.Equal(t, "a-great-post", res.Name)
	assert.Equal(t, "2020/03/15", res.Date)
	assert.Equal(t, "en/drafts/migrated/2020/03/15", res.Dir)

	md := markdown.Serialize(res.Body)
	assert.Contains(t, md, "# A Great Post\n\n---")
	assert.Contains(t, md, "![hero](https://blog.example.com/images/hero.jpg)\n\n---\n\nby Jane Doe\n\n03-15-2020\n\n---")
	assert.Contains(t, md, "![](https://src.example/a.png)")
	assert.Contains(t, md, "\nhttps://www.youtube.com/embed/xyz\n")
	assert.Contains(t, md, "---\n\nTopics: Design & UX, Photography\n\nProducts: Photoshop Lightroom, Premiere Pro\n")
	for _, gone := range []string{"desktop only", "products in article", "next / previous", "comments", "Collection", "Senior Writer"} {
		assert.NotContains(t, md, gone)
	}

	refs := doctree.References(res.Body)
	assert.Contains(t, refs, doctree.Reference{Literal: "https://www.youtube.com/embed/xyz", Embed: true})
	assert.Contains(t, refs, doctree.Reference{Literal: "https://src.example/a.png"})

	var names []string
	for _, r := range res.Related {
		names = append(names, r.Dir+"/"+r.Name)
	}
	assert.Equal(t, []string{
		"en/authors/jane-doe",
		"en/topics/design--ux",
		"en/topics/photography",
		"en/products/photoshop-lightroom",
		"en/products/premiere-pro",
	}, names)

	authorMD := markdown.Serialize(res.Related[0].Body)
	assert.Equal(t, "![](https://src.example/jane.jpg)\n\n## Jane Doe\n\nWrites things.\n", authorMD)

	productMD := markdown.Serialize(res.Related[3].Body)
	assert.Equal(t, "# Photoshop Lightroom\n\n[![](https://src.example/lr.png)](https://www.example.com/products/photoshop-lightroom.html)\n", productMD)
}

func TestBlog_SkipsExistingRelated(t *testing.T) {
	b := &Blog{
		Fetcher: pageFetcher{},
		Existing: existing{
			"en/authors/jane-doe.md":            true,
			"en/topics/photography.md":          true,
			"en/products/photoshop-lightroom.md": true,
		},
	}
	res, err := b.Transform(context.Background(), Page{URL: "https://blog.example.com/p.html", HTML: []byte(blogPage)})
	require.NoError(t, err)

	var names []string
	for _, r := range res.Related {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"design--ux", "premiere-pro"}, names)
}

func TestBlog_AuthorPageFailure(t *testing.T) {
	b := &Blog{Fetcher: pageFetcher{}}
	_, err := b.Transform(context.Background(), Page{URL: "https://blog.example.com/p.html", HTML: []byte(blogPage)})
	require.Error(t, err)
	assert.True(t, fetch.IsNotFound(err))
}

func TestBlog_NoMainContent(t *testing.T) {
	_, err := (&Blog{}).Transform(context.Background(), Page{URL: "https://x/p.html", HTML: []byte("<p>hi</p>")})
	assert.True(t, errors.Is(err, ErrNoContent))
}

func TestBlog_SoundCloudEmbed(t *testing.T) {
	var gotUA string
	player := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		io.WriteString(w, `<html><head><link rel="canonical" href="https://soundcloud.com/artist/track"></head></html>`)
	}))
	defer player.Close()

	page := `<div class="main-content"><div class="embed-wrapper"><iframe src="` +
		player.URL + `/w.soundcloud.com/player/?url=track"></iframe></div></div>`
	res, err := (&Blog{}).Transform(context.Background(), Page{URL: "https://blog.example.com/p.html", HTML: []byte(page)})
	require.NoError(t, err)

	assert.Equal(t, BrowserUserAgent, gotUA)
	assert.Equal(t, []doctree.Reference{{Literal: "https://soundcloud.com/artist/track", Embed: true}}, doctree.References(res.Body))
	assert.Equal(t, UnknownDate, res.Date)
}

func TestBlog_SoundCloudFailureKeepsPlayer(t *testing.T) {
	b := &Blog{EmbedFetcher: pageFetcher{}}
	src := "https://w.soundcloud.com/player/?url=x"
	page := `<div class="main-content"><div class="embed-wrapper"><iframe src="` + src + `"></iframe></div></div>`
	res, err := b.Transform(context.Background(), Page{URL: "https://blog.example.com/p.html", HTML: []byte(page)})
	require.NoError(t, err)
	assert.Equal(t, []doctree.Reference{{Literal: src, Embed: true}}, doctree.References(res.Body))
}

func TestPostDate(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		postedOn string
		want     string
	}{
		{"post date", "", "03-15-2020", "2020/03/15"},
		{"short post date", "", "3-5-2020", "2020/03/05"},
		{"garbage", "", "yesterday", UnknownDate},
		{"meta fallback", `<meta property="article:published_time" content="2018-07-04T10:00:00+02:00">`, "", "2018/07/04"},
		{"meta date only", `<meta property="article:published_time" content="2018-07-04">`, "", "2018/07/04"},
		{"nothing", "", "", UnknownDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustDoc(t, "<html><head>"+tt.html+"</head><body></body></html>")
			assert.Equal(t, tt.want, postDate(doc, tt.postedOn))
		})
	}
}

func TestCapitalizeWords(t *testing.T) {
	assert.Equal(t, "Photoshop Lightroom", capitalizeWords("photoshop lightroom"))
	assert.Equal(t, "Adobe XD", capitalizeWords("adobe XD"))
	assert.Equal(t, "Premiere Pro cc", capitalizeWords("premiere pro cc"))
}

func TestPageName(t *testing.T) {
	assert.Equal(t, "a-great-post", PageName("https://blog.example.com/en/2020/a-great-post.html"))
	assert.Equal(t, "en", PageName("https://www.example.com/en"))
	assert.Equal(t, "photoshop", PageName("https://www.example.com/products/photoshop/"))
	assert.Equal(t, "", PageName("https://www.example.com/"))
}

func TestGeneric_Transform(t *testing.T) {
	page := `<html><head><meta property="article:published_time" content="2021-02-03T00:00:00Z"></head>
<body><nav>menu</nav><main><h1>Hello</h1><p><img src="img/a.png"></p></main><footer>f</footer></body></html>`
	res, err := (&Generic{}).Transform(context.Background(), Page{URL: "https://site.example/posts/hello.html", HTML: []byte(page)})
	require.NoError(t, err)

	assert.Equal(t, "hello", res.Name)
	assert.Equal(t, "2021/02/03", res.Date)
	assert.Equal(t, "en/drafts/migrated/2021/02/03", res.Dir)
	assert.Equal(t, "# Hello\n\n![](https://site.example/posts/img/a.png)\n", markdown.Serialize(res.Body))
}

func TestGeneric_FallsBackToBody(t *testing.T) {
	res, err := (&Generic{Dir: "out"}).Transform(context.Background(), Page{URL: "https://site.example/x", HTML: []byte("<p>only body</p>")})
	require.NoError(t, err)
	assert.Equal(t, "out/unknown", res.Dir)
	assert.Equal(t, "only body\n", markdown.Serialize(res.Body))
}

func mustDoc(t *testing.T, src string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}
