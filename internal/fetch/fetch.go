// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch downloads pages and assets over HTTP with explicit timeouts.
// It distinguishes "the source says it does not exist" from every other
// failure so callers can tolerate stale asset references without masking
// network faults.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/blog-importer/internal/httputil"
)

// DefaultTimeout bounds a full page or asset download.
const DefaultTimeout = 60 * time.Second

// DefaultUserAgent is sent when Client.UserAgent is empty.
const DefaultUserAgent = "blog-importer/0.1"

// ErrUnsupportedScheme is returned for locators that are not http(s).
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// StatusError reports a non-2xx response from the source.
type StatusError struct {
	URL        string
	StatusCode int
	// Location is set for 3xx responses when redirects are not followed.
	Location string
}

func (e *StatusError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("HTTP %d from %s (location %s)", e.StatusCode, e.URL, e.Location)
	}
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// NotFound reports whether the source explicitly said the resource is absent.
func (e *StatusError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
}

// Redirect reports whether the source answered with a redirect.
func (e *StatusError) Redirect() bool {
	return e.StatusCode >= 300 && e.StatusCode < 400
}

// IsNotFound reports whether err carries a definite not-found answer.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.NotFound()
}

// IsRedirect reports whether err is a redirect the client did not follow.
func IsRedirect(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Redirect()
}

// IsTimeout reports whether err was caused by a deadline rather than an
// answer from the source.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Response is a fully read 2xx response.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
}

// Client fetches pages and assets.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// Timeout bounds each fetch, including reading the body. Zero means
	// DefaultTimeout.
	Timeout time.Duration
	// FollowRedirects controls whether 3xx responses are followed. Pages are
	// fetched without following so moved posts are reported, assets with.
	FollowRedirects bool
	// MaxRetries bounds retries of throttled responses.
	MaxRetries int
	// Cache, when set, serves and stores page bodies on disk.
	Cache *PageCache
	// Header is added to every request.
	Header http.Header
}

// Fetch downloads locator and returns the body. Non-2xx responses yield a
// *StatusError.
func (c *Client) Fetch(ctx context.Context, locator string) (*Response, error) {
	if c.Cache != nil {
		if body, ok := c.Cache.Load(locator); ok {
			zerolog.Ctx(ctx).Debug().Str("url", locator).Msg("page served from cache")
			return &Response{URL: locator, StatusCode: http.StatusOK, ContentType: "text/html", Body: body}, nil
		}
	}

	var out *Response
	err := c.Stream(ctx, locator, func(resp *http.Response) error {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}
		out = &Response{
			URL:         locator,
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Header:      resp.Header,
			Body:        body,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.Cache != nil {
		if err := c.Cache.Save(locator, out.Body); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("url", locator).Msg("cannot write page cache")
		}
	}
	return out, nil
}

// Stream issues a GET for locator and hands the 2xx response to fn while
// the body is still open. The body is closed when fn returns.
func (c *Client) Stream(ctx context.Context, locator string, fn func(*http.Response) error) error {
	u, err := url.Parse(locator)
	if err != nil {
		return fmt.Errorf("parsing %q: %w", locator, err)
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, locator)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", ua)
	}

	zerolog.Ctx(ctx).Debug().Str("url", locator).Msg("GET")
	resp, err := httputil.DoWithRetry(ctx, c.httpClient(), req, c.MaxRetries)
	if err != nil {
		return fmt.Errorf("GET %s: %w", locator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &StatusError{URL: locator, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	return fn(resp)
}

func (c *Client) httpClient() *http.Client {
	base := http.DefaultClient
	if c.HTTPClient != nil {
		base = c.HTTPClient
	}
	if c.FollowRedirects {
		return base
	}
	cl := *base
	cl.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &cl
}
