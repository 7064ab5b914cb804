package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/specdock/specdock/pkg/document"
)

// NoETag is the placeholder validator recorded when an origin does not
// return an ETag header, so a "has been fetched" state is still observable.
const NoETag = "I"

// DefaultTimeout bounds a single fetch, including body read.
const DefaultTimeout = 5 * time.Second

const maxBodySize = 32 << 20 // 32MB

// Error is a failed fetch. It wraps the transport error, if any, and
// records the HTTP status for non-2xx responses.
type Error struct {
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Resource is a fetched payload with its cache-validator token.
type Resource struct {
	Body []byte
	ETag string
}

// Client fetches description documents and validation schemas over HTTP.
// An optional response cache keeps recently fetched bodies so repeated
// lookups of the same locator (schema downloads in particular) do not hit
// the network every time.
type Client struct {
	http  *http.Client
	cache *lru.LRU[string, *Resource]
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithCache enables an in-process response cache with the given capacity
// and entry TTL.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = lru.NewLRU[string, *Resource](size, nil, ttl)
	}
}

// WithHTTPClient replaces the underlying HTTP client, for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New returns a Client with the default timeout and no cache.
func New(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves the resource at url and captures its cache-validator
// token. A non-200 response or a transport failure returns *Error.
func (c *Client) Fetch(ctx context.Context, url string) (*Resource, error) {
	if c.cache != nil {
		if res, ok := c.cache.Get(url); ok {
			return res, nil
		}
	}

	res, _, err := c.do(ctx, url, "")
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Add(url, res)
	}
	return res, nil
}

// FetchIfChanged issues a conditional request using the prior validator
// token. When the origin reports the resource unchanged, the returned
// notModified flag is true and the Resource is nil.
func (c *Client) FetchIfChanged(ctx context.Context, url, priorETag string) (*Resource, bool, error) {
	res, notModified, err := c.do(ctx, url, priorETag)
	if err != nil {
		return nil, false, err
	}
	if notModified {
		return nil, true, nil
	}
	if c.cache != nil {
		c.cache.Add(url, res)
	}
	return res, false, nil
}

func (c *Client) do(ctx context.Context, url, priorETag string) (*Resource, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, &Error{URL: url, Err: err}
	}
	if priorETag != "" && priorETag != NoETag {
		req.Header.Set("If-None-Match", priorETag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, false, &Error{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, false, &Error{URL: url, Err: err}
	}

	return &Resource{
		Body: body,
		ETag: normalizeETag(resp.Header.Get("ETag")),
	}, false, nil
}

// FetchDocument fetches and parses a description document, returning it
// together with the captured validator token.
func (c *Client) FetchDocument(ctx context.Context, url string) (*document.Document, string, error) {
	res, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, "", err
	}
	doc, err := document.Parse(res.Body)
	if err != nil {
		return nil, "", &Error{URL: url, Err: err}
	}
	return doc, res.ETag, nil
}

// normalizeETag strips the weak-validator marker and surrounding quotes.
// An absent header maps to the NoETag placeholder.
func normalizeETag(etag string) string {
	if etag == "" {
		return NoETag
	}
	etag = strings.TrimPrefix(etag, "W/")
	return strings.Trim(etag, `"`)
}

// StripExportPrefix removes the "export default " wrapper some schema
// origins serve around their JSON bodies.
func StripExportPrefix(body []byte) []byte {
	const prefix = "export default "
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	if strings.HasPrefix(trimmed, prefix) {
		return []byte(trimmed[len(prefix):])
	}
	return body
}
