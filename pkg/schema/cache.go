package schema

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/sync/singleflight"

	"github.com/specdock/specdock/pkg/document"
	"github.com/specdock/specdock/pkg/fetch"
	"github.com/specdock/specdock/pkg/observability"
)

// Default schema locators. The OAS3 and Swagger2 structural schemas come
// from the swagger-editor project; the extension schema covers the vendor
// namespace block required on v3 registrations and lives in the project's
// specification repo.
const (
	DefaultOAS3SchemaURL      = "https://raw.githubusercontent.com/swagger-api/swagger-editor/v3.7.1/src/plugins/json-schema-validator/oas3-schema.yaml"
	DefaultSwagger2SchemaURL  = "https://raw.githubusercontent.com/swagger-api/swagger-editor/v3.6.1/src/plugins/validate-json-schema/structural-validation/swagger2-schema.js"
	DefaultExtensionSchemaURL = "https://raw.githubusercontent.com/specdock/specdock-specification/main/schemas/specdock_schema.json"
)

// Source names a validation schema and where to fetch it.
type Source struct {
	Name string
	URL  string
}

// UnavailableError reports a first-load schema fetch failure. It is fatal
// for the validation attempt that needed the schema; the caller may retry
// later.
type UnavailableError struct {
	Name string
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("schema %q unavailable: %v", e.Name, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Fetcher is the subset of the fetch client the cache needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Resource, error)
	FetchIfChanged(ctx context.Context, url, priorETag string) (*fetch.Resource, bool, error)
}

// Cache holds compiled validation schemas for the whole process. Entries
// are fetched on first use and revalidated against the origin's
// cache-validator token once their refresh interval elapses. A fetch
// failure on a populated entry degrades to serving the stale copy; only a
// failed first load is fatal.
//
// Concurrent first loads of the same schema collapse into one origin fetch.
// Once populated, reads do not take locks.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	log     *observability.Logger
	metrics *observability.Metrics

	entries sync.Map // name -> *cacheEntry
	group   singleflight.Group
}

type cacheEntry struct {
	schema  *jsonschema.Schema
	etag    string
	fetched time.Time
}

// NewCache creates a schema cache. ttl is the interval after which a cached
// entry is revalidated against its origin; zero keeps entries for the
// process lifetime.
func NewCache(fetcher Fetcher, ttl time.Duration, log *observability.Logger, metrics *observability.Metrics) *Cache {
	if log == nil {
		log = observability.NewNopLogger()
	}
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		log:     log.WithField("component", "schema-cache"),
		metrics: metrics,
	}
}

// Schemas resolves each named source to a compiled schema, fetching or
// revalidating as needed. The result maps source name to schema.
func (c *Cache) Schemas(ctx context.Context, sources ...Source) (map[string]*jsonschema.Schema, error) {
	out := make(map[string]*jsonschema.Schema, len(sources))
	for _, src := range sources {
		sch, err := c.get(ctx, src)
		if err != nil {
			return nil, err
		}
		out[src.Name] = sch
	}
	return out, nil
}

// Token returns the cache-validator token recorded for a named schema, if
// the schema has been loaded.
func (c *Cache) Token(name string) (string, bool) {
	v, ok := c.entries.Load(name)
	if !ok {
		return "", false
	}
	return v.(*cacheEntry).etag, true
}

// Invalidate drops all cached entries. The next lookup of each schema
// fetches it again.
func (c *Cache) Invalidate() {
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		return true
	})
}

func (c *Cache) get(ctx context.Context, src Source) (*jsonschema.Schema, error) {
	if v, ok := c.entries.Load(src.Name); ok {
		ent := v.(*cacheEntry)
		if c.ttl <= 0 || time.Since(ent.fetched) < c.ttl {
			c.countHit()
			return ent.schema, nil
		}
	}

	// Later callers wait for and share the in-flight fetch.
	v, err, _ := c.group.Do(src.Name, func() (any, error) {
		return c.load(ctx, src)
	})
	if err != nil {
		return nil, err
	}
	return v.(*jsonschema.Schema), nil
}

// load runs inside the single-flight group: at most one instance per schema
// name at a time.
func (c *Cache) load(ctx context.Context, src Source) (*jsonschema.Schema, error) {
	prev, populated := c.entries.Load(src.Name)

	if !populated {
		c.countMiss()
		res, err := c.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			return nil, &UnavailableError{Name: src.Name, Err: err}
		}
		sch, err := compile(src, res.Body)
		if err != nil {
			return nil, &UnavailableError{Name: src.Name, Err: err}
		}
		c.entries.Store(src.Name, &cacheEntry{schema: sch, etag: res.ETag, fetched: time.Now()})
		return sch, nil
	}

	ent := prev.(*cacheEntry)
	res, notModified, err := c.fetcher.FetchIfChanged(ctx, src.URL, ent.etag)
	if err != nil {
		// Populated cache: degrade to the stale copy.
		c.countStale()
		c.log.WithError(err).WithField("schema", src.Name).Warn("schema revalidation failed, serving stale copy")
		c.touch(src.Name, ent)
		return ent.schema, nil
	}
	if notModified {
		c.countHit()
		c.touch(src.Name, ent)
		return ent.schema, nil
	}

	sch, err := compile(src, res.Body)
	if err != nil {
		c.countStale()
		c.log.WithError(err).WithField("schema", src.Name).Warn("updated schema failed to compile, serving stale copy")
		c.touch(src.Name, ent)
		return ent.schema, nil
	}

	c.entries.Store(src.Name, &cacheEntry{schema: sch, etag: res.ETag, fetched: time.Now()})
	return sch, nil
}

// touch resets the revalidation clock without replacing the schema.
func (c *Cache) touch(name string, ent *cacheEntry) {
	c.entries.Store(name, &cacheEntry{schema: ent.schema, etag: ent.etag, fetched: time.Now()})
}

func compile(src Source, body []byte) (*jsonschema.Schema, error) {
	doc, err := document.Parse(fetch.StripExportPrefix(body))
	if err != nil {
		return nil, fmt.Errorf("decode schema body: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(src.URL, doc.Interface()); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := compiler.Compile(src.URL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return sch, nil
}

func (c *Cache) countHit() {
	if c.metrics != nil {
		c.metrics.SchemaCacheHits.Inc()
	}
}

func (c *Cache) countMiss() {
	if c.metrics != nil {
		c.metrics.SchemaCacheMisses.Inc()
	}
}

func (c *Cache) countStale() {
	if c.metrics != nil {
		c.metrics.SchemaCacheStaleServes.Inc()
	}
}
