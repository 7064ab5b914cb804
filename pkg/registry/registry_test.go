package registry_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specdock/specdock/pkg/document"
	"github.com/specdock/specdock/pkg/fetch"
	"github.com/specdock/specdock/pkg/registry"
	"github.com/specdock/specdock/pkg/store"
)

const petsV3 = `{"openapi":"3.0.0","info":{"title":"Pets","version":"1.0"},"paths":{"/pets":{"get":{}}}}`

type stubValidator struct {
	err error
}

func (v *stubValidator) Validate(ctx context.Context, doc *document.Document) error {
	return v.err
}

type stubFetcher struct {
	bodies      map[string]string
	etags       map[string]string
	notModified map[string]bool
	errs        map[string]error
	fetches     atomic.Int64
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		bodies:      make(map[string]string),
		etags:       make(map[string]string),
		notModified: make(map[string]bool),
		errs:        make(map[string]error),
	}
}

func (f *stubFetcher) FetchDocument(ctx context.Context, url string) (*document.Document, string, error) {
	f.fetches.Add(1)
	if err := f.errs[url]; err != nil {
		return nil, "", err
	}
	doc, err := document.Parse([]byte(f.bodies[url]))
	if err != nil {
		return nil, "", err
	}
	return doc, f.etag(url), nil
}

func (f *stubFetcher) FetchIfChanged(ctx context.Context, url, priorETag string) (*fetch.Resource, bool, error) {
	f.fetches.Add(1)
	if err := f.errs[url]; err != nil {
		return nil, false, err
	}
	if f.notModified[url] {
		return nil, true, nil
	}
	return &fetch.Resource{Body: []byte(f.bodies[url]), ETag: f.etag(url)}, false, nil
}

func (f *stubFetcher) etag(url string) string {
	if e, ok := f.etags[url]; ok {
		return e
	}
	return fetch.NoETag
}

func parseDoc(t *testing.T, body string) *document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(body))
	require.NoError(t, err)
	return doc
}

func testRegistry(t *testing.T, opts ...registry.Option) (*registry.Registry, *store.Memory, *stubValidator, *stubFetcher) {
	t.Helper()
	mem := store.NewMemory()
	validator := &stubValidator{}
	fetcher := newStubFetcher()
	return registry.New(mem, validator, fetcher, opts...), mem, validator, fetcher
}

func TestSaveStoresEntry(t *testing.T) {
	reg, mem, _, _ := testRegistry(t)
	ctx := context.Background()

	id, err := reg.Save(ctx, registry.SaveRequest{
		Document:  parseDoc(t, petsV3),
		Submitter: "octocat",
		URL:       "https://example.com/pets.json",
		ETag:      "abc123",
	})
	require.NoError(t, err)

	want, err := registry.EncodeID("https://example.com/pets.json")
	require.NoError(t, err)
	assert.Equal(t, want, id)

	entry, err := mem.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "octocat", entry.Meta.Submitter)
	assert.Equal(t, "abc123", entry.Meta.ETag)
	assert.False(t, entry.Meta.Timestamp.IsZero())

	restored, err := registry.DecodeRaw(entry.Raw, false)
	require.NoError(t, err)
	assert.True(t, parseDoc(t, petsV3).Equal(restored))
}

func TestSaveInputErrors(t *testing.T) {
	reg, _, _, _ := testRegistry(t)
	ctx := context.Background()
	var input *registry.InputError

	_, err := reg.Save(ctx, registry.SaveRequest{Submitter: "octocat", URL: "https://example.com/x.json"})
	require.ErrorAs(t, err, &input)

	_, err = reg.Save(ctx, registry.SaveRequest{Document: parseDoc(t, petsV3), URL: "https://example.com/x.json"})
	require.ErrorAs(t, err, &input)
}

func TestSaveValidationFailureLeavesStoreUntouched(t *testing.T) {
	reg, mem, validator, _ := testRegistry(t)
	ctx := context.Background()
	validator.err = errors.New("schema violation")

	_, err := reg.Save(ctx, registry.SaveRequest{
		Document:  parseDoc(t, petsV3),
		Submitter: "octocat",
		URL:       "https://example.com/pets.json",
	})
	require.Error(t, err)

	id, _ := registry.EncodeID("https://example.com/pets.json")
	ok, err := mem.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveConflictWithoutOverwrite(t *testing.T) {
	reg, mem, _, _ := testRegistry(t)
	ctx := context.Background()
	req := registry.SaveRequest{
		Document:  parseDoc(t, petsV3),
		Submitter: "octocat",
		URL:       "https://example.com/pets.json",
	}

	id, err := reg.Save(ctx, req)
	require.NoError(t, err)
	before, err := mem.Get(ctx, id)
	require.NoError(t, err)

	var conflict *registry.ConflictError
	_, err = reg.Save(ctx, req)
	require.ErrorAs(t, err, &conflict)

	after, err := mem.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	req.Overwrite = true
	req.Submitter = "hubot"
	_, err = reg.Save(ctx, req)
	require.NoError(t, err)
	updated, err := mem.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hubot", updated.Meta.Submitter)
}

func TestSaveConditionalCreate(t *testing.T) {
	reg, _, _, _ := testRegistry(t, registry.WithConditionalCreate())
	ctx := context.Background()
	req := registry.SaveRequest{
		Document:  parseDoc(t, petsV3),
		Submitter: "octocat",
		URL:       "https://example.com/pets.json",
	}

	_, err := reg.Save(ctx, req)
	require.NoError(t, err)

	var conflict *registry.ConflictError
	_, err = reg.Save(ctx, req)
	require.ErrorAs(t, err, &conflict)

	req.Overwrite = true
	_, err = reg.Save(ctx, req)
	require.NoError(t, err)
}

func TestSaveDryRun(t *testing.T) {
	reg, mem, _, _ := testRegistry(t)
	ctx := context.Background()

	id, err := reg.Save(ctx, registry.SaveRequest{
		Document:  parseDoc(t, petsV3),
		Submitter: "octocat",
		URL:       "https://example.com/pets.json",
		DryRun:    true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	ok, err := mem.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterFetchesAndSaves(t *testing.T) {
	reg, mem, _, fetcher := testRegistry(t)
	ctx := context.Background()
	fetcher.bodies["https://example.com/pets.json"] = petsV3
	fetcher.etags["https://example.com/pets.json"] = "v1"

	id, err := reg.Register(ctx, "https://example.com/pets.json", "octocat", false, false)
	require.NoError(t, err)

	entry, err := mem.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "v1", entry.Meta.ETag)
	assert.Equal(t, "https://example.com/pets.json", entry.Meta.URL)
}

func TestRegisterFetchFailure(t *testing.T) {
	reg, _, _, fetcher := testRegistry(t)
	fetcher.errs["https://example.com/down.json"] = &fetch.Error{URL: "https://example.com/down.json", Status: 503}

	_, err := reg.Register(context.Background(), "https://example.com/down.json", "octocat", false, false)
	var ferr *fetch.Error
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, 503, ferr.Status)
}

func TestLookupByIDAndSlug(t *testing.T) {
	reg, _, _, _ := testRegistry(t)
	ctx := context.Background()

	id, err := reg.Save(ctx, registry.SaveRequest{
		Document:  parseDoc(t, petsV3),
		Submitter: "octocat",
		URL:       "https://example.com/pets.json",
	})
	require.NoError(t, err)

	_, err = reg.SetSlug(ctx, id, "pets", "octocat")
	require.NoError(t, err)

	byID, err := reg.Lookup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, byID.ID)

	bySlug, err := reg.Lookup(ctx, "pets")
	require.NoError(t, err)
	assert.Equal(t, id, bySlug.ID)

	_, err = reg.Lookup(ctx, "nosuch")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

// wrappingStore adds context to every Get miss, the way an external
// backend reporting its own operation details would.
type wrappingStore struct {
	registry.Store
}

func (s *wrappingStore) Get(ctx context.Context, id string) (*registry.Entry, error) {
	entry, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return entry, nil
}

func TestLookupWithWrappedNotFound(t *testing.T) {
	mem := store.NewMemory()
	reg := registry.New(&wrappingStore{Store: mem}, &stubValidator{}, newStubFetcher())
	ctx := context.Background()

	id, err := reg.Save(ctx, registry.SaveRequest{
		Document:  parseDoc(t, petsV3),
		Submitter: "octocat",
		URL:       "https://example.com/pets.json",
	})
	require.NoError(t, err)
	_, err = reg.SetSlug(ctx, id, "pets", "octocat")
	require.NoError(t, err)

	// The id miss is wrapped; the slug fallback must still run.
	bySlug, err := reg.Lookup(ctx, "pets")
	require.NoError(t, err)
	assert.Equal(t, id, bySlug.ID)

	// Reassigning a free slug must not trip on the wrapped miss either.
	_, err = reg.SetSlug(ctx, id, "pets-v2", "octocat")
	require.NoError(t, err)
}

func TestList(t *testing.T) {
	reg, _, _, _ := testRegistry(t)
	ctx := context.Background()

	urls := []string{
		"https://example.com/a.json",
		"https://example.com/b.json",
		"https://example.com/c.json",
	}
	for _, u := range urls {
		_, err := reg.Save(ctx, registry.SaveRequest{
			Document:  parseDoc(t, petsV3),
			Submitter: "octocat",
			URL:       u,
		})
		require.NoError(t, err)
	}

	entries, err := reg.List(ctx, 0, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = reg.List(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.com/c.json", entries[0].Meta.URL)
}

func TestSetSlugRules(t *testing.T) {
	reg, _, _, _ := testRegistry(t)
	ctx := context.Background()

	a, err := reg.Save(ctx, registry.SaveRequest{
		Document: parseDoc(t, petsV3), Submitter: "octocat", URL: "https://example.com/a.json",
	})
	require.NoError(t, err)
	b, err := reg.Save(ctx, registry.SaveRequest{
		Document: parseDoc(t, petsV3), Submitter: "hubot", URL: "https://example.com/b.json",
	})
	require.NoError(t, err)

	got, err := reg.SetSlug(ctx, a, "MyPets", "octocat")
	require.NoError(t, err)
	assert.Equal(t, "mypets", got)

	// only the owner may assign
	var denied *registry.AuthorizationError
	_, err = reg.SetSlug(ctx, a, "other", "mallory")
	require.ErrorAs(t, err, &denied)

	// a slug held by another entry is taken
	var conflict *registry.ConflictError
	_, err = reg.SetSlug(ctx, b, "mypets", "hubot")
	require.ErrorAs(t, err, &conflict)

	// reassigning the slug an entry already holds succeeds
	_, err = reg.SetSlug(ctx, a, "mypets", "octocat")
	require.NoError(t, err)

	var input *registry.InputError
	_, err = reg.SetSlug(ctx, a, "ab", "octocat")
	require.ErrorAs(t, err, &input)
	_, err = reg.SetSlug(ctx, a, "www", "octocat")
	require.ErrorAs(t, err, &input)
}

func TestDeleteSlug(t *testing.T) {
	reg, mem, _, _ := testRegistry(t)
	ctx := context.Background()

	id, err := reg.Save(ctx, registry.SaveRequest{
		Document: parseDoc(t, petsV3), Submitter: "octocat", URL: "https://example.com/a.json",
	})
	require.NoError(t, err)
	_, err = reg.SetSlug(ctx, id, "pets", "octocat")
	require.NoError(t, err)

	var denied *registry.AuthorizationError
	require.ErrorAs(t, reg.DeleteSlug(ctx, id, "mallory"), &denied)

	require.NoError(t, reg.DeleteSlug(ctx, id, "octocat"))
	entry, err := mem.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, entry.Meta.Slug)

	_, err = reg.FindBySlug(ctx, "pets")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestDeleteRequiresOwner(t *testing.T) {
	reg, mem, _, _ := testRegistry(t)
	ctx := context.Background()

	id, err := reg.Save(ctx, registry.SaveRequest{
		Document: parseDoc(t, petsV3), Submitter: "octocat", URL: "https://example.com/a.json",
	})
	require.NoError(t, err)

	var denied *registry.AuthorizationError
	require.ErrorAs(t, reg.Delete(ctx, id, "mallory"), &denied)
	ok, err := mem.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, reg.Delete(ctx, id, "octocat"))
	ok, err = mem.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.ErrorIs(t, reg.Delete(ctx, id, "octocat"), registry.ErrNotFound)
}

func TestRefreshNotModified(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := t0
	reg, mem, _, fetcher := testRegistry(t, registry.WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	id, err := reg.Save(ctx, registry.SaveRequest{
		Document: parseDoc(t, petsV3), Submitter: "octocat", URL: "https://example.com/a.json", ETag: "v1",
	})
	require.NoError(t, err)
	fetcher.notModified["https://example.com/a.json"] = true

	clock = t0.Add(time.Hour)
	status, err := reg.Refresh(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, registry.RefreshNotModified, status)

	entry, err := mem.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), entry.Meta.Timestamp)
	assert.Equal(t, "v1", entry.Meta.ETag)
}

func TestRefreshUpdatedPreservesIdentityAndSlug(t *testing.T) {
	reg, mem, _, fetcher := testRegistry(t)
	ctx := context.Background()

	id, err := reg.Save(ctx, registry.SaveRequest{
		Document: parseDoc(t, petsV3), Submitter: "octocat", URL: "https://example.com/a.json", ETag: "v1",
	})
	require.NoError(t, err)
	_, err = reg.SetSlug(ctx, id, "pets", "octocat")
	require.NoError(t, err)

	fetcher.bodies["https://example.com/a.json"] = `{"openapi":"3.0.0","info":{"title":"Pets v2","version":"2.0"},"paths":{"/pets":{"get":{}}}}`
	fetcher.etags["https://example.com/a.json"] = "v2"

	status, err := reg.Refresh(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, registry.RefreshUpdated, status)

	entry, err := mem.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, entry.ID)
	assert.Equal(t, "pets", entry.Meta.Slug)
	assert.Equal(t, "octocat", entry.Meta.Submitter)
	assert.Equal(t, "v2", entry.Meta.ETag)

	doc, err := registry.DecodeRaw(entry.Raw, false)
	require.NoError(t, err)
	title, _ := doc.Path("info", "title")
	assert.Equal(t, "Pets v2", title)
}

func TestRefreshInvalidKeepsStoredCopy(t *testing.T) {
	reg, mem, validator, fetcher := testRegistry(t)
	ctx := context.Background()

	id, err := reg.Save(ctx, registry.SaveRequest{
		Document: parseDoc(t, petsV3), Submitter: "octocat", URL: "https://example.com/a.json", ETag: "v1",
	})
	require.NoError(t, err)
	before, err := mem.Get(ctx, id)
	require.NoError(t, err)

	fetcher.bodies["https://example.com/a.json"] = `{"openapi":"3.0.0"}`
	validator.err = errors.New("schema violation")

	status, err := reg.Refresh(ctx, id, false)
	require.Error(t, err)
	assert.Equal(t, registry.RefreshInvalid, status)

	after, err := mem.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRefreshFailed(t *testing.T) {
	reg, _, _, fetcher := testRegistry(t)
	ctx := context.Background()

	id, err := reg.Save(ctx, registry.SaveRequest{
		Document: parseDoc(t, petsV3), Submitter: "octocat", URL: "https://example.com/a.json",
	})
	require.NoError(t, err)
	fetcher.errs["https://example.com/a.json"] = &fetch.Error{URL: "https://example.com/a.json", Status: 500}

	status, err := reg.Refresh(ctx, id, false)
	require.Error(t, err)
	assert.Equal(t, registry.RefreshFailed, status)

	status, err = reg.Refresh(ctx, "0123456789abcdef0123456789abcdef", false)
	require.ErrorIs(t, err, registry.ErrNotFound)
	assert.Equal(t, registry.RefreshFailed, status)
}

func TestRefreshDryRunWritesNothing(t *testing.T) {
	reg, mem, _, fetcher := testRegistry(t)
	ctx := context.Background()

	id, err := reg.Save(ctx, registry.SaveRequest{
		Document: parseDoc(t, petsV3), Submitter: "octocat", URL: "https://example.com/a.json", ETag: "v1",
	})
	require.NoError(t, err)
	before, err := mem.Get(ctx, id)
	require.NoError(t, err)

	fetcher.bodies["https://example.com/a.json"] = `{"openapi":"3.0.0","info":{"title":"Changed","version":"2"},"paths":{}}`
	fetcher.etags["https://example.com/a.json"] = "v2"

	status, err := reg.Refresh(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, registry.RefreshUpdated, status)

	after, err := mem.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRefreshAll(t *testing.T) {
	reg, _, _, fetcher := testRegistry(t, registry.WithRefreshWorkers(2))
	ctx := context.Background()

	good, err := reg.Save(ctx, registry.SaveRequest{
		Document: parseDoc(t, petsV3), Submitter: "octocat", URL: "https://example.com/good.json",
	})
	require.NoError(t, err)
	bad, err := reg.Save(ctx, registry.SaveRequest{
		Document: parseDoc(t, petsV3), Submitter: "octocat", URL: "https://example.com/bad.json",
	})
	require.NoError(t, err)

	fetcher.notModified["https://example.com/good.json"] = true
	fetcher.errs["https://example.com/bad.json"] = &fetch.Error{URL: "https://example.com/bad.json", Status: 500}

	results := reg.RefreshAll(ctx, nil, false)
	require.Len(t, results, 2)

	byID := make(map[string]registry.RefreshResult, len(results))
	for _, res := range results {
		byID[res.ID] = res
	}
	assert.Equal(t, registry.RefreshNotModified, byID[good].Status)
	require.NoError(t, byID[good].Err)
	assert.Equal(t, registry.RefreshFailed, byID[bad].Status)
	require.Error(t, byID[bad].Err)
}

func TestRefreshAllJobSeesLiveStore(t *testing.T) {
	reg, mem, _, fetcher := testRegistry(t)
	ctx := context.Background()

	job := reg.RefreshAllJob(false)

	// First tick: nothing registered yet, nothing to do.
	job()

	id, err := reg.Save(ctx, registry.SaveRequest{
		Document: parseDoc(t, petsV3), Submitter: "octocat", URL: "https://example.com/a.json", ETag: "v1",
	})
	require.NoError(t, err)

	fetcher.bodies["https://example.com/a.json"] = `{"openapi":"3.0.0","info":{"title":"Pets v2","version":"2.0"},"paths":{"/pets":{"get":{}}}}`
	fetcher.etags["https://example.com/a.json"] = "v2"

	// Next tick picks up the entry registered after the job was built.
	job()

	entry, err := mem.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "v2", entry.Meta.ETag)

	doc, err := registry.DecodeRaw(entry.Raw, false)
	require.NoError(t, err)
	title, _ := doc.Path("info", "title")
	assert.Equal(t, "Pets v2", title)
}
