package registry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/specdock/specdock/pkg/document"
	"github.com/specdock/specdock/pkg/observability"
	"github.com/specdock/specdock/pkg/query"
)

var tracer = otel.Tracer("specdock/registry")

// DefaultRefreshWorkers bounds the concurrency of a bulk refresh.
const DefaultRefreshWorkers = 4

// Registry orchestrates the registration pipeline: validation, identity,
// transformation, and writes through the Store.
type Registry struct {
	store     Store
	validator Validator
	fetcher   Fetcher

	log     *observability.Logger
	metrics *observability.Metrics

	// conditionalCreate routes creation through the store's
	// create-if-absent put mode instead of the advisory exists check,
	// when at-most-once creation matters more than last-write-wins.
	conditionalCreate bool
	refreshWorkers    int
	now               func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(log *observability.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithConditionalCreate enforces at-most-once creation via the store's
// create-mode put. The default keeps the documented exists-check-then-write
// behavior, where concurrent creates of the same locator race and the
// later write wins.
func WithConditionalCreate() Option {
	return func(r *Registry) { r.conditionalCreate = true }
}

// WithRefreshWorkers bounds bulk-refresh concurrency.
func WithRefreshWorkers(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.refreshWorkers = n
		}
	}
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a Registry.
func New(store Store, validator Validator, fetcher Fetcher, opts ...Option) *Registry {
	r := &Registry{
		store:          store,
		validator:      validator,
		fetcher:        fetcher,
		log:            observability.NewNopLogger(),
		refreshWorkers: DefaultRefreshWorkers,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithField("component", "registry")
	return r
}

// SaveRequest carries one registration attempt.
type SaveRequest struct {
	Document  *document.Document
	Submitter string
	URL       string
	ETag      string
	Overwrite bool
	DryRun    bool
}

// Save runs the registration pipeline and returns the id of the entry. The
// store is not touched on validation failure, on an existence conflict, or
// in a dry run.
func (r *Registry) Save(ctx context.Context, req SaveRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "registry.Save",
		trace.WithAttributes(attribute.String("url", req.URL)))
	defer span.End()

	id, err := r.save(ctx, req)
	r.countRegistration(req, err)
	return id, err
}

func (r *Registry) save(ctx context.Context, req SaveRequest) (string, error) {
	if req.Document == nil {
		return "", inputErrorf("missing document")
	}
	if req.Submitter == "" {
		return "", inputErrorf("missing submitter")
	}

	if err := r.validator.Validate(ctx, req.Document); err != nil {
		return "", err
	}

	id, err := EncodeID(req.URL)
	if err != nil {
		return "", err
	}

	mode := PutOverwrite
	if r.conditionalCreate && !req.Overwrite {
		mode = PutCreate
	} else {
		exists, err := r.store.Exists(ctx, id)
		if err != nil {
			return "", &StoreError{Op: "exists", Err: err}
		}
		if exists && !req.Overwrite {
			return "", conflictErrorf("entry %s already exists", id)
		}
	}

	entry, err := BuildEntry(req.Document, Meta{
		Submitter: req.Submitter,
		URL:       req.URL,
		Timestamp: r.now().UTC(),
		ETag:      req.ETag,
	})
	if err != nil {
		return "", err
	}

	if req.DryRun {
		return id, nil
	}

	if err := r.store.Put(ctx, entry, mode); err != nil {
		var conflict *ConflictError
		if asConflict(err, &conflict) {
			return "", conflict
		}
		return "", &StoreError{Op: "put", Err: err}
	}

	r.log.WithFields(map[string]interface{}{
		"id":        id,
		"submitter": req.Submitter,
		"overwrite": req.Overwrite,
	}).Info("entry saved")
	return id, nil
}

// Register fetches the document at url and runs the registration pipeline
// on it.
func (r *Registry) Register(ctx context.Context, url, submitter string, overwrite, dryRun bool) (string, error) {
	doc, etag, err := r.fetcher.FetchDocument(ctx, url)
	if err != nil {
		return "", err
	}
	return r.Save(ctx, SaveRequest{
		Document:  doc,
		Submitter: submitter,
		URL:       url,
		ETag:      etag,
		Overwrite: overwrite,
		DryRun:    dryRun,
	})
}

// Get returns the entry under id.
func (r *Registry) Get(ctx context.Context, id string) (*Entry, error) {
	entry, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// FindBySlug returns the id registered under slug, or ErrNotFound.
func (r *Registry) FindBySlug(ctx context.Context, slug string) (string, error) {
	plan := &query.Plan{
		Clauses: []query.Clause{
			{Kind: query.KindTerm, Field: "_meta.slug", Value: slug, Boost: 1.0},
		},
		Size: 1,
	}
	hits, err := r.store.Search(ctx, plan)
	if err != nil {
		return "", &StoreError{Op: "search", Err: err}
	}
	if len(hits) == 0 {
		return "", ErrNotFound
	}
	return hits[0].ID, nil
}

// Lookup resolves name as an id first and as a slug second.
func (r *Registry) Lookup(ctx context.Context, name string) (*Entry, error) {
	entry, err := r.store.Get(ctx, name)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	id, err := r.FindBySlug(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.store.Get(ctx, id)
}

// List returns up to size entries, skipping the first from.
func (r *Registry) List(ctx context.Context, from, size int) ([]*Entry, error) {
	if size <= 0 {
		size = query.DefaultSize
	}
	var entries []*Entry
	skipped := 0
	err := r.store.ScanAll(ctx, nil, func(e *Entry) error {
		if skipped < from {
			skipped++
			return nil
		}
		if len(entries) < size {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, &StoreError{Op: "scan", Err: err}
	}
	return entries, nil
}

// SetSlug assigns a slug to the entry under id. The slug is normalized and
// validated, must not be held by a different entry, and only the slug
// field of the entry changes. Assigning the slug an entry already holds is
// a no-op success.
func (r *Registry) SetSlug(ctx context.Context, id, slug, user string) (string, error) {
	normalized, err := NormalizeSlug(slug)
	if err != nil {
		return "", err
	}

	entry, err := r.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if entry.Meta.Submitter != user {
		return "", &AuthorizationError{Msg: "user " + user + " is not the owner of " + id}
	}

	holder, err := r.FindBySlug(ctx, normalized)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if err == nil && holder != id {
		return "", conflictErrorf("slug %q already exists", normalized)
	}

	entry.Meta.Slug = normalized
	if err := r.store.Put(ctx, entry, PutOverwrite); err != nil {
		return "", &StoreError{Op: "put", Err: err}
	}
	return normalized, nil
}

// DeleteSlug removes the slug of the entry under id.
func (r *Registry) DeleteSlug(ctx context.Context, id, user string) error {
	entry, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if entry.Meta.Submitter != user {
		return &AuthorizationError{Msg: "user " + user + " is not the owner of " + id}
	}
	entry.Meta.Slug = ""
	if err := r.store.Put(ctx, entry, PutOverwrite); err != nil {
		return &StoreError{Op: "put", Err: err}
	}
	return nil
}

// Delete permanently removes the entry under id. Only the original
// submitter may delete it.
func (r *Registry) Delete(ctx context.Context, id, user string) error {
	ctx, span := tracer.Start(ctx, "registry.Delete",
		trace.WithAttributes(attribute.String("id", id)))
	defer span.End()

	entry, err := r.store.Get(ctx, id)
	if err != nil {
		r.countDeletion("error")
		return err
	}
	if entry.Meta.Submitter != user {
		r.countDeletion("denied")
		return &AuthorizationError{Msg: "user " + user + " is not the owner of " + id}
	}
	if err := r.store.Delete(ctx, id); err != nil {
		r.countDeletion("error")
		return &StoreError{Op: "delete", Err: err}
	}
	r.countDeletion("deleted")
	r.log.WithFields(map[string]interface{}{"id": id, "user": user}).Info("entry deleted")
	return nil
}

func asConflict(err error, target **ConflictError) bool {
	c, ok := err.(*ConflictError)
	if ok {
		*target = c
	}
	return ok
}

func (r *Registry) countRegistration(req SaveRequest, err error) {
	if r.metrics == nil {
		return
	}
	status := "saved"
	switch {
	case err != nil:
		status = "error"
	case req.DryRun:
		status = "dryrun"
	}
	r.metrics.RegistrationsTotal.WithLabelValues(status).Inc()
}

func (r *Registry) countDeletion(status string) {
	if r.metrics != nil {
		r.metrics.DeletionsTotal.WithLabelValues(status).Inc()
	}
}

func (r *Registry) countRefresh(status RefreshStatus, err error) {
	if r.metrics == nil {
		return
	}
	label := status.String()
	if err != nil && status == RefreshFailed {
		label = "error"
	}
	r.metrics.RefreshesTotal.WithLabelValues(label).Inc()
}
