package registry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/specdock/specdock/pkg/document"
)

// RefreshStatus is the outcome of refreshing one entry from its source.
type RefreshStatus int

const (
	// RefreshFailed means the source could not be fetched or the store
	// write failed; the entry is unchanged.
	RefreshFailed RefreshStatus = iota
	// RefreshNotModified means the source reported no change; only the
	// refresh timestamp was updated.
	RefreshNotModified
	// RefreshUpdated means a new version was fetched, validated, and
	// stored.
	RefreshUpdated
	// RefreshInvalid means the source served a document that no longer
	// validates; the stored copy was kept.
	RefreshInvalid
)

func (s RefreshStatus) String() string {
	switch s {
	case RefreshNotModified:
		return "not_modified"
	case RefreshUpdated:
		return "updated"
	case RefreshInvalid:
		return "invalid"
	default:
		return "failed"
	}
}

// Refresh re-fetches the document at the stored locator and re-runs the
// pipeline against the same id. Identity and an assigned slug are always
// preserved; raw, projection, timestamp, and validator token are replaced.
// In a dry run nothing is written.
func (r *Registry) Refresh(ctx context.Context, id string, dryRun bool) (RefreshStatus, error) {
	ctx, span := tracer.Start(ctx, "registry.Refresh",
		trace.WithAttributes(
			attribute.String("id", id),
			attribute.Bool("dry_run", dryRun),
		))
	defer span.End()

	status, err := r.refresh(ctx, id, dryRun)
	r.countRefresh(status, err)
	return status, err
}

func (r *Registry) refresh(ctx context.Context, id string, dryRun bool) (RefreshStatus, error) {
	entry, err := r.store.Get(ctx, id)
	if err != nil {
		return RefreshFailed, err
	}

	res, notModified, err := r.fetcher.FetchIfChanged(ctx, entry.Meta.URL, entry.Meta.ETag)
	if err != nil {
		return RefreshFailed, err
	}

	if notModified {
		if dryRun {
			return RefreshNotModified, nil
		}
		entry.Meta.Timestamp = r.now().UTC()
		if err := r.store.Put(ctx, entry, PutOverwrite); err != nil {
			return RefreshFailed, &StoreError{Op: "put", Err: err}
		}
		return RefreshNotModified, nil
	}

	doc, err := document.Parse(res.Body)
	if err != nil {
		return RefreshInvalid, inputErrorf("refresh %s: %v", id, err)
	}
	if err := r.validator.Validate(ctx, doc); err != nil {
		return RefreshInvalid, err
	}

	updated, err := BuildEntry(doc, Meta{
		Submitter: entry.Meta.Submitter,
		URL:       entry.Meta.URL,
		Timestamp: r.now().UTC(),
		ETag:      res.ETag,
		Slug:      entry.Meta.Slug,
	})
	if err != nil {
		return RefreshInvalid, err
	}

	if dryRun {
		return RefreshUpdated, nil
	}
	if err := r.store.Put(ctx, updated, PutOverwrite); err != nil {
		return RefreshFailed, &StoreError{Op: "put", Err: err}
	}

	r.log.WithField("id", id).Info("entry refreshed")
	return RefreshUpdated, nil
}

// RefreshResult is the per-id outcome of a bulk refresh.
type RefreshResult struct {
	ID     string
	Status RefreshStatus
	Err    error
}

// RefreshAll refreshes the given ids, or every entry when ids is empty.
// Entries are processed concurrently up to the configured worker bound,
// with no ordering guarantee between them. A failure on one id never
// aborts the batch; each id reports its own result. With dryRun set, the
// batch validates and transforms but writes nothing, for impact assessment
// before a real refresh.
func (r *Registry) RefreshAll(ctx context.Context, ids []string, dryRun bool) []RefreshResult {
	if len(ids) == 0 {
		err := r.store.ScanAll(ctx, nil, func(e *Entry) error {
			ids = append(ids, e.ID)
			return nil
		})
		if err != nil {
			return []RefreshResult{{Status: RefreshFailed, Err: &StoreError{Op: "scan", Err: err}}}
		}
	}

	results := make([]RefreshResult, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.refreshWorkers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			// each goroutine owns its slot; no error return so one
			// failure never cancels the batch
			status, err := r.Refresh(ctx, id, dryRun)
			results[i] = RefreshResult{ID: id, Status: status, Err: err}
			return nil
		})
	}
	g.Wait()

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	r.log.WithFields(map[string]interface{}{
		"total":   len(ids),
		"failed":  failed,
		"dry_run": dryRun,
	}).Info("bulk refresh finished")
	return results
}

// RefreshAllJob returns a closure for a scheduler that refreshes every
// stored entry. It runs against the registry's own store, so entries
// registered by the serving process are picked up on the next tick.
// Per-id failures are logged and never abort the job.
func (r *Registry) RefreshAllJob(dryRun bool) func() {
	return func() {
		for _, res := range r.RefreshAll(context.Background(), nil, dryRun) {
			if res.Err != nil {
				r.log.WithFields(map[string]interface{}{
					"id":     res.ID,
					"status": res.Status.String(),
				}).WithError(res.Err).Warn("scheduled refresh failed")
			}
		}
	}
}
