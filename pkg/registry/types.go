package registry

import (
	"context"
	"time"

	"github.com/specdock/specdock/pkg/document"
	"github.com/specdock/specdock/pkg/fetch"
	"github.com/specdock/specdock/pkg/query"
)

// Meta is the registration metadata of an entry. It travels with the
// document as its "_meta" field at the boundary.
type Meta struct {
	Submitter string    `json:"github_username"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
	ETag      string    `json:"ETag,omitempty"`
	Slug      string    `json:"slug,omitempty"`
	SwaggerV2 bool      `json:"swagger_v2,omitempty"`
}

// Entry is the persisted unit of the registry. Raw is the verbatim copy of
// the source document, authoritative for byte-exact reads; Projection is
// the version-specific indexable record used for search and aggregation,
// never authoritative.
type Entry struct {
	ID         string
	Meta       Meta
	Raw        string
	Projection *document.Document
}

// PutMode selects the write semantics of a store put.
type PutMode int

const (
	// PutCreate fails with a conflict if the id already exists.
	PutCreate PutMode = iota
	// PutOverwrite replaces any existing entry under the id.
	PutOverwrite
)

// Store is the abstract document store the registry writes through.
// Implementations report a missing id as ErrNotFound and a create-mode
// collision as *ConflictError.
type Store interface {
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*Entry, error)
	Put(ctx context.Context, entry *Entry, mode PutMode) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, plan *query.Plan) ([]query.Hit, error)
	Aggregate(ctx context.Context, field string, size int) ([]query.Bucket, error)

	// ScanAll streams entries to fn, optionally restricted to the given
	// ids. The scan is finite and restartable by calling again. A non-nil
	// error from fn stops the scan.
	ScanAll(ctx context.Context, ids []string, fn func(*Entry) error) error
}

// Validator checks a description document against the schema set for its
// declared version.
type Validator interface {
	Validate(ctx context.Context, doc *document.Document) error
}

// Fetcher retrieves description documents from their source locators.
type Fetcher interface {
	FetchDocument(ctx context.Context, url string) (*document.Document, string, error)
	FetchIfChanged(ctx context.Context, url, priorETag string) (*fetch.Resource, bool, error)
}
