package query

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("specdock/query")

// Hit is a single ranked search result.
type Hit struct {
	ID     string
	Score  float64
	Source map[string]any
}

// Bucket is one distinct value of an aggregated field with its frequency.
type Bucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Store is the slice of the document store the planner drives.
type Store interface {
	Search(ctx context.Context, plan *Plan) ([]Hit, error)
	Aggregate(ctx context.Context, field string, size int) ([]Bucket, error)
}

// Planner builds relevance-ranked search and facet queries and runs them
// against the store.
type Planner struct {
	store Store
}

// NewPlanner creates a planner over the given store.
func NewPlanner(store Store) *Planner {
	return &Planner{store: store}
}

// Search plans and executes a query. Size is clamped to MaxSize and a
// non-positive offset is ignored.
func (p *Planner) Search(ctx context.Context, q string, opts Options) ([]Hit, error) {
	ctx, span := tracer.Start(ctx, "query.Search",
		trace.WithAttributes(attribute.String("q", q)))
	defer span.End()

	return p.store.Search(ctx, Build(q, opts))
}

// Suggest returns the most frequent distinct values of a field. The
// exact-match (non-tokenized) variant of the field is aggregated first;
// when it yields no buckets the planner falls back to the tokenized
// variant, which covers fields indexed only in tokenized form.
func (p *Planner) Suggest(ctx context.Context, field string, size int) ([]Bucket, error) {
	ctx, span := tracer.Start(ctx, "query.Suggest",
		trace.WithAttributes(attribute.String("field", field)))
	defer span.End()

	if size <= 0 {
		size = DefaultSize
	} else if size > MaxSize {
		size = MaxSize
	}

	exact := field
	if !strings.HasSuffix(field, ".raw") && !strings.HasPrefix(field, "_meta.") {
		exact = field + ".raw"
	}

	buckets, err := p.store.Aggregate(ctx, exact, size)
	if err != nil {
		return nil, err
	}
	if len(buckets) > 0 || exact == field {
		return buckets, nil
	}
	return p.store.Aggregate(ctx, field, size)
}
