package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/specdock/specdock/pkg/observability"
	"github.com/specdock/specdock/pkg/query"
	"github.com/specdock/specdock/pkg/registry"
)

// defaultKeywordFields are the fields indexed with a non-tokenized ".raw"
// variant, mirroring the index mapping of the hosted engine.
var defaultKeywordFields = []string{
	"tags.name",
	"info.contact.name",
}

// Memory is an in-process document store and search engine. It backs local
// deployments and tests; production deployments point the same interfaces
// at a hosted search engine.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*registry.Entry
	order   []string

	keywordFields map[string]struct{}
	metrics       *observability.Metrics
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithKeywordFields replaces the set of fields that carry a non-tokenized
// ".raw" variant.
func WithKeywordFields(fields ...string) MemoryOption {
	return func(m *Memory) {
		m.keywordFields = make(map[string]struct{}, len(fields))
		for _, f := range fields {
			m.keywordFields[f] = struct{}{}
		}
	}
}

// WithMetrics records store operation counts.
func WithMetrics(metrics *observability.Metrics) MemoryOption {
	return func(m *Memory) { m.metrics = metrics }
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:       make(map[string]*registry.Entry),
		keywordFields: make(map[string]struct{}),
	}
	for _, f := range defaultKeywordFields {
		m.keywordFields[f] = struct{}{}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Exists reports whether an entry is stored under id.
func (m *Memory) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[id]
	m.count("exists", "ok")
	return ok, nil
}

// Get returns a copy of the entry under id.
func (m *Memory) Get(ctx context.Context, id string) (*registry.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok {
		m.count("get", "not_found")
		return nil, registry.ErrNotFound
	}
	m.count("get", "ok")
	return clone(entry), nil
}

// Put stores an entry. Create mode fails with a conflict when the id is
// taken; overwrite mode replaces the whole entry, last write winning.
func (m *Memory) Put(ctx context.Context, entry *registry.Entry, mode registry.PutMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.entries[entry.ID]
	if mode == registry.PutCreate && exists {
		m.count("put", "conflict")
		return &registry.ConflictError{Msg: fmt.Sprintf("entry %s already exists", entry.ID)}
	}
	if !exists {
		m.order = append(m.order, entry.ID)
	}
	m.entries[entry.ID] = clone(entry)
	m.count("put", "ok")
	return nil
}

// Delete removes the entry under id.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		m.count("delete", "not_found")
		return registry.ErrNotFound
	}
	delete(m.entries, id)
	for i, stored := range m.order {
		if stored == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.count("delete", "ok")
	return nil
}

// ScanAll streams entries in insertion order, optionally restricted to the
// given ids.
func (m *Memory) ScanAll(ctx context.Context, ids []string, fn func(*registry.Entry) error) error {
	var filter map[string]struct{}
	if len(ids) > 0 {
		filter = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			filter[id] = struct{}{}
		}
	}

	m.mu.RLock()
	snapshot := make([]*registry.Entry, 0, len(m.order))
	for _, id := range m.order {
		if filter != nil {
			if _, ok := filter[id]; !ok {
				continue
			}
		}
		snapshot = append(snapshot, clone(m.entries[id]))
	}
	m.mu.RUnlock()

	for _, entry := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

func clone(entry *registry.Entry) *registry.Entry {
	c := *entry
	return &c
}

func (m *Memory) count(op, status string) {
	if m.metrics != nil {
		m.metrics.StoreOperationsTotal.WithLabelValues(op, status).Inc()
	}
}

// sourceOf composes the searchable view of an entry: the projection plus
// the _meta object and _id, the shape the hosted engine indexes.
func sourceOf(entry *registry.Entry) map[string]any {
	src, _ := entry.Projection.Interface().(map[string]any)
	if src == nil {
		src = make(map[string]any)
	}
	meta := map[string]any{
		"github_username": entry.Meta.Submitter,
		"url":             entry.Meta.URL,
		"timestamp":       entry.Meta.Timestamp,
	}
	if entry.Meta.ETag != "" {
		meta["ETag"] = entry.Meta.ETag
	}
	if entry.Meta.Slug != "" {
		meta["slug"] = entry.Meta.Slug
	}
	if entry.Meta.SwaggerV2 {
		meta["swagger_v2"] = true
	}
	src["_meta"] = meta
	src["_id"] = entry.ID
	return src
}

// fieldValues resolves a dotted field path against a source document,
// descending through arrays, and returns every value found.
func fieldValues(src map[string]any, field string) []any {
	segments := strings.Split(field, ".")
	values := []any{any(src)}
	for _, seg := range segments {
		var next []any
		for _, v := range values {
			switch t := v.(type) {
			case map[string]any:
				if child, ok := t[seg]; ok {
					next = append(next, child)
				}
			case []any:
				for _, item := range t {
					if obj, ok := item.(map[string]any); ok {
						if child, ok := obj[seg]; ok {
							next = append(next, child)
						}
					}
				}
			}
		}
		values = next
		if len(values) == 0 {
			return nil
		}
	}

	// flatten trailing arrays so callers see scalar values
	var flat []any
	for _, v := range values {
		if arr, ok := v.([]any); ok {
			flat = append(flat, arr...)
		} else {
			flat = append(flat, v)
		}
	}
	return flat
}

func leafStrings(v any, out *[]string) {
	switch t := v.(type) {
	case map[string]any:
		for _, child := range t {
			leafStrings(child, out)
		}
	case []any:
		for _, child := range t {
			leafStrings(child, out)
		}
	case string:
		*out = append(*out, t)
	}
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

var _ registry.Store = (*Memory)(nil)
var _ query.Store = (*Memory)(nil)
