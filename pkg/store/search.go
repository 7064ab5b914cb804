package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/specdock/specdock/pkg/query"
)

// Search executes a plan over the stored entries. Clause plans score each
// entry with its best matching clause (clauses never sum); structured
// expressions support the small subset local deployments use.
func (m *Memory) Search(ctx context.Context, plan *query.Plan) ([]query.Hit, error) {
	type candidate struct {
		id  string
		src map[string]any
	}
	m.mu.RLock()
	snapshot := make([]candidate, 0, len(m.order))
	for _, id := range m.order {
		snapshot = append(snapshot, candidate{id: id, src: sourceOf(m.entries[id])})
	}
	m.mu.RUnlock()

	var hits []query.Hit
	for _, doc := range snapshot {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var score float64
		var matched bool
		if plan.Expr != nil {
			ok, err := matchExpr(plan.Expr, doc.id, doc.src)
			if err != nil {
				m.count("search", "error")
				return nil, err
			}
			matched, score = ok, 1.0
		} else {
			score, matched = scoreClauses(plan.Clauses, doc.src)
		}
		if !matched {
			continue
		}
		hits = append(hits, query.Hit{
			ID:     doc.id,
			Score:  score,
			Source: projectFields(doc.src, plan.Fields),
		})
	}

	// stable sort keeps insertion order as the tie-break
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if plan.From > 0 {
		if plan.From >= len(hits) {
			hits = nil
		} else {
			hits = hits[plan.From:]
		}
	}
	if plan.Size > 0 && len(hits) > plan.Size {
		hits = hits[:plan.Size]
	}
	m.count("search", "ok")
	return hits, nil
}

func scoreClauses(clauses []query.Clause, src map[string]any) (float64, bool) {
	var best float64
	var matched bool
	for _, c := range clauses {
		if !matchClause(c, src) {
			continue
		}
		matched = true
		if c.Boost > best {
			best = c.Boost
		}
	}
	return best, matched
}

func matchClause(c query.Clause, src map[string]any) bool {
	switch c.Kind {
	case query.KindTerm:
		for _, v := range fieldValues(src, c.Field) {
			if stringify(v) == c.Value {
				return true
			}
		}
		return false
	case query.KindMatch:
		return tokensContain(tokensOf(fieldValues(src, c.Field)), tokenize(c.Value))
	case query.KindWildcard:
		prefix := strings.ToLower(strings.TrimSuffix(c.Value, "*"))
		if prefix == "" {
			return false
		}
		for _, tok := range allTokens(src) {
			if strings.HasPrefix(tok, prefix) {
				return true
			}
		}
		return false
	default: // KindQueryString
		return tokensContain(allTokens(src), tokenize(c.Value))
	}
}

// tokensContain reports whether every want token appears in have.
func tokensContain(have, want []string) bool {
	if len(want) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

func tokensOf(values []any) []string {
	var tokens []string
	for _, v := range values {
		if s, ok := v.(string); ok {
			tokens = append(tokens, tokenize(s)...)
		}
	}
	return tokens
}

func allTokens(src map[string]any) []string {
	var leaves []string
	leafStrings(src, &leaves)
	var tokens []string
	for _, s := range leaves {
		tokens = append(tokens, tokenize(s)...)
	}
	return tokens
}

// matchExpr evaluates the structured-expression subset: match_all, ids,
// and single-field term queries.
func matchExpr(expr map[string]any, id string, src map[string]any) (bool, error) {
	if len(expr) != 1 {
		return false, fmt.Errorf("store: expression must have exactly one root query, got %d", len(expr))
	}
	for kind, body := range expr {
		switch kind {
		case "match_all":
			return true, nil
		case "ids":
			return matchIDs(body, id)
		case "term":
			return matchTermExpr(body, src)
		default:
			return false, fmt.Errorf("store: unsupported expression %q", kind)
		}
	}
	return false, nil
}

func matchIDs(body any, id string) (bool, error) {
	obj, ok := body.(map[string]any)
	if !ok {
		return false, fmt.Errorf("store: ids expression wants an object body")
	}
	values, ok := obj["values"].([]any)
	if !ok {
		return false, fmt.Errorf("store: ids expression wants a values array")
	}
	for _, v := range values {
		if stringify(v) == id {
			return true, nil
		}
	}
	return false, nil
}

func matchTermExpr(body any, src map[string]any) (bool, error) {
	obj, ok := body.(map[string]any)
	if !ok || len(obj) != 1 {
		return false, fmt.Errorf("store: term expression wants a single-field object body")
	}
	for field, want := range obj {
		// ES accepts both {"field": "v"} and {"field": {"value": "v"}}
		if wrapped, ok := want.(map[string]any); ok {
			want = wrapped["value"]
		}
		for _, v := range fieldValues(src, strings.TrimSuffix(field, ".raw")) {
			if stringify(v) == stringify(want) {
				return true, nil
			}
		}
	}
	return false, nil
}

func projectFields(src map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return src
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		root := f
		if i := strings.IndexByte(f, '.'); i >= 0 {
			root = f[:i]
		}
		if v, ok := src[root]; ok {
			out[root] = v
		}
	}
	return out
}

// Aggregate counts the distinct values of a field across all entries. A
// ".raw" variant resolves to the base field only when that field is in the
// keyword set; asking for the exact variant of a tokenized-only field
// yields no buckets, which is what lets the planner fall back.
func (m *Memory) Aggregate(ctx context.Context, field string, size int) ([]query.Bucket, error) {
	resolved := field
	if strings.HasSuffix(field, ".raw") {
		base := strings.TrimSuffix(field, ".raw")
		if _, ok := m.keywordFields[base]; !ok {
			m.count("aggregate", "ok")
			return nil, nil
		}
		resolved = base
	}

	m.mu.RLock()
	counts := make(map[string]int64)
	for _, id := range m.order {
		for _, v := range fieldValues(sourceOf(m.entries[id]), resolved) {
			if s := stringify(v); s != "" {
				counts[s]++
			}
		}
	}
	m.mu.RUnlock()

	buckets := make([]query.Bucket, 0, len(counts))
	for key, n := range counts {
		buckets = append(buckets, query.Bucket{Key: key, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Key < buckets[j].Key
	})
	if size > 0 && len(buckets) > size {
		buckets = buckets[:size]
	}
	m.count("aggregate", "ok")
	return buckets, nil
}
