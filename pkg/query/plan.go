package query

import (
	"encoding/json"
	"strings"
)

// MaxSize is the hard ceiling on hits per search, regardless of what the
// caller asks for.
const MaxSize = 100

// DefaultSize is used when the caller does not specify a size.
const DefaultSize = 10

// ClauseKind identifies how a clause matches a document.
type ClauseKind int

const (
	// KindTerm matches the exact, untokenized value of a field.
	KindTerm ClauseKind = iota
	// KindMatch matches the tokenized value of a field.
	KindMatch
	// KindQueryString is free-text relevance over all fields.
	KindQueryString
	// KindWildcard matches a trailing-wildcard pattern over all fields.
	KindWildcard
)

// Clause is a single scoring alternative within a best-fields plan.
type Clause struct {
	Kind  ClauseKind
	Field string // empty for all-fields kinds
	Value string
	Boost float64
}

// Plan is an executable search request. Either Expr is set (a structured
// expression supplied verbatim by the caller) or Clauses holds a
// disjunction-max set: the highest-scoring clause per document wins,
// clauses are never summed.
type Plan struct {
	Expr    map[string]any
	Clauses []Clause
	Fields  []string
	Size    int
	From    int
}

// Options tune a search plan.
type Options struct {
	Fields []string
	Size   int
	From   int
}

// Build turns query input into a Plan. Input that parses as a JSON object
// is used verbatim as a structured expression, the power-user escape
// hatch. Anything else becomes a ranked disjunction-max plan: exact title
// match boosted highest, exact server-URL match next, exact id as the
// unboosted baseline, free-text relevance, and a trailing-wildcard variant
// of the free text scored lowest.
func Build(q string, opts Options) *Plan {
	p := &Plan{
		Fields: opts.Fields,
		Size:   clampSize(opts.Size),
	}
	if opts.From > 0 {
		p.From = opts.From
	}

	q = strings.TrimSpace(q)
	if expr, ok := parseExpr(q); ok {
		p.Expr = expr
		return p
	}

	p.Clauses = []Clause{
		{Kind: KindTerm, Field: "info.title", Value: q, Boost: 2.0},
		{Kind: KindTerm, Field: "servers.url", Value: q, Boost: 1.1},
		{Kind: KindTerm, Field: "_id", Value: q, Boost: 1.0},
		{Kind: KindQueryString, Value: q, Boost: 1.0},
		{Kind: KindWildcard, Value: q + "*", Boost: 0.8},
	}
	return p
}

func clampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size > MaxSize:
		return MaxSize
	default:
		return size
	}
}

func parseExpr(q string) (map[string]any, bool) {
	if !strings.HasPrefix(q, "{") {
		return nil, false
	}
	var expr map[string]any
	if err := json.Unmarshal([]byte(q), &expr); err != nil {
		return nil, false
	}
	return expr, true
}

// Body renders the plan as an engine query body. For structured
// expressions this is the expression itself; for clause plans it is a
// dis_max query.
func (p *Plan) Body() map[string]any {
	body := map[string]any{"size": p.Size}
	if p.From > 0 {
		body["from"] = p.From
	}
	if len(p.Fields) > 0 {
		body["_source"] = p.Fields
	}

	if p.Expr != nil {
		body["query"] = p.Expr
		return body
	}

	queries := make([]map[string]any, 0, len(p.Clauses))
	for _, c := range p.Clauses {
		queries = append(queries, c.body())
	}
	body["query"] = map[string]any{
		"dis_max": map[string]any{"queries": queries},
	}
	return body
}

func (c Clause) body() map[string]any {
	switch c.Kind {
	case KindTerm:
		return map[string]any{
			"term": map[string]any{
				c.Field: map[string]any{"value": c.Value, "boost": c.Boost},
			},
		}
	case KindMatch:
		return map[string]any{
			"match": map[string]any{
				c.Field: map[string]any{"query": c.Value, "boost": c.Boost},
			},
		}
	case KindWildcard:
		return map[string]any{
			"query_string": map[string]any{"query": c.Value, "boost": c.Boost},
		}
	default:
		return map[string]any{
			"query_string": map[string]any{"query": c.Value},
		}
	}
}
