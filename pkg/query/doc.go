// Package query builds relevance-ranked search and term-aggregation
// queries over the registry index.
//
// Free-text input becomes a disjunction-max plan: a set of scoring
// alternatives (exact title, exact server URL, exact id, free text, and a
// trailing-wildcard variant) where the best-scoring clause per document
// wins. Input that already parses as a structured expression bypasses
// planning and is handed to the store verbatim.
package query
