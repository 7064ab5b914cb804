// Package store provides the in-memory document store and search engine
// used by local deployments and tests. It implements the same store
// contract a hosted search engine would, including best-fields clause
// scoring and field aggregation with keyword-variant resolution.
package store
