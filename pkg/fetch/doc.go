// Package fetch retrieves description documents and validation schemas
// from their origin URLs.
//
// Fetches are bounded by a fixed timeout and surface failures as *Error so
// callers can distinguish origin trouble from local input problems.
// Conditional fetches use the origin's cache-validator token (ETag) to skip
// re-downloading unchanged resources, and an optional in-process LRU cache
// absorbs repeated fetches of the same locator.
package fetch
