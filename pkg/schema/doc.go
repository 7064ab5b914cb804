// Package schema validates description documents against externally-hosted
// JSON Schemas.
//
// Schemas are fetched from their origin URLs once and cached process-wide.
// Concurrent first loads of the same schema collapse into a single origin
// fetch, and populated entries are revalidated cheaply with the origin's
// cache-validator token. A revalidation failure degrades to the stale
// cached copy; only a failed first load aborts validation.
//
// Validation selects the schema set by the document's version family:
// OpenAPI v3 documents must pass the structural schema and the vendor
// extension schema, legacy Swagger v2 documents the legacy structural
// schema. The first violation is reported with the schema name and the
// dot-joined path to the offending node.
package schema
