// Package registry implements the registration pipeline for API
// description documents: identity derivation, transformation into an
// indexable record, and the create, refresh, slug, and delete operations
// over the document store.
//
// An entry's id is a content address of its source locator, not of the
// document bytes: a document that changes at the same locator refreshes
// the existing entry instead of creating a new one. The verbatim source
// document is always kept, compressed and encoded, next to a
// version-specific projection used for search.
//
// The exists-check before a create is advisory: two concurrent
// registrations of the same new locator can both pass it and both write,
// with the later write winning. Callers that need at-most-once creation
// opt into the store's conditional put with WithConditionalCreate.
package registry
