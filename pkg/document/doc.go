// Package document provides an order-preserving representation of JSON and
// YAML API description documents.
//
// The registry must keep dynamically-named keys (the OpenAPI "paths" object
// in particular) in their source order from fetch through indexing, which
// rules out decoding straight into Go maps. Document decodes through the
// YAML node tree instead and records key order alongside the values.
//
// The package also owns version detection: the format family of a document
// is decided once at parse time from its discriminator field and carried as
// a closed Version value, so downstream components dispatch on a tag rather
// than re-inspecting the raw document.
package document
