// Package api implements the HTTP surface of the registry.
//
// All mutating routes require a pre-resolved identity in the
// X-SpecDock-User header; the server performs no authentication itself.
// Reads are anonymous. Errors use the standardized body of pkg/httputil,
// with schema violations carrying the violated schema name and the path
// to the offending node.
package api
