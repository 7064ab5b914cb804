// Package observability provides structured logging and Prometheus metrics
// for the registry pipeline.
package observability
