package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/specdock/specdock/pkg/document"
)

// ErrUnknownVersion is returned when a document carries no supported
// version discriminator. It is reported before any schema is selected.
var ErrUnknownVersion = errors.New("version unknown or unsupported")

// ValidationError is a structural schema violation: the first violation
// encountered, with the schema that rejected the document and the
// dot-joined path to the offending node.
type ValidationError struct {
	Schema  string
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed at %q: %s", e.Schema, e.Path, e.Message)
}

// EngineError is an error raised by the schema engine itself rather than a
// structural violation. It preserves the schema being evaluated at the
// time.
type EngineError struct {
	Schema string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("unexpected validation error in %s: %v", e.Schema, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Validator validates description documents against the schema set for
// their declared version.
type Validator struct {
	cache *Cache
	v3    []Source
	v2    []Source
}

// NewValidator creates a validator over the given cache. v3 documents must
// pass every schema in v3Sources (the structural schema plus the vendor
// extension schema); v2 documents must pass every schema in v2Sources.
func NewValidator(cache *Cache, v3Sources, v2Sources []Source) *Validator {
	return &Validator{cache: cache, v3: v3Sources, v2: v2Sources}
}

// Validate checks the document against the schema set selected by its
// version discriminator. It does not mutate the document. The first
// violation stops validation.
func (v *Validator) Validate(ctx context.Context, doc *document.Document) error {
	var sources []Source
	switch doc.Version() {
	case document.VersionOpenAPIV3:
		sources = v.v3
	case document.VersionSwaggerV2:
		sources = v.v2
	default:
		return ErrUnknownVersion
	}

	schemas, err := v.cache.Schemas(ctx, sources...)
	if err != nil {
		return err
	}

	instance := doc.Interface()
	for _, src := range sources {
		if err := schemas[src.Name].Validate(instance); err != nil {
			var ve *jsonschema.ValidationError
			if errors.As(err, &ve) {
				return violation(src.Name, ve)
			}
			return &EngineError{Schema: src.Name, Err: err}
		}
	}
	return nil
}

var errPrinter = message.NewPrinter(language.English)

// violation reports the deepest first cause: the leaf error closest to the
// offending node.
func violation(schemaName string, err *jsonschema.ValidationError) *ValidationError {
	leaf := err
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return &ValidationError{
		Schema:  schemaName,
		Path:    strings.Join(leaf.InstanceLocation, "."),
		Message: leaf.ErrorKind.LocalizedString(errPrinter),
	}
}
