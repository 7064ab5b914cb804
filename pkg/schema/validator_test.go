package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specdock/specdock/pkg/document"
)

const (
	coreV3Schema = `{
		"type": "object",
		"required": ["openapi", "info"],
		"properties": {
			"info": {
				"type": "object",
				"required": ["title"],
				"properties": {
					"title": {"type": "string"},
					"version": {"type": "string"}
				}
			}
		}
	}`
	extensionSchema = `{
		"type": "object",
		"properties": {
			"info": {
				"type": "object",
				"required": ["x-vendor"]
			}
		}
	}`
	swagger2Schema = `{
		"type": "object",
		"required": ["swagger", "info"]
	}`
)

func testValidator(t *testing.T) *Validator {
	t.Helper()
	f := newFakeFetcher()
	f.bodies["https://schemas.test/oas3"] = coreV3Schema
	f.bodies["https://schemas.test/ext"] = extensionSchema
	f.bodies["https://schemas.test/swagger2"] = swagger2Schema

	cache := NewCache(f, 0, nil, nil)
	return NewValidator(cache,
		[]Source{
			{Name: "oas3-core", URL: "https://schemas.test/oas3"},
			{Name: "vendor-extension", URL: "https://schemas.test/ext"},
		},
		[]Source{
			{Name: "swagger2", URL: "https://schemas.test/swagger2"},
		},
	)
}

func mustParse(t *testing.T, data string) *document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(data))
	require.NoError(t, err)
	return doc
}

func TestValidateUnknownVersion(t *testing.T) {
	v := testValidator(t)

	err := v.Validate(context.Background(), mustParse(t, `{"info": {"title": "No Version"}}`))
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestValidateV3Valid(t *testing.T) {
	v := testValidator(t)

	doc := mustParse(t, `{
		"openapi": "3.0.0",
		"info": {"title": "Gene API", "version": "1.0", "x-vendor": {"team": "annotations"}}
	}`)
	assert.NoError(t, v.Validate(context.Background(), doc))
}

func TestValidateV3CoreViolation(t *testing.T) {
	v := testValidator(t)

	doc := mustParse(t, `{"openapi": "3.0.0", "info": {"title": 42, "x-vendor": {}}}`)
	err := v.Validate(context.Background(), doc)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "oas3-core", ve.Schema)
	assert.Equal(t, "info.title", ve.Path)
	assert.NotEmpty(t, ve.Message)
}

func TestValidateV3ExtensionViolation(t *testing.T) {
	v := testValidator(t)

	// structurally fine, missing the vendor namespace block
	doc := mustParse(t, `{"openapi": "3.0.0", "info": {"title": "Gene API"}}`)
	err := v.Validate(context.Background(), doc)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "vendor-extension", ve.Schema)
}

func TestValidateV2UsesOnlyLegacySchema(t *testing.T) {
	v := testValidator(t)

	// no vendor extension block required for v2
	doc := mustParse(t, `{"swagger": "2.0", "info": {"title": "Legacy API"}}`)
	assert.NoError(t, v.Validate(context.Background(), doc))

	err := v.Validate(context.Background(), mustParse(t, `{"swagger": "2.0"}`))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "swagger2", ve.Schema)
}

func TestValidateDoesNotMutateDocument(t *testing.T) {
	v := testValidator(t)

	doc := mustParse(t, `{"openapi": "3.0.0", "info": {"title": "Gene API", "x-vendor": {}}}`)
	before := doc.Keys()
	_ = v.Validate(context.Background(), doc)
	assert.Equal(t, before, doc.Keys())
}

func TestValidateSchemaUnavailable(t *testing.T) {
	f := newFakeFetcher()
	// no body registered: the empty response fails to decode, which a
	// first load surfaces as unavailable
	cache := NewCache(f, 0, nil, nil)
	v := NewValidator(cache,
		[]Source{{Name: "oas3-core", URL: "https://schemas.test/missing"}}, nil)

	err := v.Validate(context.Background(), mustParse(t, `{"openapi": "3.0.0"}`))
	var ue *UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "oas3-core", ue.Name)
}
