package registry

import "github.com/specdock/specdock/pkg/document"

// swaggerV2Fields is the whitelist of top-level fields indexed for legacy
// v2 entries. Everything else survives only in the verbatim copy.
var swaggerV2Fields = []string{"info", "tags", "swagger", "host", "basePath"}

// BuildEntry converts a validated document into its registry entry: the id
// derived from the source locator, the version-specific projection, and
// the verbatim encoded copy. The input document is not modified.
func BuildEntry(doc *document.Document, meta Meta) (*Entry, error) {
	id, err := EncodeID(meta.URL)
	if err != nil {
		return nil, err
	}

	raw, err := EncodeRaw(doc)
	if err != nil {
		return nil, err
	}

	var projection *document.Document
	switch doc.Version() {
	case document.VersionOpenAPIV3:
		projection = projectV3(doc)
	case document.VersionSwaggerV2:
		projection = projectV2(doc)
		meta.SwaggerV2 = true
	default:
		return nil, inputErrorf("version unknown or unsupported")
	}

	return &Entry{
		ID:         id,
		Meta:       meta,
		Raw:        raw,
		Projection: projection,
	}, nil
}

// projectV3 copies the document and rewrites the dynamically-keyed paths
// object into an ordered sequence of {path, pathitem} pairs, one per
// original key, in source order. All other fields pass through unchanged.
func projectV3(doc *document.Document) *document.Document {
	out := document.New()
	for _, key := range doc.Keys() {
		v, _ := doc.Get(key)
		out.Set(key, v)
	}

	paths, ok := doc.Get("paths")
	if !ok {
		return out
	}
	pathsDoc, ok := paths.(*document.Document)
	if !ok || pathsDoc.Len() == 0 {
		return out
	}

	items := make([]any, 0, pathsDoc.Len())
	for _, path := range pathsDoc.Keys() {
		item := document.New()
		item.Set("path", path)
		pathItem, _ := pathsDoc.Get(path)
		item.Set("pathitem", pathItem)
		items = append(items, item)
	}
	out.Set("paths", items)
	return out
}

// projectV2 keeps only the whitelisted fields of a legacy document.
func projectV2(doc *document.Document) *document.Document {
	out := document.New()
	for _, key := range swaggerV2Fields {
		if v, ok := doc.Get(key); ok {
			out.Set(key, v)
		}
	}
	return out
}
