package registry

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/specdock/specdock/pkg/document"
)

// rawKeyOrder is the canonical top-level key order applied when a verbatim
// copy is decoded for presentation. Keys not named here keep their stored
// order, after these.
var rawKeyOrder = []string{
	"openapi", "info", "servers",
	"externalDocs", "tags", "security",
	"paths", "components",
}

// EncodeRaw serializes the unmodified document to canonical JSON,
// compresses it, and encodes the result for storage. The value round-trips
// through DecodeRaw to an exact copy of the document.
func EncodeRaw(doc *document.Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode raw: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("encode raw: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("encode raw: %w", err)
	}

	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeRawBytes recovers the stored JSON bytes of a verbatim copy.
func DecodeRawBytes(raw string) ([]byte, error) {
	compressed, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode raw: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decode raw: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decode raw: %w", err)
	}
	return data, nil
}

// DecodeRaw recovers the original document from its stored verbatim copy.
// When ordered is true, the top-level keys are rearranged into the
// canonical metadata key order, with unrecognized keys trailing in their
// stored order.
func DecodeRaw(raw string, ordered bool) (*document.Document, error) {
	data, err := DecodeRawBytes(raw)
	if err != nil {
		return nil, err
	}
	doc, err := document.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("decode raw: %w", err)
	}
	if !ordered {
		return doc, nil
	}

	sorted := document.New()
	for _, key := range rawKeyOrder {
		if v, ok := doc.Get(key); ok {
			sorted.Set(key, v)
		}
	}
	for _, key := range doc.Keys() {
		if !sorted.Has(key) {
			sorted.Set(key, mustGet(doc, key))
		}
	}
	return sorted, nil
}

func mustGet(doc *document.Document, key string) any {
	v, _ := doc.Get(key)
	return v
}
