package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"
)

// Document is a JSON/YAML object that remembers the order its keys appeared
// in the source bytes. API descriptions use dynamically-named keys (most
// notably the "paths" object) whose order is meaningful to consumers, so the
// standard map-based decoding is not enough.
type Document struct {
	keys   []string
	values map[string]any
}

// New returns an empty Document.
func New() *Document {
	return &Document{values: make(map[string]any)}
}

// Parse decodes JSON or YAML bytes into a Document. YAML is a superset of
// JSON, so a single decoder handles both formats. The top-level value must
// be an object.
func Parse(data []byte) (*Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("not valid JSON or YAML: %w", err)
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	root := node.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("document root must be an object")
	}
	v, err := convertNode(root)
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}

func convertNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.MappingNode:
		doc := New()
		for i := 0; i+1 < len(node.Content); i += 2 {
			var key string
			if err := node.Content[i].Decode(&key); err != nil {
				return nil, fmt.Errorf("object key at line %d: %w", node.Content[i].Line, err)
			}
			val, err := convertNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			doc.Set(key, val)
		}
		return doc, nil
	case yaml.SequenceNode:
		seq := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			val, err := convertNode(item)
			if err != nil {
				return nil, err
			}
			seq = append(seq, val)
		}
		return seq, nil
	case yaml.ScalarNode:
		var val any
		if err := node.Decode(&val); err != nil {
			return nil, fmt.Errorf("scalar at line %d: %w", node.Line, err)
		}
		return val, nil
	case yaml.AliasNode:
		return convertNode(node.Alias)
	default:
		return nil, fmt.Errorf("unsupported node kind %v at line %d", node.Kind, node.Line)
	}
}

// Keys returns the keys in source order. The returned slice is a copy.
func (d *Document) Keys() []string {
	keys := make([]string, len(d.keys))
	copy(keys, d.keys)
	return keys
}

// Len returns the number of keys.
func (d *Document) Len() int {
	return len(d.keys)
}

// Get returns the value for key and whether it is present.
func (d *Document) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// GetString returns the value for key if it is a string, or "".
func (d *Document) GetString(key string) string {
	if s, ok := d.values[key].(string); ok {
		return s
	}
	return ""
}

// Set stores a value, appending the key if it is new.
func (d *Document) Set(key string, value any) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Delete removes a key, preserving the order of the remaining keys.
func (d *Document) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Path walks nested objects by key segments and returns the value at the
// end of the walk. The walk short-circuits on the first missing segment.
func (d *Document) Path(segments ...string) (any, bool) {
	var cur any = d
	for _, seg := range segments {
		obj, ok := cur.(*Document)
		if !ok {
			return nil, false
		}
		cur, ok = obj.Get(seg)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Interface converts the document to plain map[string]any / []any values,
// the representation schema engines and encoders expect. Key order is lost.
func (d *Document) Interface() any {
	return plain(d)
}

func plain(v any) any {
	switch t := v.(type) {
	case *Document:
		m := make(map[string]any, len(t.keys))
		for _, k := range t.keys {
			m[k] = plain(t.values[k])
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, item := range t {
			s[i] = plain(item)
		}
		return s
	default:
		return v
	}
}

// Equal reports whether two documents hold the same values, ignoring key
// order.
func (d *Document) Equal(other *Document) bool {
	if other == nil {
		return d == nil
	}
	return reflect.DeepEqual(d.Interface(), other.Interface())
}

// MarshalJSON encodes the document with keys in source order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
