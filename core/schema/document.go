// Package schema defines the dynamic, schema-less document model shared by the
// query layer, the aggregation evaluator and the storage backends. A Document is
// an ordered list of fields whose values form a tagged union over null, numbers,
// strings, booleans, lists and nested documents.
package schema

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDField is the reserved field holding a document's identity.
const IDField = "_id"

// Field is a single name/value pair of a Document.
type Field = primitive.E

// Document is an ordered mapping from field name to value. It shares its
// representation with bson.D so documents move to and from the MongoDB driver
// without copying.
type Document bson.D

// NewDocument builds a document from alternating key/value arguments.
// It panics if a key is not a string, mirroring a programming error rather
// than a data error.
func NewDocument(kv ...any) Document {
	doc := make(Document, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic("schema.NewDocument: keys must be strings")
		}
		doc = doc.Set(key, Normalize(kv[i+1]))
	}
	return doc
}

// Len returns the number of fields in the document.
func (d Document) Len() int { return len(d) }

// Keys returns the field names in order.
func (d Document) Keys() []string {
	keys := make([]string, len(d))
	for i, f := range d {
		keys[i] = f.Key
	}
	return keys
}

// index returns the position of key, or -1.
func (d Document) index(key string) int {
	for i, f := range d {
		if f.Key == key {
			return i
		}
	}
	return -1
}

// Get returns the value of a top-level field.
func (d Document) Get(key string) (any, bool) {
	if i := d.index(key); i >= 0 {
		return d[i].Value, true
	}
	return nil, false
}

// Has reports whether a top-level field is present.
func (d Document) Has(key string) bool {
	return d.index(key) >= 0
}

// Set returns a document with key bound to value. An existing field keeps its
// position; a new field is appended. Values outside the document value union
// are normalized. The receiver is not modified.
func (d Document) Set(key string, value any) Document {
	switch value.(type) {
	case nil, bool, int32, int64, float64, string, Document, []any:
	default:
		value = Normalize(value)
	}
	out := make(Document, len(d), len(d)+1)
	copy(out, d)
	if i := out.index(key); i >= 0 {
		out[i].Value = value
		return out
	}
	return append(out, Field{Key: key, Value: value})
}

// Delete returns a document without key. The receiver is not modified.
func (d Document) Delete(key string) Document {
	i := d.index(key)
	if i < 0 {
		return d.Clone()
	}
	out := make(Document, 0, len(d)-1)
	out = append(out, d[:i]...)
	return append(out, d[i+1:]...)
}

// ID returns the identity field of the document.
func (d Document) ID() (any, bool) {
	return d.Get(IDField)
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for i, f := range d {
		out[i] = Field{Key: f.Key, Value: CloneValue(f.Value)}
	}
	return out
}

// CloneValue deep-copies lists and nested documents; scalars are returned as is.
func CloneValue(v any) any {
	switch val := v.(type) {
	case Document:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Map converts the document into a map, recursively. Field order is lost.
func (d Document) Map() map[string]any {
	m := make(map[string]any, len(d))
	for _, f := range d {
		m[f.Key] = toPlain(f.Value)
	}
	return m
}

func toPlain(v any) any {
	switch val := v.(type) {
	case Document:
		return val.Map()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toPlain(item)
		}
		return out
	default:
		return v
	}
}

// BSON converts the document into a bson.D tree suitable for the MongoDB
// driver and the Extended JSON codec.
func (d Document) BSON() bson.D {
	out := make(bson.D, len(d))
	for i, f := range d {
		out[i] = bson.E{Key: f.Key, Value: toBSON(f.Value)}
	}
	return out
}

// BSONValue normalizes v and converts it into its bson representation.
func BSONValue(v any) any {
	return toBSON(Normalize(v))
}

func toBSON(v any) any {
	switch val := v.(type) {
	case Document:
		return val.BSON()
	case []any:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = toBSON(item)
		}
		return out
	default:
		return v
	}
}

// SortedKeys returns a deep copy of the document with every level's fields
// ordered by name.
func (d Document) SortedKeys() Document {
	out := d.Clone()
	sortFields(out)
	return out
}

func sortFields(d Document) {
	sort.SliceStable(d, func(i, j int) bool { return d[i].Key < d[j].Key })
	for _, f := range d {
		sortValue(f.Value)
	}
}

func sortValue(v any) {
	switch val := v.(type) {
	case Document:
		sortFields(val)
	case []any:
		for _, item := range val {
			sortValue(item)
		}
	}
}
