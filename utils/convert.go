// Package utils holds helpers shared by the command line tool and the
// examples: typed document conversion and logger construction.
package utils

import (
	"fmt"
	"reflect"

	"github.com/asaidimu/go-aggregate/core/schema"
	"go.mongodb.org/mongo-driver/bson"
)

// StructToDocument converts a struct, or a pointer to one, into a document.
// Field names and order follow the struct's bson tags, so
//
//	type Student struct {
//		ID   string `bson:"_id,omitempty"`
//		Name string `bson:"name"`
//	}
//
// becomes {_id, name}, with _id left out when empty.
func StructToDocument[T any](record T) (schema.Document, error) {
	val := reflect.ValueOf(record)
	if !val.IsValid() {
		return nil, fmt.Errorf("StructToDocument: input record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, fmt.Errorf("StructToDocument: input record cannot be a nil pointer to a struct")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("StructToDocument: input record must be a struct or a pointer to a struct, got %s", val.Kind())
	}

	data, err := bson.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("StructToDocument: failed to marshal record: %w", err)
	}
	var raw bson.D
	if err := bson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("StructToDocument: failed to read marshalled record: %w", err)
	}
	return schema.Normalize(raw).(schema.Document), nil
}

// DocumentToStruct is the inverse of StructToDocument: it decodes doc into a
// new value of the struct type T.
func DocumentToStruct[T any](doc schema.Document) (T, error) {
	var zero T
	if doc == nil {
		return zero, fmt.Errorf("DocumentToStruct: input document cannot be nil")
	}

	typ := reflect.TypeOf(zero)
	if typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("DocumentToStruct: type parameter must be a struct type (or pointer to struct)")
	}

	data, err := bson.Marshal(doc.BSON())
	if err != nil {
		return zero, fmt.Errorf("DocumentToStruct: failed to marshal document: %w", err)
	}
	var result T
	if err := bson.Unmarshal(data, &result); err != nil {
		return zero, fmt.Errorf("DocumentToStruct: failed to decode document: %w", err)
	}
	return result, nil
}

// DocumentsToStructs decodes every document into T.
func DocumentsToStructs[T any](docs []schema.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for i, doc := range docs {
		v, err := DocumentToStruct[T](doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
