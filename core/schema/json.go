package schema

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// DecodeDocument parses a single JSON object (relaxed or canonical MongoDB
// Extended JSON) into a document, keeping the field order of the input.
func DecodeDocument(data []byte) (Document, error) {
	var raw bson.D
	if err := bson.UnmarshalExtJSON(data, false, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return Normalize(raw).(Document), nil
}

// DecodeValue parses any JSON value (object, array or scalar) into the
// document value union.
func DecodeValue(data []byte) (any, error) {
	wrapped := make([]byte, 0, len(data)+8)
	wrapped = append(wrapped, `{"v":`...)
	wrapped = append(wrapped, data...)
	wrapped = append(wrapped, '}')

	var raw bson.D
	if err := bson.UnmarshalExtJSON(wrapped, false, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("failed to decode value: unexpected shape")
	}
	return Normalize(raw[0].Value), nil
}

// DecodeDocuments parses either a JSON array of objects or newline-delimited
// JSON objects into documents.
func DecodeDocuments(data []byte) ([]Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []Document{}, nil
	}

	if trimmed[0] == '[' {
		v, err := DecodeValue(trimmed)
		if err != nil {
			return nil, err
		}
		list := v.([]any)
		docs := make([]Document, 0, len(list))
		for i, item := range list {
			doc, ok := item.(Document)
			if !ok {
				return nil, fmt.Errorf("element %d is a %s, expected a document", i, TypeName(item))
			}
			docs = append(docs, doc)
		}
		return docs, nil
	}

	var docs []Document
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		doc, err := DecodeDocument(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}

// EncodeDocument renders a document as relaxed Extended JSON, preserving
// field order.
func EncodeDocument(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	out, err := bson.MarshalExtJSON(doc.BSON(), false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return out, nil
}

// EncodeDocuments renders documents as a compact JSON array.
func EncodeDocuments(docs []Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, doc := range docs {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := EncodeDocument(doc)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// PrettyPrint renders documents as an indented JSON array. With sortKeys the
// fields of every nested document are ordered by name, which makes output
// stable for documents built from maps.
func PrettyPrint(docs []Document, sortKeys bool) (string, error) {
	if sortKeys {
		sorted := make([]Document, len(docs))
		for i, doc := range docs {
			sorted[i] = doc.SortedKeys()
		}
		docs = sorted
	}

	compact, err := EncodeDocuments(docs)
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return "", fmt.Errorf("failed to indent documents: %w", err)
	}
	return out.String(), nil
}

// MarshalJSON renders the document as relaxed Extended JSON, so documents
// nested in other values keep their field order under encoding/json.
func (d Document) MarshalJSON() ([]byte, error) {
	return EncodeDocument(d)
}

// UnmarshalJSON parses a JSON object with DecodeDocument.
func (d *Document) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*d = nil
		return nil
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}
