// Package loader imports documents into a collection from CSV sheets and
// Extended JSON files.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/asaidimu/go-aggregate/core/persistence"
	"github.com/asaidimu/go-aggregate/core/schema"
)

// DefaultBatchSize is the number of documents inserted per call when the
// options do not set one.
const DefaultBatchSize = 500

// CSVOptions configures LoadCSV.
type CSVOptions struct {
	// Renames maps header names to document field names.
	Renames map[string]string
	// Text lists columns, by header name, that are never converted to
	// numbers.
	Text []string
	// BatchSize bounds the documents inserted per call.
	BatchSize int
}

// LoadCSV reads a header row followed by data rows and inserts one document
// per row, fields in column order. Cells holding integers become int64,
// other numbers float64, empty cells null; the rest stay strings. It returns
// the number of documents inserted.
func LoadCSV(ctx context.Context, r io.Reader, coll persistence.PersistenceCollectionInterface, opts CSVOptions) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	text := make(map[string]bool, len(opts.Text))
	for _, col := range opts.Text {
		text[col] = true
	}
	fields := make([]string, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		fields[i] = col
		if renamed, ok := opts.Renames[col]; ok {
			fields[i] = renamed
		}
		if text[col] {
			text[fields[i]] = true
		}
	}

	batch := newBatcher(ctx, coll, opts.BatchSize)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return batch.inserted, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		doc := make(schema.Document, 0, len(fields))
		for i, cell := range record {
			if i >= len(fields) {
				break
			}
			doc = append(doc, schema.Field{Key: fields[i], Value: convertCell(cell, text[fields[i]])})
		}
		if err := batch.add(doc); err != nil {
			return batch.inserted, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := batch.flush(); err != nil {
		return batch.inserted, err
	}
	return batch.inserted, nil
}

func convertCell(cell string, keepText bool) any {
	if keepText {
		return cell
	}
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return cell
}

// LoadJSON inserts the documents of a JSON array or of newline-delimited
// JSON objects, both in relaxed or canonical Extended JSON. It returns the
// number of documents inserted.
func LoadJSON(ctx context.Context, r io.Reader, coll persistence.PersistenceCollectionInterface) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read JSON input: %w", err)
	}
	docs, err := schema.DecodeDocuments(data)
	if err != nil {
		return 0, err
	}

	batch := newBatcher(ctx, coll, 0)
	for _, doc := range docs {
		if err := batch.add(doc); err != nil {
			return batch.inserted, err
		}
	}
	if err := batch.flush(); err != nil {
		return batch.inserted, err
	}
	return batch.inserted, nil
}

type batcher struct {
	ctx      context.Context
	coll     persistence.PersistenceCollectionInterface
	size     int
	pending  []schema.Document
	inserted int
}

func newBatcher(ctx context.Context, coll persistence.PersistenceCollectionInterface, size int) *batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &batcher{ctx: ctx, coll: coll, size: size}
}

func (b *batcher) add(doc schema.Document) error {
	b.pending = append(b.pending, doc)
	if len(b.pending) >= b.size {
		return b.flush()
	}
	return nil
}

func (b *batcher) flush() error {
	if len(b.pending) == 0 {
		return nil
	}
	created, err := b.coll.Create(b.ctx, b.pending...)
	if err != nil {
		return fmt.Errorf("failed to insert %d documents into %s: %w", len(b.pending), b.coll.Name(), err)
	}
	b.inserted += len(created)
	b.pending = b.pending[:0]
	return nil
}
