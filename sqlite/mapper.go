package sqlite

import (
	"fmt"

	"github.com/asaidimu/go-aggregate/core/schema"
	"go.mongodb.org/mongo-driver/bson"
)

// Options configures how collections map onto tables.
type Options struct {
	// TablePrefix is prepended to every collection name to form its table
	// name.
	TablePrefix string
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{TablePrefix: "coll_"}
}

// tableName returns the unquoted table holding a collection.
func (i *Interactor) tableName(collection string) string {
	return i.options.TablePrefix + collection
}

// CreateTableSQL returns the DDL for a collection table. seq keeps insertion
// order, id holds the canonical key of the document's _id and body the
// document itself.
func CreateTableSQL(table string) string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (seq INTEGER PRIMARY KEY AUTOINCREMENT, id TEXT NOT NULL UNIQUE, body TEXT NOT NULL);",
		quoteIdentifier(table),
	)
}

// encodeRow maps a document onto its id and body columns. Bodies are
// canonical Extended JSON so that int32, int64 and double values keep their
// type across a round trip.
func encodeRow(doc schema.Document) (string, string, error) {
	id, ok := doc.ID()
	if !ok {
		return "", "", fmt.Errorf("document has no %s", schema.IDField)
	}
	body, err := bson.MarshalExtJSON(doc.BSON(), true, false)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode document %v: %w", id, err)
	}
	return schema.KeyOf(id), string(body), nil
}

func decodeRow(body string) (schema.Document, error) {
	return schema.DecodeDocument([]byte(body))
}
