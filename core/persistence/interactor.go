package persistence

import (
	"context"

	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
)

// DocumentInteractor is the contract a storage backend implements. Every
// document handed to or returned by an interactor carries an _id.
type DocumentInteractor interface {
	// CreateCollection creates an empty collection. Creating an existing
	// collection is not an error.
	CreateCollection(ctx context.Context, name string) error

	// DropCollection removes a collection and its documents if it exists.
	DropCollection(ctx context.Context, name string) error

	// CollectionExists checks if a collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// SelectDocuments returns the documents of a collection in insertion
	// order. The filter is advisory: a backend may push down what it can
	// evaluate natively and return a superset of the matching documents.
	SelectDocuments(ctx context.Context, name string, filter *query.QueryFilter) ([]schema.Document, error)

	// InsertDocuments appends documents. A duplicate _id fails the whole
	// batch with ErrDuplicateID.
	InsertDocuments(ctx context.Context, name string, docs []schema.Document) error

	// ReplaceDocuments replaces stored documents by _id and returns the number
	// of documents replaced.
	ReplaceDocuments(ctx context.Context, name string, docs []schema.Document) (int64, error)

	// DeleteDocuments deletes documents by _id and returns the number deleted.
	DeleteDocuments(ctx context.Context, name string, ids []any) (int64, error)

	// Close releases the backend's resources.
	Close() error
}
