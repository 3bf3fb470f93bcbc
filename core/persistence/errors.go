package persistence

import "errors"

var (
	// ErrCollectionNotFound is returned for operations on a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when creating a collection twice.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidCollectionName is returned for names that are empty, too long,
	// reserved, or not made of letters, digits and underscores.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDuplicateID is returned when an insert reuses a stored _id.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrUnsafeDelete is returned when deleting without a filter and without
	// the unsafe flag.
	ErrUnsafeDelete = errors.New("refusing to delete every document without the unsafe flag")

	// ErrInvalidUpdate is returned for updates that would change _id or that
	// change nothing.
	ErrInvalidUpdate = errors.New("invalid update")

	// ErrInvalidID is returned when a document's _id is a list.
	ErrInvalidID = errors.New("invalid document id")
)
