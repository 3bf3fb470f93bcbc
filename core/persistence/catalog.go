package persistence

import (
	"fmt"
	"regexp"
	"time"

	"github.com/asaidimu/go-aggregate/core/schema"
	"github.com/go-playground/validator/v10"
)

// CatalogCollectionName is the internal collection recording every
// collection created through a Persistence.
const CatalogCollectionName = "_collections"

var (
	collectionNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	validate              = validator.New(validator.WithRequiredStructEnabled())
)

// ValidateCollectionName checks that name can be used as a collection name on
// every backend: a letter followed by letters, digits or underscores, at most
// 64 characters.
func ValidateCollectionName(name string) error {
	if err := validate.Var(name, "required,max=64"); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidCollectionName, name, err)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w %q: must start with a letter and contain only letters, digits and underscores", ErrInvalidCollectionName, name)
	}
	return nil
}

func recordToDocument(rec CollectionRecord) schema.Document {
	return schema.Document{
		{Key: schema.IDField, Value: rec.Name},
		{Key: "name", Value: rec.Name},
		{Key: "description", Value: rec.Description},
		{Key: "created_at", Value: rec.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}
}

func documentToRecord(doc schema.Document) (*CollectionRecord, error) {
	name, ok := stringField(doc, "name")
	if !ok {
		return nil, fmt.Errorf("catalog entry without a name: %v", doc)
	}
	rec := &CollectionRecord{Name: name}
	rec.Description, _ = stringField(doc, "description")
	if created, ok := stringField(doc, "created_at"); ok {
		t, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %s has an invalid creation time: %w", name, err)
		}
		rec.CreatedAt = t
	}
	return rec, nil
}

func stringField(doc schema.Document, key string) (string, bool) {
	v, ok := doc.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
