// Package mongodb provides a persistence.DocumentInteractor backed by a MongoDB
// database. Filters are translated to MongoDB queries where the server can
// evaluate them; the persistence layer re-applies the full filter.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asaidimu/go-aggregate/core/persistence"
	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Config describes the database to connect to.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Interactor implements persistence.DocumentInteractor over a MongoDB
// database.
type Interactor struct {
	db     *mongo.Database
	client *mongo.Client // set when the interactor owns the connection
	logger *zap.Logger
}

var _ persistence.DocumentInteractor = (*Interactor)(nil)

// Connect connects to the configured server and checks it responds. The
// returned interactor disconnects on Close.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Interactor, error) {
	if cfg.URI == "" || cfg.Database == "" {
		return nil, fmt.Errorf("mongo uri and database are required")
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		opts.SetTimeout(cfg.Timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to reach mongo: %w", err)
	}

	i := NewInteractor(client.Database(cfg.Database), logger)
	i.client = client
	return i, nil
}

// NewInteractor creates an interactor over a database handle owned by the
// caller.
func NewInteractor(db *mongo.Database, logger *zap.Logger) *Interactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interactor{db: db, logger: logger}
}

// CreateCollection creates the collection unless it already exists.
func (i *Interactor) CreateCollection(ctx context.Context, name string) error {
	exists, err := i.CollectionExists(ctx, name)
	if err != nil || exists {
		return err
	}
	if err := i.db.CreateCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

// DropCollection drops the collection.
func (i *Interactor) DropCollection(ctx context.Context, name string) error {
	if err := i.db.Collection(name).Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	return nil
}

// CollectionExists checks if the collection exists.
func (i *Interactor) CollectionExists(ctx context.Context, name string) (bool, error) {
	names, err := i.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	return len(names) > 0, nil
}

func (i *Interactor) collection(ctx context.Context, name string) (*mongo.Collection, error) {
	exists, err := i.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, name)
	}
	return i.db.Collection(name), nil
}

// SelectDocuments finds the documents matching the translatable part of
// filter, in natural order.
func (i *Interactor) SelectDocuments(ctx context.Context, name string, filter *query.QueryFilter) ([]schema.Document, error) {
	coll, err := i.collection(ctx, name)
	if err != nil {
		return nil, err
	}

	mongoFilter, complete := TranslateFilter(filter)
	if !complete {
		i.logger.Debug("Filter not pushed down", zap.String("collection", name))
	}
	i.logger.Debug("Executing find", zap.String("collection", name), zap.Any("filter", mongoFilter))

	cursor, err := coll.Find(ctx, mongoFilter, options.Find().SetSort(bson.D{{Key: "$natural", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find documents in %s: %w", name, err)
	}
	defer cursor.Close(ctx)

	docs := []schema.Document{}
	for cursor.Next(ctx) {
		var raw bson.D
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		docs = append(docs, schema.Normalize(raw).(schema.Document))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return docs, nil
}

// InsertDocuments inserts the documents. Identities already stored or
// repeated within the batch fail the whole batch before anything is written.
func (i *Interactor) InsertDocuments(ctx context.Context, name string, docs []schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	coll, err := i.collection(ctx, name)
	if err != nil {
		return err
	}

	ids := make(bson.A, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	records := make([]any, len(docs))
	for n, doc := range docs {
		id, ok := doc.ID()
		if !ok {
			return fmt.Errorf("document %d has no %s", n, schema.IDField)
		}
		key := schema.KeyOf(id)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %v", persistence.ErrDuplicateID, id)
		}
		seen[key] = struct{}{}
		ids = append(ids, schema.BSONValue(id))
		records[n] = doc.BSON()
	}

	existing, err := coll.CountDocuments(ctx, bson.D{{Key: schema.IDField, Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return fmt.Errorf("failed to check document ids in %s: %w", name, err)
	}
	if existing > 0 {
		return fmt.Errorf("%w: %d of the documents are already stored", persistence.ErrDuplicateID, existing)
	}

	if _, err := coll.InsertMany(ctx, records); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", persistence.ErrDuplicateID, err)
		}
		return fmt.Errorf("failed to insert documents into %s: %w", name, err)
	}
	return nil
}

// ReplaceDocuments replaces documents by _id with one bulk write.
func (i *Interactor) ReplaceDocuments(ctx context.Context, name string, docs []schema.Document) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	coll, err := i.collection(ctx, name)
	if err != nil {
		return 0, err
	}

	models := make([]mongo.WriteModel, 0, len(docs))
	for n, doc := range docs {
		id, ok := doc.ID()
		if !ok {
			return 0, fmt.Errorf("document %d has no %s", n, schema.IDField)
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: schema.IDField, Value: schema.BSONValue(id)}}).
			SetReplacement(doc.BSON()))
	}

	res, err := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return 0, fmt.Errorf("failed to replace documents in %s: %w", name, err)
	}
	return res.MatchedCount, nil
}

// DeleteDocuments deletes documents by _id.
func (i *Interactor) DeleteDocuments(ctx context.Context, name string, ids []any) (int64, error) {
	coll, err := i.collection(ctx, name)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	values := make(bson.A, len(ids))
	for n, id := range ids {
		values[n] = schema.BSONValue(id)
	}
	res, err := coll.DeleteMany(ctx, bson.D{{Key: schema.IDField, Value: bson.D{{Key: "$in", Value: values}}}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents from %s: %w", name, err)
	}
	return res.DeletedCount, nil
}

// Close disconnects the client when the interactor owns it.
func (i *Interactor) Close() error {
	if i.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := i.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("failed to disconnect from mongo: %w", err)
	}
	return nil
}
