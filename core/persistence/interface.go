package persistence

import (
	"context"
	"time"

	"github.com/asaidimu/go-aggregate/core/aggregation"
	"github.com/asaidimu/go-aggregate/core/mapreduce"
	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
)

// PersistenceEventType defines the possible event types for persistence operations.
type PersistenceEventType string

const (
	DocumentCreateStart     PersistenceEventType = "document:create:start"
	DocumentCreateSuccess   PersistenceEventType = "document:create:success"
	DocumentCreateFailed    PersistenceEventType = "document:create:failed"
	DocumentReadStart       PersistenceEventType = "document:read:start"
	DocumentReadSuccess     PersistenceEventType = "document:read:success"
	DocumentReadFailed      PersistenceEventType = "document:read:failed"
	DocumentUpdateStart     PersistenceEventType = "document:update:start"
	DocumentUpdateSuccess   PersistenceEventType = "document:update:success"
	DocumentUpdateFailed    PersistenceEventType = "document:update:failed"
	DocumentDeleteStart     PersistenceEventType = "document:delete:start"
	DocumentDeleteSuccess   PersistenceEventType = "document:delete:success"
	DocumentDeleteFailed    PersistenceEventType = "document:delete:failed"
	AggregateStart          PersistenceEventType = "aggregate:start"
	AggregateSuccess        PersistenceEventType = "aggregate:success"
	AggregateFailed         PersistenceEventType = "aggregate:failed"
	MapReduceStart          PersistenceEventType = "mapreduce:start"
	MapReduceSuccess        PersistenceEventType = "mapreduce:success"
	MapReduceFailed         PersistenceEventType = "mapreduce:failed"
	CollectionCreateStart   PersistenceEventType = "collection:create:start"
	CollectionCreateSuccess PersistenceEventType = "collection:create:success"
	CollectionCreateFailed  PersistenceEventType = "collection:create:failed"
	CollectionDeleteStart   PersistenceEventType = "collection:delete:start"
	CollectionDeleteSuccess PersistenceEventType = "collection:delete:success"
	CollectionDeleteFailed  PersistenceEventType = "collection:delete:failed"
	SubscriptionRegister    PersistenceEventType = "subscription:register"
	SubscriptionUnregister  PersistenceEventType = "subscription:unregister"
)

// PersistenceEvent represents events emitted during persistence operations.
type PersistenceEvent struct {
	Type       PersistenceEventType `json:"type"`                 // The type of event (e.g., 'document:create:start').
	Timestamp  int64                `json:"timestamp"`            // Timestamp when the event occurred (Unix milliseconds).
	Operation  string               `json:"operation"`            // The operation being performed (e.g., 'create', 'aggregate').
	Collection string               `json:"collection,omitempty"` // Name of the collection affected (if applicable).
	Input      any                  `json:"input,omitempty"`      // Data passed to the operation (if applicable).
	Output     any                  `json:"output,omitempty"`     // Data returned by the operation (if applicable).
	Error      *string              `json:"error,omitempty"`      // Error message if the operation failed.
	Query      any                  `json:"query,omitempty"`      // Filter, DSL or pipeline used by the operation.
	Duration   *int64               `json:"duration,omitempty"`   // Duration of the operation in milliseconds.
}

// EventCallbackFunction receives persistence events.
type EventCallbackFunction func(ctx context.Context, event PersistenceEvent) error

// SubscriptionInfo describes a subscription configuration.
type SubscriptionInfo struct {
	Id          string               `json:"id"`
	Event       PersistenceEventType `json:"event"`                 // The event subscribed to.
	Collection  string               `json:"collection,omitempty"`  // Set for collection-scoped subscriptions.
	Label       *string              `json:"label,omitempty"`       // Optional short identifier.
	Description *string              `json:"description,omitempty"` // Optional description.
	Unsubscribe func()               `json:"-"`
}

// RegisterSubscriptionOptions defines options for registering a subscription.
type RegisterSubscriptionOptions struct {
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Callback    EventCallbackFunction
}

// CreateCollectionOptions defines options for creating a new collection.
type CreateCollectionOptions struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description,omitempty" validate:"max=512"`
}

// CollectionRecord is the catalog entry of a collection.
type CollectionRecord struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CollectionUpdate describes an update: every document matching Filter gets
// the Set paths assigned and the Unset paths removed.
type CollectionUpdate struct {
	Filter *query.QueryFilter `json:"filter"`
	Set    schema.Document    `json:"set,omitempty"`
	Unset  []string           `json:"unset,omitempty"`
}

// UpdateResult reports how many documents matched an update and how many of
// those actually changed.
type UpdateResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}

// PersistenceInterface defines the document store facade.
type PersistenceInterface interface {
	Collection(ctx context.Context, name string) (PersistenceCollectionInterface, error)
	Create(ctx context.Context, options CreateCollectionOptions) (PersistenceCollectionInterface, error)
	Collections(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, name string) (*CollectionRecord, error)
	Drop(ctx context.Context, name string) (bool, error)

	RegisterSubscription(options RegisterSubscriptionOptions) string
	UnregisterSubscription(id string)
	Subscriptions() ([]SubscriptionInfo, error)

	Close() error
}

// PersistenceCollectionInterface defines the operations on a single collection.
type PersistenceCollectionInterface interface {
	Name() string
	Create(ctx context.Context, docs ...schema.Document) ([]schema.Document, error)
	Read(ctx context.Context, dsl *query.QueryDSL) (*query.QueryResult, error)
	Update(ctx context.Context, params *CollectionUpdate) (*UpdateResult, error)
	Delete(ctx context.Context, filter *query.QueryFilter, unsafe bool) (int64, error)
	Aggregate(ctx context.Context, stages []aggregation.Stage) ([]schema.Document, error)
	AggregateJSON(ctx context.Context, pipeline []byte) ([]schema.Document, error)
	MapReduce(ctx context.Context, mapFn mapreduce.MapFunc, reduceFn mapreduce.ReduceFunc, opts ...mapreduce.RunOption) ([]schema.Document, error)

	RegisterSubscription(options RegisterSubscriptionOptions) string
	UnregisterSubscription(id string)
	Subscriptions() ([]SubscriptionInfo, error)
}
