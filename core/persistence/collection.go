package persistence

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-aggregate/core/aggregation"
	"github.com/asaidimu/go-aggregate/core/mapreduce"
	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
)

// CollectionBase performs the operations of a single collection through an
// Executor. Use it wrapped in a Collection, which publishes events.
type CollectionBase struct {
	name     string
	executor *Executor
	hub      *eventHub
}

// newCollection creates an event-emitting collection handle.
func newCollection(hub *eventHub, name string, executor *Executor) *Collection {
	return NewEventEmittingCollection(&CollectionBase{
		name:     name,
		executor: executor,
		hub:      hub,
	})
}

// Create inserts documents and returns them with their identities.
func (ci *CollectionBase) Create(ctx context.Context, docs ...schema.Document) ([]schema.Document, error) {
	if len(docs) == 0 {
		return []schema.Document{}, nil
	}
	result, err := ci.executor.Insert(ctx, ci.name, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to insert data into collection '%s': %w", ci.name, err)
	}
	return result, nil
}

// Read retrieves documents from the collection according to dsl.
func (ci *CollectionBase) Read(ctx context.Context, dsl *query.QueryDSL) (*query.QueryResult, error) {
	result, err := ci.executor.Query(ctx, ci.name, dsl)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from collection '%s': %w", ci.name, err)
	}
	return result, nil
}

// Update updates the documents matching params.Filter.
func (ci *CollectionBase) Update(ctx context.Context, params *CollectionUpdate) (*UpdateResult, error) {
	result, err := ci.executor.Update(ctx, ci.name, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update data in collection '%s': %w", ci.name, err)
	}
	return result, nil
}

// Delete deletes the documents matching filter.
func (ci *CollectionBase) Delete(ctx context.Context, filter *query.QueryFilter, unsafe bool) (int64, error) {
	affected, err := ci.executor.Delete(ctx, ci.name, filter, unsafe)
	if err != nil {
		return 0, fmt.Errorf("failed to delete data from collection '%s': %w", ci.name, err)
	}
	return affected, nil
}

// Aggregate runs stages over the collection.
func (ci *CollectionBase) Aggregate(ctx context.Context, stages []aggregation.Stage) ([]schema.Document, error) {
	out, err := ci.executor.Aggregate(ctx, ci.name, stages)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate collection '%s': %w", ci.name, err)
	}
	return out, nil
}

// MapReduce runs a map/reduce job over the collection.
func (ci *CollectionBase) MapReduce(ctx context.Context, mapFn mapreduce.MapFunc, reduceFn mapreduce.ReduceFunc, opts ...mapreduce.RunOption) ([]schema.Document, error) {
	out, err := ci.executor.MapReduce(ctx, ci.name, mapFn, reduceFn, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to run map/reduce on collection '%s': %w", ci.name, err)
	}
	return out, nil
}
