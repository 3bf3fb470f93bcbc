package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/asaidimu/go-aggregate/core/aggregation"
	"github.com/asaidimu/go-aggregate/core/mapreduce"
	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
)

// eventHub owns the event bus shared by a Persistence and its collections,
// along with the registered subscriptions.
type eventHub struct {
	bus           *events.TypedEventBus[PersistenceEvent]
	subscriptions map[string]*SubscriptionInfo
	mu            sync.RWMutex
}

func newEventHub() (*eventHub, error) {
	bus, err := events.NewTypedEventBus[PersistenceEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}
	return &eventHub{bus: bus, subscriptions: make(map[string]*SubscriptionInfo)}, nil
}

func (h *eventHub) emit(event PersistenceEvent) {
	if h != nil && h.bus != nil {
		h.bus.Emit(string(event.Type), event)
	}
}

// subscribe registers options.Callback. A non-empty collection restricts
// delivery to events of that collection.
func (h *eventHub) subscribe(collection string, options RegisterSubscriptionOptions) string {
	callback := options.Callback
	if collection != "" {
		inner := callback
		callback = func(ctx context.Context, event PersistenceEvent) error {
			if event.Collection != collection {
				return nil
			}
			return inner(ctx, event)
		}
	}

	id := uuid.New().String()
	h.mu.Lock()
	h.subscriptions[id] = &SubscriptionInfo{
		Id:          id,
		Event:       options.Event,
		Collection:  collection,
		Label:       options.Label,
		Description: options.Description,
		Unsubscribe: h.bus.Subscribe(string(options.Event), callback),
	}
	h.mu.Unlock()

	h.emit(createEvent(SubscriptionRegister, "register_subscription", collection,
		map[string]any{"event": options.Event, "label": options.Label},
		map[string]any{"subscriptionId": id},
		nil, nil, time.Now()))
	return id
}

func (h *eventHub) unsubscribe(id string) {
	h.mu.Lock()
	info, ok := h.subscriptions[id]
	if ok {
		info.Unsubscribe()
		delete(h.subscriptions, id)
	}
	h.mu.Unlock()

	if ok {
		h.emit(createEvent(SubscriptionUnregister, "unregister_subscription", info.Collection,
			map[string]any{"subscriptionId": id}, nil, nil, nil, time.Now()))
	}
}

// unsubscribeCollection removes every subscription scoped to collection.
func (h *eventHub) unsubscribeCollection(collection string) {
	for _, info := range h.list(collection) {
		h.unsubscribe(info.Id)
	}
}

// list returns the subscriptions scoped to collection, or all of them when
// collection is empty, ordered by id.
func (h *eventHub) list(collection string) []SubscriptionInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(h.subscriptions))
	for _, sub := range h.subscriptions {
		if collection == "" || sub.Collection == collection {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Id < subs[j].Id })
	return subs
}

// Collection wraps a CollectionBase and adds event emission.
type Collection struct {
	collection *CollectionBase
	hub        *eventHub
}

var _ PersistenceCollectionInterface = (*Collection)(nil)

// NewEventEmittingCollection creates a new event-emitting collection wrapper.
func NewEventEmittingCollection(collection *CollectionBase) *Collection {
	return &Collection{collection: collection, hub: collection.hub}
}

func (e *Collection) emit(event PersistenceEvent) { e.hub.emit(event) }

// Name returns the collection name.
func (e *Collection) Name() string { return e.collection.name }

// Create wraps the collection's Create method with event emission.
func (e *Collection) Create(ctx context.Context, docs ...schema.Document) ([]schema.Document, error) {
	return withEvents(e, createLifecycle, e.Name(), docs, nil, func() ([]schema.Document, error) {
		return e.collection.Create(ctx, docs...)
	})
}

// Read wraps the collection's Read method with event emission.
func (e *Collection) Read(ctx context.Context, dsl *query.QueryDSL) (*query.QueryResult, error) {
	return withEvents(e, readLifecycle, e.Name(), nil, dsl, func() (*query.QueryResult, error) {
		return e.collection.Read(ctx, dsl)
	})
}

// Update wraps the collection's Update method with event emission.
func (e *Collection) Update(ctx context.Context, params *CollectionUpdate) (*UpdateResult, error) {
	var filter *query.QueryFilter
	if params != nil {
		filter = params.Filter
	}
	return withEvents(e, updateLifecycle, e.Name(), params, filter, func() (*UpdateResult, error) {
		return e.collection.Update(ctx, params)
	})
}

// Delete wraps the collection's Delete method with event emission.
func (e *Collection) Delete(ctx context.Context, filter *query.QueryFilter, unsafe bool) (int64, error) {
	return withEvents(e, deleteLifecycle, e.Name(), map[string]any{"unsafe": unsafe}, filter, func() (int64, error) {
		return e.collection.Delete(ctx, filter, unsafe)
	})
}

// Aggregate wraps the collection's Aggregate method with event emission.
func (e *Collection) Aggregate(ctx context.Context, stages []aggregation.Stage) ([]schema.Document, error) {
	return withEvents(e, aggregateLifecycle, e.Name(), nil, pipelineSummary(stages), func() ([]schema.Document, error) {
		return e.collection.Aggregate(ctx, stages)
	})
}

// AggregateJSON parses a JSON pipeline and runs it. Parse errors are reported
// as failed aggregations.
func (e *Collection) AggregateJSON(ctx context.Context, pipeline []byte) ([]schema.Document, error) {
	stages, err := aggregation.ParsePipelineJSON(pipeline)
	if err != nil {
		return withEvents(e, aggregateLifecycle, e.Name(), nil, string(pipeline), func() ([]schema.Document, error) {
			return nil, err
		})
	}
	return e.Aggregate(ctx, stages)
}

// MapReduce wraps the collection's MapReduce method with event emission.
func (e *Collection) MapReduce(ctx context.Context, mapFn mapreduce.MapFunc, reduceFn mapreduce.ReduceFunc, opts ...mapreduce.RunOption) ([]schema.Document, error) {
	return withEvents(e, mapReduceLifecycle, e.Name(), nil, nil, func() ([]schema.Document, error) {
		return e.collection.MapReduce(ctx, mapFn, reduceFn, opts...)
	})
}

// RegisterSubscription registers a callback for events of this collection.
func (e *Collection) RegisterSubscription(options RegisterSubscriptionOptions) string {
	return e.hub.subscribe(e.Name(), options)
}

// UnregisterSubscription removes a subscription by its ID.
func (e *Collection) UnregisterSubscription(id string) {
	e.hub.unsubscribe(id)
}

// Subscriptions returns the subscriptions registered on this collection.
func (e *Collection) Subscriptions() ([]SubscriptionInfo, error) {
	return e.hub.list(e.Name()), nil
}

func pipelineSummary(stages []aggregation.Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		if s == nil {
			out[i] = "<nil>"
			continue
		}
		out[i] = s.String()
	}
	return out
}
