// Package persistence provides the document store facade used to run queries,
// aggregation pipelines and map/reduce jobs over stored collections. Storage
// is delegated to a DocumentInteractor backend; every operation publishes
// lifecycle events that callers can subscribe to.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
	"go.uber.org/zap"
)

// Persistence is the main implementation of the PersistenceInterface. It
// orchestrates interactions with the backend through a DocumentInteractor,
// keeps the collection catalog, and handles event subscriptions.
type Persistence struct {
	interactor  DocumentInteractor
	executor    *Executor
	hub         *eventHub
	logger      *zap.Logger
	collections map[string]*Collection
	mu          sync.Mutex
}

var _ PersistenceInterface = (*Persistence)(nil)

// NewPersistence creates a new instance of the Persistence service. It
// initializes the event bus and ensures that the catalog collection exists.
func NewPersistence(ctx context.Context, interactor DocumentInteractor, opts ...Option) (*Persistence, error) {
	s := newSettings(opts)

	hub, err := newEventHub()
	if err != nil {
		return nil, err
	}

	exists, err := interactor.CollectionExists(ctx, CatalogCollectionName)
	if err != nil {
		return nil, fmt.Errorf("error looking up catalog collection: %w", err)
	}
	if !exists {
		if err := interactor.CreateCollection(ctx, CatalogCollectionName); err != nil {
			return nil, fmt.Errorf("failed to create catalog collection %s: %w", CatalogCollectionName, err)
		}
		s.logger.Debug("Created catalog collection", zap.String("collection", CatalogCollectionName))
	}

	return &Persistence{
		interactor:  interactor,
		executor:    NewExecutor(interactor, opts...),
		hub:         hub,
		logger:      s.logger,
		collections: make(map[string]*Collection),
	}, nil
}

func (p *Persistence) emit(event PersistenceEvent) { p.hub.emit(event) }

// Executor exposes the executor, mainly to register custom compute and
// filter functions.
func (p *Persistence) Executor() *Executor { return p.executor }

// Collection returns the named collection, creating it on first use.
func (p *Persistence) Collection(ctx context.Context, name string) (PersistenceCollectionInterface, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.collections[name]; ok {
		return c, nil
	}

	exists, err := p.interactor.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("error accessing store: %w", err)
	}
	if !exists {
		c, err := p.createLocked(ctx, CreateCollectionOptions{Name: name})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	if err := p.ensureCatalogRecord(ctx, CollectionRecord{Name: name, CreatedAt: time.Now()}); err != nil {
		return nil, err
	}
	c := newCollection(p.hub, name, p.executor)
	p.collections[name] = c
	return c, nil
}

// Create creates a new collection. It fails with ErrCollectionExists when a
// collection of the same name already exists.
func (p *Persistence) Create(ctx context.Context, options CreateCollectionOptions) (PersistenceCollectionInterface, error) {
	if err := validate.Struct(options); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCollectionName, err)
	}
	if err := ValidateCollectionName(options.Name); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	exists, err := p.interactor.CollectionExists(ctx, options.Name)
	if err != nil {
		return nil, fmt.Errorf("error accessing store: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrCollectionExists, options.Name)
	}
	c, err := p.createLocked(ctx, options)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// createLocked creates the collection and its catalog entry. Callers hold p.mu.
func (p *Persistence) createLocked(ctx context.Context, options CreateCollectionOptions) (*Collection, error) {
	return withEvents(p, collectionLifecycle, options.Name, options, nil, func() (*Collection, error) {
		if err := p.interactor.CreateCollection(ctx, options.Name); err != nil {
			return nil, fmt.Errorf("failed to create collection %s: %w", options.Name, err)
		}
		rec := CollectionRecord{Name: options.Name, Description: options.Description, CreatedAt: time.Now()}
		if err := p.ensureCatalogRecord(ctx, rec); err != nil {
			return nil, err
		}
		p.logger.Info("Collection created", zap.String("collection", options.Name))

		c := newCollection(p.hub, options.Name, p.executor)
		p.collections[options.Name] = c
		return c, nil
	})
}

func (p *Persistence) ensureCatalogRecord(ctx context.Context, rec CollectionRecord) error {
	_, err := p.catalogRecord(ctx, rec.Name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCollectionNotFound) {
		return err
	}
	if _, err := p.executor.Insert(ctx, CatalogCollectionName, []schema.Document{recordToDocument(rec)}); err != nil {
		return fmt.Errorf("failed to record collection %s in the catalog: %w", rec.Name, err)
	}
	return nil
}

func (p *Persistence) catalogRecord(ctx context.Context, name string) (*CollectionRecord, error) {
	filter := query.CreateSimpleFilter(schema.IDField, query.ComparisonOperatorEq, name)
	result, err := p.executor.Query(ctx, CatalogCollectionName, &query.QueryDSL{Filters: &filter})
	if err != nil {
		return nil, fmt.Errorf("error reading catalog: %w", err)
	}
	if result.Count == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return documentToRecord(result.Data[0])
}

// Collections returns the names of all catalogued collections in creation
// order.
func (p *Persistence) Collections(ctx context.Context) ([]string, error) {
	result, err := p.executor.Query(ctx, CatalogCollectionName, nil)
	if err != nil {
		return nil, fmt.Errorf("error reading catalog to get collection names: %w", err)
	}

	names := make([]string, 0, result.Count)
	for _, doc := range result.Data {
		rec, err := documentToRecord(doc)
		if err != nil {
			p.logger.Warn("Skipping malformed catalog entry", zap.Error(err))
			continue
		}
		names = append(names, rec.Name)
	}
	return names, nil
}

// Describe returns the catalog entry of a collection.
func (p *Persistence) Describe(ctx context.Context, name string) (*CollectionRecord, error) {
	return p.catalogRecord(ctx, name)
}

// Drop removes a collection, its catalog entry and its subscriptions. It
// reports false when the collection did not exist.
func (p *Persistence) Drop(ctx context.Context, name string) (bool, error) {
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	exists, err := p.interactor.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("error accessing store: %w", err)
	}
	if !exists {
		return false, nil
	}

	return withEvents(p, dropLifecycle, name, nil, nil, func() (bool, error) {
		if err := p.interactor.DropCollection(ctx, name); err != nil {
			return false, fmt.Errorf("failed to drop collection %s: %w", name, err)
		}
		filter := query.CreateSimpleFilter(schema.IDField, query.ComparisonOperatorEq, name)
		if _, err := p.executor.Delete(ctx, CatalogCollectionName, &filter, false); err != nil {
			return false, fmt.Errorf("failed to remove collection %s from the catalog: %w", name, err)
		}
		p.hub.unsubscribeCollection(name)
		delete(p.collections, name)
		p.logger.Info("Collection dropped", zap.String("collection", name))
		return true, nil
	})
}

// RegisterSubscription registers a callback for a persistence event across
// all collections. It returns an ID to unregister it.
func (p *Persistence) RegisterSubscription(options RegisterSubscriptionOptions) string {
	return p.hub.subscribe("", options)
}

// UnregisterSubscription removes a subscription by its ID.
func (p *Persistence) UnregisterSubscription(id string) {
	p.hub.unsubscribe(id)
}

// Subscriptions returns every active subscription, collection-scoped ones
// included.
func (p *Persistence) Subscriptions() ([]SubscriptionInfo, error) {
	return p.hub.list(""), nil
}

// Close closes the backend.
func (p *Persistence) Close() error {
	return p.interactor.Close()
}
