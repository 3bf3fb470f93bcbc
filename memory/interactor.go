// Package memory provides an in-process DocumentInteractor. Collections keep
// their documents in insertion order and are safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/asaidimu/go-aggregate/core/persistence"
	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
	"go.uber.org/zap"
)

type collection struct {
	docs  []schema.Document
	index map[string]int // identity key -> position in docs
}

func (c *collection) reindex() {
	c.index = make(map[string]int, len(c.docs))
	for i, d := range c.docs {
		id, _ := d.ID()
		c.index[schema.KeyOf(id)] = i
	}
}

// Interactor stores collections in memory.
type Interactor struct {
	collections map[string]*collection
	logger      *zap.Logger
	mu          sync.RWMutex
}

var _ persistence.DocumentInteractor = (*Interactor)(nil)

// NewInteractor creates an empty store.
func NewInteractor(logger *zap.Logger) *Interactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interactor{collections: make(map[string]*collection), logger: logger}
}

// CreateCollection creates an empty collection unless it already exists.
func (m *Interactor) CreateCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = &collection{index: make(map[string]int)}
		m.logger.Debug("Collection created", zap.String("collection", name))
	}
	return nil
}

// DropCollection removes a collection.
func (m *Interactor) DropCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

// CollectionExists checks if a collection exists.
func (m *Interactor) CollectionExists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok, nil
}

func (m *Interactor) get(name string) (*collection, error) {
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, name)
	}
	return c, nil
}

// SelectDocuments returns copies of every document in insertion order. The
// filter is not pushed down.
func (m *Interactor) SelectDocuments(ctx context.Context, name string, _ *query.QueryFilter) ([]schema.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, err := m.get(name)
	if err != nil {
		return nil, err
	}
	out := make([]schema.Document, len(c.docs))
	for i, d := range c.docs {
		out[i] = d.Clone()
	}
	return out, nil
}

// InsertDocuments appends documents. The batch is rejected as a whole if an
// identity is missing or already used.
func (m *Interactor) InsertDocuments(ctx context.Context, name string, docs []schema.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.get(name)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(docs))
	for i, d := range docs {
		id, ok := d.ID()
		if !ok {
			return fmt.Errorf("document %d has no %s", i, schema.IDField)
		}
		key := schema.KeyOf(id)
		if _, dup := c.index[key]; dup {
			return fmt.Errorf("%w: %v", persistence.ErrDuplicateID, id)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %v", persistence.ErrDuplicateID, id)
		}
		seen[key] = struct{}{}
	}

	for _, d := range docs {
		id, _ := d.ID()
		c.index[schema.KeyOf(id)] = len(c.docs)
		c.docs = append(c.docs, d.Clone())
	}
	return nil
}

// ReplaceDocuments replaces stored documents by identity, keeping their
// position. Unknown identities are ignored.
func (m *Interactor) ReplaceDocuments(ctx context.Context, name string, docs []schema.Document) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.get(name)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, d := range docs {
		id, _ := d.ID()
		if i, ok := c.index[schema.KeyOf(id)]; ok {
			c.docs[i] = d.Clone()
			n++
		}
	}
	return n, nil
}

// DeleteDocuments deletes documents by identity.
func (m *Interactor) DeleteDocuments(ctx context.Context, name string, ids []any) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.get(name)
	if err != nil {
		return 0, err
	}
	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[schema.KeyOf(schema.Normalize(id))] = struct{}{}
	}

	kept := c.docs[:0:0]
	for _, d := range c.docs {
		id, _ := d.ID()
		if _, drop := remove[schema.KeyOf(id)]; !drop {
			kept = append(kept, d)
		}
	}
	n := int64(len(c.docs) - len(kept))
	c.docs = kept
	c.reindex()
	return n, nil
}

// Close is a no-op.
func (m *Interactor) Close() error { return nil }
