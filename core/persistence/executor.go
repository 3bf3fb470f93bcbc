package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/asaidimu/go-aggregate/core/aggregation"
	"github.com/asaidimu/go-aggregate/core/mapreduce"
	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// settings collects the options shared by Persistence and Executor.
type settings struct {
	logger       *zap.Logger
	parallelism  int
	typeMismatch aggregation.TypeMismatchPolicy
}

// Option configures a Persistence or an Executor.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithParallelism sets how many groups or keys aggregations reduce
// concurrently.
func WithParallelism(n int) Option {
	return func(s *settings) { s.parallelism = n }
}

// WithTypeMismatchPolicy sets the aggregation type mismatch policy.
func WithTypeMismatchPolicy(p aggregation.TypeMismatchPolicy) Option {
	return func(s *settings) { s.typeMismatch = p }
}

func newSettings(opts []Option) *settings {
	s := &settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Executor orchestrates operations by coordinating the backend interactor
// with the in-process query, aggregation and map/reduce engines.
type Executor struct {
	interactor DocumentInteractor
	processor  *query.DataProcessor
	evaluator  *aggregation.Evaluator
	reducer    *mapreduce.MapReducer
	logger     *zap.Logger
}

// NewExecutor creates an executor over interactor.
func NewExecutor(interactor DocumentInteractor, opts ...Option) *Executor {
	s := newSettings(opts)
	processor := query.NewDataProcessor(s.logger)
	return &Executor{
		interactor: interactor,
		processor:  processor,
		evaluator: aggregation.NewEvaluator(
			aggregation.WithLogger(s.logger),
			aggregation.WithDataProcessor(processor),
			aggregation.WithParallelism(s.parallelism),
			aggregation.WithTypeMismatchPolicy(s.typeMismatch),
		),
		reducer: mapreduce.New(
			mapreduce.WithLogger(s.logger),
			mapreduce.WithDataProcessor(processor),
			mapreduce.WithParallelism(s.parallelism),
		),
		logger: s.logger,
	}
}

// RegisterComputeFunction registers a Go function for computed fields.
func (e *Executor) RegisterComputeFunction(name string, fn query.ComputeFunction) {
	e.processor.RegisterComputeFunction(name, fn)
}

// RegisterFilterFunction registers a Go function for custom filtering. It is
// available to queries, $match stages and map/reduce filters alike.
func (e *Executor) RegisterFilterFunction(operator query.ComparisonOperator, fn query.PredicateFunction) {
	e.processor.RegisterFilterFunction(operator, fn)
}

// Query selects the documents of a collection and applies the whole DSL in
// process, whatever the backend pushed down.
func (e *Executor) Query(ctx context.Context, name string, dsl *query.QueryDSL) (*query.QueryResult, error) {
	var filter *query.QueryFilter
	if dsl != nil {
		filter = dsl.Filters
	}
	docs, err := e.interactor.SelectDocuments(ctx, name, filter)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Fetched documents before processing", zap.String("collection", name), zap.Int("count", len(docs)))
	return e.processor.ProcessRows(ctx, docs, dsl)
}

// Insert stores documents, assigning a UUID string _id to those without one,
// and returns the stored documents.
func (e *Executor) Insert(ctx context.Context, name string, docs []schema.Document) ([]schema.Document, error) {
	records := make([]schema.Document, len(docs))
	for i, doc := range docs {
		doc, _ = schema.Normalize(doc).(schema.Document)
		if id, ok := doc.ID(); ok {
			if _, isList := id.([]any); isList {
				return nil, fmt.Errorf("%w: document %d has a list %s", ErrInvalidID, i, schema.IDField)
			}
		} else {
			withID := make(schema.Document, 0, len(doc)+1)
			withID = append(withID, schema.Field{Key: schema.IDField, Value: uuid.New().String()})
			doc = append(withID, doc...)
		}
		records[i] = doc
	}
	if err := e.interactor.InsertDocuments(ctx, name, records); err != nil {
		return nil, err
	}
	return records, nil
}

// Update applies params to every matching document and replaces the ones
// that changed.
func (e *Executor) Update(ctx context.Context, name string, params *CollectionUpdate) (*UpdateResult, error) {
	if params == nil || (len(params.Set) == 0 && len(params.Unset) == 0) {
		return nil, fmt.Errorf("%w: nothing to set or unset", ErrInvalidUpdate)
	}
	for _, f := range params.Set {
		if touchesID(f.Key) {
			return nil, fmt.Errorf("%w: %s cannot be modified", ErrInvalidUpdate, schema.IDField)
		}
	}
	for _, path := range params.Unset {
		if touchesID(path) {
			return nil, fmt.Errorf("%w: %s cannot be removed", ErrInvalidUpdate, schema.IDField)
		}
	}

	matched, err := e.matching(ctx, name, params.Filter)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{Matched: int64(len(matched))}
	var changed []schema.Document
	for _, doc := range matched {
		updated := doc
		for _, f := range params.Set {
			updated = schema.SetPath(updated, f.Key, schema.Normalize(f.Value))
		}
		for _, path := range params.Unset {
			updated = schema.UnsetPath(updated, path)
		}
		if schema.KeyOf(updated) != schema.KeyOf(doc) {
			changed = append(changed, updated)
		}
	}
	if len(changed) == 0 {
		return result, nil
	}

	n, err := e.interactor.ReplaceDocuments(ctx, name, changed)
	if err != nil {
		return nil, err
	}
	result.Modified = n
	return result, nil
}

// Delete removes the documents matching filter. A nil filter deletes
// everything, and is refused unless unsafe is set.
func (e *Executor) Delete(ctx context.Context, name string, filter *query.QueryFilter, unsafe bool) (int64, error) {
	if filter == nil && !unsafe {
		return 0, ErrUnsafeDelete
	}
	matched, err := e.matching(ctx, name, filter)
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}
	ids := make([]any, len(matched))
	for i, doc := range matched {
		ids[i], _ = doc.ID()
	}
	return e.interactor.DeleteDocuments(ctx, name, ids)
}

// Aggregate runs a pipeline over the documents of a collection. A leading
// $match is offered to the backend as a pushdown filter; the evaluator still
// applies it.
func (e *Executor) Aggregate(ctx context.Context, name string, stages []aggregation.Stage) ([]schema.Document, error) {
	var pushdown *query.QueryFilter
	if len(stages) > 0 {
		if m, ok := stages[0].(*aggregation.MatchStage); ok {
			pushdown = m.Filter
		}
	}
	docs, err := e.interactor.SelectDocuments(ctx, name, pushdown)
	if err != nil {
		return nil, err
	}
	return e.evaluator.Evaluate(ctx, stages, docs)
}

// MapReduce runs a map/reduce job over the documents of a collection.
func (e *Executor) MapReduce(ctx context.Context, name string, mapFn mapreduce.MapFunc, reduceFn mapreduce.ReduceFunc, opts ...mapreduce.RunOption) ([]schema.Document, error) {
	docs, err := e.interactor.SelectDocuments(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return e.reducer.Run(ctx, docs, mapFn, reduceFn, opts...)
}

func (e *Executor) matching(ctx context.Context, name string, filter *query.QueryFilter) ([]schema.Document, error) {
	docs, err := e.interactor.SelectDocuments(ctx, name, filter)
	if err != nil {
		return nil, err
	}
	return e.processor.Filter(ctx, docs, filter)
}

func touchesID(path string) bool {
	return path == schema.IDField || strings.HasPrefix(path, schema.IDField+".")
}
