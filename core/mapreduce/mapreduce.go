// Package mapreduce implements the map/reduce form of aggregation: a map
// function emits key/value pairs for every document, values are collected
// per key, and a reduce function folds each complete value list into one
// result.
package mapreduce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ValueField names the field holding a reduced result in output documents.
const ValueField = "value"

// ErrMissingFunction is returned when Run is called without a map or reduce
// function.
var ErrMissingFunction = errors.New("map and reduce functions are required")

// EmitFunc records one key/value pair. It may be called any number of times
// per document.
type EmitFunc func(key, value any)

// MapFunc inspects a document and emits zero or more pairs.
type MapFunc func(doc schema.Document, emit EmitFunc) error

// ReduceFunc folds every value emitted for key, in emission order.
type ReduceFunc func(key any, values []any) (any, error)

// FinalizeFunc post-processes a reduced value.
type FinalizeFunc func(key, value any) (any, error)

// MapReducer runs map/reduce jobs over in-memory documents. It is safe for
// concurrent use.
type MapReducer struct {
	logger      *zap.Logger
	processor   *query.DataProcessor
	parallelism int
}

// Option configures a MapReducer.
type Option func(*MapReducer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *MapReducer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDataProcessor sets the processor evaluating the job's input filter.
func WithDataProcessor(p *query.DataProcessor) Option {
	return func(m *MapReducer) {
		if p != nil {
			m.processor = p
		}
	}
}

// WithParallelism reduces up to n keys concurrently. Values below 2 keep
// reduction sequential.
func WithParallelism(n int) Option {
	return func(m *MapReducer) { m.parallelism = n }
}

// New creates a MapReducer.
func New(opts ...Option) *MapReducer {
	m := &MapReducer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	if m.processor == nil {
		m.processor = query.NewDataProcessor(m.logger)
	}
	return m
}

// job holds the per-run settings.
type job struct {
	filter   *query.QueryFilter
	finalize FinalizeFunc
}

// RunOption configures a single Run.
type RunOption func(*job)

// WithFilter restricts the input to documents matching filter.
func WithFilter(filter *query.QueryFilter) RunOption {
	return func(j *job) { j.filter = filter }
}

// WithFinalize applies fn to every reduced value.
func WithFinalize(fn FinalizeFunc) RunOption {
	return func(j *job) { j.finalize = fn }
}

// Run executes a job with a default MapReducer.
func Run(input []schema.Document, mapFn MapFunc, reduceFn ReduceFunc, opts ...RunOption) ([]schema.Document, error) {
	return New().Run(context.Background(), input, mapFn, reduceFn, opts...)
}

type bucket struct {
	key    any
	values []any
}

// Run maps every input document, then calls reduceFn exactly once per
// distinct key with the complete list of values emitted for it, including
// keys with a single value. The output holds one {_id: key, value: result}
// document per key, in order of first emission.
func (m *MapReducer) Run(ctx context.Context, input []schema.Document, mapFn MapFunc, reduceFn ReduceFunc, opts ...RunOption) ([]schema.Document, error) {
	if mapFn == nil || reduceFn == nil {
		return nil, ErrMissingFunction
	}
	j := &job{}
	for _, opt := range opts {
		opt(j)
	}
	start := time.Now()

	docs, err := m.processor.Filter(ctx, input, j.filter)
	if err != nil {
		return nil, fmt.Errorf("failed to filter input: %w", err)
	}

	index := make(map[string]int)
	var buckets []*bucket
	emitted := 0
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emit := func(key, value any) {
			key = schema.Normalize(key)
			k := schema.KeyOf(key)
			b, ok := index[k]
			if !ok {
				b = len(buckets)
				index[k] = b
				buckets = append(buckets, &bucket{key: key})
			}
			buckets[b].values = append(buckets[b].values, schema.Normalize(value))
			emitted++
		}
		if err := mapFn(doc, emit); err != nil {
			return nil, fmt.Errorf("map failed on document %d: %w", i, err)
		}
	}

	out := make([]schema.Document, len(buckets))
	if m.parallelism < 2 || len(buckets) < 2 {
		for i, b := range buckets {
			doc, err := reduceBucket(b, reduceFn, j.finalize)
			if err != nil {
				return nil, err
			}
			out[i] = doc
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(m.parallelism)
		for i, b := range buckets {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				doc, err := reduceBucket(b, reduceFn, j.finalize)
				if err != nil {
					return err
				}
				out[i] = doc
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	m.logger.Debug("Map/reduce completed",
		zap.Int("documents", len(docs)),
		zap.Int("emitted", emitted),
		zap.Int("keys", len(buckets)),
		zap.Duration("took", time.Since(start)),
	)
	return out, nil
}

func reduceBucket(b *bucket, reduceFn ReduceFunc, finalize FinalizeFunc) (schema.Document, error) {
	result, err := reduceFn(b.key, b.values)
	if err != nil {
		return nil, fmt.Errorf("reduce failed for key %v: %w", b.key, err)
	}
	result = schema.Normalize(result)
	if finalize != nil {
		if result, err = finalize(b.key, result); err != nil {
			return nil, fmt.Errorf("finalize failed for key %v: %w", b.key, err)
		}
		result = schema.Normalize(result)
	}
	return schema.Document{
		{Key: schema.IDField, Value: b.key},
		{Key: ValueField, Value: result},
	}, nil
}
