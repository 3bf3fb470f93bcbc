// Package aggregation implements a multi-stage document transformation
// engine modelled on the MongoDB aggregation pipeline. A pipeline is an
// ordered list of stages; every stage consumes the complete output of its
// predecessor and produces new documents, never modifying its input.
package aggregation

import (
	"context"
	"errors"
	"time"

	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
	"go.uber.org/zap"
)

// TypeMismatchPolicy decides what happens when an expression meets a value of
// a type it cannot handle.
type TypeMismatchPolicy int

const (
	// TypeMismatchFail aborts the pipeline with ErrTypeMismatch.
	TypeMismatchFail TypeMismatchPolicy = iota
	// TypeMismatchNull logs a warning and continues: an operator evaluates to
	// null and an accumulator ignores the offending value.
	TypeMismatchNull
)

// Evaluator runs pipelines. It holds no state between invocations and is safe
// for concurrent use.
type Evaluator struct {
	logger      *zap.Logger
	processor   *query.DataProcessor
	parallelism int
	policy      TypeMismatchPolicy
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDataProcessor sets the processor used by $match, which makes custom
// predicate functions available to pipelines.
func WithDataProcessor(p *query.DataProcessor) Option {
	return func(e *Evaluator) {
		if p != nil {
			e.processor = p
		}
	}
}

// WithParallelism computes up to n groups of a $group stage concurrently.
// Values below 2 keep evaluation sequential.
func WithParallelism(n int) Option {
	return func(e *Evaluator) { e.parallelism = n }
}

// WithTypeMismatchPolicy sets the type mismatch policy.
func WithTypeMismatchPolicy(p TypeMismatchPolicy) Option {
	return func(e *Evaluator) { e.policy = p }
}

// NewEvaluator creates an evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		logger: zap.NewNop(),
		policy: TypeMismatchFail,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.processor == nil {
		e.processor = query.NewDataProcessor(e.logger)
	}
	return e
}

// Evaluate runs stages over input with a default evaluator.
func Evaluate(stages []Stage, input []schema.Document) ([]schema.Document, error) {
	return NewEvaluator().Evaluate(context.Background(), stages, input)
}

// Evaluate applies stages to input in order. An empty pipeline returns input
// unchanged. On error no partial output is returned.
func (e *Evaluator) Evaluate(ctx context.Context, stages []Stage, input []schema.Document) ([]schema.Document, error) {
	docs := input
	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()

		out, err := e.evaluateStage(ctx, stage, docs)
		if err != nil {
			kind := StageKind("<nil>")
			if stage != nil {
				kind = stage.Kind()
			}
			e.logger.Debug("Stage failed", zap.Int("index", i), zap.String("stage", string(kind)), zap.Error(err))
			return nil, NewStageError(i, kind, err)
		}

		e.logger.Debug("Stage evaluated",
			zap.Int("index", i),
			zap.String("stage", string(stage.Kind())),
			zap.Int("in", len(docs)),
			zap.Int("out", len(out)),
			zap.Duration("took", time.Since(start)),
		)
		docs = out
	}
	return docs, nil
}

func (e *Evaluator) evaluateStage(ctx context.Context, stage Stage, docs []schema.Document) ([]schema.Document, error) {
	switch s := stage.(type) {
	case *UnwindStage:
		return e.unwind(s, docs)
	case *ProjectStage:
		return e.project(s, docs)
	case *GroupStage:
		return e.group(ctx, s, docs)
	case *MatchStage:
		return e.processor.Filter(ctx, docs, s.Filter)
	case *SortStage:
		return query.SortDocuments(docs, s.Keys), nil
	case *LimitStage:
		if s.N <= 0 {
			return nil, invalidStagef("$limit requires a positive integer")
		}
		if s.N >= len(docs) {
			return docs, nil
		}
		return docs[:s.N:s.N], nil
	case *SkipStage:
		if s.N < 0 {
			return nil, invalidStagef("$skip must not be negative")
		}
		if s.N >= len(docs) {
			return []schema.Document{}, nil
		}
		return docs[s.N:], nil
	case nil:
		return nil, invalidStagef("nil stage")
	default:
		return nil, unsupportedf("stage %s", stage.Kind())
	}
}

// eval evaluates an expression against a document. The boolean result is
// false when the expression refers to a missing field, which lets callers
// tell an absent value from an explicit null.
func (e *Evaluator) eval(expr Expression, doc schema.Document) (any, bool, error) {
	switch x := expr.(type) {
	case *FieldRef:
		v, ok := schema.Lookup(doc, x.Path)
		return v, ok, nil
	case *Literal:
		return x.Value, true, nil
	case *Operator:
		v, err := e.applyOperator(x, doc)
		if err != nil {
			if e.policy == TypeMismatchNull && errors.Is(err, ErrTypeMismatch) {
				e.logger.Warn("Type mismatch, using null",
					zap.String("expression", x.String()),
					zap.Error(err))
				return nil, true, nil
			}
			return nil, false, NewExpressionError(x, err)
		}
		return v, true, nil
	case *ObjectExpr:
		out := make(schema.Document, 0, len(x.Fields))
		for _, f := range x.Fields {
			v, ok, err := e.eval(f.Expr, doc)
			if err != nil {
				return nil, false, err
			}
			if ok {
				out = schema.SetPath(out, f.Name, v)
			}
		}
		return out, true, nil
	case *ArrayExpr:
		out := make([]any, len(x.Items))
		for i, item := range x.Items {
			v, _, err := e.eval(item, doc)
			if err != nil {
				return nil, false, err
			}
			out[i] = v
		}
		return out, true, nil
	case nil:
		return nil, false, invalidStagef("nil expression")
	default:
		return nil, false, unsupportedf("expression %s", expr)
	}
}

// evalValue evaluates an expression treating a missing value as null.
func (e *Evaluator) evalValue(expr Expression, doc schema.Document) (any, error) {
	v, _, err := e.eval(expr, doc)
	return v, err
}
