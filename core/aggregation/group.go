package aggregation

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-aggregate/core/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type partition struct {
	key  any
	docs []schema.Document
}

// group hash-partitions documents by the canonical key of the evaluated _id
// expression. Partitioning completes before any accumulator runs. Output is
// in the order each key was first encountered.
func (e *Evaluator) group(ctx context.Context, s *GroupStage, docs []schema.Document) ([]schema.Document, error) {
	if s.ID == nil {
		return nil, invalidStagef("$group requires an _id expression")
	}
	seen := make(map[string]struct{}, len(s.Accumulators))
	for _, acc := range s.Accumulators {
		if acc.Name == schema.IDField {
			return nil, invalidStagef("$group accumulator cannot be named %s", schema.IDField)
		}
		if _, dup := seen[acc.Name]; dup {
			return nil, invalidStagef("$group accumulator %q declared twice", acc.Name)
		}
		seen[acc.Name] = struct{}{}
		if !IsAccumulator(acc.Operator) {
			return nil, unsupportedf("accumulator %s", acc.Operator)
		}
	}

	index := make(map[string]int)
	var parts []*partition
	for _, doc := range docs {
		key, err := e.evalValue(s.ID, doc)
		if err != nil {
			return nil, fmt.Errorf("group key: %w", err)
		}
		k := schema.KeyOf(key)
		i, ok := index[k]
		if !ok {
			i = len(parts)
			index[k] = i
			parts = append(parts, &partition{key: key})
		}
		parts[i].docs = append(parts[i].docs, doc)
	}

	out := make([]schema.Document, len(parts))
	if e.parallelism < 2 || len(parts) < 2 {
		for i, p := range parts {
			doc, err := e.reduceGroup(s, p)
			if err != nil {
				return nil, err
			}
			out[i] = doc
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, p := range parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := e.reduceGroup(s, p)
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
	e.logger.Debug("Groups reduced in parallel", zap.Int("groups", len(parts)), zap.Int("parallelism", e.parallelism))
	return out, nil
}

// reduceGroup computes the output document of a single, complete group.
// Accumulators run in declaration order.
func (e *Evaluator) reduceGroup(s *GroupStage, p *partition) (schema.Document, error) {
	doc := make(schema.Document, 0, len(s.Accumulators)+1)
	doc = append(doc, schema.Field{Key: schema.IDField, Value: p.key})
	for _, acc := range s.Accumulators {
		v, err := e.accumulate(acc, p.docs)
		if err != nil {
			return nil, fmt.Errorf("accumulator %s (%s): %w", acc.Name, acc.Operator, err)
		}
		doc = append(doc, schema.Field{Key: acc.Name, Value: v})
	}
	return doc, nil
}
