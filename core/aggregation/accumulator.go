package aggregation

import (
	"github.com/asaidimu/go-aggregate/core/schema"
	"go.uber.org/zap"
)

// accumulatorFunc reduces the values of one accumulator over a complete
// group. present[i] is false when the expression found no value in the i-th
// document of the group.
type accumulatorFunc func(e *Evaluator, values []any, present []bool) (any, error)

// accumulators is the dispatch table of $group accumulators.
var accumulators = map[string]accumulatorFunc{
	"$avg":      accAvg,
	"$sum":      accSum,
	"$min":      accMin,
	"$max":      accMax,
	"$push":     accPush,
	"$addToSet": accAddToSet,
	"$first":    accFirst,
	"$last":     accLast,
	"$count":    accCount,
}

// IsAccumulator reports whether name is a known $group accumulator.
func IsAccumulator(name string) bool {
	_, ok := accumulators[name]
	return ok
}

// accumulate evaluates acc over every document of a group, in encounter
// order, then reduces the values.
func (e *Evaluator) accumulate(acc AccumulatorField, docs []schema.Document) (any, error) {
	fn, ok := accumulators[acc.Operator]
	if !ok {
		return nil, unsupportedf("accumulator %s", acc.Operator)
	}

	values := make([]any, len(docs))
	present := make([]bool, len(docs))
	if acc.Arg != nil {
		for i, doc := range docs {
			v, ok, err := e.eval(acc.Arg, doc)
			if err != nil {
				return nil, err
			}
			values[i], present[i] = v, ok
		}
	}
	return fn(e, values, present)
}

// numericValues keeps the numeric values of a group. Null and missing values
// are ignored; any other value is a type mismatch, or dropped with a warning
// under TypeMismatchNull.
func (e *Evaluator) numericValues(name string, values []any, present []bool) ([]any, error) {
	nums := make([]any, 0, len(values))
	for i, v := range values {
		if !present[i] || v == nil {
			continue
		}
		if !schema.IsNumber(v) {
			err := typeMismatchf("%s expects numbers, got %s", name, schema.TypeName(v))
			if e.policy == TypeMismatchNull {
				e.logger.Warn("Type mismatch, ignoring value", zap.String("accumulator", name), zap.Error(err))
				continue
			}
			return nil, err
		}
		nums = append(nums, v)
	}
	return nums, nil
}

func accAvg(e *Evaluator, values []any, present []bool) (any, error) {
	nums, err := e.numericValues("$avg", values, present)
	if err != nil {
		return nil, err
	}
	return opAvg(nums, false)
}

func accSum(e *Evaluator, values []any, present []bool) (any, error) {
	nums, err := e.numericValues("$sum", values, present)
	if err != nil {
		return nil, err
	}
	return sumNumbers(nums), nil
}

func accMin(_ *Evaluator, values []any, _ []bool) (any, error) {
	return extreme(values, -1), nil
}

func accMax(_ *Evaluator, values []any, _ []bool) (any, error) {
	return extreme(values, 1), nil
}

// accPush collects values in encounter order. Missing values are skipped;
// explicit nulls are kept.
func accPush(_ *Evaluator, values []any, present []bool) (any, error) {
	out := make([]any, 0, len(values))
	for i, v := range values {
		if present[i] {
			out = append(out, v)
		}
	}
	return out, nil
}

func accAddToSet(_ *Evaluator, values []any, present []bool) (any, error) {
	seen := make(map[string]struct{}, len(values))
	out := make([]any, 0, len(values))
	for i, v := range values {
		if !present[i] {
			continue
		}
		k := schema.KeyOf(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

func accFirst(_ *Evaluator, values []any, _ []bool) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], nil
}

func accLast(_ *Evaluator, values []any, _ []bool) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	return values[len(values)-1], nil
}

func accCount(_ *Evaluator, values []any, _ []bool) (any, error) {
	return int64(len(values)), nil
}

