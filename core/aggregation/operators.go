package aggregation

import (
	"github.com/asaidimu/go-aggregate/core/schema"
)

// operatorFunc computes an operator from its evaluated arguments. When the
// operator was written with a single operand, args has one element and
// single is true; list operands such as {$avg: [$a, $b]} give several args.
type operatorFunc func(args []any, single bool) (any, error)

// expressionOperators is the dispatch table of operators usable in
// expressions.
var expressionOperators = map[string]operatorFunc{
	"$avg":  opAvg,
	"$sum":  opSum,
	"$min":  opMin,
	"$max":  opMax,
	"$size": opSize,
}

// IsExpressionOperator reports whether name is a known expression operator.
func IsExpressionOperator(name string) bool {
	_, ok := expressionOperators[name]
	return ok
}

func (e *Evaluator) applyOperator(op *Operator, doc schema.Document) (any, error) {
	fn, ok := expressionOperators[op.Name]
	if !ok {
		return nil, unsupportedf("expression operator %s", op.Name)
	}
	args := make([]any, len(op.Args))
	for i, a := range op.Args {
		v, err := e.evalValue(a, doc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return fn(args, len(args) == 1)
}

// operands flattens the arguments of a numeric operator: a single list
// operand contributes its elements, anything else contributes itself.
func operands(args []any, single bool) []any {
	if single {
		if list, ok := args[0].([]any); ok {
			return list
		}
	}
	return args
}

// numbers extracts the numeric operands, skipping nulls. Any other value is
// a type mismatch.
func numbers(name string, values []any) ([]any, error) {
	out := make([]any, 0, len(values))
	for _, v := range values {
		switch {
		case v == nil:
			continue
		case schema.IsNumber(v):
			out = append(out, v)
		default:
			return nil, typeMismatchf("%s expects numbers, got %s", name, schema.TypeName(v))
		}
	}
	return out, nil
}

// opAvg returns the arithmetic mean as float64, or null when there is
// nothing to average.
func opAvg(args []any, single bool) (any, error) {
	nums, err := numbers("$avg", operands(args, single))
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, nil
	}
	var sum float64
	for _, n := range nums {
		f, _ := schema.ToFloat64(n)
		sum += f
	}
	return sum / float64(len(nums)), nil
}

func opSum(args []any, single bool) (any, error) {
	nums, err := numbers("$sum", operands(args, single))
	if err != nil {
		return nil, err
	}
	return sumNumbers(nums), nil
}

// sumNumbers adds numbers, keeping an integer result while every operand is
// an integer.
func sumNumbers(nums []any) any {
	var (
		isum    int64
		fsum    float64
		integer = true
	)
	for _, n := range nums {
		switch v := n.(type) {
		case int32:
			isum += int64(v)
		case int64:
			isum += v
		default:
			f, _ := schema.ToFloat64(v)
			fsum += f
			integer = false
		}
	}
	if integer {
		return isum
	}
	return fsum + float64(isum)
}

func opMin(args []any, single bool) (any, error) {
	return extreme(operands(args, single), -1), nil
}

func opMax(args []any, single bool) (any, error) {
	return extreme(operands(args, single), 1), nil
}

// extreme returns the smallest (sign -1) or largest (sign 1) non-null value.
func extreme(values []any, sign int) any {
	var best any
	for _, v := range values {
		if v == nil {
			continue
		}
		if best == nil || schema.Compare(v, best)*sign > 0 {
			best = v
		}
	}
	return best
}

func opSize(args []any, single bool) (any, error) {
	if !single {
		return nil, unsupportedf("$size takes exactly one argument")
	}
	list, ok := args[0].([]any)
	if !ok {
		return nil, typeMismatchf("$size expects a list, got %s", schema.TypeName(args[0]))
	}
	return int64(len(list)), nil
}
