package mapreduce

import (
	"fmt"

	"github.com/asaidimu/go-aggregate/core/schema"
)

// Collect returns the emitted values as a list.
func Collect(_ any, values []any) (any, error) {
	out := make([]any, len(values))
	copy(out, values)
	return out, nil
}

// Count returns the number of emitted values.
func Count(_ any, values []any) (any, error) {
	return int64(len(values)), nil
}

// Sum adds numeric values; nulls are ignored.
func Sum(key any, values []any) (any, error) {
	var (
		isum    int64
		fsum    float64
		integer = true
	)
	for _, v := range values {
		switch n := v.(type) {
		case nil:
		case int32:
			isum += int64(n)
		case int64:
			isum += n
		default:
			f, ok := schema.ToFloat64(v)
			if !ok {
				return nil, fmt.Errorf("cannot sum %s for key %v", schema.TypeName(v), key)
			}
			fsum += f
			integer = false
		}
	}
	if integer {
		return isum, nil
	}
	return fsum + float64(isum), nil
}

// Average returns the arithmetic mean of numeric values as float64, or null
// when none were emitted.
func Average(key any, values []any) (any, error) {
	var sum float64
	n := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		f, ok := schema.ToFloat64(v)
		if !ok {
			return nil, fmt.Errorf("cannot average %s for key %v", schema.TypeName(v), key)
		}
		sum += f
		n++
	}
	if n == 0 {
		return nil, nil
	}
	return sum / float64(n), nil
}
