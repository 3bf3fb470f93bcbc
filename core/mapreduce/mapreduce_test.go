package mapreduce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
	"github.com/asaidimu/go-aggregate/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// courseAverages emits the homework average of every course a student takes.
func courseAverages(doc schema.Document, emit EmitFunc) error {
	courses, _ := doc.Get("courses")
	list, _ := courses.([]any)
	for _, item := range list {
		c := item.(schema.Document)
		name, _ := c.Get("course")
		hw, _ := c.Get("homeworks")
		avg, err := Average(name, hw.([]any))
		if err != nil {
			return err
		}
		emit(name, avg)
	}
	return nil
}

func TestRunCourseAverages(t *testing.T) {
	out, err := Run(fixtures.Students(), courseAverages, Average)
	require.NoError(t, err)
	assert.Equal(t, []schema.Document{
		schema.NewDocument("_id", "15-388", "value", 90.5),
		schema.NewDocument("_id", "15-213", "value", 92.5),
		schema.NewDocument("_id", "15-251", "value", 70.0),
	}, out)
}

func TestReduceCalledOncePerKey(t *testing.T) {
	var (
		mu    sync.Mutex
		calls = map[string]int{}
	)
	reduce := func(key any, values []any) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		calls[key.(string)]++
		return Count(key, values)
	}
	mapFn := func(doc schema.Document, emit EmitFunc) error {
		name, _ := doc.Get("name")
		emit(name, 1)
		emit("all", 1)
		return nil
	}

	out, err := Run(fixtures.Students(), mapFn, reduce)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Alice": 1, "Bob": 1, "Eve": 1, "all": 1}, calls)
	assert.Equal(t, []schema.Document{
		schema.NewDocument("_id", "Alice", "value", int64(1)),
		schema.NewDocument("_id", "all", "value", int64(3)),
		schema.NewDocument("_id", "Bob", "value", int64(1)),
		schema.NewDocument("_id", "Eve", "value", int64(1)),
	}, out)
}

func TestRunValuesInEmissionOrder(t *testing.T) {
	input := []schema.Document{
		schema.NewDocument("k", "x", "v", 3),
		schema.NewDocument("k", "y", "v", 1),
		schema.NewDocument("k", "x", "v", 2),
	}
	mapFn := func(doc schema.Document, emit EmitFunc) error {
		k, _ := doc.Get("k")
		v, _ := doc.Get("v")
		emit(k, v)
		return nil
	}

	out, err := Run(input, mapFn, Collect)
	require.NoError(t, err)
	assert.Equal(t, []schema.Document{
		schema.NewDocument("_id", "x", "value", []any{int64(3), int64(2)}),
		schema.NewDocument("_id", "y", "value", []any{int64(1)}),
	}, out)
}

func TestRunNumericKeysShareBucket(t *testing.T) {
	mapFn := func(_ schema.Document, emit EmitFunc) error {
		emit(1, "int")
		emit(1.0, "float")
		return nil
	}
	out, err := Run([]schema.Document{{}}, mapFn, Count)
	require.NoError(t, err)
	assert.Equal(t, []schema.Document{schema.NewDocument("_id", int64(1), "value", int64(2))}, out)
}

func TestRunOptions(t *testing.T) {
	mapFn := func(doc schema.Document, emit EmitFunc) error {
		name, _ := doc.Get("name")
		courses, _ := doc.Get("courses")
		emit("students", name)
		emit("enrolments", int64(len(courses.([]any))))
		return nil
	}

	t.Run("filter", func(t *testing.T) {
		filter := query.CreateSimpleFilter("name", query.ComparisonOperatorNeq, "Eve")
		out, err := New().Run(context.Background(), fixtures.Students(), mapFn, Collect, WithFilter(&filter))
		require.NoError(t, err)
		assert.Equal(t, schema.NewDocument("_id", "students", "value", []any{"Alice", "Bob"}), out[0])
	})

	t.Run("finalize", func(t *testing.T) {
		finalize := func(key, value any) (any, error) {
			if key == "students" {
				return len(value.([]any)), nil
			}
			return value, nil
		}
		out, err := Run(fixtures.Students(), mapFn, Collect, WithFinalize(finalize))
		require.NoError(t, err)
		assert.Equal(t, []schema.Document{
			schema.NewDocument("_id", "students", "value", int64(3)),
			schema.NewDocument("_id", "enrolments", "value", []any{int64(2), int64(2), int64(1)}),
		}, out)
	})
}

func TestRunParallel(t *testing.T) {
	var input []schema.Document
	for i := 0; i < 500; i++ {
		input = append(input, schema.NewDocument("k", fmt.Sprintf("k%d", i%53), "v", i))
	}
	mapFn := func(doc schema.Document, emit EmitFunc) error {
		k, _ := doc.Get("k")
		v, _ := doc.Get("v")
		emit(k, v)
		return nil
	}

	sequential, err := Run(input, mapFn, Sum)
	require.NoError(t, err)
	parallel, err := New(WithParallelism(6)).Run(context.Background(), input, mapFn, Sum)
	require.NoError(t, err)
	assert.Len(t, parallel, 53)
	assert.Equal(t, sequential, parallel)
}

func TestRunErrors(t *testing.T) {
	boom := errors.New("boom")

	_, err := Run(nil, nil, Sum)
	assert.ErrorIs(t, err, ErrMissingFunction)

	_, err = Run(fixtures.Students(), func(schema.Document, EmitFunc) error { return boom }, Sum)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "map failed on document 0")

	emitName := func(doc schema.Document, emit EmitFunc) error {
		name, _ := doc.Get("name")
		emit(name, name)
		return nil
	}
	_, err = New(WithParallelism(3)).Run(context.Background(), fixtures.Students(), emitName, Sum)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot sum string")

	_, err = Run(fixtures.Students(), emitName, Collect, WithFinalize(func(any, any) (any, error) { return nil, boom }))
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Run(ctx, fixtures.Students(), emitName, Collect)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReducers(t *testing.T) {
	v, err := Sum("k", []any{int64(1), int32(2), nil})
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	v, err = Sum("k", []any{int64(1), 0.5})
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	v, err = Average("k", []any{nil})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = Average("k", []any{90, 70, 80})
	require.NoError(t, err)
	assert.Equal(t, 80.0, v)
}
