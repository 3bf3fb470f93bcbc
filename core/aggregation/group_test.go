package aggregation

import (
	"context"
	"fmt"
	"testing"

	"github.com/asaidimu/go-aggregate/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grades() []schema.Document {
	return []schema.Document{
		schema.NewDocument("name", "Alice", "course", "15-388", "grade", 96),
		schema.NewDocument("name", "Bob", "course", "15-388", "grade", 85),
		schema.NewDocument("name", "Alice", "course", "15-213", "grade", 85),
		schema.NewDocument("name", "Eve", "course", "15-213", "grade", 100),
		schema.NewDocument("name", "Bob", "course", "15-251", "grade", 70),
	}
}

func TestGroupAverageByCourse(t *testing.T) {
	stage := &GroupStage{
		ID:           Ref("course"),
		Accumulators: []AccumulatorField{{Name: "avg", Operator: "$avg", Arg: Ref("grade")}},
	}

	out, err := Evaluate([]Stage{stage}, grades())
	require.NoError(t, err)
	assert.ElementsMatch(t, []schema.Document{
		schema.NewDocument("_id", "15-388", "avg", 90.5),
		schema.NewDocument("_id", "15-213", "avg", 92.5),
		schema.NewDocument("_id", "15-251", "avg", 70.0),
	}, out)
}

func TestGroupPushKeepsEncounterOrder(t *testing.T) {
	stage := &GroupStage{
		ID:           Ref("name"),
		Accumulators: []AccumulatorField{{Name: "courses", Operator: "$push", Arg: Ref("course")}},
	}

	out, err := Evaluate([]Stage{stage}, grades())
	require.NoError(t, err)
	assert.Equal(t, []schema.Document{
		schema.NewDocument("_id", "Alice", "courses", []any{"15-388", "15-213"}),
		schema.NewDocument("_id", "Bob", "courses", []any{"15-388", "15-251"}),
		schema.NewDocument("_id", "Eve", "courses", []any{"15-213"}),
	}, out)
}

func TestGroupAccumulators(t *testing.T) {
	input := []schema.Document{
		schema.NewDocument("k", "a", "v", 3, "tag", "x"),
		schema.NewDocument("k", "a", "v", nil, "tag", "y"),
		schema.NewDocument("k", "a", "tag", "x"),
		schema.NewDocument("k", "a", "v", 1.5, "tag", "x"),
	}
	stage := &GroupStage{
		ID: Ref("k"),
		Accumulators: []AccumulatorField{
			{Name: "sum", Operator: "$sum", Arg: Ref("v")},
			{Name: "avg", Operator: "$avg", Arg: Ref("v")},
			{Name: "min", Operator: "$min", Arg: Ref("v")},
			{Name: "max", Operator: "$max", Arg: Ref("v")},
			{Name: "push", Operator: "$push", Arg: Ref("v")},
			{Name: "tags", Operator: "$addToSet", Arg: Ref("tag")},
			{Name: "first", Operator: "$first", Arg: Ref("v")},
			{Name: "last", Operator: "$last", Arg: Ref("v")},
			{Name: "n", Operator: "$count"},
		},
	}

	out, err := Evaluate([]Stage{stage}, input)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, schema.NewDocument(
		"_id", "a",
		"sum", 4.5,
		"avg", 2.25,
		"min", 1.5,
		"max", int64(3),
		"push", []any{int64(3), nil, 1.5},
		"tags", []any{"x", "y"},
		"first", int64(3),
		"last", 1.5,
		"n", int64(4),
	), out[0])
}

func TestGroupEmptyAccumulation(t *testing.T) {
	input := []schema.Document{schema.NewDocument("k", 1)}
	stage := &GroupStage{
		ID: Ref("k"),
		Accumulators: []AccumulatorField{
			{Name: "sum", Operator: "$sum", Arg: Ref("v")},
			{Name: "avg", Operator: "$avg", Arg: Ref("v")},
			{Name: "push", Operator: "$push", Arg: Ref("v")},
		},
	}

	out, err := Evaluate([]Stage{stage}, input)
	require.NoError(t, err)
	assert.Equal(t, []schema.Document{
		schema.NewDocument("_id", 1, "sum", int64(0), "avg", nil, "push", []any{}),
	}, out)
}

func TestGroupKeys(t *testing.T) {
	t.Run("numeric keys of different widths share a group", func(t *testing.T) {
		input := []schema.Document{
			schema.NewDocument("k", int32(1)),
			schema.NewDocument("k", 1.0),
			schema.NewDocument("k", int64(2)),
		}
		stage := &GroupStage{ID: Ref("k"), Accumulators: []AccumulatorField{{Name: "n", Operator: "$count"}}}

		out, err := Evaluate([]Stage{stage}, input)
		require.NoError(t, err)
		assert.Equal(t, []schema.Document{
			schema.NewDocument("_id", int32(1), "n", int64(2)),
			schema.NewDocument("_id", int64(2), "n", int64(1)),
		}, out)
	})

	t.Run("large integer keys stay apart", func(t *testing.T) {
		input := []schema.Document{
			schema.NewDocument("k", int64(9007199254740992), "v", "a"),
			schema.NewDocument("k", int64(9007199254740993), "v", "b"),
		}
		stage := &GroupStage{ID: Ref("k"), Accumulators: []AccumulatorField{{Name: "vals", Operator: "$push", Arg: Ref("v")}}}

		out, err := Evaluate([]Stage{stage}, input)
		require.NoError(t, err)
		assert.ElementsMatch(t, []schema.Document{
			schema.NewDocument("_id", int64(9007199254740992), "vals", []any{"a"}),
			schema.NewDocument("_id", int64(9007199254740993), "vals", []any{"b"}),
		}, out)
	})

	t.Run("missing key groups as null", func(t *testing.T) {
		stage := &GroupStage{ID: Ref("nope"), Accumulators: []AccumulatorField{{Name: "n", Operator: "$count"}}}

		out, err := Evaluate([]Stage{stage}, grades())
		require.NoError(t, err)
		assert.Equal(t, []schema.Document{schema.NewDocument("_id", nil, "n", int64(5))}, out)
	})

	t.Run("compound key", func(t *testing.T) {
		stage := &GroupStage{
			ID: &ObjectExpr{Fields: []ObjectField{
				{Name: "name", Expr: Ref("name")},
				{Name: "odd", Expr: Lit(true)},
			}},
		}

		out, err := Evaluate([]Stage{stage}, grades())
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, schema.NewDocument("_id", schema.NewDocument("name", "Alice", "odd", true)), out[0])
	})

	t.Run("empty input", func(t *testing.T) {
		stage := &GroupStage{ID: Ref("k")}
		out, err := Evaluate([]Stage{stage}, nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestGroupValidation(t *testing.T) {
	tests := []struct {
		name  string
		stage *GroupStage
		want  error
	}{
		{"missing id", &GroupStage{}, ErrInvalidStage},
		{"accumulator named _id", &GroupStage{ID: Ref("k"), Accumulators: []AccumulatorField{{Name: "_id", Operator: "$count"}}}, ErrInvalidStage},
		{"duplicate accumulator", &GroupStage{ID: Ref("k"), Accumulators: []AccumulatorField{
			{Name: "n", Operator: "$count"}, {Name: "n", Operator: "$count"},
		}}, ErrInvalidStage},
		{"unknown accumulator", &GroupStage{ID: Ref("k"), Accumulators: []AccumulatorField{
			{Name: "m", Operator: "$median", Arg: Ref("v")},
		}}, ErrUnsupportedOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate([]Stage{tt.stage}, grades())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGroupTypeMismatch(t *testing.T) {
	input := []schema.Document{
		schema.NewDocument("k", "a", "v", 4),
		schema.NewDocument("k", "a", "v", "four"),
	}
	stage := &GroupStage{ID: Ref("k"), Accumulators: []AccumulatorField{{Name: "avg", Operator: "$avg", Arg: Ref("v")}}}

	_, err := Evaluate([]Stage{stage}, input)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	e := NewEvaluator(WithTypeMismatchPolicy(TypeMismatchNull))
	out, err := e.Evaluate(context.Background(), []Stage{stage}, input)
	require.NoError(t, err)
	assert.Equal(t, []schema.Document{schema.NewDocument("_id", "a", "avg", 4.0)}, out)
}

func TestGroupParallel(t *testing.T) {
	var input []schema.Document
	for i := 0; i < 200; i++ {
		input = append(input, schema.NewDocument("k", fmt.Sprintf("key-%02d", i%37), "v", i))
	}
	stage := &GroupStage{
		ID: Ref("k"),
		Accumulators: []AccumulatorField{
			{Name: "sum", Operator: "$sum", Arg: Ref("v")},
			{Name: "values", Operator: "$push", Arg: Ref("v")},
		},
	}

	sequential, err := Evaluate([]Stage{stage}, input)
	require.NoError(t, err)

	parallel, err := NewEvaluator(WithParallelism(8)).Evaluate(context.Background(), []Stage{stage}, input)
	require.NoError(t, err)

	require.Len(t, parallel, 37)
	assert.Equal(t, sequential, parallel)
}

func TestGroupParallelError(t *testing.T) {
	input := []schema.Document{
		schema.NewDocument("k", 1, "v", 1),
		schema.NewDocument("k", 2, "v", "x"),
		schema.NewDocument("k", 3, "v", 3),
	}
	stage := &GroupStage{ID: Ref("k"), Accumulators: []AccumulatorField{{Name: "s", Operator: "$sum", Arg: Ref("v")}}}

	out, err := NewEvaluator(WithParallelism(4)).Evaluate(context.Background(), []Stage{stage}, input)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}
