package aggregation

import (
	"context"
	"testing"

	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
	"github.com/asaidimu/go-aggregate/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func people() []schema.Document {
	return []schema.Document{
		schema.NewDocument("_id", 1, "name", "Alice", "age", 21),
		schema.NewDocument("_id", 2, "name", "Bob", "age", 19),
		schema.NewDocument("_id", 3, "name", "Eve", "age", 25),
		schema.NewDocument("_id", 4, "name", "Mallory"),
	}
}

func TestEvaluateEmptyPipeline(t *testing.T) {
	input := people()

	out, err := Evaluate(nil, input)
	require.NoError(t, err)
	assert.Equal(t, input, out)

	out, err = Evaluate([]Stage{}, input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestEvaluateStudentsEndToEnd(t *testing.T) {
	stages := []Stage{
		Unwind("$courses"),
		&ProjectStage{Fields: []ProjectField{
			{Name: "name", Mode: ProjectInclude},
			{Name: "course", Expr: Ref("courses.course")},
			{Name: "homework_avg", Expr: Op("$avg", Ref("courses.homeworks"))},
			{Name: "midterm_avg", Expr: Op("$avg", Ref("courses.midterms"))},
		}},
		&GroupStage{
			ID: Ref("name"),
			Accumulators: []AccumulatorField{{
				Name:     "courses",
				Operator: "$push",
				Arg: &ObjectExpr{Fields: []ObjectField{
					{Name: "course", Expr: Ref("course")},
					{Name: "homework_avg", Expr: Ref("homework_avg")},
					{Name: "midterm_avg", Expr: Ref("midterm_avg")},
				}},
			}},
		},
	}

	out, err := Evaluate(stages, fixtures.Students())
	require.NoError(t, err)
	assert.ElementsMatch(t, fixtures.StudentAverages(), out)
	// Group order follows first encounter of each key.
	assert.Equal(t, fixtures.StudentAverages(), out)
}

func TestEvaluateDoesNotModifyInput(t *testing.T) {
	input := fixtures.Students()
	before := make([]schema.Document, len(input))
	for i, d := range input {
		before[i] = d.Clone()
	}

	stages, err := ParsePipelineJSON([]byte(fixtures.StudentsPipelineJSON))
	require.NoError(t, err)
	_, err = Evaluate(stages, input)
	require.NoError(t, err)

	assert.Equal(t, before, input)
}

func TestEvaluateSupplementalStages(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		stage := &MatchStage{Filter: &query.QueryFilter{Condition: &query.FilterCondition{
			Field: "age", Operator: query.ComparisonOperatorGte, Value: 20,
		}}}
		out, err := Evaluate([]Stage{stage}, people())
		require.NoError(t, err)
		assert.Equal(t, []string{"Alice", "Eve"}, names(out))
	})

	t.Run("nil match filter keeps everything", func(t *testing.T) {
		out, err := Evaluate([]Stage{&MatchStage{}}, people())
		require.NoError(t, err)
		assert.Len(t, out, 4)
	})

	t.Run("sort", func(t *testing.T) {
		stage := &SortStage{Keys: []query.SortConfiguration{{Field: "age", Direction: query.SortDirectionDesc}}}
		out, err := Evaluate([]Stage{stage}, people())
		require.NoError(t, err)
		assert.Equal(t, []string{"Eve", "Alice", "Bob", "Mallory"}, names(out))
	})

	t.Run("skip and limit", func(t *testing.T) {
		out, err := Evaluate([]Stage{&SkipStage{N: 1}, &LimitStage{N: 2}}, people())
		require.NoError(t, err)
		assert.Equal(t, []string{"Bob", "Eve"}, names(out))

		out, err = Evaluate([]Stage{&SkipStage{N: 10}}, people())
		require.NoError(t, err)
		assert.Empty(t, out)

		out, err = Evaluate([]Stage{&LimitStage{N: 10}}, people())
		require.NoError(t, err)
		assert.Len(t, out, 4)
	})

	t.Run("limit does not share the input", func(t *testing.T) {
		input := []schema.Document{
			schema.NewDocument("a", 1),
			schema.NewDocument("a", 2),
			schema.NewDocument("a", 3),
		}
		out, err := Evaluate([]Stage{&LimitStage{N: 1}}, input)
		require.NoError(t, err)
		_ = append(out, schema.NewDocument("a", 99))
		assert.Equal(t, schema.NewDocument("a", 2), input[1])
	})

	t.Run("non-positive limit", func(t *testing.T) {
		for _, n := range []int{-1, 0} {
			_, err := Evaluate([]Stage{&LimitStage{N: n}}, people())
			assert.ErrorIs(t, err, ErrInvalidStage, "limit %d", n)
		}
	})
}

func TestEvaluateErrors(t *testing.T) {
	t.Run("nil stage", func(t *testing.T) {
		_, err := Evaluate([]Stage{nil}, people())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidStage)
		assert.Contains(t, err.Error(), "failed to evaluate stage 0")
	})

	t.Run("stage index is reported", func(t *testing.T) {
		stages := []Stage{
			&LimitStage{N: 3},
			&ProjectStage{Fields: []ProjectField{{Name: "name", Mode: ProjectExclude}}},
		}
		out, err := Evaluate(stages, people())
		require.Error(t, err)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, ErrUnsupportedOperation)
		assert.Contains(t, err.Error(), "failed to evaluate stage 1 ($project)")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewEvaluator().Evaluate(ctx, []Stage{&LimitStage{N: 1}}, people())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTypeMismatchPolicy(t *testing.T) {
	input := []schema.Document{
		schema.NewDocument("name", "Alice", "grades", []any{90, "absent", 70}),
	}
	stages := []Stage{&ProjectStage{Fields: []ProjectField{
		{Name: "name", Mode: ProjectInclude},
		{Name: "avg", Expr: Op("$avg", Ref("grades"))},
	}}}

	t.Run("fail", func(t *testing.T) {
		_, err := Evaluate(stages, input)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("null", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		e := NewEvaluator(WithTypeMismatchPolicy(TypeMismatchNull), WithLogger(zap.New(core)))

		out, err := e.Evaluate(context.Background(), stages, input)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, schema.NewDocument("name", "Alice", "avg", nil), out[0])
		assert.Equal(t, 1, logs.FilterMessage("Type mismatch, using null").Len())
	})
}

func TestCustomPredicateInMatch(t *testing.T) {
	processor := query.NewDataProcessor(nil)
	processor.RegisterFilterFunction("even", func(doc schema.Document, field string, _ query.FilterValue) (bool, error) {
		v, _ := schema.Lookup(doc, field)
		n, ok := v.(int64)
		return ok && n%2 == 0, nil
	})
	e := NewEvaluator(WithDataProcessor(processor))

	stage := &MatchStage{Filter: &query.QueryFilter{Condition: &query.FilterCondition{Field: "_id", Operator: "even"}}}
	out, err := e.Evaluate(context.Background(), []Stage{stage}, people())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Mallory"}, names(out))
}

func names(docs []schema.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		v, _ := d.Get("name")
		s, _ := v.(string)
		out = append(out, s)
	}
	return out
}
