package query

import (
	"context"
	"errors"
	"testing"

	"github.com/asaidimu/go-aggregate/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func students() []schema.Document {
	return []schema.Document{
		schema.NewDocument(
			"_id", "a",
			"name", "Alice",
			"age", 21,
			"tags", []any{"honors", "ta"},
			"courses", []any{
				schema.NewDocument("course", "15-388", "grade", 96),
				schema.NewDocument("course", "15-213", "grade", 85),
			},
		),
		schema.NewDocument(
			"_id", "b",
			"name", "Bob",
			"age", 19,
			"tags", []any{},
			"courses", []any{
				schema.NewDocument("course", "15-388", "grade", 85),
			},
		),
		schema.NewDocument(
			"_id", "e",
			"name", "Eve",
			"age", nil,
			"courses", []any{
				schema.NewDocument("course", "15-213", "grade", 100),
			},
		),
	}
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

func TestNewDataProcessor(t *testing.T) {
	p := NewDataProcessor(nil)
	assert.NotNil(t, p)
	assert.NotNil(t, p.goComputeFunctions)
	assert.NotNil(t, p.goFilterFunctions)
	assert.NotNil(t, p.logger)

	p = NewDataProcessor(zap.NewNop())
	assert.NotNil(t, p)
}

func TestDataProcessor_RegisterFunctions(t *testing.T) {
	p := NewDataProcessor(nil)
	p.RegisterComputeFunctions(map[string]ComputeFunction{
		"func1": func(row schema.Document, args FilterValue) (any, error) { return nil, nil },
		"func2": func(row schema.Document, args FilterValue) (any, error) { return nil, nil },
	})
	p.RegisterFilterFunctions(map[ComparisonOperator]PredicateFunction{
		"op1": func(doc schema.Document, field string, args FilterValue) (bool, error) { return true, nil },
	})
	assert.Contains(t, p.goComputeFunctions, "func1")
	assert.Contains(t, p.goComputeFunctions, "func2")
	assert.Contains(t, p.goFilterFunctions, ComparisonOperator("op1"))
}

func TestDataProcessor_Match(t *testing.T) {
	p := NewDataProcessor(nil)
	ctx := context.Background()
	alice := students()[0]

	tests := []struct {
		name   string
		filter QueryFilter
		want   bool
	}{
		{"eq scalar", CreateSimpleFilter("name", ComparisonOperatorEq, "Alice"), true},
		{"eq across numeric widths", CreateSimpleFilter("age", ComparisonOperatorEq, 21.0), true},
		{"eq element of list", CreateSimpleFilter("tags", ComparisonOperatorEq, "ta"), true},
		{"eq through list of documents", CreateSimpleFilter("courses.course", ComparisonOperatorEq, "15-213"), true},
		{"eq missing field is null", CreateSimpleFilter("missing", ComparisonOperatorEq, nil), true},
		{"neq", CreateSimpleFilter("name", ComparisonOperatorNeq, "Alice"), false},
		{"gt", CreateSimpleFilter("age", ComparisonOperatorGt, 20), true},
		{"gte equal", CreateSimpleFilter("age", ComparisonOperatorGte, 21), true},
		{"lt", CreateSimpleFilter("age", ComparisonOperatorLt, 21), false},
		{"lte any element", CreateSimpleFilter("courses.grade", ComparisonOperatorLte, 85), true},
		{"range across types never matches", CreateSimpleFilter("name", ComparisonOperatorGt, 1), false},
		{"range on missing field", CreateSimpleFilter("missing", ComparisonOperatorLt, 1), false},
		{"in", CreateSimpleFilter("name", ComparisonOperatorIn, []any{"Bob", "Alice"}), true},
		{"nin", CreateSimpleFilter("name", ComparisonOperatorNin, []any{"Bob", "Eve"}), true},
		{"contains substring", CreateSimpleFilter("name", ComparisonOperatorContains, "lic"), true},
		{"contains list element", CreateSimpleFilter("tags", ComparisonOperatorContains, "honors"), true},
		{"ncontains", CreateSimpleFilter("name", ComparisonOperatorNotContains, "zz"), true},
		{"startswith", CreateSimpleFilter("name", ComparisonOperatorStartsWith, "Al"), true},
		{"endswith", CreateSimpleFilter("courses.course", ComparisonOperatorEndsWith, "388"), true},
		{"exists", CreateSimpleFilter("age", ComparisonOperatorExists, true), true},
		{"exists false", CreateSimpleFilter("missing", ComparisonOperatorExists, false), true},
		{"nexists", CreateSimpleFilter("age", ComparisonOperatorNotExists, true), false},
		{
			"and group",
			CreateFilterGroup(schema.LogicalAnd,
				CreateSimpleFilter("name", ComparisonOperatorEq, "Alice"),
				CreateSimpleFilter("age", ComparisonOperatorLt, 20)),
			false,
		},
		{
			"or group",
			CreateFilterGroup(schema.LogicalOr,
				CreateSimpleFilter("name", ComparisonOperatorEq, "Bob"),
				CreateSimpleFilter("age", ComparisonOperatorGt, 20)),
			true,
		},
		{
			"nor group",
			CreateFilterGroup(schema.LogicalNor,
				CreateSimpleFilter("name", ComparisonOperatorEq, "Bob"),
				CreateSimpleFilter("name", ComparisonOperatorEq, "Eve")),
			true,
		},
		{
			"not group",
			CreateFilterGroup(schema.LogicalNot,
				CreateSimpleFilter("name", ComparisonOperatorEq, "Alice")),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Match(ctx, &tt.filter, alice)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("nil filter matches", func(t *testing.T) {
		got, err := p.Match(ctx, nil, alice)
		require.NoError(t, err)
		assert.True(t, got)
	})

	t.Run("nexists on null field", func(t *testing.T) {
		eve := students()[2]
		f := CreateSimpleFilter("age", ComparisonOperatorNotExists, true)
		got, err := p.Match(ctx, &f, eve)
		require.NoError(t, err)
		assert.True(t, got)
	})

	t.Run("in requires a list", func(t *testing.T) {
		f := CreateSimpleFilter("name", ComparisonOperatorIn, "Alice")
		_, err := p.Match(ctx, &f, alice)
		assert.Error(t, err)
	})

	t.Run("empty filter structure", func(t *testing.T) {
		_, err := p.Match(ctx, &QueryFilter{}, alice)
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		f := CreateSimpleFilter("name", ComparisonOperatorEq, "Alice")
		_, err := p.Match(cctx, &f, alice)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDataProcessor_CustomPredicates(t *testing.T) {
	p := NewDataProcessor(nil)
	p.RegisterFilterFunction("even", func(doc schema.Document, field string, args FilterValue) (bool, error) {
		v, ok := schema.Lookup(doc, field)
		if !ok {
			return false, nil
		}
		f, ok := schema.ToFloat64(v)
		if !ok {
			return false, errors.New("not a number")
		}
		return int(f)%2 == 0, nil
	})

	f := CreateSimpleFilter("age", "even", nil)
	got, err := p.Filter(context.Background(), students()[:2], &f)
	require.NoError(t, err)
	assert.Equal(t, []string{}, names(got))

	f = CreateSimpleFilter("age", "odd", nil)
	_, err = p.Filter(context.Background(), students(), &f)
	assert.ErrorContains(t, err, "unregistered filter function")
}

func TestSortDocuments(t *testing.T) {
	docs := students()

	t.Run("ascending with null first", func(t *testing.T) {
		sorted := SortDocuments(docs, []SortConfiguration{{Field: "age", Direction: SortDirectionAsc}})
		assert.Equal(t, []string{"Eve", "Bob", "Alice"}, names(sorted))
	})

	t.Run("descending", func(t *testing.T) {
		sorted := SortDocuments(docs, []SortConfiguration{{Field: "name", Direction: SortDirectionDesc}})
		assert.Equal(t, []string{"Eve", "Bob", "Alice"}, names(sorted))
	})

	t.Run("stable on ties and input untouched", func(t *testing.T) {
		sorted := SortDocuments(docs, []SortConfiguration{{Field: "missing", Direction: SortDirectionAsc}})
		assert.Equal(t, []string{"Alice", "Bob", "Eve"}, names(sorted))
		assert.Equal(t, []string{"Alice", "Bob", "Eve"}, names(docs))
	})
}

func TestDataProcessor_ProcessRows(t *testing.T) {
	p := NewDataProcessor(nil)
	p.RegisterComputeFunction("course_count", func(doc schema.Document, args FilterValue) (any, error) {
		v, _ := doc.Get("courses")
		list, _ := v.([]any)
		return len(list), nil
	})
	ctx := context.Background()

	t.Run("nil dsl returns everything", func(t *testing.T) {
		result, err := p.ProcessRows(ctx, students(), nil)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Count)
		assert.Nil(t, result.Pagination)
	})

	t.Run("filter sort paginate", func(t *testing.T) {
		dsl := NewQueryBuilder().
			Where("courses.course").Eq("15-388").
			OrderByAsc("name").
			Offset(1).
			Limit(5).
			Build()
		result, err := p.ProcessRows(ctx, students(), &dsl)
		require.NoError(t, err)
		assert.Equal(t, []string{"Bob"}, names(result.Data))
		require.NotNil(t, result.Pagination)
		assert.Equal(t, 2, result.Pagination.Total)
		assert.Equal(t, 1, result.Pagination.Offset)
		assert.False(t, result.Pagination.More)
	})

	t.Run("offset past the end", func(t *testing.T) {
		dsl := NewQueryBuilder().Offset(10).Build()
		result, err := p.ProcessRows(ctx, students(), &dsl)
		require.NoError(t, err)
		assert.Empty(t, result.Data)
	})

	t.Run("include projection keeps _id and computed fields", func(t *testing.T) {
		dsl := NewQueryBuilder().
			Where("name").Eq("Alice").
			Select().
			Include("name", "courses.course").
			AddComputed("n", "course_count").
			AddCase("adult").
			When(CreateSimpleFilter("age", ComparisonOperatorGte, 21), "yes").
			Else("no").
			End().
			End().
			Build()
		result, err := p.ProcessRows(ctx, students(), &dsl)
		require.NoError(t, err)
		require.Len(t, result.Data, 1)
		assert.Equal(t, schema.NewDocument(
			"_id", "a",
			"name", "Alice",
			"courses", schema.NewDocument("course", []any{"15-388", "15-213"}),
			"n", int64(2),
			"adult", "yes",
		), result.Data[0])
	})

	t.Run("exclude projection", func(t *testing.T) {
		dsl := NewQueryBuilder().
			Where("name").Eq("Bob").
			Select().Exclude("_id", "courses", "tags").End().
			Build()
		result, err := p.ProcessRows(ctx, students(), &dsl)
		require.NoError(t, err)
		assert.Equal(t, []schema.Document{schema.NewDocument("name", "Bob", "age", 19)}, result.Data)
	})

	t.Run("unknown compute function", func(t *testing.T) {
		dsl := NewQueryBuilder().Select().AddComputed("x", "nope").End().Build()
		_, err := p.ProcessRows(ctx, students(), &dsl)
		assert.ErrorContains(t, err, "unregistered compute function")
	})
}
