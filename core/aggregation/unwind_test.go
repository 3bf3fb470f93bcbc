package aggregation

import (
	"testing"

	"github.com/asaidimu/go-aggregate/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwind(t *testing.T) {
	t.Run("one document per element", func(t *testing.T) {
		input := []schema.Document{schema.NewDocument("_id", 1, "tags", []any{"a", "b"})}

		out, err := Evaluate([]Stage{Unwind("$tags")}, input)
		require.NoError(t, err)
		assert.Equal(t, []schema.Document{
			schema.NewDocument("_id", 1, "tags", "a"),
			schema.NewDocument("_id", 1, "tags", "b"),
		}, out)
	})

	t.Run("element documents replace the field", func(t *testing.T) {
		input := []schema.Document{schema.NewDocument(
			"name", "Alice",
			"courses", []any{
				schema.NewDocument("course", "15-388"),
				schema.NewDocument("course", "15-213"),
			},
		)}

		out, err := Evaluate([]Stage{Unwind("courses")}, input)
		require.NoError(t, err)
		require.Len(t, out, 2)
		v, ok := schema.Lookup(out[1], "courses.course")
		assert.True(t, ok)
		assert.Equal(t, "15-213", v)
	})

	t.Run("nested path", func(t *testing.T) {
		input := []schema.Document{schema.NewDocument(
			"a", schema.NewDocument("b", []any{1, 2, 3}, "c", true),
		)}

		out, err := Evaluate([]Stage{Unwind("a.b")}, input)
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, schema.NewDocument("a", schema.NewDocument("b", 3, "c", true)), out[2])
	})

	t.Run("absent null and empty produce nothing", func(t *testing.T) {
		input := []schema.Document{
			schema.NewDocument("_id", 1),
			schema.NewDocument("_id", 2, "tags", nil),
			schema.NewDocument("_id", 3, "tags", []any{}),
			schema.NewDocument("_id", 4, "tags", []any{"x"}),
		}

		out, err := Evaluate([]Stage{Unwind("tags")}, input)
		require.NoError(t, err)
		assert.Equal(t, []schema.Document{schema.NewDocument("_id", 4, "tags", "x")}, out)
	})

	t.Run("preserve null and empty", func(t *testing.T) {
		input := []schema.Document{
			schema.NewDocument("_id", 1),
			schema.NewDocument("_id", 2, "tags", []any{}),
		}
		stage := &UnwindStage{Path: "tags", PreserveNullAndEmptyArrays: true}

		out, err := Evaluate([]Stage{stage}, input)
		require.NoError(t, err)
		assert.Equal(t, input, out)
	})

	t.Run("scalar passes through", func(t *testing.T) {
		input := []schema.Document{schema.NewDocument("_id", 1, "tags", "solo")}

		out, err := Evaluate([]Stage{Unwind("tags")}, input)
		require.NoError(t, err)
		assert.Equal(t, input, out)
	})

	t.Run("include array index", func(t *testing.T) {
		input := []schema.Document{
			schema.NewDocument("_id", 1, "tags", []any{"a", "b"}),
			schema.NewDocument("_id", 2),
		}
		stage := &UnwindStage{Path: "tags", IncludeArrayIndex: "idx", PreserveNullAndEmptyArrays: true}

		out, err := Evaluate([]Stage{stage}, input)
		require.NoError(t, err)
		assert.Equal(t, []schema.Document{
			schema.NewDocument("_id", 1, "tags", "a", "idx", int64(0)),
			schema.NewDocument("_id", 1, "tags", "b", "idx", int64(1)),
			schema.NewDocument("_id", 2, "idx", nil),
		}, out)
	})

	t.Run("path through a list is not unwound", func(t *testing.T) {
		input := []schema.Document{schema.NewDocument(
			"items", []any{schema.NewDocument("tags", []any{"a"})},
		)}

		out, err := Evaluate([]Stage{Unwind("items.tags")}, input)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := Evaluate([]Stage{&UnwindStage{}}, nil)
		assert.ErrorIs(t, err, ErrInvalidStage)
	})
}
