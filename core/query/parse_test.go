package query

import (
	"context"
	"testing"

	"github.com/asaidimu/go-aggregate/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, s string) schema.Document {
	t.Helper()
	doc, err := schema.DecodeDocument([]byte(s))
	require.NoError(t, err)
	return doc
}

func TestParseFilter(t *testing.T) {
	t.Run("empty document matches everything", func(t *testing.T) {
		f, err := ParseFilter(schema.Document{})
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("implicit equality", func(t *testing.T) {
		f, err := ParseFilter(mustDecode(t, `{"name": "Alice"}`))
		require.NoError(t, err)
		require.NotNil(t, f.Condition)
		assert.Equal(t, ComparisonOperatorEq, f.Condition.Operator)
		assert.Equal(t, "Alice", f.Condition.Value)
	})

	t.Run("equality against a sub-document", func(t *testing.T) {
		f, err := ParseFilter(mustDecode(t, `{"address": {"city": "Pittsburgh"}}`))
		require.NoError(t, err)
		assert.Equal(t, ComparisonOperatorEq, f.Condition.Operator)
		assert.Equal(t, schema.NewDocument("city", "Pittsburgh"), f.Condition.Value)
	})

	t.Run("operators on one field are ANDed", func(t *testing.T) {
		f, err := ParseFilter(mustDecode(t, `{"age": {"$gte": 18, "$lt": 65}}`))
		require.NoError(t, err)
		require.NotNil(t, f.Group)
		assert.Equal(t, schema.LogicalAnd, f.Group.Operator)
		require.Len(t, f.Group.Conditions, 2)
		assert.Equal(t, ComparisonOperatorGte, f.Group.Conditions[0].Condition.Operator)
		assert.Equal(t, ComparisonOperatorLt, f.Group.Conditions[1].Condition.Operator)
	})

	t.Run("logical operators", func(t *testing.T) {
		f, err := ParseFilter(mustDecode(t, `{"$or": [{"name": "Bob"}, {"age": {"$exists": false}}], "$nor": [{}]}`))
		require.NoError(t, err)
		require.NotNil(t, f.Group)
		require.Len(t, f.Group.Conditions, 2)
		or := f.Group.Conditions[0].Group
		require.NotNil(t, or)
		assert.Equal(t, schema.LogicalOr, or.Operator)
		assert.Equal(t, ComparisonOperatorExists, or.Conditions[1].Condition.Operator)
		assert.Equal(t, schema.LogicalNor, f.Group.Conditions[1].Group.Operator)
	})

	errorCases := map[string]string{
		"unknown field operator":   `{"a": {"$near": 1}}`,
		"unknown logical operator": `{"$xor": [{"a": 1}]}`,
		"$in without a list":       `{"a": {"$in": 1}}`,
		"$or without a list":       `{"$or": {"a": 1}}`,
		"$and with scalar items":   `{"$and": [1]}`,
		"$and empty":               `{"$and": []}`,
	}
	for name, input := range errorCases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFilter(mustDecode(t, input))
			assert.Error(t, err)
		})
	}
}

func TestParseFilter_EvaluatesLikeMongo(t *testing.T) {
	p := NewDataProcessor(nil)
	docs := students()

	tests := []struct {
		filter string
		want   []string
	}{
		{`{}`, []string{"Alice", "Bob", "Eve"}},
		{`{"courses.course": "15-213"}`, []string{"Alice", "Eve"}},
		{`{"age": {"$gt": 18, "$lt": 21}}`, []string{"Bob"}},
		{`{"name": {"$in": ["Eve", "Bob"]}}`, []string{"Bob", "Eve"}},
		{`{"age": null}`, []string{"Eve"}},
		{`{"$or": [{"name": "Alice"}, {"courses.grade": {"$gte": 100}}]}`, []string{"Alice", "Eve"}},
		{`{"$nor": [{"name": "Alice"}]}`, []string{"Bob", "Eve"}},
		{`{"tags": {"$exists": true}, "name": {"$ne": "Alice"}}`, []string{"Bob"}},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			f, err := ParseFilter(mustDecode(t, tt.filter))
			require.NoError(t, err)
			got, err := p.Filter(context.Background(), docs, f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}
