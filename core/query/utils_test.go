package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringPtr(t *testing.T) {
	s := "test_string"
	ptr := StringPtr(s)
	assert.NotNil(t, ptr)
	assert.Equal(t, s, *ptr)
}

func TestIntPtr(t *testing.T) {
	ptr := IntPtr(7)
	assert.NotNil(t, ptr)
	assert.Equal(t, 7, *ptr)
}

func TestInt64Ptr(t *testing.T) {
	i := int64(12345)
	ptr := Int64Ptr(i)
	assert.NotNil(t, ptr)
	assert.Equal(t, i, *ptr)
}

func TestBoolPtr(t *testing.T) {
	b := true
	ptr := BoolPtr(b)
	assert.NotNil(t, ptr)
	assert.Equal(t, b, *ptr)
}

func TestAnd(t *testing.T) {
	a := CreateSimpleFilter("a", ComparisonOperatorEq, 1)
	b := CreateSimpleFilter("b", ComparisonOperatorEq, 2)

	t.Run("no filters", func(t *testing.T) {
		assert.Nil(t, And())
		assert.Nil(t, And(nil, nil))
	})

	t.Run("single filter is returned as is", func(t *testing.T) {
		got := And(nil, &a)
		assert.Equal(t, a, *got)
	})

	t.Run("multiple filters form an AND group", func(t *testing.T) {
		got := And(&a, nil, &b)
		if assert.NotNil(t, got.Group) {
			assert.Equal(t, LogicalOperatorAnd, got.Group.Operator)
			assert.Equal(t, []QueryFilter{a, b}, got.Group.Conditions)
		}
	})
}
