package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestNewDocument(t *testing.T) {
	doc := NewDocument("b", 1, "a", "x", "b", 2)
	assert.Equal(t, []string{"b", "a"}, doc.Keys())
	v, ok := doc.Get("b")
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)

	assert.Panics(t, func() { NewDocument(1, 2) })
}

func TestDocument_SetDoesNotMutate(t *testing.T) {
	orig := NewDocument("a", 1, "b", 2)

	updated := orig.Set("a", 10)
	assert.Equal(t, NewDocument("a", 10, "b", 2), updated)
	assert.Equal(t, NewDocument("a", 1, "b", 2), orig)

	appended := orig.Set("c", 3)
	assert.Equal(t, []string{"a", "b", "c"}, appended.Keys())
	assert.Equal(t, 2, orig.Len())

	normalized := Document{}.Set("n", uint16(7)).Set("m", map[string]any{"y": 1, "x": 2})
	assert.Equal(t, NewDocument("n", int32(7), "m", NewDocument("x", int64(2), "y", int64(1))), normalized)

	deleted := orig.Delete("a")
	assert.Equal(t, NewDocument("b", 2), deleted)
	assert.True(t, orig.Has("a"))
	assert.Equal(t, orig, orig.Delete("zzz"))
}

func TestDocument_ID(t *testing.T) {
	id, ok := NewDocument(IDField, "x", "a", 1).ID()
	assert.True(t, ok)
	assert.Equal(t, "x", id)

	_, ok = NewDocument("a", 1).ID()
	assert.False(t, ok)
}

func TestDocument_Clone(t *testing.T) {
	inner := NewDocument("x", 1)
	doc := NewDocument("inner", inner, "list", []any{NewDocument("y", 2)})

	clone := doc.Clone()
	assert.Equal(t, doc, clone)

	// mutate the clone's nested storage in place
	clone[0].Value.(Document)[0].Value = int64(99)
	clone[1].Value.([]any)[0] = "changed"

	v, _ := Lookup(doc, "inner.x")
	assert.Equal(t, int64(1), v)
	l, _ := doc.Get("list")
	assert.Equal(t, NewDocument("y", 2), l.([]any)[0])

	assert.Nil(t, Document(nil).Clone())
}

func TestDocument_Map(t *testing.T) {
	doc := NewDocument("a", 1, "n", NewDocument("b", []any{NewDocument("c", true)}))
	assert.Equal(t, map[string]any{
		"a": int64(1),
		"n": map[string]any{
			"b": []any{map[string]any{"c": true}},
		},
	}, doc.Map())
}

func TestDocument_BSON(t *testing.T) {
	doc := NewDocument("a", []any{NewDocument("b", 1)})
	assert.Equal(t, bson.D{{Key: "a", Value: bson.A{bson.D{{Key: "b", Value: int64(1)}}}}}, doc.BSON())
}

func TestDocument_SortedKeys(t *testing.T) {
	doc := NewDocument("z", 1, "a", NewDocument("y", 1, "b", 2), "m", []any{NewDocument("d", 1, "c", 2)})
	sorted := doc.SortedKeys()

	assert.Equal(t, []string{"a", "m", "z"}, sorted.Keys())
	a, _ := sorted.Get("a")
	assert.Equal(t, []string{"b", "y"}, a.(Document).Keys())
	m, _ := sorted.Get("m")
	assert.Equal(t, []string{"c", "d"}, m.([]any)[0].(Document).Keys())

	// the receiver keeps its order
	assert.Equal(t, []string{"z", "a", "m"}, doc.Keys())
}
