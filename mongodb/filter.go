package mongodb

import (
	"regexp"

	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TranslateFilter converts filter into a MongoDB filter document. Parts that
// have no server-side equivalent are dropped where that only widens the
// result; when that is impossible the whole filter is dropped and ok is
// false. The returned document never excludes a document filter matches.
func TranslateFilter(filter *query.QueryFilter) (bson.D, bool) {
	if filter == nil {
		return bson.D{}, true
	}
	doc, ok := translate(filter)
	if !ok {
		return bson.D{}, false
	}
	return doc, true
}

func translate(filter *query.QueryFilter) (bson.D, bool) {
	if filter.Condition != nil {
		return translateCondition(filter.Condition)
	}
	if filter.Group == nil {
		return nil, false
	}

	var operator string
	switch filter.Group.Operator {
	case schema.LogicalAnd:
		operator = "$and"
	case schema.LogicalOr:
		operator = "$or"
	case schema.LogicalNor:
		operator = "$nor"
	default:
		return nil, false
	}

	clauses := bson.A{}
	for i := range filter.Group.Conditions {
		clause, ok := translate(&filter.Group.Conditions[i])
		if !ok {
			if operator == "$and" {
				continue
			}
			return nil, false
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) == 0 {
		if operator == "$and" {
			return bson.D{}, true
		}
		return nil, false
	}
	return bson.D{{Key: operator, Value: clauses}}, true
}

func translateCondition(cond *query.FilterCondition) (bson.D, bool) {
	if cond.Field == "" {
		return nil, false
	}
	if _, isCall := cond.Value.(*query.FunctionCall); isCall {
		return nil, false
	}
	field := func(expr any) (bson.D, bool) {
		return bson.D{{Key: cond.Field, Value: expr}}, true
	}

	switch cond.Operator {
	case query.ComparisonOperatorEq:
		return field(bson.D{{Key: "$eq", Value: schema.BSONValue(cond.Value)}})
	case query.ComparisonOperatorNeq:
		return field(bson.D{{Key: "$ne", Value: schema.BSONValue(cond.Value)}})
	case query.ComparisonOperatorIn, query.ComparisonOperatorNin:
		values, ok := schema.BSONValue(cond.Value).(bson.A)
		if !ok {
			return nil, false
		}
		if cond.Operator == query.ComparisonOperatorIn {
			return field(bson.D{{Key: "$in", Value: values}})
		}
		return field(bson.D{{Key: "$nin", Value: values}})
	case query.ComparisonOperatorContains:
		return regexCondition(cond, func(s string) string { return regexp.QuoteMeta(s) })
	case query.ComparisonOperatorStartsWith:
		return regexCondition(cond, func(s string) string { return "^" + regexp.QuoteMeta(s) })
	case query.ComparisonOperatorEndsWith:
		return regexCondition(cond, func(s string) string { return regexp.QuoteMeta(s) + "$" })
	case query.ComparisonOperatorExists, query.ComparisonOperatorNotExists:
		// A field exists when it is present and not null.
		want := cond.Value == nil || schema.Truthy(schema.Normalize(cond.Value))
		if cond.Operator == query.ComparisonOperatorNotExists {
			want = !want
		}
		if want {
			return field(bson.D{{Key: "$ne", Value: nil}})
		}
		return field(bson.D{{Key: "$eq", Value: nil}})
	default:
		return nil, false
	}
}

func regexCondition(cond *query.FilterCondition, pattern func(string) string) (bson.D, bool) {
	s, ok := cond.Value.(string)
	if !ok {
		return nil, false
	}
	return bson.D{{Key: cond.Field, Value: bson.D{{Key: "$regex", Value: primitive.Regex{Pattern: pattern(s)}}}}}, true
}
