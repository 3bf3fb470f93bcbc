package query

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-aggregate/core/schema"
)

var filterOperators = map[string]ComparisonOperator{
	"$eq":  ComparisonOperatorEq,
	"$ne":  ComparisonOperatorNeq,
	"$gt":  ComparisonOperatorGt,
	"$gte": ComparisonOperatorGte,
	"$lt":  ComparisonOperatorLt,
	"$lte": ComparisonOperatorLte,
	"$in":  ComparisonOperatorIn,
	"$nin": ComparisonOperatorNin,

	"$exists": ComparisonOperatorExists,
}

var logicalOperators = map[string]schema.LogicalOperator{
	"$and": schema.LogicalAnd,
	"$or":  schema.LogicalOr,
	"$nor": schema.LogicalNor,
}

// ParseFilter converts a MongoDB filter document such as
// {"age": {"$gte": 18}, "$or": [{"name": "Alice"}, {"name": "Bob"}]} into a
// QueryFilter. An empty document yields a nil filter, which matches everything.
// Field entries are combined with AND in document order.
func ParseFilter(doc schema.Document) (*QueryFilter, error) {
	var conditions []QueryFilter

	for _, field := range doc {
		if strings.HasPrefix(field.Key, "$") {
			op, ok := logicalOperators[field.Key]
			if !ok {
				return nil, fmt.Errorf("unsupported filter operator %q", field.Key)
			}
			group, err := parseLogical(op, field.Key, field.Value)
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, group)
			continue
		}

		parsed, err := parseFieldFilter(field.Key, field.Value)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, parsed...)
	}

	switch len(conditions) {
	case 0:
		return nil, nil
	case 1:
		return &conditions[0], nil
	default:
		f := CreateFilterGroup(schema.LogicalAnd, conditions...)
		return &f, nil
	}
}

func parseLogical(op schema.LogicalOperator, name string, value any) (QueryFilter, error) {
	items, ok := value.([]any)
	if !ok || len(items) == 0 {
		return QueryFilter{}, fmt.Errorf("%s requires a non-empty list of filter documents", name)
	}
	conds := make([]QueryFilter, 0, len(items))
	for i, item := range items {
		sub, ok := item.(schema.Document)
		if !ok {
			return QueryFilter{}, fmt.Errorf("%s[%d] is a %s, expected a document", name, i, schema.TypeName(item))
		}
		parsed, err := ParseFilter(sub)
		if err != nil {
			return QueryFilter{}, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		if parsed == nil {
			// {} matches everything
			parsed = &QueryFilter{Group: &FilterGroup{Operator: schema.LogicalAnd}}
		}
		conds = append(conds, *parsed)
	}
	return CreateFilterGroup(op, conds...), nil
}

// parseFieldFilter handles {field: value} and {field: {$op: value, ...}}.
func parseFieldFilter(field string, value any) ([]QueryFilter, error) {
	ops, ok := value.(schema.Document)
	if !ok || len(ops) == 0 || !strings.HasPrefix(ops[0].Key, "$") {
		return []QueryFilter{CreateSimpleFilter(field, ComparisonOperatorEq, value)}, nil
	}

	conds := make([]QueryFilter, 0, len(ops))
	for _, op := range ops {
		operator, ok := filterOperators[op.Key]
		if !ok {
			return nil, fmt.Errorf("unsupported filter operator %q on field %q", op.Key, field)
		}
		if operator == ComparisonOperatorIn || operator == ComparisonOperatorNin {
			if _, isList := op.Value.([]any); !isList {
				return nil, fmt.Errorf("%s on field %q requires a list", op.Key, field)
			}
		}
		conds = append(conds, CreateSimpleFilter(field, operator, op.Value))
	}
	return conds, nil
}
