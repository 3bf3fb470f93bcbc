package sqlite

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
)

// Generator implements query.QueryGenerator for document tables laid out as
// (seq, id, body). Only conditions on _id are translated to SQL; the rest of
// a filter is left to the caller, so a generated SELECT may return more
// documents than the filter matches.
type Generator struct{}

var _ query.QueryGenerator = (*Generator)(nil)

// NewGenerator creates a new SQLite query generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// quoteIdentifier properly quotes an identifier for SQLite.
func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// GenerateSelectSQL creates a SELECT of the document bodies in insertion
// order, restricted by whatever part of the filter can be pushed down.
func (g *Generator) GenerateSelectSQL(table string, filter *query.QueryFilter) (string, []any, error) {
	if table == "" {
		return "", nil, fmt.Errorf("table name cannot be empty")
	}

	var sb strings.Builder
	var params []any
	sb.WriteString(fmt.Sprintf("SELECT body FROM %s", quoteIdentifier(table)))
	if filter != nil {
		if where, ok := g.buildWhereClause(filter, &params); ok && where != "" {
			sb.WriteString(" WHERE " + where)
		}
	}
	sb.WriteString(" ORDER BY seq;")
	return sb.String(), params, nil
}

// buildWhereClause translates filter into SQL. It reports false when the
// filter cannot be expressed, in which case nothing was appended to params.
func (g *Generator) buildWhereClause(filter *query.QueryFilter, params *[]any) (string, bool) {
	if filter.Condition != nil {
		return buildCondition(filter.Condition, params)
	}
	if filter.Group == nil {
		return "", false
	}

	switch filter.Group.Operator {
	case schema.LogicalAnd:
		// Dropping a conjunct widens the result, so untranslatable
		// conditions are skipped.
		var clauses []string
		for i := range filter.Group.Conditions {
			local := []any{}
			clause, ok := g.buildWhereClause(&filter.Group.Conditions[i], &local)
			if !ok || clause == "" {
				continue
			}
			clauses = append(clauses, clause)
			*params = append(*params, local...)
		}
		if len(clauses) == 0 {
			return "", true
		}
		return "(" + strings.Join(clauses, " AND ") + ")", true

	case schema.LogicalOr:
		var clauses []string
		var local []any
		for i := range filter.Group.Conditions {
			clause, ok := g.buildWhereClause(&filter.Group.Conditions[i], &local)
			if !ok || clause == "" {
				return "", false
			}
			clauses = append(clauses, clause)
		}
		if len(clauses) == 0 {
			return "", false
		}
		*params = append(*params, local...)
		return "(" + strings.Join(clauses, " OR ") + ")", true

	default:
		return "", false
	}
}

// buildCondition translates a single condition on _id. Identities are
// compared through their canonical key, which is what the id column holds.
func buildCondition(cond *query.FilterCondition, params *[]any) (string, bool) {
	if cond.Field != schema.IDField {
		return "", false
	}

	switch cond.Operator {
	case query.ComparisonOperatorEq, query.ComparisonOperatorNeq:
		key, ok := scalarKey(cond.Value)
		if !ok {
			return "", false
		}
		*params = append(*params, key)
		if cond.Operator == query.ComparisonOperatorEq {
			return "id = ?", true
		}
		return "id != ?", true

	case query.ComparisonOperatorIn, query.ComparisonOperatorNin:
		values, ok := schema.Normalize(cond.Value).([]any)
		if !ok {
			return "", false
		}
		keys := make([]any, 0, len(values))
		for _, v := range values {
			key, ok := scalarKey(v)
			if !ok {
				return "", false
			}
			keys = append(keys, key)
		}
		if len(keys) == 0 {
			if cond.Operator == query.ComparisonOperatorIn {
				return "1=0", true
			}
			return "1=1", true
		}
		*params = append(*params, keys...)
		placeholders := strings.Repeat("?,", len(keys)-1) + "?"
		if cond.Operator == query.ComparisonOperatorIn {
			return fmt.Sprintf("id IN (%s)", placeholders), true
		}
		return fmt.Sprintf("id NOT IN (%s)", placeholders), true

	default:
		return "", false
	}
}

func scalarKey(v any) (string, bool) {
	switch n := schema.Normalize(v).(type) {
	case bool, int32, int64, float64, string:
		return schema.KeyOf(n), true
	default:
		return "", false
	}
}

// GenerateInsertSQL creates a multi-row INSERT for parallel id and body
// slices.
func (g *Generator) GenerateInsertSQL(table string, ids []string, bodies []string) (string, []any, error) {
	if len(ids) == 0 {
		return "", nil, fmt.Errorf("no documents provided for insert")
	}
	if len(ids) != len(bodies) {
		return "", nil, fmt.Errorf("got %d ids for %d bodies", len(ids), len(bodies))
	}

	rows := make([]string, len(ids))
	params := make([]any, 0, 2*len(ids))
	for i := range ids {
		rows[i] = "(?, ?)"
		params = append(params, ids[i], bodies[i])
	}
	sqlQuery := fmt.Sprintf("INSERT INTO %s (id, body) VALUES %s;", quoteIdentifier(table), strings.Join(rows, ", "))
	return sqlQuery, params, nil
}

// GenerateReplaceSQL creates an UPDATE of a single document body.
func (g *Generator) GenerateReplaceSQL(table string, id string, body string) (string, []any, error) {
	if id == "" {
		return "", nil, fmt.Errorf("document id cannot be empty")
	}
	return fmt.Sprintf("UPDATE %s SET body = ? WHERE id = ?;", quoteIdentifier(table)), []any{body, id}, nil
}

// GenerateDeleteSQL creates a DELETE for the given ids.
func (g *Generator) GenerateDeleteSQL(table string, ids []string) (string, []any, error) {
	if len(ids) == 0 {
		return "", nil, fmt.Errorf("no document ids provided for delete")
	}
	params := make([]any, len(ids))
	for i, id := range ids {
		params[i] = id
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	return fmt.Sprintf("DELETE FROM %s WHERE id IN (%s);", quoteIdentifier(table), placeholders), params, nil
}
