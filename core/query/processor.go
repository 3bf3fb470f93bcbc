package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/asaidimu/go-aggregate/core/schema"
	"go.uber.org/zap"
)

// ComputeFunction is a pure Go function that computes a new value for a document.
// It receives the document and the call's arguments and returns the value of
// the computed field.
type ComputeFunction func(doc schema.Document, args FilterValue) (any, error)

// PredicateFunction is a pure Go function that performs custom filtering logic
// for a non-standard comparison operator.
type PredicateFunction func(doc schema.Document, field string, args FilterValue) (bool, error)

// DataProcessor evaluates queries over in-memory documents: filtering, sorting,
// pagination, computed fields and projection.
type DataProcessor struct {
	goComputeFunctions map[string]ComputeFunction
	goFilterFunctions  map[ComparisonOperator]PredicateFunction
	mu                 sync.RWMutex
	logger             *zap.Logger
}

// NewDataProcessor creates a new DataProcessor instance.
func NewDataProcessor(logger *zap.Logger) *DataProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataProcessor{
		goComputeFunctions: make(map[string]ComputeFunction),
		goFilterFunctions:  make(map[ComparisonOperator]PredicateFunction),
		logger:             logger,
	}
}

// RegisterComputeFunction registers a Go function for computed fields.
func (p *DataProcessor) RegisterComputeFunction(name string, fn ComputeFunction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.goComputeFunctions[name] = fn
	p.logger.Info("Registered compute function", zap.String("name", name))
}

// RegisterFilterFunction registers a Go function for custom filtering.
func (p *DataProcessor) RegisterFilterFunction(operator ComparisonOperator, fn PredicateFunction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.goFilterFunctions[operator] = fn
	p.logger.Info("Registered filter function", zap.String("operator", string(operator)))
}

// RegisterComputeFunctions registers multiple compute functions from a map.
func (p *DataProcessor) RegisterComputeFunctions(functionMap map[string]ComputeFunction) {
	for name, fn := range functionMap {
		p.RegisterComputeFunction(name, fn)
	}
}

// RegisterFilterFunctions registers multiple predicate functions from a map.
func (p *DataProcessor) RegisterFilterFunctions(functionMap map[ComparisonOperator]PredicateFunction) {
	for operator, fn := range functionMap {
		p.RegisterFilterFunction(operator, fn)
	}
}

// ProcessRows applies the whole DSL to documents: filter, sort, pagination,
// computed fields and finally projection. The input slice is not modified.
func (p *DataProcessor) ProcessRows(ctx context.Context, rows []schema.Document, dsl *QueryDSL) (*QueryResult, error) {
	if dsl == nil {
		dsl = &QueryDSL{}
	}

	filtered, err := p.Filter(ctx, rows, dsl.Filters)
	if err != nil {
		return nil, fmt.Errorf("filter failed: %w", err)
	}
	p.logger.Debug("Rows remaining after filters", zap.Int("count", len(filtered)))

	if len(dsl.Sort) > 0 {
		filtered = SortDocuments(filtered, dsl.Sort)
	}

	total := len(filtered)
	page, offset := paginate(filtered, dsl.Pagination)

	computed, err := p.applyComputed(page, dsl.Projection)
	if err != nil {
		return nil, fmt.Errorf("computed field failed: %w", err)
	}

	final := applyFinalProjection(computed, dsl.Projection)
	p.logger.Debug("Rows returned after final projection", zap.Int("count", len(final)))

	result := &QueryResult{Data: final, Count: len(final)}
	if dsl.Pagination != nil {
		result.Pagination = &PaginationResult{
			Total:  total,
			Offset: offset,
			More:   offset+len(final) < total,
		}
	}
	return result, nil
}

// Filter returns the documents matching filter, in input order.
func (p *DataProcessor) Filter(ctx context.Context, rows []schema.Document, filter *QueryFilter) ([]schema.Document, error) {
	if filter == nil {
		return rows, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	filtered := make([]schema.Document, 0, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		passes, err := p.evaluateFilter(row, filter)
		if err != nil {
			return nil, fmt.Errorf("error evaluating filter for document %d: %w", i, err)
		}
		if passes {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

// Match evaluates a single document against a filter. A nil filter matches
// every document.
func (p *DataProcessor) Match(ctx context.Context, filters *QueryFilter, data schema.Document) (bool, error) {
	if filters == nil {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.evaluateFilter(data, filters)
}

// evaluateFilter recursively evaluates a QueryFilter. Callers hold p.mu.
func (p *DataProcessor) evaluateFilter(row schema.Document, filter *QueryFilter) (bool, error) {
	if filter.Condition != nil {
		if !filter.Condition.Operator.IsStandard() {
			fn, ok := p.goFilterFunctions[filter.Condition.Operator]
			if !ok {
				return false, fmt.Errorf("unregistered filter function for operator: %s", filter.Condition.Operator)
			}
			return fn(row, filter.Condition.Field, filter.Condition.Value)
		}
		return evaluateStandardCondition(row, filter.Condition)
	}

	if filter.Group != nil {
		switch filter.Group.Operator {
		case schema.LogicalAnd:
			for i := range filter.Group.Conditions {
				passes, err := p.evaluateFilter(row, &filter.Group.Conditions[i])
				if err != nil || !passes {
					return false, err
				}
			}
			return true, nil
		case schema.LogicalOr, schema.LogicalNor:
			matched := false
			for i := range filter.Group.Conditions {
				passes, err := p.evaluateFilter(row, &filter.Group.Conditions[i])
				if err != nil {
					return false, err
				}
				if passes {
					matched = true
					break
				}
			}
			if filter.Group.Operator == schema.LogicalNor {
				return !matched, nil
			}
			return matched, nil
		case schema.LogicalNot:
			// negates the conjunction of the group's conditions
			for i := range filter.Group.Conditions {
				passes, err := p.evaluateFilter(row, &filter.Group.Conditions[i])
				if err != nil {
					return false, err
				}
				if !passes {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, fmt.Errorf("unsupported logical operator: %s", filter.Group.Operator)
		}
	}
	return false, fmt.Errorf("empty or invalid filter structure")
}

// evaluateStandardCondition evaluates the built-in comparison operators with
// MongoDB semantics: a list-valued field matches when any element matches,
// and a missing field compares as null for equality.
func evaluateStandardCondition(row schema.Document, condition *FilterCondition) (bool, error) {
	fieldValue, found := schema.Lookup(row, condition.Field)
	want := schema.Normalize(condition.Value)

	switch condition.Operator {
	case ComparisonOperatorEq:
		return equalsOrContains(fieldValue, want), nil
	case ComparisonOperatorNeq:
		return !equalsOrContains(fieldValue, want), nil
	case ComparisonOperatorGt, ComparisonOperatorGte, ComparisonOperatorLt, ComparisonOperatorLte:
		if !found {
			return false, nil
		}
		return anyElement(fieldValue, func(v any) bool {
			return compareOrdered(condition.Operator, v, want)
		}), nil
	case ComparisonOperatorIn, ComparisonOperatorNin:
		candidates, ok := want.([]any)
		if !ok {
			return false, fmt.Errorf("operator %s requires a list, got %s", condition.Operator, schema.TypeName(want))
		}
		in := false
		for _, c := range candidates {
			if equalsOrContains(fieldValue, c) {
				in = true
				break
			}
		}
		if condition.Operator == ComparisonOperatorNin {
			return !in, nil
		}
		return in, nil
	case ComparisonOperatorContains, ComparisonOperatorNotContains:
		contains := false
		switch fv := fieldValue.(type) {
		case string:
			s, ok := want.(string)
			if !ok {
				return false, fmt.Errorf("operator %s on a string requires a string, got %s", condition.Operator, schema.TypeName(want))
			}
			contains = strings.Contains(fv, s)
		case []any:
			for _, item := range fv {
				if schema.Equal(item, want) {
					contains = true
					break
				}
			}
		}
		if condition.Operator == ComparisonOperatorNotContains {
			return !contains, nil
		}
		return contains, nil
	case ComparisonOperatorStartsWith, ComparisonOperatorEndsWith:
		s, ok := want.(string)
		if !ok {
			return false, fmt.Errorf("operator %s requires a string, got %s", condition.Operator, schema.TypeName(want))
		}
		return anyElement(fieldValue, func(v any) bool {
			str, ok := v.(string)
			if !ok {
				return false
			}
			if condition.Operator == ComparisonOperatorStartsWith {
				return strings.HasPrefix(str, s)
			}
			return strings.HasSuffix(str, s)
		}), nil
	case ComparisonOperatorExists, ComparisonOperatorNotExists:
		exists := found && fieldValue != nil
		expected := want == nil || schema.Truthy(want)
		if condition.Operator == ComparisonOperatorNotExists {
			expected = !expected
		}
		return exists == expected, nil
	default:
		return false, fmt.Errorf("unsupported standard comparison operator: %s", condition.Operator)
	}
}

func equalsOrContains(fieldValue, want any) bool {
	if schema.Equal(fieldValue, want) {
		return true
	}
	if list, ok := fieldValue.([]any); ok {
		for _, item := range list {
			if schema.Equal(item, want) {
				return true
			}
		}
	}
	return false
}

func anyElement(v any, pred func(any) bool) bool {
	if list, ok := v.([]any); ok {
		for _, item := range list {
			if pred(item) {
				return true
			}
		}
		return false
	}
	return pred(v)
}

// compareOrdered applies a range operator. Values of different variants never
// satisfy a range comparison.
func compareOrdered(op ComparisonOperator, v, want any) bool {
	if schema.TypeName(v) != schema.TypeName(want) {
		return false
	}
	c := schema.Compare(v, want)
	switch op {
	case ComparisonOperatorGt:
		return c > 0
	case ComparisonOperatorGte:
		return c >= 0
	case ComparisonOperatorLt:
		return c < 0
	case ComparisonOperatorLte:
		return c <= 0
	}
	return false
}

// SortDocuments returns a stably sorted copy of docs. Missing fields sort as
// null.
func SortDocuments(docs []schema.Document, sorts []SortConfiguration) []schema.Document {
	out := make([]schema.Document, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		for _, s := range sorts {
			a, _ := schema.Lookup(out[i], s.Field)
			b, _ := schema.Lookup(out[j], s.Field)
			c := schema.Compare(a, b)
			if c == 0 {
				continue
			}
			if s.Direction == SortDirectionDesc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out
}

func paginate(rows []schema.Document, opts *PaginationOptions) ([]schema.Document, int) {
	if opts == nil {
		return rows, 0
	}
	offset := 0
	if opts.Offset != nil && *opts.Offset > 0 {
		offset = *opts.Offset
	}
	if offset >= len(rows) {
		return []schema.Document{}, offset
	}
	end := len(rows)
	if opts.Limit > 0 && offset+opts.Limit < end {
		end = offset + opts.Limit
	}
	return rows[offset:end], offset
}

// applyComputed evaluates computed and case fields for every row.
func (p *DataProcessor) applyComputed(rows []schema.Document, projection *ProjectionConfiguration) ([]schema.Document, error) {
	if projection == nil || len(projection.Computed) == 0 {
		return rows, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]schema.Document, len(rows))
	for i, row := range rows {
		current := row
		for _, item := range projection.Computed {
			switch {
			case item.ComputedFieldExpression != nil:
				expr := item.ComputedFieldExpression
				if expr.Expression == nil {
					return nil, fmt.Errorf("computed field %q has no expression", expr.Alias)
				}
				funcName := expr.Expression.Function
				alias := expr.Alias
				if alias == "" {
					alias = funcName
				}
				fn, ok := p.goComputeFunctions[funcName]
				if !ok {
					return nil, fmt.Errorf("unregistered compute function: %s", funcName)
				}
				value, err := fn(row, expr.Expression.Arguments)
				if err != nil {
					return nil, fmt.Errorf("error executing compute function '%s': %w", funcName, err)
				}
				current = schema.SetPath(current, alias, schema.Normalize(value))
			case item.CaseExpression != nil:
				value, err := p.evaluateCase(row, item.CaseExpression)
				if err != nil {
					return nil, err
				}
				current = schema.SetPath(current, item.CaseExpression.Alias, value)
			}
		}
		out[i] = current
	}
	return out, nil
}

func (p *DataProcessor) evaluateCase(row schema.Document, expr *CaseExpression) (any, error) {
	for i := range expr.Cases {
		matched, err := p.evaluateFilter(row, &expr.Cases[i].When)
		if err != nil {
			return nil, fmt.Errorf("case %q: %w", expr.Alias, err)
		}
		if matched {
			return schema.Normalize(expr.Cases[i].Then), nil
		}
	}
	return schema.Normalize(expr.Else), nil
}

// computedAliases lists the output names of computed fields.
func computedAliases(projection *ProjectionConfiguration) []string {
	var aliases []string
	for _, item := range projection.Computed {
		switch {
		case item.ComputedFieldExpression != nil:
			alias := item.ComputedFieldExpression.Alias
			if alias == "" && item.ComputedFieldExpression.Expression != nil {
				alias = item.ComputedFieldExpression.Expression.Function
			}
			aliases = append(aliases, alias)
		case item.CaseExpression != nil:
			aliases = append(aliases, item.CaseExpression.Alias)
		}
	}
	return aliases
}

// applyFinalProjection shapes rows to the requested include/exclude lists.
// With an include list, the identity field is kept unless explicitly excluded
// and computed fields are always returned.
func applyFinalProjection(rows []schema.Document, projection *ProjectionConfiguration) []schema.Document {
	if projection == nil || (len(projection.Include) == 0 && len(projection.Exclude) == 0) {
		return rows
	}

	excluded := make(map[string]struct{}, len(projection.Exclude))
	for _, f := range projection.Exclude {
		excluded[f.Name] = struct{}{}
	}

	finalRows := make([]schema.Document, 0, len(rows))
	for _, row := range rows {
		var out schema.Document
		if len(projection.Include) == 0 {
			out = row
		} else {
			out = schema.Document{}
			paths := make([]string, 0, len(projection.Include)+1)
			if _, skip := excluded[schema.IDField]; !skip {
				paths = append(paths, schema.IDField)
			}
			for _, f := range projection.Include {
				paths = append(paths, f.Name)
			}
			paths = append(paths, computedAliases(projection)...)
			for _, path := range paths {
				if v, ok := schema.Lookup(row, path); ok {
					out = schema.SetPath(out, path, v)
				}
			}
		}
		for name := range excluded {
			out = schema.UnsetPath(out, name)
		}
		finalRows = append(finalRows, out)
	}
	return finalRows
}
