// Package query provides a fluent API for building queries using a structured
// QueryDSL.
package query

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-aggregate/core/schema"
)

// QueryBuilder provides a fluent and intuitive API for building QueryDSL structures.
// It allows for the step-by-step construction of a query, including filters, sorting,
// pagination and projection, culminating in a final QueryDSL object.
type QueryBuilder struct {
	query QueryDSL
}

// NewQueryBuilder creates a new, empty query builder instance.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		query: QueryDSL{},
	}
}

// Build returns the constructed QueryDSL object.
func (qb *QueryBuilder) Build() QueryDSL {
	return qb.query
}

// Clone creates a copy of the current query builder. Slices are copied so that
// adding sort keys or projections to the clone leaves the original untouched.
func (qb *QueryBuilder) Clone() *QueryBuilder {
	q := qb.query
	q.Sort = append([]SortConfiguration(nil), qb.query.Sort...)
	if qb.query.Pagination != nil {
		p := *qb.query.Pagination
		q.Pagination = &p
	}
	if qb.query.Projection != nil {
		p := ProjectionConfiguration{
			Include:  append([]ProjectionField(nil), qb.query.Projection.Include...),
			Exclude:  append([]ProjectionField(nil), qb.query.Projection.Exclude...),
			Computed: append([]ProjectionComputedItem(nil), qb.query.Projection.Computed...),
		}
		q.Projection = &p
	}
	return &QueryBuilder{query: q}
}

// Reset clears all configurations from the query builder, returning it to its initial state.
func (qb *QueryBuilder) Reset() *QueryBuilder {
	qb.query = QueryDSL{}
	return qb
}

// addFilter combines a new filter with the existing one using AND.
func (qb *QueryBuilder) addFilter(filter QueryFilter) {
	if qb.query.Filters == nil {
		qb.query.Filters = &filter
		return
	}
	qb.query.Filters = And(qb.query.Filters, &filter)
}

// Where begins the construction of a filter condition for a specific field.
// Successive calls are combined with AND.
func (qb *QueryBuilder) Where(field string) *FilterConditionBuilder {
	return &FilterConditionBuilder{
		parent: qb,
		field:  field,
	}
}

// WhereGroup begins the construction of a group of filter conditions, combined
// with a logical operator.
func (qb *QueryBuilder) WhereGroup(operator schema.LogicalOperator) *FilterGroupBuilder {
	return &FilterGroupBuilder{
		root:     qb,
		operator: operator,
	}
}

// FilterConditionBuilder is used to build a single filter condition (e.g., field = value).
type FilterConditionBuilder struct {
	parent *QueryBuilder
	field  string
}

// Eq adds an equality condition to the query.
func (fcb *FilterConditionBuilder) Eq(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorEq, value)
}

// Neq adds a not-equal condition to the query.
func (fcb *FilterConditionBuilder) Neq(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorNeq, value)
}

// Lt adds a less-than condition to the query.
func (fcb *FilterConditionBuilder) Lt(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorLt, value)
}

// Lte adds a less-than-or-equal condition to the query.
func (fcb *FilterConditionBuilder) Lte(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorLte, value)
}

// Gt adds a greater-than condition to the query.
func (fcb *FilterConditionBuilder) Gt(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorGt, value)
}

// Gte adds a greater-than-or-equal condition to the query.
func (fcb *FilterConditionBuilder) Gte(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorGte, value)
}

// In adds an "in" condition, checking if a field's value is within a set of values.
func (fcb *FilterConditionBuilder) In(values ...FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorIn, values)
}

// Nin adds a "not in" condition, checking if a field's value is not within a set of values.
func (fcb *FilterConditionBuilder) Nin(values ...FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorNin, values)
}

// Contains adds a condition to check if a string field contains a substring,
// or a list field contains an element.
func (fcb *FilterConditionBuilder) Contains(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorContains, value)
}

// NotContains is the negation of Contains.
func (fcb *FilterConditionBuilder) NotContains(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorNotContains, value)
}

// StartsWith adds a condition to check if a string field starts with a specific prefix.
func (fcb *FilterConditionBuilder) StartsWith(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorStartsWith, value)
}

// EndsWith adds a condition to check if a string field ends with a specific suffix.
func (fcb *FilterConditionBuilder) EndsWith(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorEndsWith, value)
}

// Exists adds a condition to check if a field exists and is not null.
func (fcb *FilterConditionBuilder) Exists() *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorExists, true)
}

// NotExists adds a condition to check if a field does not exist or is null.
func (fcb *FilterConditionBuilder) NotExists() *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorNotExists, true)
}

// Custom allows for the use of a custom comparison operator registered with
// the DataProcessor.
func (fcb *FilterConditionBuilder) Custom(operator ComparisonOperator, value FilterValue) *QueryBuilder {
	return fcb.addCondition(operator, value)
}

func (fcb *FilterConditionBuilder) addCondition(operator ComparisonOperator, value FilterValue) *QueryBuilder {
	fcb.parent.addFilter(CreateSimpleFilter(fcb.field, operator, value))
	return fcb.parent
}

// FilterGroupBuilder is used to build a group of filter conditions. Groups
// nest: WhereGroup on a group opens a child group, and EndGroup closes it back
// into its parent.
type FilterGroupBuilder struct {
	root       *QueryBuilder
	parent     *FilterGroupBuilder
	operator   schema.LogicalOperator
	conditions []QueryFilter
}

// Where adds a new condition to the current filter group.
func (fgb *FilterGroupBuilder) Where(field string) *FilterConditionBuilderInGroup {
	return &FilterConditionBuilderInGroup{
		groupBuilder: fgb,
		field:        field,
	}
}

// WhereGroup opens a nested group of filters inside the current group.
func (fgb *FilterGroupBuilder) WhereGroup(operator schema.LogicalOperator) *FilterGroupBuilder {
	return &FilterGroupBuilder{
		root:     fgb.root,
		parent:   fgb,
		operator: operator,
	}
}

func (fgb *FilterGroupBuilder) filter() QueryFilter {
	return CreateFilterGroup(fgb.operator, fgb.conditions...)
}

// EndGroup closes a nested group and returns its parent. On a top-level group
// it behaves like End and returns nil.
func (fgb *FilterGroupBuilder) EndGroup() *FilterGroupBuilder {
	if fgb.parent == nil {
		fgb.End()
		return nil
	}
	fgb.parent.conditions = append(fgb.parent.conditions, fgb.filter())
	return fgb.parent
}

// End closes the current group and every enclosing group, then returns the
// query builder.
func (fgb *FilterGroupBuilder) End() *QueryBuilder {
	current := fgb
	for current.parent != nil {
		current = current.EndGroup()
	}
	current.root.addFilter(current.filter())
	return current.root
}

// FilterConditionBuilderInGroup is used to build a filter condition within a group.
type FilterConditionBuilderInGroup struct {
	groupBuilder *FilterGroupBuilder
	field        string
}

// Eq adds an equality condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Eq(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorEq, value)
}

// Neq adds a not-equal condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Neq(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorNeq, value)
}

// Lt adds a less-than condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Lt(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorLt, value)
}

// Lte adds a less-than-or-equal condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Lte(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorLte, value)
}

// Gt adds a greater-than condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Gt(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorGt, value)
}

// Gte adds a greater-than-or-equal condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Gte(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorGte, value)
}

// In adds an "in" condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) In(values ...FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorIn, values)
}

// Nin adds a "not in" condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Nin(values ...FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorNin, values)
}

// Contains adds a contains condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Contains(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorContains, value)
}

// NotContains adds a not-contains condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) NotContains(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorNotContains, value)
}

// StartsWith adds a starts-with condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) StartsWith(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorStartsWith, value)
}

// EndsWith adds an ends-with condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) EndsWith(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorEndsWith, value)
}

// Exists adds an exists condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Exists() *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorExists, true)
}

// NotExists adds a not-exists condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) NotExists() *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorNotExists, true)
}

// Custom allows for custom comparison operators within a filter group.
func (fcbg *FilterConditionBuilderInGroup) Custom(operator ComparisonOperator, value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(operator, value)
}

func (fcbg *FilterConditionBuilderInGroup) addConditionToGroup(operator ComparisonOperator, value FilterValue) *FilterGroupBuilder {
	fcbg.groupBuilder.conditions = append(fcbg.groupBuilder.conditions, CreateSimpleFilter(fcbg.field, operator, value))
	return fcbg.groupBuilder
}

// OrderBy adds a sorting configuration to the query.
func (qb *QueryBuilder) OrderBy(field string, direction SortDirection) *QueryBuilder {
	qb.query.Sort = append(qb.query.Sort, SortConfiguration{
		Field:     field,
		Direction: direction,
	})
	return qb
}

// OrderByAsc adds an ascending sort order for a specific field.
func (qb *QueryBuilder) OrderByAsc(field string) *QueryBuilder {
	return qb.OrderBy(field, SortDirectionAsc)
}

// OrderByDesc adds a descending sort order for a specific field.
func (qb *QueryBuilder) OrderByDesc(field string) *QueryBuilder {
	return qb.OrderBy(field, SortDirectionDesc)
}

// Limit sets the maximum number of documents to be returned by the query.
func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	if qb.query.Pagination == nil {
		qb.query.Pagination = &PaginationOptions{}
	}
	qb.query.Pagination.Limit = limit
	return qb
}

// Offset sets the number of documents to skip.
func (qb *QueryBuilder) Offset(offset int) *QueryBuilder {
	if qb.query.Pagination == nil {
		qb.query.Pagination = &PaginationOptions{}
	}
	qb.query.Pagination.Offset = &offset
	return qb
}

// ProjectionBuilder is used to build the projection part of a query, which defines
// which fields should be returned.
type ProjectionBuilder struct {
	parent *QueryBuilder
	config *ProjectionConfiguration
}

// Select begins the construction of the projection for the query.
func (qb *QueryBuilder) Select() *ProjectionBuilder {
	if qb.query.Projection == nil {
		qb.query.Projection = &ProjectionConfiguration{}
	}
	return &ProjectionBuilder{
		parent: qb,
		config: qb.query.Projection,
	}
}

// Include specifies which fields should be included in the result set.
func (pb *ProjectionBuilder) Include(fields ...string) *ProjectionBuilder {
	pb.config.AddIncludeFields(fields...)
	return pb
}

// Exclude specifies which fields should be excluded from the result set.
func (pb *ProjectionBuilder) Exclude(fields ...string) *ProjectionBuilder {
	pb.config.AddExcludeFields(fields...)
	return pb
}

// AddComputed adds a computed field to the projection, which is calculated at query time.
func (pb *ProjectionBuilder) AddComputed(alias string, function string, args ...FilterValue) *ProjectionBuilder {
	pb.config.Computed = append(pb.config.Computed, ProjectionComputedItem{
		ComputedFieldExpression: &ComputedFieldExpression{
			Expression: &FunctionCall{
				Function:  function,
				Arguments: args,
			},
			Alias: alias,
		},
	})
	return pb
}

// AddCase adds a case expression to the projection, allowing for conditional logic.
func (pb *ProjectionBuilder) AddCase(alias string) *CaseExpressionBuilder {
	return &CaseExpressionBuilder{
		projectionBuilder: pb,
		alias:             alias,
	}
}

// End finalizes the projection and returns to the main query builder.
func (pb *ProjectionBuilder) End() *QueryBuilder {
	return pb.parent
}

// CaseExpressionBuilder is used to build a case expression for a computed field.
type CaseExpressionBuilder struct {
	projectionBuilder *ProjectionBuilder
	alias             string
	cases             []CaseCondition
	elseValue         FilterValue
}

// When adds a condition to the case expression.
func (ceb *CaseExpressionBuilder) When(filter QueryFilter, then FilterValue) *CaseExpressionBuilder {
	ceb.cases = append(ceb.cases, CaseCondition{
		When: filter,
		Then: then,
	})
	return ceb
}

// Else sets the default value for the case expression if no conditions are met.
func (ceb *CaseExpressionBuilder) Else(value FilterValue) *CaseExpressionBuilder {
	ceb.elseValue = value
	return ceb
}

// End finalizes the case expression and adds it to the projection.
func (ceb *CaseExpressionBuilder) End() *ProjectionBuilder {
	ceb.projectionBuilder.config.Computed = append(ceb.projectionBuilder.config.Computed, ProjectionComputedItem{
		CaseExpression: &CaseExpression{
			Cases: ceb.cases,
			Else:  ceb.elseValue,
			Alias: ceb.alias,
		},
	})
	return ceb.projectionBuilder
}

// QueryValidationError represents an error found during query validation.
type QueryValidationError struct {
	Field   string
	Message string
}

// Error returns the error message for a QueryValidationError.
func (ve QueryValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// QueryValidationResult contains the results of a query validation.
type QueryValidationResult struct {
	IsValid bool
	Errors  []QueryValidationError
}

// Validate checks the built query for invalid pagination options, conflicting
// projections and malformed filters.
func (qb *QueryBuilder) Validate() QueryValidationResult {
	var errors []QueryValidationError

	if p := qb.query.Pagination; p != nil {
		if p.Limit < 0 {
			errors = append(errors, QueryValidationError{
				Field:   "pagination.limit",
				Message: "limit cannot be negative",
			})
		}
		if p.Offset != nil && *p.Offset < 0 {
			errors = append(errors, QueryValidationError{
				Field:   "pagination.offset",
				Message: "offset cannot be negative",
			})
		}
	}

	if qb.query.Projection != nil {
		if len(qb.query.Projection.Include) > 0 && len(qb.query.Projection.Exclude) > 0 {
			errors = append(errors, QueryValidationError{
				Field:   "projection",
				Message: "cannot have both include and exclude fields",
			})
		}
	}

	for i, s := range qb.query.Sort {
		if s.Field == "" {
			errors = append(errors, QueryValidationError{
				Field:   fmt.Sprintf("sort[%d].field", i),
				Message: "sort field cannot be empty",
			})
		}
		if s.Direction != SortDirectionAsc && s.Direction != SortDirectionDesc {
			errors = append(errors, QueryValidationError{
				Field:   fmt.Sprintf("sort[%d].direction", i),
				Message: fmt.Sprintf("unknown sort direction %q", s.Direction),
			})
		}
	}

	if qb.query.Filters != nil {
		errors = append(errors, validateFilter("filters", qb.query.Filters)...)
	}

	return QueryValidationResult{
		IsValid: len(errors) == 0,
		Errors:  errors,
	}
}

func validateFilter(path string, f *QueryFilter) []QueryValidationError {
	switch {
	case f.Condition != nil && f.Group != nil:
		return []QueryValidationError{{Field: path, Message: "filter cannot be both a condition and a group"}}
	case f.Condition != nil:
		if f.Condition.Field == "" {
			return []QueryValidationError{{Field: path + ".field", Message: "condition field cannot be empty"}}
		}
		return nil
	case f.Group != nil:
		var errs []QueryValidationError
		if len(f.Group.Conditions) == 0 {
			errs = append(errs, QueryValidationError{Field: path, Message: "group has no conditions"})
		}
		for i := range f.Group.Conditions {
			errs = append(errs, validateFilter(fmt.Sprintf("%s.conditions[%d]", path, i), &f.Group.Conditions[i])...)
		}
		return errs
	default:
		return []QueryValidationError{{Field: path, Message: "empty filter"}}
	}
}

// String returns a human-readable representation of the built query.
func (qb *QueryBuilder) String() string {
	var parts []string

	if qb.query.Filters != nil {
		parts = append(parts, "FILTERS: present")
	}

	if len(qb.query.Sort) > 0 {
		sortFields := make([]string, len(qb.query.Sort))
		for i, sort := range qb.query.Sort {
			sortFields[i] = fmt.Sprintf("%s %s", sort.Field, sort.Direction)
		}
		parts = append(parts, fmt.Sprintf("ORDER BY: %s", strings.Join(sortFields, ", ")))
	}

	if qb.query.Pagination != nil {
		parts = append(parts, fmt.Sprintf("LIMIT: %d", qb.query.Pagination.Limit))
		if qb.query.Pagination.Offset != nil {
			parts = append(parts, fmt.Sprintf("OFFSET: %d", *qb.query.Pagination.Offset))
		}
	}

	if qb.query.Projection != nil {
		if len(qb.query.Projection.Include) > 0 {
			fields := make([]string, len(qb.query.Projection.Include))
			for i, field := range qb.query.Projection.Include {
				fields[i] = field.Name
			}
			parts = append(parts, fmt.Sprintf("SELECT: %s", strings.Join(fields, ", ")))
		}
		if len(qb.query.Projection.Exclude) > 0 {
			fields := make([]string, len(qb.query.Projection.Exclude))
			for i, field := range qb.query.Projection.Exclude {
				fields[i] = field.Name
			}
			parts = append(parts, fmt.Sprintf("EXCLUDE: %s", strings.Join(fields, ", ")))
		}
	}

	if len(parts) == 0 {
		return "EMPTY QUERY"
	}

	return strings.Join(parts, " | ")
}

// CreateSimpleFilter is a helper function to create a simple filter condition.
func CreateSimpleFilter(field string, operator ComparisonOperator, value FilterValue) QueryFilter {
	return QueryFilter{
		Condition: &FilterCondition{
			Field:    field,
			Operator: operator,
			Value:    value,
		},
	}
}

// CreateFilterGroup is a helper function to create a filter group.
func CreateFilterGroup(operator schema.LogicalOperator, conditions ...QueryFilter) QueryFilter {
	return QueryFilter{
		Group: &FilterGroup{
			Operator:   operator,
			Conditions: conditions,
		},
	}
}

// CreateProjectionConfig is a helper function to create a projection configuration.
func CreateProjectionConfig() *ProjectionConfiguration {
	return &ProjectionConfiguration{}
}

// AddIncludeFields adds fields to be included in a projection configuration.
func (pc *ProjectionConfiguration) AddIncludeFields(fields ...string) *ProjectionConfiguration {
	for _, field := range fields {
		pc.Include = append(pc.Include, ProjectionField{Name: field})
	}
	return pc
}

// AddExcludeFields adds fields to be excluded from a projection configuration.
func (pc *ProjectionConfiguration) AddExcludeFields(fields ...string) *ProjectionConfiguration {
	for _, field := range fields {
		pc.Exclude = append(pc.Exclude, ProjectionField{Name: field})
	}
	return pc
}
