// Package query defines the Domain-Specific Language (DSL) used to select
// documents from a collection. The DSL expresses filtering, sorting,
// pagination and projection independently of the backend that stores the
// documents; backends push down what they can and the DataProcessor evaluates
// the rest in memory.
package query

import (
	"github.com/asaidimu/go-aggregate/core/schema"
)

// Logical operators for combining filter conditions.
const (
	LogicalOperatorAnd = schema.LogicalAnd
	LogicalOperatorOr  = schema.LogicalOr
	LogicalOperatorNot = schema.LogicalNot
	LogicalOperatorNor = schema.LogicalNor
)

// ComparisonOperator defines the set of operators that can be used in a filter condition.
type ComparisonOperator string

// Supported comparison operators.
const (
	ComparisonOperatorEq          ComparisonOperator = "eq"
	ComparisonOperatorNeq         ComparisonOperator = "neq"
	ComparisonOperatorLt          ComparisonOperator = "lt"
	ComparisonOperatorLte         ComparisonOperator = "lte"
	ComparisonOperatorGt          ComparisonOperator = "gt"
	ComparisonOperatorGte         ComparisonOperator = "gte"
	ComparisonOperatorIn          ComparisonOperator = "in"
	ComparisonOperatorNin         ComparisonOperator = "nin"
	ComparisonOperatorContains    ComparisonOperator = "contains"
	ComparisonOperatorNotContains ComparisonOperator = "ncontains"
	ComparisonOperatorStartsWith  ComparisonOperator = "startswith"
	ComparisonOperatorEndsWith    ComparisonOperator = "endswith"
	ComparisonOperatorExists      ComparisonOperator = "exists"
	ComparisonOperatorNotExists   ComparisonOperator = "nexists"
)

// FilterValue represents the value used in a filter condition.
type FilterValue any

// FunctionCall represents a call to a compute function registered with the
// DataProcessor.
type FunctionCall struct {
	Function  string        // The name of the registered function.
	Arguments []FilterValue // The arguments passed to the function.
}

// FilterCondition defines a single condition for filtering documents. Field
// is a dot-delimited path.
type FilterCondition struct {
	Field    string             // The field path to apply the filter on.
	Operator ComparisonOperator // The comparison operator to use.
	Value    FilterValue        // The value to compare against.
}

// FilterGroup combines multiple filter conditions using a logical operator.
// This allows for the construction of complex, nested filter logic.
type FilterGroup struct {
	Operator   schema.LogicalOperator // The logical operator (AND, OR, etc.) to combine the conditions.
	Conditions []QueryFilter          // The list of conditions or nested groups.
}

// QueryFilter is a union type that can represent either a single filter condition
// or a group of conditions.
type QueryFilter struct {
	Condition *FilterCondition `json:",omitempty"` // A single filter condition.
	Group     *FilterGroup     `json:",omitempty"` // A group of filter conditions.
}

// SortDirection specifies the direction for sorting.
type SortDirection string

// Supported sort directions.
const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// SortConfiguration defines the sorting order for a specific field.
type SortConfiguration struct {
	Field     string        // The field path to sort by.
	Direction SortDirection // The direction of the sort (ascending or descending).
}

// PaginationOptions defines how the query results should be paginated.
// A zero Limit returns every remaining document.
type PaginationOptions struct {
	Limit  int  // The maximum number of documents to return.
	Offset *int `json:",omitempty"` // The number of documents to skip.
}

// ProjectionField names a field path to be included or excluded in the result.
type ProjectionField struct {
	Name string
}

// ComputedFieldExpression defines a field that is computed at query time using a function.
type ComputedFieldExpression struct {
	Expression *FunctionCall // The function call that computes the value.
	Alias      string        // The name of the computed field in the result.
}

// CaseCondition represents a single WHEN/THEN clause in a CASE expression.
type CaseCondition struct {
	When QueryFilter // The condition to be met.
	Then FilterValue // The value to be returned if the condition is met.
}

// CaseExpression defines a conditional field, similar to a SQL CASE statement.
type CaseExpression struct {
	Cases []CaseCondition // Evaluated in order; the first match wins.
	Else  FilterValue     // The value used when no condition matches.
	Alias string          // The name of the resulting field.
}

// ProjectionComputedItem is a union type that can be either a computed field or a case expression.
type ProjectionComputedItem struct {
	ComputedFieldExpression *ComputedFieldExpression `json:",omitempty"`
	CaseExpression          *CaseExpression          `json:",omitempty"`
}

// ProjectionConfiguration defines which fields should be returned in the query result.
type ProjectionConfiguration struct {
	Include  []ProjectionField        `json:",omitempty"` // A list of fields to include.
	Exclude  []ProjectionField        `json:",omitempty"` // A list of fields to exclude.
	Computed []ProjectionComputedItem `json:",omitempty"` // A list of computed fields.
}

// QueryDSL is the top-level structure that represents a complete query against
// a collection.
type QueryDSL struct {
	Filters    *QueryFilter             `json:",omitempty"`
	Sort       []SortConfiguration      `json:",omitempty"`
	Pagination *PaginationOptions       `json:",omitempty"`
	Projection *ProjectionConfiguration `json:",omitempty"`
}

// QueryResult represents the result of a query.
type QueryResult struct {
	Data       []schema.Document `json:"data"`
	Count      int               `json:"count"`
	Pagination *PaginationResult `json:",omitempty"`
}

// PaginationResult contains the pagination information for a query result.
type PaginationResult struct {
	Total  int  `json:"total"`
	Offset int  `json:"offset"`
	More   bool `json:"more"`
}

// standardComparisonOperators is a set of all the standard, built-in comparison operators.
var standardComparisonOperators = map[ComparisonOperator]struct{}{
	ComparisonOperatorEq:          {},
	ComparisonOperatorNeq:         {},
	ComparisonOperatorLt:          {},
	ComparisonOperatorLte:         {},
	ComparisonOperatorGt:          {},
	ComparisonOperatorGte:         {},
	ComparisonOperatorIn:          {},
	ComparisonOperatorNin:         {},
	ComparisonOperatorContains:    {},
	ComparisonOperatorNotContains: {},
	ComparisonOperatorStartsWith:  {},
	ComparisonOperatorEndsWith:    {},
	ComparisonOperatorExists:      {},
	ComparisonOperatorNotExists:   {},
}

// IsStandard checks if a comparison operator is one of the standard, built-in operators.
func (c ComparisonOperator) IsStandard() bool {
	_, ok := standardComparisonOperators[c]
	return ok
}

// GetStandardComparisonOperators returns a map of all standard comparison operators.
func GetStandardComparisonOperators() map[ComparisonOperator]struct{} {
	return standardComparisonOperators
}
