// Package query provides a set of utility functions to support the query builder
// and processor.
package query

// StringPtr is a helper function that returns a pointer to a string.
func StringPtr(s string) *string {
	return &s
}

// IntPtr is a helper function that returns a pointer to an int.
func IntPtr(i int) *int {
	return &i
}

// Int64Ptr is a helper function that returns a pointer to an int64.
func Int64Ptr(i int64) *int64 {
	return &i
}

// BoolPtr is a helper function that returns a pointer to a bool.
func BoolPtr(b bool) *bool {
	return &b
}

// And combines filters with a logical AND, dropping nil entries. It returns
// nil when no filter remains and the filter itself when only one does.
func And(filters ...*QueryFilter) *QueryFilter {
	var conds []QueryFilter
	for _, f := range filters {
		if f != nil {
			conds = append(conds, *f)
		}
	}
	switch len(conds) {
	case 0:
		return nil
	case 1:
		return &conds[0]
	default:
		return &QueryFilter{Group: &FilterGroup{Operator: LogicalOperatorAnd, Conditions: conds}}
	}
}
