package aggregation

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
)

// StageKind identifies a pipeline stage.
type StageKind string

const (
	StageUnwind  StageKind = "$unwind"
	StageProject StageKind = "$project"
	StageGroup   StageKind = "$group"
	StageMatch   StageKind = "$match"
	StageSort    StageKind = "$sort"
	StageLimit   StageKind = "$limit"
	StageSkip    StageKind = "$skip"
)

// Stage is a closed set of stage descriptors. The evaluator dispatches on the
// concrete type.
type Stage interface {
	Kind() StageKind
	fmt.Stringer
}

// UnwindStage expands a list field into one document per element.
type UnwindStage struct {
	// Path is the field path, without the leading "$".
	Path string
	// IncludeArrayIndex, when set, names a field receiving the element index.
	IncludeArrayIndex string
	// PreserveNullAndEmptyArrays keeps documents whose field is absent, null
	// or an empty list.
	PreserveNullAndEmptyArrays bool
}

// ProjectMode selects how a projected field is produced.
type ProjectMode int

const (
	// ProjectCompute binds the value of an expression.
	ProjectCompute ProjectMode = iota
	// ProjectInclude copies the field of the same name.
	ProjectInclude
	// ProjectExclude drops the field; only valid for the identity field.
	ProjectExclude
)

// ProjectField is one entry of a ProjectStage.
type ProjectField struct {
	Name string
	Mode ProjectMode
	Expr Expression // set when Mode is ProjectCompute
}

// ProjectStage reshapes every document to exactly the listed fields, in order.
type ProjectStage struct {
	Fields []ProjectField
}

// AccumulatorField is one named accumulator of a GroupStage.
type AccumulatorField struct {
	Name     string
	Operator string
	Arg      Expression
}

// GroupStage partitions documents by the value of ID and computes the
// accumulators for every group.
type GroupStage struct {
	ID           Expression
	Accumulators []AccumulatorField
}

// MatchStage keeps documents matching a filter.
type MatchStage struct {
	Filter *query.QueryFilter
}

// SortStage orders documents by one or more keys.
type SortStage struct {
	Keys []query.SortConfiguration
}

// LimitStage keeps the first N documents.
type LimitStage struct {
	N int
}

// SkipStage drops the first N documents.
type SkipStage struct {
	N int
}

func (*UnwindStage) Kind() StageKind  { return StageUnwind }
func (*ProjectStage) Kind() StageKind { return StageProject }
func (*GroupStage) Kind() StageKind   { return StageGroup }
func (*MatchStage) Kind() StageKind   { return StageMatch }
func (*SortStage) Kind() StageKind    { return StageSort }
func (*LimitStage) Kind() StageKind   { return StageLimit }
func (*SkipStage) Kind() StageKind    { return StageSkip }

// Unwind builds an UnwindStage for path, accepting "$path" or "path".
func Unwind(path string) *UnwindStage {
	return &UnwindStage{Path: strings.TrimPrefix(path, "$")}
}

// Validate checks that only the identity field is excluded.
func (s *ProjectStage) Validate() error {
	for _, f := range s.Fields {
		if f.Name == "" {
			return invalidStagef("$project field with empty name")
		}
		switch f.Mode {
		case ProjectExclude:
			if f.Name != schema.IDField {
				return unsupportedf("$project cannot exclude %q, only %s may be excluded", f.Name, schema.IDField)
			}
		case ProjectCompute:
			if f.Expr == nil {
				return invalidStagef("$project field %q has no expression", f.Name)
			}
		}
	}
	return nil
}

// excludesOnlyID reports whether the projection consists solely of the
// identity field exclusion.
func (s *ProjectStage) excludesOnlyID() bool {
	return len(s.Fields) == 1 && s.Fields[0].Mode == ProjectExclude
}

func (s *UnwindStage) String() string {
	if s.IncludeArrayIndex == "" && !s.PreserveNullAndEmptyArrays {
		return fmt.Sprintf("{$unwind: $%s}", s.Path)
	}
	return fmt.Sprintf("{$unwind: {path: $%s, includeArrayIndex: %q, preserveNullAndEmptyArrays: %t}}",
		s.Path, s.IncludeArrayIndex, s.PreserveNullAndEmptyArrays)
}

func (s *ProjectStage) String() string {
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		switch f.Mode {
		case ProjectInclude:
			parts[i] = f.Name + ": true"
		case ProjectExclude:
			parts[i] = f.Name + ": false"
		default:
			parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Expr)
		}
	}
	return "{$project: {" + strings.Join(parts, ", ") + "}}"
}

func (s *GroupStage) String() string {
	parts := []string{fmt.Sprintf("_id: %s", s.ID)}
	for _, a := range s.Accumulators {
		parts = append(parts, fmt.Sprintf("%s: {%s: %s}", a.Name, a.Operator, a.Arg))
	}
	return "{$group: {" + strings.Join(parts, ", ") + "}}"
}

func (s *MatchStage) String() string {
	if s.Filter == nil {
		return "{$match: {}}"
	}
	return "{$match: ...}"
}

func (s *SortStage) String() string {
	parts := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		dir := 1
		if k.Direction == query.SortDirectionDesc {
			dir = -1
		}
		parts[i] = fmt.Sprintf("%s: %d", k.Field, dir)
	}
	return "{$sort: {" + strings.Join(parts, ", ") + "}}"
}

func (s *LimitStage) String() string { return fmt.Sprintf("{$limit: %d}", s.N) }
func (s *SkipStage) String() string  { return fmt.Sprintf("{$skip: %d}", s.N) }
