package aggregation

import (
	"fmt"
	"math"
	"strings"

	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
)

// ParsePipelineJSON parses a JSON array of stage documents.
func ParsePipelineJSON(data []byte) ([]Stage, error) {
	v, err := schema.DecodeValue(data)
	if err != nil {
		return nil, invalidStagef("%v", err)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, invalidStagef("pipeline must be a list of stages, got %s", schema.TypeName(v))
	}
	docs := make([]schema.Document, len(list))
	for i, item := range list {
		doc, ok := item.(schema.Document)
		if !ok {
			return nil, invalidStagef("stage %d is a %s, expected a document", i, schema.TypeName(item))
		}
		docs[i] = doc
	}
	return ParsePipeline(docs)
}

// ParsePipeline parses stage documents such as {"$unwind": "$courses"}.
func ParsePipeline(docs []schema.Document) ([]Stage, error) {
	stages := make([]Stage, 0, len(docs))
	for i, doc := range docs {
		stage, err := ParseStage(doc)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// ParseStage parses a single stage document. The document must have exactly
// one field, named after the stage.
func ParseStage(doc schema.Document) (Stage, error) {
	if len(doc) != 1 {
		return nil, invalidStagef("stage document must have exactly one field, got %d", len(doc))
	}
	name, arg := doc[0].Key, doc[0].Value

	switch StageKind(name) {
	case StageUnwind:
		return parseUnwind(arg)
	case StageProject:
		return parseProject(arg)
	case StageGroup:
		return parseGroup(arg)
	case StageMatch:
		filterDoc, ok := arg.(schema.Document)
		if !ok {
			return nil, invalidStagef("$match requires a document")
		}
		filter, err := query.ParseFilter(filterDoc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedOperation, err)
		}
		return &MatchStage{Filter: filter}, nil
	case StageSort:
		return parseSort(arg)
	case StageLimit:
		n, ok := toInt(arg)
		if !ok || n <= 0 {
			return nil, invalidStagef("$limit requires a positive integer")
		}
		return &LimitStage{N: n}, nil
	case StageSkip:
		n, ok := toInt(arg)
		if !ok || n < 0 {
			return nil, invalidStagef("$skip requires a non-negative integer")
		}
		return &SkipStage{N: n}, nil
	default:
		return nil, unsupportedf("stage %s", name)
	}
}

func parseUnwind(arg any) (Stage, error) {
	switch v := arg.(type) {
	case string:
		path, err := fieldPath(v)
		if err != nil {
			return nil, err
		}
		return &UnwindStage{Path: path}, nil
	case schema.Document:
		stage := &UnwindStage{}
		for _, f := range v {
			switch f.Key {
			case "path":
				s, ok := f.Value.(string)
				if !ok {
					return nil, invalidStagef("$unwind path must be a string")
				}
				path, err := fieldPath(s)
				if err != nil {
					return nil, err
				}
				stage.Path = path
			case "includeArrayIndex":
				s, ok := f.Value.(string)
				if !ok || s == "" || strings.HasPrefix(s, "$") {
					return nil, invalidStagef("$unwind includeArrayIndex must be a field name")
				}
				stage.IncludeArrayIndex = s
			case "preserveNullAndEmptyArrays":
				b, ok := f.Value.(bool)
				if !ok {
					return nil, invalidStagef("$unwind preserveNullAndEmptyArrays must be a boolean")
				}
				stage.PreserveNullAndEmptyArrays = b
			default:
				return nil, invalidStagef("unknown $unwind option %q", f.Key)
			}
		}
		if stage.Path == "" {
			return nil, invalidStagef("$unwind requires a path")
		}
		return stage, nil
	default:
		return nil, invalidStagef("$unwind requires a field path or a document")
	}
}

func fieldPath(s string) (string, error) {
	if len(s) < 2 || s[0] != '$' || s[1] == '$' {
		return "", invalidStagef("expected a field path prefixed with '$', got %q", s)
	}
	return s[1:], nil
}

func parseProject(arg any) (Stage, error) {
	spec, ok := arg.(schema.Document)
	if !ok || len(spec) == 0 {
		return nil, invalidStagef("$project requires a non-empty document")
	}
	stage := &ProjectStage{Fields: make([]ProjectField, 0, len(spec))}
	for _, f := range spec {
		field := ProjectField{Name: f.Key}
		switch v := f.Value.(type) {
		case bool:
			field.Mode = ProjectExclude
			if v {
				field.Mode = ProjectInclude
			}
		default:
			if n, isNum := schema.ToFloat64(v); isNum {
				field.Mode = ProjectExclude
				if n != 0 {
					field.Mode = ProjectInclude
				}
				break
			}
			expr, err := ParseExpression(v)
			if err != nil {
				return nil, fmt.Errorf("$project field %q: %w", f.Key, err)
			}
			field.Mode = ProjectCompute
			field.Expr = expr
		}
		stage.Fields = append(stage.Fields, field)
	}
	if err := stage.Validate(); err != nil {
		return nil, err
	}
	return stage, nil
}

func parseGroup(arg any) (Stage, error) {
	spec, ok := arg.(schema.Document)
	if !ok {
		return nil, invalidStagef("$group requires a document")
	}
	stage := &GroupStage{}
	for _, f := range spec {
		if f.Key == schema.IDField {
			expr, err := ParseExpression(f.Value)
			if err != nil {
				return nil, fmt.Errorf("$group _id: %w", err)
			}
			stage.ID = expr
			continue
		}

		accDoc, ok := f.Value.(schema.Document)
		if !ok || len(accDoc) != 1 {
			return nil, invalidStagef("$group field %q must be a single accumulator document", f.Key)
		}
		opName, opArg := accDoc[0].Key, accDoc[0].Value
		if !IsAccumulator(opName) {
			return nil, unsupportedf("accumulator %s", opName)
		}
		if opName == "$count" {
			if d, ok := opArg.(schema.Document); !ok || len(d) != 0 {
				return nil, invalidStagef("$count takes an empty document")
			}
			stage.Accumulators = append(stage.Accumulators, AccumulatorField{Name: f.Key, Operator: opName})
			continue
		}
		expr, err := ParseExpression(opArg)
		if err != nil {
			return nil, fmt.Errorf("$group field %q: %w", f.Key, err)
		}
		stage.Accumulators = append(stage.Accumulators, AccumulatorField{Name: f.Key, Operator: opName, Arg: expr})
	}
	if stage.ID == nil {
		return nil, invalidStagef("$group requires an _id expression")
	}
	return stage, nil
}

func parseSort(arg any) (Stage, error) {
	spec, ok := arg.(schema.Document)
	if !ok || len(spec) == 0 {
		return nil, invalidStagef("$sort requires a non-empty document")
	}
	stage := &SortStage{Keys: make([]query.SortConfiguration, 0, len(spec))}
	for _, f := range spec {
		n, ok := toInt(f.Value)
		switch {
		case ok && n == 1:
			stage.Keys = append(stage.Keys, query.SortConfiguration{Field: f.Key, Direction: query.SortDirectionAsc})
		case ok && n == -1:
			stage.Keys = append(stage.Keys, query.SortConfiguration{Field: f.Key, Direction: query.SortDirectionDesc})
		default:
			return nil, invalidStagef("$sort direction for %q must be 1 or -1", f.Key)
		}
	}
	return stage, nil
}

// ParseExpression parses an expression value: "$path" strings are field
// references, single-field documents keyed by an operator are operator
// applications, other documents and lists build values, and everything else
// is a literal.
func ParseExpression(v any) (Expression, error) {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "$") {
			path, err := fieldPath(val)
			if err != nil {
				return nil, unsupportedf("field reference %q", val)
			}
			return &FieldRef{Path: path}, nil
		}
		return &Literal{Value: val}, nil
	case schema.Document:
		if len(val) == 1 && strings.HasPrefix(val[0].Key, "$") {
			return parseOperator(val[0].Key, val[0].Value)
		}
		obj := &ObjectExpr{Fields: make([]ObjectField, 0, len(val))}
		for _, f := range val {
			if strings.HasPrefix(f.Key, "$") {
				return nil, unsupportedf("operator %s must be the only field of its document", f.Key)
			}
			expr, err := ParseExpression(f.Value)
			if err != nil {
				return nil, err
			}
			obj.Fields = append(obj.Fields, ObjectField{Name: f.Key, Expr: expr})
		}
		return obj, nil
	case []any:
		arr := &ArrayExpr{Items: make([]Expression, 0, len(val))}
		for _, item := range val {
			expr, err := ParseExpression(item)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, expr)
		}
		return arr, nil
	default:
		return &Literal{Value: schema.Normalize(v)}, nil
	}
}

func parseOperator(name string, arg any) (Expression, error) {
	if name == "$literal" {
		return &Literal{Value: schema.Normalize(arg)}, nil
	}
	if !IsExpressionOperator(name) {
		return nil, unsupportedf("expression operator %s", name)
	}

	op := &Operator{Name: name}
	if list, ok := arg.([]any); ok {
		for _, item := range list {
			expr, err := ParseExpression(item)
			if err != nil {
				return nil, err
			}
			op.Args = append(op.Args, expr)
		}
		return op, nil
	}
	expr, err := ParseExpression(arg)
	if err != nil {
		return nil, err
	}
	op.Args = []Expression{expr}
	return op, nil
}

// toInt converts an integral number to int.
func toInt(v any) (int, bool) {
	f, ok := schema.ToFloat64(v)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}
