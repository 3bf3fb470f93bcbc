package aggregation

import (
	"github.com/asaidimu/go-aggregate/core/schema"
)

// unwind emits one document per element of the list at s.Path. Documents
// whose field is absent, null or an empty list produce no output unless
// PreserveNullAndEmptyArrays is set; a non-list value passes through as is.
func (e *Evaluator) unwind(s *UnwindStage, docs []schema.Document) ([]schema.Document, error) {
	if s.Path == "" {
		return nil, invalidStagef("$unwind requires a field path")
	}

	out := make([]schema.Document, 0, len(docs))
	for _, doc := range docs {
		value, found := documentPath(doc, s.Path)

		list, isList := value.([]any)
		switch {
		case !found || value == nil || (isList && len(list) == 0):
			if s.PreserveNullAndEmptyArrays {
				out = append(out, s.withIndex(doc, nil))
			}
		case !isList:
			out = append(out, s.withIndex(doc, nil))
		default:
			for i, item := range list {
				out = append(out, s.withIndex(schema.SetPath(doc, s.Path, item), int64(i)))
			}
		}
	}
	return out, nil
}

func (s *UnwindStage) withIndex(doc schema.Document, index any) schema.Document {
	if s.IncludeArrayIndex == "" {
		return doc
	}
	return schema.SetPath(doc, s.IncludeArrayIndex, index)
}

// documentPath resolves path through nested documents only. Unlike
// schema.Lookup it does not map over lists, since an unwind path must name a
// single field.
func documentPath(doc schema.Document, path string) (any, bool) {
	var current any = doc
	for _, seg := range schema.SplitPath(path) {
		d, ok := current.(schema.Document)
		if !ok {
			return nil, false
		}
		if current, ok = d.Get(seg); !ok {
			return nil, false
		}
	}
	return current, true
}
