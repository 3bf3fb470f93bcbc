package aggregation

import (
	"github.com/asaidimu/go-aggregate/core/schema"
)

// project builds, for every input document, a new document holding exactly
// the listed fields in declaration order. The identity field is only copied
// when listed. A projection made of nothing but the identity exclusion keeps
// every other field.
func (e *Evaluator) project(s *ProjectStage, docs []schema.Document) ([]schema.Document, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	out := make([]schema.Document, 0, len(docs))
	if s.excludesOnlyID() {
		for _, doc := range docs {
			out = append(out, doc.Delete(schema.IDField))
		}
		return out, nil
	}

	for _, doc := range docs {
		projected := make(schema.Document, 0, len(s.Fields))
		for _, f := range s.Fields {
			switch f.Mode {
			case ProjectInclude:
				if v, ok := schema.Lookup(doc, f.Name); ok {
					projected = schema.SetPath(projected, f.Name, v)
				}
			case ProjectCompute:
				v, ok, err := e.eval(f.Expr, doc)
				if err != nil {
					return nil, err
				}
				if ok {
					projected = schema.SetPath(projected, f.Name, v)
				}
			}
		}
		out = append(out, projected)
	}
	return out, nil
}
