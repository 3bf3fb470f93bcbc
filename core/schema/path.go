package schema

import (
	"strconv"
	"strings"
)

// SplitPath splits a dot-delimited field path into its segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Lookup resolves a dot-delimited field path against a document.
//
// A segment applied to a document selects the named field. A numeric segment
// applied to a list selects an element. Any other segment applied to a list is
// mapped over the list's document elements and the found values are returned
// as a new list, so "courses.course" over a list of course documents yields
// the list of course names.
func Lookup(doc Document, path string) (any, bool) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return nil, false
	}
	return lookupValue(doc, segments)
}

func lookupValue(v any, segments []string) (any, bool) {
	if len(segments) == 0 {
		return v, true
	}
	head, rest := segments[0], segments[1:]

	switch val := v.(type) {
	case Document:
		next, ok := val.Get(head)
		if !ok {
			return nil, false
		}
		return lookupValue(next, rest)
	case []any:
		if idx, err := strconv.Atoi(head); err == nil {
			if idx < 0 || idx >= len(val) {
				return nil, false
			}
			return lookupValue(val[idx], rest)
		}
		var found []any
		for _, item := range val {
			if _, ok := item.(Document); !ok {
				continue
			}
			if res, ok := lookupValue(item, segments); ok {
				found = append(found, res)
			}
		}
		if found == nil {
			return nil, false
		}
		return found, true
	default:
		return nil, false
	}
}

// SetPath returns a copy of doc with the value at path replaced, creating
// intermediate documents as needed. Only the documents along the path are
// copied; the input is never modified.
func SetPath(doc Document, path string, value any) Document {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return doc
	}
	return setSegments(doc, segments, value)
}

func setSegments(doc Document, segments []string, value any) Document {
	head := segments[0]
	if len(segments) == 1 {
		return doc.Set(head, value)
	}
	child, _ := doc.Get(head)
	childDoc, ok := child.(Document)
	if !ok {
		childDoc = Document{}
	}
	return doc.Set(head, setSegments(childDoc, segments[1:], value))
}

// UnsetPath returns a copy of doc without the field at path.
func UnsetPath(doc Document, path string) Document {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return doc
	}
	return unsetSegments(doc, segments)
}

func unsetSegments(doc Document, segments []string) Document {
	head := segments[0]
	if len(segments) == 1 {
		return doc.Delete(head)
	}
	child, ok := doc.Get(head)
	if !ok {
		return doc
	}
	childDoc, ok := child.(Document)
	if !ok {
		return doc
	}
	return doc.Set(head, unsetSegments(childDoc, segments[1:]))
}
