package aggregation

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-aggregate/core/schema"
)

// Expression is a closed set of expression forms: FieldRef, Literal,
// Operator, ObjectExpr and ArrayExpr.
type Expression interface {
	fmt.Stringer
	expression()
}

// FieldRef resolves a dot-delimited field path against the current document.
// It is written "$path" in a pipeline.
type FieldRef struct {
	Path string
}

// Literal is a constant value.
type Literal struct {
	Value any
}

// Operator applies a named operator such as $avg or $size to its arguments.
type Operator struct {
	Name string
	Args []Expression
}

// ObjectExpr builds a document whose field values are expressions.
type ObjectExpr struct {
	Fields []ObjectField
}

// ObjectField is one named entry of an ObjectExpr.
type ObjectField struct {
	Name string
	Expr Expression
}

// ArrayExpr builds a list from expressions.
type ArrayExpr struct {
	Items []Expression
}

func (*FieldRef) expression()   {}
func (*Literal) expression()    {}
func (*Operator) expression()   {}
func (*ObjectExpr) expression() {}
func (*ArrayExpr) expression()  {}

// Ref is shorthand for a field reference.
func Ref(path string) *FieldRef { return &FieldRef{Path: path} }

// Lit is shorthand for a literal.
func Lit(v any) *Literal { return &Literal{Value: schema.Normalize(v)} }

// Op is shorthand for an operator application.
func Op(name string, args ...Expression) *Operator { return &Operator{Name: name, Args: args} }

func (e *FieldRef) String() string { return "$" + e.Path }

func (e *Literal) String() string {
	if s, ok := e.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", e.Value)
}

func (e *Operator) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	if len(args) == 1 {
		return fmt.Sprintf("{%s: %s}", e.Name, args[0])
	}
	return fmt.Sprintf("{%s: [%s]}", e.Name, strings.Join(args, ", "))
}

func (e *ObjectExpr) String() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Expr)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (e *ArrayExpr) String() string {
	parts := make([]string, len(e.Items))
	for i, item := range e.Items {
		parts[i] = item.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
