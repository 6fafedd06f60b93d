// Package condition models backend query conditions. Every value encodes to
// the nested array format the query backend accepts:
//
//	[lhs, operator, rhs]       a comparison
//	["and", [left, right]]     a boolean node
//	[c1, c2, ...]              alternatives ORed together
//
// A left hand side is a column name or a function call ["fn", [args...]].
package condition

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operators accepted in a comparison.
const (
	Eq        = "="
	Ne        = "!="
	Gt        = ">"
	Gte       = ">="
	Lt        = "<"
	Lte       = "<="
	In        = "IN"
	IsNull    = "IS NULL"
	IsNotNull = "IS NOT NULL"
)

// Condition is a Comparison, a Boolean or an AnyOf.
type Condition interface {
	json.Marshaler
	fmt.Stringer
	condition()
}

// Func is a function call used as a comparison operand.
type Func struct {
	Name string
	Args []any
}

func Call(name string, args ...any) Func {
	return Func{Name: name, Args: args}
}

func (f Func) MarshalJSON() ([]byte, error) {
	args := f.Args
	if args == nil {
		args = []any{}
	}
	return json.Marshal([]any{f.Name, args})
}

func (f Func) String() string {
	parts := make([]string, len(f.Args))
	for i, arg := range f.Args {
		parts[i] = operandString(arg)
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(parts, ", "))
}

// Comparison is [lhs, operator, rhs]. LHS is a column name or a Func.
type Comparison struct {
	LHS      any
	Operator string
	RHS      any
}

func (Comparison) condition() {}

func (c Comparison) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.LHS, c.Operator, c.RHS})
}

func (c Comparison) String() string {
	if c.Operator == IsNull || c.Operator == IsNotNull {
		return fmt.Sprintf("%s %s", operandString(c.LHS), c.Operator)
	}
	return fmt.Sprintf("%s %s %s", operandString(c.LHS), c.Operator, operandString(c.RHS))
}

// Boolean joins two conditions with "and" or "or".
type Boolean struct {
	Operator string
	Left     Condition
	Right    Condition
}

func (Boolean) condition() {}

func (b Boolean) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{b.Operator, []Condition{b.Left, b.Right}})
}

func (b Boolean) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, strings.ToUpper(b.Operator), b.Right)
}

// AnyOf holds alternatives that the backend ORs together.
type AnyOf []Condition

func (AnyOf) condition() {}

func (a AnyOf) MarshalJSON() ([]byte, error) {
	alternatives := []Condition(a)
	if alternatives == nil {
		alternatives = []Condition{}
	}
	return json.Marshal(alternatives)
}

func (a AnyOf) String() string {
	parts := make([]string, len(a))
	for i, c := range a {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func operandString(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []string:
		return "(" + strings.Join(v, ", ") + ")"
	default:
		return fmt.Sprint(v)
	}
}
