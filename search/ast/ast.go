// Package ast holds the typed intermediate representation produced by the
// search parser: filters over keys and binary boolean nodes joining them.
package ast

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DatetimeLayout renders datetimes with up to microsecond precision.
const DatetimeLayout = "2006-01-02T15:04:05.999999"

// Operator is a filter comparison operator.
type Operator string

const (
	OpEq  Operator = "="
	OpNe  Operator = "!="
	OpGt  Operator = ">"
	OpGte Operator = ">="
	OpLt  Operator = "<"
	OpLte Operator = "<="
)

// Operators lists the comparison operators in longest-match order.
var Operators = []Operator{OpGte, OpLte, OpGt, OpLt, OpEq, OpNe}

// BooleanOperator joins two terms.
type BooleanOperator string

const (
	And BooleanOperator = "AND"
	Or  BooleanOperator = "OR"
)

// Term is either a SearchFilter or a SearchBoolean. The private marker keeps
// the set closed so consumers can switch over it exhaustively.
type Term interface {
	term()
}

// KeyMapping resolves known search keys to backend column names.
type KeyMapping interface {
	Column(name string) (string, bool)
}

// SearchKey is the left hand side of a filter.
type SearchKey struct {
	Name string
}

// ColumnName returns the backend column for the key. Keys missing from the
// mapping are treated as tags.
func (k SearchKey) ColumnName(m KeyMapping) string {
	if column, ok := m.Column(k.Name); ok && column != "" {
		return column
	}
	return TagColumn(k.Name)
}

// IsTag reports whether the key is a dynamic tag rather than a mapped column.
func (k SearchKey) IsTag(m KeyMapping) bool {
	_, ok := m.Column(k.Name)
	return !ok
}

// TagColumn returns the tag accessor expression for name.
func TagColumn(name string) string {
	return fmt.Sprintf("tags[%s]", name)
}

// ValueKind enumerates what a SearchValue may hold.
type ValueKind uint8

const (
	KindString ValueKind = iota
	KindInt
	KindTime
	KindStringList
	KindIntList
)

// SearchValue is the right hand side of a filter. Construct it with one of
// the typed constructors.
type SearchValue struct {
	kind ValueKind
	raw  any
}

func StringValue(v string) SearchValue { return SearchValue{kind: KindString, raw: v} }

func IntValue(v int64) SearchValue { return SearchValue{kind: KindInt, raw: v} }

func TimeValue(v time.Time) SearchValue { return SearchValue{kind: KindTime, raw: v} }

func StringListValue(v []string) SearchValue { return SearchValue{kind: KindStringList, raw: v} }

func IntListValue(v []int64) SearchValue { return SearchValue{kind: KindIntList, raw: v} }

func (v SearchValue) Kind() ValueKind { return v.kind }

// Raw returns the value as it was given.
func (v SearchValue) Raw() any {
	if v.raw == nil {
		return ""
	}
	return v.raw
}

// RawString returns the raw value when it is a string.
func (v SearchValue) RawString() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok || v.raw == nil
}

// IsWildcard reports whether a string value contains a '*'.
func (v SearchValue) IsWildcard() bool {
	s, ok := v.raw.(string)
	return ok && strings.Contains(s, "*")
}

// Value returns the effective value: wildcard strings become an anchored
// regular expression, everything else is returned unchanged.
func (v SearchValue) Value() any {
	if v.IsWildcard() {
		return Translate(v.raw.(string))
	}
	return v.Raw()
}

// IsEmpty reports whether the value is the empty string.
func (v SearchValue) IsEmpty() bool {
	s, ok := v.RawString()
	return ok && s == ""
}

func (v SearchValue) String() string {
	switch raw := v.raw.(type) {
	case nil:
		return ""
	case string:
		return raw
	case int64:
		return strconv.FormatInt(raw, 10)
	case time.Time:
		return raw.Format(DatetimeLayout)
	case []string:
		return strings.Join(raw, ",")
	case []int64:
		parts := make([]string, len(raw))
		for i, n := range raw {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(raw)
	}
}

// SearchFilter compares a key against a value.
type SearchFilter struct {
	Key      SearchKey
	Operator Operator
	Value    SearchValue
}

func (SearchFilter) term() {}

// IsNegation is true for "!= value" and for "= ''", the latter being how a
// missing key ("does not have") is expressed.
func (f SearchFilter) IsNegation() bool {
	empty := f.Value.IsEmpty()
	return (f.Operator == OpNe && !empty) || (f.Operator == OpEq && empty)
}

func (f SearchFilter) String() string {
	return f.Key.Name + string(f.Operator) + f.Value.String()
}

// SearchBoolean joins two terms with AND or OR.
type SearchBoolean struct {
	Left     Term
	Operator BooleanOperator
	Right    Term
}

func (SearchBoolean) term() {}

func (b SearchBoolean) String() string {
	return fmt.Sprintf("(%s %s %s)", termString(b.Left), b.Operator, termString(b.Right))
}

func termString(t Term) string {
	switch n := t.(type) {
	case SearchFilter:
		return n.String()
	case SearchBoolean:
		return n.String()
	default:
		return "<nil>"
	}
}
