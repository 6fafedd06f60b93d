package parser

import "github.com/thisisjab/eventsearch/search/ast"

// Node is a raw grammar production. Nodes only live between parsing and
// visiting; the visitor turns them into ast terms.
type Node interface {
	syntaxNode()
}

// Search is the root production: a sequence of terms implicitly ANDed.
type Search struct {
	Children []Node
}

// RawSearch is a run of free text.
type RawSearch struct {
	Text string
}

// QuotedRawSearch is a lone double quoted string.
type QuotedRawSearch struct {
	Text string
}

// BasicFilter is [!]key:value.
type BasicFilter struct {
	Negated bool
	Key     string
	Value   string
}

// NumericFilter is key:[op]digits.
type NumericFilter struct {
	Key      string
	Operator ast.Operator
	Digits   string
}

// TimeFilter is key[:]op<ISO 8601 datetime>.
type TimeFilter struct {
	Key      string
	Operator ast.Operator
	Date     string
}

// RelTimeFilter is key:(+|-)N(w|d|h|m).
type RelTimeFilter struct {
	Key   string
	Value string
}

// SpecificTimeFilter is key:<date or datetime> without an operator.
type SpecificTimeFilter struct {
	Key  string
	Date string
}

// HasFilter is [!]has:key. When the target is not a valid key, IsKey is false
// and Target holds the value text.
type HasFilter struct {
	Negated bool
	IsKey   bool
	Target  string
}

// IsFilter is [!]is:value.
type IsFilter struct {
	Negated bool
	Value   string
}

// BooleanTerm is operand (op operand)+ with operators resolved later.
type BooleanTerm struct {
	Operands  []Node
	Operators []ast.BooleanOperator
}

// ParenTerm is a parenthesised group of boolean terms or nested groups.
type ParenTerm struct {
	Children []Node
}

func (Search) syntaxNode()             {}
func (RawSearch) syntaxNode()          {}
func (QuotedRawSearch) syntaxNode()    {}
func (BasicFilter) syntaxNode()        {}
func (NumericFilter) syntaxNode()      {}
func (TimeFilter) syntaxNode()         {}
func (RelTimeFilter) syntaxNode()      {}
func (SpecificTimeFilter) syntaxNode() {}
func (HasFilter) syntaxNode()          {}
func (IsFilter) syntaxNode()           {}
func (BooleanTerm) syntaxNode()        {}
func (ParenTerm) syntaxNode()          {}
