package parser

import (
	"fmt"
	"strconv"
	"time"

	"github.com/thisisjab/eventsearch/fault"
	"github.com/thisisjab/eventsearch/search/ast"
	"github.com/thisisjab/eventsearch/search/lexer"
)

// Keys tells the visitor how to treat a key.
type Keys interface {
	// CanonicalKey maps an alternate key name to its canonical one.
	CanonicalKey(name string) string
	IsNumericKey(name string) bool
	IsDateKey(name string) bool
}

// Visitor converts grammar productions into ast terms.
type Visitor struct {
	keys Keys
	now  time.Time
}

// NewVisitor returns a visitor resolving relative dates against now.
func NewVisitor(keys Keys, now time.Time) *Visitor {
	return &Visitor{keys: keys, now: now}
}

// Parse runs the grammar and the visitor over query.
func Parse(query string, keys Keys, now time.Time) ([]ast.Term, error) {
	tree, err := New(lexer.New(query)).ParseSearch()
	if err != nil {
		return nil, err
	}

	return NewVisitor(keys, now).Visit(tree)
}

// Visit returns the terms of the search in order. Blank free text yields
// nothing and specific dates yield two filters.
func (v *Visitor) Visit(s *Search) ([]ast.Term, error) {
	var terms []ast.Term

	for _, child := range s.Children {
		visited, err := v.visit(child)
		if err != nil {
			return nil, err
		}
		terms = append(terms, visited...)
	}

	return terms, nil
}

func (v *Visitor) visit(n Node) ([]ast.Term, error) {
	switch n := n.(type) {
	case RawSearch:
		return v.visitRawSearch(n.Text), nil
	case QuotedRawSearch:
		return v.visitRawSearch(n.Text), nil
	case BasicFilter:
		return v.visitBasicFilter(n)
	case NumericFilter:
		return v.visitNumericFilter(n)
	case TimeFilter:
		return v.visitTimeFilter(n)
	case RelTimeFilter:
		return v.visitRelTimeFilter(n)
	case SpecificTimeFilter:
		return v.visitSpecificTimeFilter(n)
	case HasFilter:
		return v.visitHasFilter(n)
	case IsFilter:
		return nil, errIsNotSupported()
	case BooleanTerm:
		return v.visitBooleanTerm(n)
	case ParenTerm:
		return v.visitParenTerm(n)
	default:
		return nil, fmt.Errorf("unknown syntax node type: %T", n)
	}
}

const isKey = "is"

func errIsNotSupported() fault.Fault {
	return fault.Invalid(`"is" queries are not supported on this search`)
}

func (v *Visitor) visitRawSearch(text string) []ast.Term {
	if text == "" {
		return nil
	}
	return []ast.Term{filter("message", ast.OpEq, ast.StringValue(text))}
}

func (v *Visitor) searchKey(name string) ast.SearchKey {
	return ast.SearchKey{Name: v.keys.CanonicalKey(name)}
}

func (v *Visitor) visitBasicFilter(n BasicFilter) ([]ast.Term, error) {
	op := ast.OpEq
	if n.Negated {
		op = ast.OpNe
	}
	return v.handleBasicFilter(v.searchKey(n.Key), op, ast.StringValue(n.Value))
}

// handleBasicFilter rejects date and numeric keys: reaching the basic filter
// means their value did not have the expected shape.
func (v *Visitor) handleBasicFilter(key ast.SearchKey, op ast.Operator, value ast.SearchValue) ([]ast.Term, error) {
	// is:123 and is:>2020-01-01 match the numeric and date rules before the
	// "is" rule and land here.
	if key.Name == isKey {
		return nil, errIsNotSupported()
	}
	if v.keys.IsDateKey(key.Name) {
		return nil, fault.Invalid("Invalid format for date search")
	}
	if v.keys.IsNumericKey(key.Name) {
		return nil, fault.Invalid("Invalid format for numeric search")
	}

	return []ast.Term{ast.SearchFilter{Key: key, Operator: op, Value: value}}, nil
}

func (v *Visitor) visitNumericFilter(n NumericFilter) ([]ast.Term, error) {
	key := v.searchKey(n.Key)

	if !v.keys.IsNumericKey(key.Name) {
		return v.handleBasicFilter(key, ast.OpEq, ast.StringValue(prefixOperator(n.Operator, n.Digits)))
	}

	i, err := strconv.ParseInt(n.Digits, 10, 64)
	if err != nil {
		return nil, fault.Invalid("Invalid numeric query: %s", key.Name)
	}

	return []ast.Term{ast.SearchFilter{Key: key, Operator: n.Operator, Value: ast.IntValue(i)}}, nil
}

func (v *Visitor) visitTimeFilter(n TimeFilter) ([]ast.Term, error) {
	key := v.searchKey(n.Key)

	if !v.keys.IsDateKey(key.Name) {
		return v.handleBasicFilter(key, ast.OpEq, ast.StringValue(prefixOperator(n.Operator, n.Date)))
	}

	t, err := parseDatetimeString(n.Date)
	if err != nil {
		return nil, err
	}

	return []ast.Term{ast.SearchFilter{Key: key, Operator: n.Operator, Value: ast.TimeValue(t)}}, nil
}

func (v *Visitor) visitRelTimeFilter(n RelTimeFilter) ([]ast.Term, error) {
	key := v.searchKey(n.Key)

	if !v.keys.IsDateKey(key.Name) {
		return v.handleBasicFilter(key, ast.OpEq, ast.StringValue(n.Value))
	}

	op, t, err := parseDatetimeRange(n.Value, v.now)
	if err != nil {
		return nil, err
	}

	return []ast.Term{ast.SearchFilter{Key: key, Operator: op, Value: ast.TimeValue(t)}}, nil
}

func (v *Visitor) visitSpecificTimeFilter(n SpecificTimeFilter) ([]ast.Term, error) {
	key := v.searchKey(n.Key)

	if !v.keys.IsDateKey(key.Name) {
		return v.handleBasicFilter(key, ast.OpEq, ast.StringValue(n.Date))
	}

	from, to, err := parseDatetimeValue(n.Date)
	if err != nil {
		return nil, err
	}

	return []ast.Term{
		ast.SearchFilter{Key: key, Operator: ast.OpGte, Value: ast.TimeValue(from)},
		ast.SearchFilter{Key: key, Operator: ast.OpLt, Value: ast.TimeValue(to)},
	}, nil
}

// visitHasFilter emits key != '' for has:key and key = '' for !has:key.
func (v *Visitor) visitHasFilter(n HasFilter) ([]ast.Term, error) {
	if !n.IsKey {
		return nil, fault.Invalid(`Invalid format for "has" search: %s`, n.Target)
	}

	op := ast.OpNe
	if n.Negated {
		op = ast.OpEq
	}

	return []ast.Term{ast.SearchFilter{Key: v.searchKey(n.Target), Operator: op, Value: ast.StringValue("")}}, nil
}

func (v *Visitor) visitBooleanTerm(n BooleanTerm) ([]ast.Term, error) {
	var (
		operands  []ast.Term
		operators []ast.BooleanOperator
	)

	for i, operand := range n.Operands {
		visited, err := v.visit(operand)
		if err != nil {
			return nil, err
		}

		term := joinAnd(visited)
		if term == nil {
			// An empty operand takes its operator with it.
			continue
		}

		if len(operands) > 0 {
			operators = append(operators, n.Operators[i-1])
		}
		operands = append(operands, term)
	}

	if len(operands) == 0 {
		return nil, nil
	}

	return []ast.Term{buildBooleanTree(operands, operators)}, nil
}

// visitParenTerm resolves the group into a single term. Several items in one
// group are joined with AND.
func (v *Visitor) visitParenTerm(n ParenTerm) ([]ast.Term, error) {
	var terms []ast.Term

	for _, child := range n.Children {
		visited, err := v.visit(child)
		if err != nil {
			return nil, err
		}
		terms = append(terms, visited...)
	}

	if term := joinAnd(terms); term != nil {
		return []ast.Term{term}, nil
	}
	return nil, nil
}

func prefixOperator(op ast.Operator, text string) string {
	if op == ast.OpEq {
		return text
	}
	return string(op) + text
}

func filter(key string, op ast.Operator, value ast.SearchValue) ast.SearchFilter {
	return ast.SearchFilter{Key: ast.SearchKey{Name: key}, Operator: op, Value: value}
}
