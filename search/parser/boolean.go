package parser

import (
	"slices"

	"github.com/thisisjab/eventsearch/search/ast"
)

// buildBooleanTree turns operand (op operand)* into one tree. The sequence is
// split on its first OR, or failing that its first AND, and both halves are
// built recursively. OR therefore binds looser than AND and chains of the
// same operator lean right: a OR b OR c is a OR (b OR c).
func buildBooleanTree(operands []ast.Term, operators []ast.BooleanOperator) ast.Term {
	if len(operands) == 1 {
		return operands[0]
	}

	for _, op := range []ast.BooleanOperator{ast.Or, ast.And} {
		i := slices.Index(operators, op)
		if i < 0 {
			continue
		}

		return ast.SearchBoolean{
			Left:     buildBooleanTree(operands[:i+1], operators[:i]),
			Operator: op,
			Right:    buildBooleanTree(operands[i+1:], operators[i+1:]),
		}
	}

	// operators is never empty here for a well formed sequence.
	return joinAnd(operands)
}

// joinAnd folds terms into a right leaning AND chain. It returns nil for no terms.
func joinAnd(terms []ast.Term) ast.Term {
	switch len(terms) {
	case 0:
		return nil
	case 1:
		return terms[0]
	}

	operators := make([]ast.BooleanOperator, len(terms)-1)
	for i := range operators {
		operators[i] = ast.And
	}
	return buildBooleanTree(terms, operators)
}
