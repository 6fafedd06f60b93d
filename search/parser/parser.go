// Package parser turns a search string into ast terms. Parsing happens in two
// passes: the grammar builds a tree of raw productions, then the Visitor
// applies key-aware semantic rules to each production.
package parser

import (
	"regexp"
	"strings"

	"github.com/thisisjab/eventsearch/fault"
	"github.com/thisisjab/eventsearch/search/ast"
	"github.com/thisisjab/eventsearch/search/lexer"
	"github.com/thisisjab/eventsearch/search/token"
)

const (
	keyPattern       = `[a-zA-Z0-9_.\-]+`
	quotedKeyPattern = `"[a-zA-Z0-9_.:\-]+"`
	searchKeyPattern = `(` + keyPattern + `|` + quotedKeyPattern + `)`
	operatorPattern  = `(>=|<=|>|<|=|!=)`
	datePattern      = `(\d{4}-\d{2}-\d{2}(?:T\d{2}:\d{2}:\d{2}(?:\.\d{1,6})?)?Z?)`
	relDatePattern   = `([+\-][0-9]+[wdhm])`
)

// Key-value productions in the order they are tried. Order matters: a word
// such as "timestamp:>2020-01-01" must be seen as a time filter before the
// basic filter gets a chance to swallow it.
var (
	timeFilterRe         = regexp.MustCompile(`^` + searchKeyPattern + `:?` + operatorPattern + datePattern + `$`)
	relTimeFilterRe      = regexp.MustCompile(`^` + searchKeyPattern + `:` + relDatePattern + `$`)
	specificTimeFilterRe = regexp.MustCompile(`^` + searchKeyPattern + `:` + datePattern + `$`)
	numericFilterRe      = regexp.MustCompile(`^` + searchKeyPattern + `:` + operatorPattern + `?([0-9]+)$`)
	hasFilterRe          = regexp.MustCompile(`^(!?)has:(.*)$`)
	isFilterRe           = regexp.MustCompile(`^(!?)is:(.*)$`)
	basicFilterRe        = regexp.MustCompile(`^(!?)` + searchKeyPattern + `:(.*)$`)
	searchKeyRe          = regexp.MustCompile(`^` + searchKeyPattern + `$`)
)

type Parser struct {
	l         *lexer.Lexer
	input     []rune
	curToken  token.Token
	peekToken token.Token
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:     l,
		input: l.Input(),
	}

	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t token.TokenType) bool {
	return p.curToken.Type == t
}

// ParseSearch parses the whole input. Anything left unconsumed, such as a
// stray closing paren, is a syntax error.
func (p *Parser) ParseSearch() (*Search, error) {
	children, err := p.parseSequence()
	if err != nil {
		return nil, err
	}

	if !p.curTokenIs(token.EOF) {
		return nil, fault.Syntax("search", p.curToken.Column())
	}

	return &Search{Children: children}, nil
}

// parseSequence reads terms and boolean terms until EOF or a closing paren.
func (p *Parser) parseSequence() ([]Node, error) {
	var nodes []Node

	for !p.curTokenIs(token.EOF) && !p.curTokenIs(token.RPAREN) {
		operand, err := p.parseOperand()
		if err != nil {
			return nil, err
		}

		if !p.operatorBinds() {
			nodes = append(nodes, operand)
			continue
		}

		bt := BooleanTerm{Operands: []Node{operand}}
		for p.operatorBinds() {
			op := ast.BooleanOperator(p.curToken.Literal)
			p.nextToken()

			next, err := p.parseOperand()
			if err != nil {
				return nil, err
			}

			bt.Operators = append(bt.Operators, op)
			bt.Operands = append(bt.Operands, next)
		}
		nodes = append(nodes, bt)
	}

	return nodes, nil
}

// operatorBinds reports whether the current token is AND/OR with an operand
// after it. Operators that cannot bind are read as free text.
func (p *Parser) operatorBinds() bool {
	if !p.curTokenIs(token.AND) && !p.curTokenIs(token.OR) {
		return false
	}
	return startsOperand(p.peekToken.Type)
}

func startsOperand(t token.TokenType) bool {
	return t == token.WORD || t == token.QUOTED || t == token.LPAREN
}

func (p *Parser) parseOperand() (Node, error) {
	switch p.curToken.Type {
	case token.LPAREN:
		return p.parseParenTerm()
	case token.QUOTED:
		text := unquote(p.curToken.Literal)
		p.nextToken()
		return QuotedRawSearch{Text: text}, nil
	case token.WORD:
		if n, ok := parseKeyValTerm(p.curToken.Literal); ok {
			p.nextToken()
			return n, nil
		}
		return p.parseRawSearch(), nil
	case token.AND, token.OR:
		return p.parseRawSearch(), nil
	default:
		return nil, fault.Syntax("search_term", p.curToken.Column())
	}
}

// parseParenTerm reads '(' (paren_term | boolean_term)+ ')'.
func (p *Parser) parseParenTerm() (Node, error) {
	open := p.curToken
	p.nextToken()

	children, err := p.parseSequence()
	if err != nil {
		return nil, err
	}

	if !p.curTokenIs(token.RPAREN) || len(children) == 0 {
		return nil, fault.Syntax("paren_term", open.Column())
	}

	for _, child := range children {
		switch child.(type) {
		case BooleanTerm, ParenTerm:
		default:
			return nil, fault.Syntax("paren_term", open.Column())
		}
	}

	p.nextToken()
	return ParenTerm{Children: children}, nil
}

// parseRawSearch consumes free text up to the next key-value term, paren,
// binding operator or EOF. The text keeps its inner spacing.
func (p *Parser) parseRawSearch() Node {
	first := p.curToken
	last := p.curToken
	p.nextToken()

	for {
		switch p.curToken.Type {
		case token.WORD:
			if _, ok := parseKeyValTerm(p.curToken.Literal); ok {
				return p.rawSearch(first, last)
			}
		case token.QUOTED:
		case token.AND, token.OR:
			if p.operatorBinds() {
				return p.rawSearch(first, last)
			}
		default:
			return p.rawSearch(first, last)
		}
		last = p.curToken
		p.nextToken()
	}
}

func (p *Parser) rawSearch(first, last token.Token) Node {
	return RawSearch{Text: strings.TrimSpace(string(p.input[first.Pos:last.End]))}
}

// parseKeyValTerm classifies a single word as one of the key-value productions.
func parseKeyValTerm(word string) (Node, bool) {
	if m := timeFilterRe.FindStringSubmatch(word); m != nil {
		return TimeFilter{Key: unquoteKey(m[1]), Operator: ast.Operator(m[2]), Date: m[3]}, true
	}
	if m := relTimeFilterRe.FindStringSubmatch(word); m != nil {
		return RelTimeFilter{Key: unquoteKey(m[1]), Value: m[2]}, true
	}
	if m := specificTimeFilterRe.FindStringSubmatch(word); m != nil {
		return SpecificTimeFilter{Key: unquoteKey(m[1]), Date: m[2]}, true
	}
	if m := numericFilterRe.FindStringSubmatch(word); m != nil {
		op := ast.Operator(m[2])
		if op == "" {
			op = ast.OpEq
		}
		return NumericFilter{Key: unquoteKey(m[1]), Operator: op, Digits: m[3]}, true
	}
	if m := hasFilterRe.FindStringSubmatch(word); m != nil {
		target := m[2]
		if searchKeyRe.MatchString(target) {
			return HasFilter{Negated: m[1] == "!", IsKey: true, Target: unquoteKey(target)}, true
		}
		return HasFilter{Negated: m[1] == "!", Target: unquoteValue(target)}, true
	}
	if m := isFilterRe.FindStringSubmatch(word); m != nil {
		return IsFilter{Negated: m[1] == "!", Value: unquoteValue(m[2])}, true
	}
	if m := basicFilterRe.FindStringSubmatch(word); m != nil {
		return BasicFilter{Negated: m[1] == "!", Key: unquoteKey(m[2]), Value: unquoteValue(m[3])}, true
	}
	return nil, false
}

func unquoteKey(key string) string {
	if len(key) >= 2 && key[0] == '"' && key[len(key)-1] == '"' {
		return key[1 : len(key)-1]
	}
	return key
}

// unquoteValue strips surrounding quotes and unescapes \" when the value is
// a complete quoted string. Bare values are returned as is.
func unquoteValue(value string) string {
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return unquote(value)
	}
	return value
}

func unquote(quoted string) string {
	return strings.ReplaceAll(quoted[1:len(quoted)-1], `\"`, `"`)
}
