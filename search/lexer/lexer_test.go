package lexer

import (
	"testing"

	"github.com/thisisjab/eventsearch/search/token"
)

func TestNextToken(t *testing.T) {
	input := `level:error has:user  age:-1h "exact phrase" AND
	(status:unresolved OR !browser:"Mobile Safari") "a:b":c word)
	message:"say \"hi\"" trailing"quote ANDROID OR`

	l := New(input)

	tests := []struct {
		expectedType    token.TokenType
		expectedLiteral string
	}{
		{token.WORD, "level:error"},
		{token.WORD, "has:user"},
		{token.WORD, "age:-1h"},
		{token.QUOTED, `"exact phrase"`},
		{token.AND, "AND"},
		{token.LPAREN, "("},
		{token.WORD, "status:unresolved"},
		{token.OR, "OR"},
		{token.WORD, `!browser:"Mobile Safari"`},
		{token.RPAREN, ")"},
		{token.WORD, `"a:b":c`},
		{token.WORD, "word"},
		{token.RPAREN, ")"},
		{token.WORD, `message:"say \"hi\""`},
		{token.WORD, `trailing"quote`},
		{token.WORD, "ANDROID"},
		{token.OR, "OR"},
		{token.EOF, ""},
	}

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("#%d - expected type `%s`, got `%s` (%q)", i, tt.expectedType, tok.Type, tok.Literal)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("#%d - expected literal `%s`, got `%s`", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestNextTokenPositions(t *testing.T) {
	input := `  a:1 (b)`
	l := New(input)

	tests := []struct {
		pos int
		end int
	}{
		{2, 5},
		{6, 7},
		{7, 8},
		{8, 9},
		{9, 9},
	}

	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Pos != tt.pos || tok.End != tt.end {
			t.Fatalf("#%d - expected span [%d,%d), got [%d,%d) for %q", i, tt.pos, tt.end, tok.Pos, tok.End, tok.Literal)
		}
	}

	if got := string(l.Input()[2:5]); got != "a:1" {
		t.Fatalf("Input slice = %q, want %q", got, "a:1")
	}
}

func TestQuotedSegmentEndsWord(t *testing.T) {
	l := New(`key:"foo bar"baz "x"y`)

	want := []token.Token{
		{Type: token.WORD, Literal: `key:"foo bar"`},
		{Type: token.WORD, Literal: "baz"},
		{Type: token.QUOTED, Literal: `"x"`},
		{Type: token.WORD, Literal: "y"},
	}

	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w.Type || tok.Literal != w.Literal {
			t.Fatalf("#%d - got %s %q, want %s %q", i, tok.Type, tok.Literal, w.Type, w.Literal)
		}
	}
}
