package lexer

import "github.com/thisisjab/eventsearch/search/token"

type Lexer struct {
	input   []rune
	pos     int  // position of the current character in the input string
	readPos int  // position of the next character to be read
	char    rune // current character being processed
}

var keywords = map[string]token.TokenType{
	"AND": token.AND,
	"OR":  token.OR,
}

func New(input string) *Lexer {
	l := &Lexer{[]rune(input), 0, 0, 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.char = 0
	} else {
		l.char = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

// Input returns the runes being tokenized. Parsers slice it to recover the
// exact text, spaces included, between two tokens.
func (l *Lexer) Input() []rune {
	return l.input
}

func (l *Lexer) NextToken() token.Token {
	l.skipWhitespace()

	start := l.pos

	switch {
	case l.atEOF():
		return token.Token{Type: token.EOF, Pos: len(l.input), End: len(l.input)}
	case l.char == '(':
		l.readChar()
		return token.Token{Type: token.LPAREN, Literal: "(", Pos: start, End: l.pos}
	case l.char == ')':
		l.readChar()
		return token.Token{Type: token.RPAREN, Literal: ")", Pos: start, End: l.pos}
	case l.char == '"':
		if end, ok := l.closingQuote(l.pos); ok && !l.continuesAfterQuote(end) {
			for l.pos <= end {
				l.readChar()
			}
			return token.Token{Type: token.QUOTED, Literal: string(l.input[start:l.pos]), Pos: start, End: l.pos}
		}
	}

	return l.readWord()
}

// readWord consumes a run of characters up to whitespace, a paren or EOF.
// A terminated quoted segment is consumed whole, spaces and parens included,
// and ends the word unless a ':' follows it (quoted keys).
func (l *Lexer) readWord() token.Token {
	start := l.pos

	for !l.atEOF() && !isWhitespace(l.char) && l.char != '(' && l.char != ')' {
		if l.char == '"' {
			if end, ok := l.closingQuote(l.pos); ok {
				for l.pos <= end {
					l.readChar()
				}
				if l.char != ':' {
					break
				}
				continue
			}
		}
		l.readChar()
	}

	literal := string(l.input[start:l.pos])

	return token.Token{Type: lookupWord(literal), Literal: literal, Pos: start, End: l.pos}
}

// closingQuote finds the quote that closes the one at open. A quote directly
// preceded by a backslash is escaped.
func (l *Lexer) closingQuote(open int) (int, bool) {
	for i := open + 1; i < len(l.input); i++ {
		if l.input[i] == '"' && l.input[i-1] != '\\' {
			return i, true
		}
	}
	return 0, false
}

func (l *Lexer) continuesAfterQuote(end int) bool {
	return end+1 < len(l.input) && l.input[end+1] == ':'
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

func lookupWord(word string) token.TokenType {
	if tok, ok := keywords[word]; ok {
		return tok
	}
	return token.WORD
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func (l *Lexer) skipWhitespace() {
	for !l.atEOF() && isWhitespace(l.char) {
		l.readChar()
	}
}
