package token

const (
	ILLEGAL TokenType = iota
	EOF

	// WORD is a whitespace delimited run that is not a paren. It may end with a
	// quoted segment (key:"some value").
	WORD
	// QUOTED is a word made only of one double quoted string.
	QUOTED

	LPAREN
	RPAREN

	AND
	OR
)

type TokenType int

func (t TokenType) String() string {
	switch t {
	case EOF:
		return "EOF"
	case WORD:
		return "WORD"
	case QUOTED:
		return "QUOTED"
	case LPAREN:
		return "LPAREN"
	case RPAREN:
		return "RPAREN"
	case AND:
		return "AND"
	case OR:
		return "OR"
	default:
		return "ILLEGAL"
	}
}

type Token struct {
	Type    TokenType
	Literal string
	// Pos is the 0-based rune offset of the first character and End the offset
	// just past the last one.
	Pos int
	End int
}

// Column returns the 1-based column of the token start.
func (t Token) Column() int {
	return t.Pos + 1
}
