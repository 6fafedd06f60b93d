package fault

import (
	"errors"
	"fmt"
)

type Code string

const (
	UnknownCode          Code = "unknown"
	NotFoundCode         Code = "not_found"
	BadInputCode         Code = "bad_input"
	PermissionDeniedCode Code = "permission_denied"

	// InvalidSyntaxCode marks a query string that does not match the search grammar.
	InvalidSyntaxCode Code = "invalid_syntax"
	// InvalidQueryCode marks a query that parsed but breaks a domain rule.
	InvalidQueryCode Code = "invalid_query"
)

type FieldErrorsMetadata map[string][]string

// SyntaxErrorMetadata locates a grammar failure inside the query string.
type SyntaxErrorMetadata struct {
	Rule   string `json:"rule"`
	Column int    `json:"column"`
}

type Fault struct {
	code     Code
	message  string
	metadata any
	original error
}

func New(code Code, message string) Fault {
	return Fault{
		code:    code,
		message: message,
	}
}

// Syntax builds the error returned when the grammar cannot consume the whole query.
// Column is 1-based.
func Syntax(rule string, column int) Fault {
	msg := fmt.Sprintf("Parse error: %q (column %d). This is commonly caused by unmatched parentheses. Enclose any text in double quotes.", rule, column)
	return New(InvalidSyntaxCode, msg).WithMetadata(SyntaxErrorMetadata{Rule: rule, Column: column})
}

// Invalid builds a semantic query error.
func Invalid(format string, args ...any) Fault {
	return New(InvalidQueryCode, fmt.Sprintf(format, args...))
}

func (f Fault) WithMetadata(metadata any) Fault {
	e := f
	e.metadata = metadata
	return e
}

func (f Fault) WithOriginal(original error) Fault {
	e := f
	e.original = original
	return e
}

func (f Fault) Code() Code {
	return f.code
}

func (f Fault) Message() string {
	return f.message
}

func (f Fault) Metadata() any {
	return f.metadata
}

func (f Fault) Original() error {
	return f.original
}

func (f Fault) Error() string {
	if f.original != nil {
		return fmt.Sprintf("%s: %v", f.message, f.original)
	}
	return f.message
}

func (f Fault) Unwrap() error {
	return f.original
}

// CodeOf returns the code of the first Fault in err's chain, or UnknownCode.
func CodeOf(err error) Code {
	var f Fault
	if errors.As(err, &f) {
		return f.code
	}
	return UnknownCode
}

// Is reports whether err carries a Fault with the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
