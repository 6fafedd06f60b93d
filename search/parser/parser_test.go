package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisjab/eventsearch/fault"
	"github.com/thisisjab/eventsearch/search/ast"
	"github.com/thisisjab/eventsearch/search/lexer"
)

type testKeys struct {
	aliases map[string]string
	numeric map[string]bool
	dates   map[string]bool
}

func (k testKeys) CanonicalKey(name string) string {
	if canonical, ok := k.aliases[name]; ok {
		return canonical
	}
	return name
}

func (k testKeys) IsNumericKey(name string) bool { return k.numeric[name] }

func (k testKeys) IsDateKey(name string) bool { return k.dates[name] }

var keys = testKeys{
	aliases: map[string]string{"user.email": "email"},
	numeric: map[string]bool{"issue.id": true, "stack.lineno": true},
	dates:   map[string]bool{"timestamp": true, "time": true, "first_seen": true},
}

var now = time.Date(2020, 6, 15, 12, 0, 0, 0, time.UTC)

func sf(key string, op ast.Operator, value ast.SearchValue) ast.SearchFilter {
	return ast.SearchFilter{Key: ast.SearchKey{Name: key}, Operator: op, Value: value}
}

func str(key, value string) ast.SearchFilter {
	return sf(key, ast.OpEq, ast.StringValue(value))
}

func parse(t *testing.T, query string) []ast.Term {
	t.Helper()
	terms, err := Parse(query, keys, now)
	require.NoError(t, err, "query %q", query)
	return terms
}

func TestParseFreeText(t *testing.T) {
	tests := []struct {
		query    string
		expected []ast.Term
	}{
		{"", nil},
		{"   ", nil},
		{"hello", []ast.Term{str("message", "hello")}},
		{"  hello   world  ", []ast.Term{str("message", "hello   world")}},
		{`"exact phrase"`, []ast.Term{str("message", "exact phrase")}},
		{`""`, nil},
		{`"say \"hi\""`, []ast.Term{str("message", `say "hi"`)}},
		{"ANDROID phone", []ast.Term{str("message", "ANDROID phone")}},
		{"search AND", []ast.Term{str("message", "search AND")}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.expected, parse(t, tt.query))
		})
	}
}

func TestParseFreeTextAroundFilters(t *testing.T) {
	terms := parse(t, `hello level:error world "quoted bit"`)

	assert.Equal(t, []ast.Term{
		str("message", "hello"),
		str("level", "error"),
		str("message", `world "quoted bit"`),
	}, terms)
}

func TestParseBasicFilters(t *testing.T) {
	tests := []struct {
		query    string
		expected ast.SearchFilter
	}{
		{"level:error", str("level", "error")},
		{"!level:error", sf("level", ast.OpNe, ast.StringValue("error"))},
		{`browser:"Mobile Safari"`, str("browser", "Mobile Safari")},
		{`"sentry:user":bob`, str("sentry:user", "bob")},
		{"user.email:a@b.com", str("email", "a@b.com")},
		{"url:*example*", str("url", "*example*")},
		{"level:", str("level", "")},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, []ast.Term{tt.expected}, parse(t, tt.query))
		})
	}
}

func TestParseBooleanPrecedence(t *testing.T) {
	terms := parse(t, "a:1 AND b:2 OR c:3")
	require.Len(t, terms, 1)

	root, ok := terms[0].(ast.SearchBoolean)
	require.True(t, ok)
	assert.Equal(t, ast.Or, root.Operator)
	assert.Equal(t, ast.SearchBoolean{Left: str("a", "1"), Operator: ast.And, Right: str("b", "2")}, root.Left)
	assert.Equal(t, str("c", "3"), root.Right)
}

func TestParseBooleanShapes(t *testing.T) {
	tests := []struct {
		query    string
		expected string
	}{
		{"a:1 OR b:2 OR c:3", "(a=1 OR (b=2 OR c=3))"},
		{"a:1 AND b:2 AND c:3", "(a=1 AND (b=2 AND c=3))"},
		{"a:1 OR b:2 AND c:3", "(a=1 OR (b=2 AND c=3))"},
		{"a:1 AND b:2 OR c:3 AND d:4", "((a=1 AND b=2) OR (c=3 AND d=4))"},
		{"(a:1 OR b:2) AND c:3", "((a=1 OR b=2) AND c=3)"},
		{"((a:1 OR b:2) AND c:3) OR d:4", "(((a=1 OR b=2) AND c=3) OR d=4)"},
		{"(a:1 OR b:2 c:3 AND d:4)", "((a=1 OR b=2) AND (c=3 AND d=4))"},
		{"foo OR bar", "(message=foo OR message=bar)"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			terms := parse(t, tt.query)
			require.Len(t, terms, 1)
			assert.Equal(t, tt.expected, terms[0].(ast.SearchBoolean).String())
		})
	}
}

func TestParseBooleanDropsEmptyOperands(t *testing.T) {
	assert.Equal(t, []ast.Term{str("a", "1")}, parse(t, `"" AND a:1`))
	assert.Equal(t, []ast.Term{str("a", "1")}, parse(t, `a:1 OR ""`))
}

func TestParseRelativeTime(t *testing.T) {
	tests := []struct {
		query    string
		operator ast.Operator
		value    time.Time
	}{
		{"timestamp:-1h", ast.OpLte, now.Add(-time.Hour)},
		{"timestamp:+1h", ast.OpGte, now.Add(-time.Hour)},
		{"time:-2d", ast.OpLte, now.Add(-48 * time.Hour)},
		{"time:+1w", ast.OpGte, now.Add(-7 * 24 * time.Hour)},
		{"first_seen:-30m", ast.OpLte, now.Add(-30 * time.Minute)},
		{"timestamp:-15000w", ast.OpLte, now.Add(-15000 * 7 * 24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			terms := parse(t, tt.query)
			require.Len(t, terms, 1)

			f := terms[0].(ast.SearchFilter)
			assert.Equal(t, tt.operator, f.Operator)
			assert.Equal(t, tt.value, f.Value.Raw())
		})
	}
}

func TestParseRelativeTimeOnOtherKey(t *testing.T) {
	assert.Equal(t, []ast.Term{str("age", "-1h")}, parse(t, "age:-1h"))
}

func TestParseSpecificDate(t *testing.T) {
	terms := parse(t, "time:2020-01-01")

	assert.Equal(t, []ast.Term{
		sf("time", ast.OpGte, ast.TimeValue(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))),
		sf("time", ast.OpLt, ast.TimeValue(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC))),
	}, terms)
}

func TestParseSpecificDatetime(t *testing.T) {
	terms := parse(t, "timestamp:2020-01-01T10:30:00Z")

	assert.Equal(t, []ast.Term{
		sf("timestamp", ast.OpGte, ast.TimeValue(time.Date(2020, 1, 1, 10, 25, 0, 0, time.UTC))),
		sf("timestamp", ast.OpLt, ast.TimeValue(time.Date(2020, 1, 1, 10, 36, 0, 0, time.UTC))),
	}, terms)
}

func TestParseSpecificDateInBoolean(t *testing.T) {
	terms := parse(t, "time:2020-01-01 OR a:1")
	require.Len(t, terms, 1)
	assert.Equal(t, "((time>=2020-01-01T00:00:00 AND time<2020-01-02T00:00:00) OR a=1)", terms[0].(ast.SearchBoolean).String())
}

func TestParseTimeFilter(t *testing.T) {
	assert.Equal(t,
		[]ast.Term{sf("timestamp", ast.OpGt, ast.TimeValue(time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)))},
		parse(t, "timestamp:>2020-01-01T10:00:00"),
	)
	assert.Equal(t,
		[]ast.Term{sf("timestamp", ast.OpLte, ast.TimeValue(time.Date(2020, 1, 1, 10, 0, 0, 500000000, time.UTC)))},
		parse(t, "timestamp:<=2020-01-01T10:00:00.5Z"),
	)
	assert.Equal(t, []ast.Term{str("release", ">2020-01-01")}, parse(t, "release:>2020-01-01"))
}

func TestParseNumericFilter(t *testing.T) {
	assert.Equal(t, []ast.Term{sf("issue.id", ast.OpEq, ast.IntValue(42))}, parse(t, "issue.id:42"))
	assert.Equal(t, []ast.Term{sf("stack.lineno", ast.OpGte, ast.IntValue(10))}, parse(t, "stack.lineno:>=10"))
	assert.Equal(t, []ast.Term{str("build", "123")}, parse(t, "build:123"))
	assert.Equal(t, []ast.Term{str("build", ">123")}, parse(t, "build:>123"))
}

func TestParseHasFilter(t *testing.T) {
	assert.Equal(t, []ast.Term{sf("user", ast.OpNe, ast.StringValue(""))}, parse(t, "has:user"))
	assert.Equal(t, []ast.Term{str("user", "")}, parse(t, "!has:user"))
	assert.Equal(t, []ast.Term{sf("email", ast.OpNe, ast.StringValue(""))}, parse(t, "has:user.email"))
}

func TestParseSemanticErrors(t *testing.T) {
	tests := []struct {
		query   string
		message string
	}{
		{"is:resolved", `"is" queries are not supported on this search`},
		{"!is:unresolved", `"is" queries are not supported on this search`},
		{`has:"some value"`, `Invalid format for "has" search: some value`},
		{"issue.id:abc", "Invalid format for numeric search"},
		{"issue.id:99999999999999999999", "Invalid numeric query: issue.id"},
		{"timestamp:yesterday", "Invalid format for date search"},
		{"timestamp:>2020-13-45", "2020-13-45 is not a valid ISO8601 date query"},
		{"time:-0x", "Invalid format for date search"},
		{"timestamp:-20000w", "-20000w is not a valid datetime query"},
		{"timestamp:-100000000d", "-100000000d is not a valid datetime query"},
		{"timestamp:+9999999999999m", "+9999999999999m is not a valid datetime query"},
		{"is:123", `"is" queries are not supported on this search`},
		{"is:>2020-01-01", `"is" queries are not supported on this search`},
		{"is:-1h", `"is" queries are not supported on this search`},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := Parse(tt.query, keys, now)
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.InvalidQueryCode), "unexpected error %v", err)
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		query  string
		rule   string
		column int
	}{
		{"(a:1 OR b:2", "paren_term", 1},
		{"a:1 OR b:2)", "search", 11},
		{"foo (a:1)", "paren_term", 5},
		{"()", "paren_term", 1},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := New(lexer.New(tt.query)).ParseSearch()
			require.Error(t, err)

			var f fault.Fault
			require.ErrorAs(t, err, &f)
			assert.Equal(t, fault.InvalidSyntaxCode, f.Code())
			assert.Equal(t, fault.SyntaxErrorMetadata{Rule: tt.rule, Column: tt.column}, f.Metadata())
			assert.Contains(t, f.Message(), "unmatched parentheses")
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	filters := []ast.SearchFilter{
		str("level", "error"),
		sf("level", ast.OpNe, ast.StringValue("error")),
		str("url", "*example*"),
		str("release", "1.0.0"),
	}

	for _, f := range filters {
		query := f.Key.Name + ":" + f.Value.String()
		if f.Operator == ast.OpNe {
			query = "!" + query
		}

		terms := parse(t, query)
		assert.Equal(t, []ast.Term{f}, terms, "query %q", query)
	}
}
