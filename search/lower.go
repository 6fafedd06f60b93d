package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/thisisjab/eventsearch/fault"
	"github.com/thisisjab/eventsearch/search/ast"
	"github.com/thisisjab/eventsearch/search/condition"
)

const (
	environmentColumn = "environment"
	messageColumn     = "message"
	projectIDColumn   = "project_id"

	// projectNameKey filters by project slug. It is resolved to a project id
	// condition instead of being lowered as a tag.
	projectNameKey = "project.name"
)

// lowerer converts ast terms into backend conditions. projects maps the
// slugs of the projects in scope to their ids.
type lowerer struct {
	schema   *Schema
	projects map[string]int64
}

// LowerFilter converts a single filter. It reports false when the filter
// targets a pass-through column and produces no condition.
func (s *Schema) LowerFilter(f ast.SearchFilter) (condition.Condition, bool, error) {
	return lowerer{schema: s}.filter(f)
}

// LowerTerm converts a filter or a boolean tree.
func (s *Schema) LowerTerm(t ast.Term) (condition.Condition, bool, error) {
	return lowerer{schema: s}.term(t)
}

func (l lowerer) term(t ast.Term) (condition.Condition, bool, error) {
	switch t := t.(type) {
	case ast.SearchFilter:
		return l.filter(t)
	case ast.SearchBoolean:
		return l.boolean(t)
	default:
		return nil, false, fmt.Errorf("unknown term type: %T", t)
	}
}

// boolean lowers both sides. A side that lowers to nothing collapses the
// node into the other side.
func (l lowerer) boolean(b ast.SearchBoolean) (condition.Condition, bool, error) {
	left, leftOK, err := l.term(b.Left)
	if err != nil {
		return nil, false, err
	}

	right, rightOK, err := l.term(b.Right)
	if err != nil {
		return nil, false, err
	}

	switch {
	case leftOK && rightOK:
		return condition.Boolean{Operator: strings.ToLower(string(b.Operator)), Left: left, Right: right}, true, nil
	case leftOK:
		return left, true, nil
	case rightOK:
		return right, true, nil
	default:
		return nil, false, nil
	}
}

func (l lowerer) filter(f ast.SearchFilter) (condition.Condition, bool, error) {
	if f.Key.Name == projectNameKey && l.projects != nil {
		return l.projectName(f)
	}

	column := f.Key.ColumnName(l.schema)

	switch {
	case l.schema.isPassThrough(column):
		return nil, false, nil
	case column == environmentColumn:
		return lowerEnvironment(f)
	case column == messageColumn:
		return lowerMessage(f), true, nil
	default:
		return l.column(f, column), true, nil
	}
}

func (l lowerer) projectName(f ast.SearchFilter) (condition.Condition, bool, error) {
	slug := f.Value.String()

	id, ok := l.projects[slug]
	if !ok {
		return nil, false, fault.Invalid("Invalid project.name filter: unknown project %q", slug)
	}

	return condition.Comparison{LHS: projectIDColumn, Operator: string(f.Operator), RHS: id}, true, nil
}

// lowerEnvironment splits the values into a null check for the empty
// environment and an IN clause for the rest. Only the null check honours the
// operator: !environment:prod still lowers to IN ['prod'].
func lowerEnvironment(f ast.SearchFilter) (condition.Condition, bool, error) {
	var values []string
	switch raw := f.Value.Raw().(type) {
	case string:
		values = []string{raw}
	case []string:
		values = raw
	default:
		return nil, false, fault.Invalid("Invalid environment value: %s", f.Value)
	}

	var (
		alternatives condition.AnyOf
		named        []string
		seen         = make(map[string]bool)
		hasEmpty     bool
	)

	for _, v := range values {
		if v == "" {
			hasEmpty = true
			continue
		}
		if !seen[v] {
			seen[v] = true
			named = append(named, v)
		}
	}

	if hasEmpty {
		op := condition.IsNotNull
		if f.Operator == ast.OpEq {
			op = condition.IsNull
		}
		alternatives = append(alternatives, condition.Comparison{LHS: environmentColumn, Operator: op})
	}

	if len(named) > 0 {
		alternatives = append(alternatives, condition.Comparison{LHS: environmentColumn, Operator: condition.In, RHS: named})
	}

	if len(alternatives) == 0 {
		return nil, false, nil
	}

	return alternatives, true, nil
}

// lowerMessage searches anywhere in the message, case insensitively.
// positionCaseInsensitive returns 0 when the needle is missing, so a match
// is "!= 0" and the operator is flipped.
func lowerMessage(f ast.SearchFilter) condition.Condition {
	if f.Value.IsWildcard() {
		pattern := f.Value.Value().(string)
		pattern = pattern[1 : len(pattern)-1]
		return condition.Comparison{
			LHS:      condition.Call("match", messageColumn, quoteRegex(pattern)),
			Operator: string(f.Operator),
			RHS:      1,
		}
	}

	op := condition.Ne
	if f.Operator == ast.OpNe {
		op = condition.Eq
	}

	return condition.Comparison{
		LHS:      condition.Call("positionCaseInsensitive", messageColumn, fmt.Sprintf("'%s'", f.Value.String())),
		Operator: op,
		RHS:      0,
	}
}

func (l lowerer) column(f ast.SearchFilter, column string) condition.Condition {
	value := f.Value.Value()
	if t, ok := value.(time.Time); ok {
		value = l.timeValue(t, column)
	}

	isTag := f.Key.IsTag(l.schema)

	var lhs any = column
	if isTag {
		lhs = condition.Call("ifNull", column, "''")
	}

	// Existence checks.
	if (f.Operator == ast.OpEq || f.Operator == ast.OpNe) && f.Value.IsEmpty() {
		if isTag {
			return condition.Comparison{LHS: lhs, Operator: string(f.Operator), RHS: ""}
		}
		return condition.Comparison{LHS: condition.Call("isNull", lhs), Operator: string(f.Operator), RHS: 1}
	}

	var cond condition.Condition
	if f.Value.IsWildcard() {
		cond = condition.Comparison{LHS: condition.Call("match", lhs, quoteRegex(value.(string))), Operator: string(f.Operator), RHS: 1}
	} else {
		cond = condition.Comparison{LHS: lhs, Operator: string(f.Operator), RHS: value}
	}

	// A comparison against NULL is never true, so rows where the column is
	// missing are added back explicitly.
	if f.Operator == ast.OpNe && !isTag {
		return condition.AnyOf{
			condition.Comparison{LHS: condition.Call("isNull", lhs), Operator: condition.Eq, RHS: 1},
			cond,
		}
	}

	return cond
}

// timeValue keeps datetimes on the timestamp column and uses epoch
// milliseconds elsewhere.
func (l lowerer) timeValue(t time.Time, column string) any {
	if column == l.schema.cfg.TimestampColumn {
		return t.UTC().Format(ast.DatetimeLayout)
	}
	return t.UnixMilli()
}

func quoteRegex(pattern string) string {
	return fmt.Sprintf("'(?i)%s'", pattern)
}
