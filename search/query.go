package search

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/thisisjab/eventsearch/fault"
	"github.com/thisisjab/eventsearch/search/ast"
	"github.com/thisisjab/eventsearch/search/condition"
)

// Params are supplied by the caller alongside the query string. They are
// merged in as equality filters and replace filters on the same column
// found in the query.
type Params struct {
	ProjectIDs []int64   `json:"project_id"`
	Start      time.Time `json:"start,omitzero"`
	End        time.Time `json:"end,omitzero"`
}

func (p Params) filters() []ast.SearchFilter {
	var filters []ast.SearchFilter

	if len(p.ProjectIDs) > 0 {
		filters = append(filters, paramFilter(projectIDColumn, ast.IntListValue(p.ProjectIDs)))
	}
	if !p.Start.IsZero() {
		filters = append(filters, paramFilter("start", ast.TimeValue(p.Start)))
	}
	if !p.End.IsZero() {
		filters = append(filters, paramFilter("end", ast.TimeValue(p.End)))
	}

	return filters
}

func paramFilter(key string, value ast.SearchValue) ast.SearchFilter {
	return ast.SearchFilter{Key: ast.SearchKey{Name: key}, Operator: ast.OpEq, Value: value}
}

// QueryArgs is the lowered form of a query string and its params.
type QueryArgs struct {
	Conditions      []condition.Condition `json:"conditions"`
	FilterKeys      map[string][]int64    `json:"filter_keys"`
	Start           *time.Time            `json:"start,omitempty"`
	End             *time.Time            `json:"end,omitempty"`
	HasBooleanTerms bool                  `json:"has_boolean_terms,omitempty"`
}

// QueryArgs parses query and lowers it together with params.
func (c *Compiler) QueryArgs(ctx context.Context, query string, params Params) (*QueryArgs, error) {
	terms, err := c.Parse(query)
	if err != nil {
		return nil, err
	}

	return c.buildQueryArgs(ctx, terms, params)
}

func (c *Compiler) buildQueryArgs(ctx context.Context, terms []ast.Term, params Params) (*QueryArgs, error) {
	terms = c.mergeParams(terms, params)

	l := lowerer{schema: c.schema}
	if hasProjectName(terms) {
		projects, err := c.projectSlugs(ctx, params.ProjectIDs)
		if err != nil {
			return nil, err
		}
		l.projects = projects
	}

	args := &QueryArgs{
		Conditions: []condition.Condition{},
		FilterKeys: make(map[string][]int64),
	}

	for _, term := range terms {
		switch t := term.(type) {
		case ast.SearchFilter:
			if err := c.addFilter(args, l, t); err != nil {
				return nil, err
			}
		case ast.SearchBoolean:
			args.HasBooleanTerms = true
			cond, ok, err := l.boolean(t)
			if err != nil {
				return nil, err
			}
			if ok {
				args.Conditions = append(args.Conditions, cond)
			}
		}
	}

	return args, nil
}

func (c *Compiler) addFilter(args *QueryArgs, l lowerer, f ast.SearchFilter) error {
	column := f.Key.ColumnName(c.schema)

	switch {
	case f.Key.Name == projectNameKey:
		cond, _, err := l.projectName(f)
		if err != nil {
			return err
		}
		args.Conditions = append(args.Conditions, cond)
	case column == "start" || column == "end":
		t, ok := f.Value.Raw().(time.Time)
		if !ok {
			return fault.Invalid("Invalid format for date search")
		}
		if column == "start" {
			args.Start = &t
		} else {
			args.End = &t
		}
	case c.schema.isFilterKey(column):
		ids, err := filterKeyValues(f)
		if err != nil {
			return err
		}
		args.FilterKeys[column] = append(args.FilterKeys[column], ids...)
	default:
		cond, ok, err := l.filter(f)
		if err != nil {
			return err
		}
		if ok {
			args.Conditions = append(args.Conditions, cond)
		}
	}

	return nil
}

func filterKeyValues(f ast.SearchFilter) ([]int64, error) {
	switch raw := f.Value.Raw().(type) {
	case int64:
		return []int64{raw}, nil
	case []int64:
		return raw, nil
	case string:
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fault.Invalid("Invalid numeric query: %s", f.Key.Name)
		}
		return []int64{id}, nil
	default:
		return nil, fault.Invalid("Invalid numeric query: %s", f.Key.Name)
	}
}

// mergeParams appends the param filters after dropping top level query
// filters that target the same columns.
func (c *Compiler) mergeParams(terms []ast.Term, params Params) []ast.Term {
	paramFilters := params.filters()
	if len(paramFilters) == 0 {
		return terms
	}

	columns := make([]string, len(paramFilters))
	for i, f := range paramFilters {
		columns[i] = f.Key.ColumnName(c.schema)
	}

	merged := slices.DeleteFunc(slices.Clone(terms), func(t ast.Term) bool {
		f, ok := t.(ast.SearchFilter)
		return ok && slices.Contains(columns, f.Key.ColumnName(c.schema))
	})

	for _, f := range paramFilters {
		merged = append(merged, f)
	}

	return merged
}

func hasProjectName(terms []ast.Term) bool {
	for _, t := range terms {
		if containsKey(t, projectNameKey) {
			return true
		}
	}
	return false
}

func containsKey(t ast.Term, key string) bool {
	switch t := t.(type) {
	case ast.SearchFilter:
		return t.Key.Name == key
	case ast.SearchBoolean:
		return containsKey(t.Left, key) || containsKey(t.Right, key)
	default:
		return false
	}
}

// projectSlugs returns slug to id for the projects in scope.
func (c *Compiler) projectSlugs(ctx context.Context, ids []int64) (map[string]int64, error) {
	projects, err := c.projects.FindProjects(ctx, ids)
	if err != nil {
		return nil, err
	}

	slugs := make(map[string]int64, len(projects))
	for _, p := range projects {
		slugs[p.Slug] = p.ID
	}
	return slugs, nil
}
