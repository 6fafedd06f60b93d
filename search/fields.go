package search

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/thisisjab/eventsearch/fault"
)

var (
	aggregatePattern = regexp.MustCompile(`^([^(]+)\(([a-z._]*)\)$`)
	tagFieldPattern  = regexp.MustCompile(`^tags\[(.*)\]$`)
)

// Aggregation is [function, column, alias]. The column encodes as a string
// when there is one and as a list otherwise.
type Aggregation struct {
	Function string   `yaml:"function" json:"function"`
	Columns  []string `yaml:"columns" json:"columns"`
	Alias    string   `yaml:"alias" json:"alias"`
}

func (a Aggregation) MarshalJSON() ([]byte, error) {
	var column any
	switch len(a.Columns) {
	case 0:
		column = ""
	case 1:
		column = a.Columns[0]
	default:
		column = a.Columns
	}
	return json.Marshal([]any{a.Function, column, a.Alias})
}

func (a Aggregation) String() string {
	return fmt.Sprintf("%s(%s) AS %s", a.Function, strings.Join(a.Columns, ", "), a.Alias)
}

// FieldDescriptor describes the result set of a query.
type FieldDescriptor struct {
	SelectedColumns []string      `json:"selected_columns"`
	Aggregations    []Aggregation `json:"aggregations"`
	GroupBy         []string      `json:"groupby"`
	OrderBy         []string      `json:"orderby,omitempty"`
}

// FieldOptions carry the query settings that change how fields resolve.
type FieldOptions struct {
	// Rollup is the time bucket size in seconds. Zero disables bucketing.
	Rollup  int
	OrderBy []string
}

// ResolveFields expands aliases, validates aggregates and derives the
// group by set and order by list for fields.
func (s *Schema) ResolveFields(fields []string, opts FieldOptions) (*FieldDescriptor, error) {
	if opts.Rollup < 0 {
		return nil, fault.Invalid("Rollup must be greater than or equal to 0.")
	}

	fields = slices.Clone(fields)

	// project.name is looked up from project.id after the query runs.
	if i := slices.Index(fields, projectNameKey); i >= 0 {
		fields = slices.Delete(fields, i, i+1)
		if !slices.Contains(fields, "project.id") {
			fields = append(fields, "project.id")
		}
	}

	d := &FieldDescriptor{
		SelectedColumns: []string{},
		Aggregations:    []Aggregation{},
		GroupBy:         []string{},
	}

	for _, field := range fields {
		if alias, ok := s.cfg.FieldAliases[field]; ok {
			d.SelectedColumns = append(d.SelectedColumns, alias.Fields...)
			d.Aggregations = append(d.Aggregations, cloneAggregations(alias.Aggregations)...)
			continue
		}

		m := aggregatePattern.FindStringSubmatch(field)
		if m == nil {
			d.SelectedColumns = append(d.SelectedColumns, field)
			continue
		}

		agg, err := s.aggregate(field, m[1], m[2])
		if err != nil {
			return nil, err
		}
		d.Aggregations = append(d.Aggregations, agg)
	}

	if opts.Rollup == 0 {
		// Keep result rows linkable to the events they came from. With
		// aggregations the latest event and its project are picked by
		// timestamp.
		if len(d.Aggregations) == 0 && !slices.Contains(d.SelectedColumns, "id") {
			d.SelectedColumns = append(d.SelectedColumns, "id")
			if !slices.Contains(d.SelectedColumns, "project.id") {
				d.SelectedColumns = append(d.SelectedColumns, "project.id")
			}
		}
		if len(d.Aggregations) > 0 && !slices.Contains(fields, "latest_event") {
			if latest, ok := s.cfg.FieldAliases["latest_event"]; ok {
				d.Aggregations = append(d.Aggregations, cloneAggregations(latest.Aggregations)...)
			}
		}
		if len(d.Aggregations) > 0 && !slices.Contains(d.SelectedColumns, "project.id") {
			d.Aggregations = append(d.Aggregations, Aggregation{
				Function: "argMax",
				Columns:  []string{projectIDColumn, s.cfg.TimestampColumn},
				Alias:    "projectid",
			})
		}
	}

	if opts.Rollup > 0 && len(d.SelectedColumns) > 0 && len(d.Aggregations) == 0 {
		return nil, fault.Invalid("You cannot use rollup without an aggregate field.")
	}

	if len(opts.OrderBy) > 0 {
		orderBy, err := s.resolveOrderBy(opts.OrderBy, d)
		if err != nil {
			return nil, err
		}
		d.OrderBy = orderBy
	}

	if len(d.Aggregations) > 0 {
		d.GroupBy = append(d.GroupBy, d.SelectedColumns...)
	}

	return d, nil
}

func (s *Schema) aggregate(field, function, column string) (Aggregation, error) {
	fn, ok := s.cfg.Aggregates[function]
	if !ok {
		return Aggregation{}, fault.Invalid("Unknown aggregate function '%s'", field)
	}

	if !fn.allows(column) {
		return Aggregation{}, fault.Invalid("Invalid column '%s' in aggregate function '%s'", column, function)
	}

	return Aggregation{
		Function: fn.Backend,
		Columns:  []string{column},
		Alias:    aggregateAlias(function, column),
	}, nil
}

// aggregateAlias names count_unique(user.id) count_unique_user_id and
// count() count.
func aggregateAlias(function, column string) string {
	return strings.TrimRight(function+"_"+strings.ReplaceAll(column, ".", "_"), "_")
}

func cloneAggregations(aggs []Aggregation) []Aggregation {
	out := make([]Aggregation, len(aggs))
	for i, a := range aggs {
		a.Columns = slices.Clone(a.Columns)
		out[i] = a
	}
	return out
}

// resolveOrderBy accepts selected columns the schema knows about and the
// aliases of selected aggregations, written either as the alias or as the
// function call. Every entry must resolve or none are accepted.
func (s *Schema) resolveOrderBy(orderBy []string, d *FieldDescriptor) ([]string, error) {
	validated := make([]string, 0, len(orderBy))

	for _, column := range orderBy {
		bare := strings.TrimLeft(column, "-")
		prefix := ""
		if strings.HasPrefix(column, "-") {
			prefix = "-"
		}

		if slices.Contains(d.SelectedColumns, bare) && s.isKnownColumn(bare) {
			validated = append(validated, prefix+bare)
			continue
		}

		if m := aggregatePattern.FindStringSubmatch(bare); m != nil {
			bare = aggregateAlias(m[1], m[2])
		}

		if slices.ContainsFunc(d.Aggregations, func(a Aggregation) bool { return a.Alias == bare }) {
			validated = append(validated, prefix+bare)
			continue
		}

		return nil, fault.Invalid("Cannot order by an field that is not selected.")
	}

	return validated, nil
}

// isKnownColumn reports whether a selected column name can be checked:
// mapped columns, columns produced by field aliases and explicit tags.
func (s *Schema) isKnownColumn(name string) bool {
	if _, ok := s.Column(name); ok {
		return true
	}
	if tagFieldPattern.MatchString(name) {
		return true
	}
	for _, alias := range s.cfg.FieldAliases {
		if slices.Contains(alias.Fields, name) {
			return true
		}
	}
	return false
}
