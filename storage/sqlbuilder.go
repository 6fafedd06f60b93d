package storage

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// SQLOptions holds configuration for the SQL query builder.
type SQLOptions struct {
	// AllowedColumnsRegex validates every requested column name. Column
	// names are interpolated into the query, so anything outside the
	// pattern is rejected.
	// If nil, defaultColumnRegex is used.
	AllowedColumnsRegex *regexp.Regexp

	// EventsTable is the table events are read from.
	EventsTable string

	// ProjectsTable is the table projects are read from.
	ProjectsTable string
}

var defaultColumnRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

// SQLQueryBuilder builds the lookups the compiler needs from the store.
type SQLQueryBuilder struct {
	opts SQLOptions
}

func NewSQLQueryBuilder(opts SQLOptions) *SQLQueryBuilder {
	if opts.AllowedColumnsRegex == nil {
		opts.AllowedColumnsRegex = defaultColumnRegex
	}
	if opts.EventsTable == "" {
		opts.EventsTable = "events"
	}
	if opts.ProjectsTable == "" {
		opts.ProjectsTable = "projects"
	}
	return &SQLQueryBuilder{opts: opts}
}

// BuildResult holds the generated SQL query and its arguments.
type BuildResult struct {
	Query string
	Args  []any
}

// BuildEventByID selects columns of a single event. event_id and project_id
// are always selected first.
func (b *SQLQueryBuilder) BuildEventByID(projectID int64, eventID uuid.UUID, columns []string) (BuildResult, error) {
	selectCols := []string{"event_id", "project_id"}

	for _, column := range columns {
		if !b.opts.AllowedColumnsRegex.MatchString(column) {
			return BuildResult{}, fmt.Errorf("invalid column name: %s", column)
		}
		if column == "event_id" || column == "project_id" {
			continue
		}
		selectCols = append(selectCols, quoteIdentifier(column))
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE project_id = ? AND event_id = ? LIMIT 1",
		strings.Join(selectCols, ", "),
		b.opts.EventsTable,
	)

	return BuildResult{Query: query, Args: []any{projectID, eventID}}, nil
}

// BuildProjects selects the projects among ids. No ids selects nothing.
func (b *SQLQueryBuilder) BuildProjects(ids []int64) (BuildResult, bool) {
	if len(ids) == 0 {
		return BuildResult{}, false
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(
		"SELECT id, slug FROM %s WHERE id IN (%s) ORDER BY id",
		b.opts.ProjectsTable,
		strings.Join(placeholders, ", "),
	)

	return BuildResult{Query: query, Args: args}, true
}

func quoteIdentifier(name string) string {
	return "`" + name + "`"
}
