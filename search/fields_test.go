package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisjab/eventsearch/fault"
)

func TestResolveFieldsPlainColumns(t *testing.T) {
	d, err := DefaultSchema().ResolveFields([]string{"title", "user.email"}, FieldOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"title", "user.email", "id", "project.id"}, d.SelectedColumns)
	assert.Empty(t, d.Aggregations)
	assert.Empty(t, d.GroupBy)
	assert.Nil(t, d.OrderBy)
}

func TestResolveFieldsAggregates(t *testing.T) {
	d, err := DefaultSchema().ResolveFields([]string{"title", "count()", "count_unique(user.id)"}, FieldOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"title"}, d.SelectedColumns)
	assert.Equal(t, []Aggregation{
		{Function: "count", Columns: []string{""}, Alias: "count"},
		{Function: "uniq", Columns: []string{"user.id"}, Alias: "count_unique_user_id"},
		{Function: "argMax", Columns: []string{"id", "timestamp"}, Alias: "latest_event"},
		{Function: "argMax", Columns: []string{"project_id", "timestamp"}, Alias: "projectid"},
	}, d.Aggregations)
	assert.Equal(t, []string{"title"}, d.GroupBy)

	assert.JSONEq(t,
		`[["count","","count"],["uniq","user.id","count_unique_user_id"],["argMax",["id","timestamp"],"latest_event"],["argMax",["project_id","timestamp"],"projectid"]]`,
		marshal(t, d.Aggregations),
	)
}

func TestResolveFieldsAliases(t *testing.T) {
	d, err := DefaultSchema().ResolveFields([]string{"project", "user", "last_seen", "latest_event"}, FieldOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"project.id", "user.id", "user.name", "user.username", "user.email", "user.ip"}, d.SelectedColumns)
	assert.Equal(t, []Aggregation{
		{Function: "max", Columns: []string{"timestamp"}, Alias: "last_seen"},
		{Function: "argMax", Columns: []string{"id", "timestamp"}, Alias: "latest_event"},
	}, d.Aggregations)
	assert.Equal(t, d.SelectedColumns, d.GroupBy)
}

func TestResolveFieldsProjectName(t *testing.T) {
	d, err := DefaultSchema().ResolveFields([]string{"project.name", "title"}, FieldOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"title", "project.id", "id"}, d.SelectedColumns)
}

func TestResolveFieldsRollup(t *testing.T) {
	d, err := DefaultSchema().ResolveFields([]string{"count()"}, FieldOptions{Rollup: 3600})
	require.NoError(t, err)
	assert.Equal(t, []Aggregation{{Function: "count", Columns: []string{""}, Alias: "count"}}, d.Aggregations)
	assert.Empty(t, d.SelectedColumns)

	_, err = DefaultSchema().ResolveFields([]string{"title"}, FieldOptions{Rollup: 3600})
	require.Error(t, err)
	assert.Equal(t, "You cannot use rollup without an aggregate field.", err.Error())
}

func TestResolveFieldsNegativeRollup(t *testing.T) {
	_, err := DefaultSchema().ResolveFields([]string{"title"}, FieldOptions{Rollup: -5})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.InvalidQueryCode))
	assert.Equal(t, "Rollup must be greater than or equal to 0.", err.Error())
}

func TestResolveFieldsInvalidAggregates(t *testing.T) {
	tests := []struct {
		field   string
		message string
	}{
		{"median(duration)", "Unknown aggregate function 'median(duration)'"},
		{"sum(timestamp)", "Invalid column 'timestamp' in aggregate function 'sum'"},
		{"p75(title)", "Invalid column 'title' in aggregate function 'p75'"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, err := DefaultSchema().ResolveFields([]string{tt.field}, FieldOptions{})
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.InvalidQueryCode))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestResolveOrderBy(t *testing.T) {
	tests := []struct {
		name     string
		fields   []string
		orderBy  []string
		expected []string
	}{
		{"selected column", []string{"title"}, []string{"-title"}, []string{"-title"}},
		{"aggregate call", []string{"title", "count()"}, []string{"-count()"}, []string{"-count"}},
		{"aggregate alias", []string{"title", "count_unique(user.id)"}, []string{"count_unique_user_id"}, []string{"count_unique_user_id"}},
		{"implicit aggregate", []string{"title", "count()"}, []string{"-latest_event", "title"}, []string{"-latest_event", "title"}},
		{"explicit tag", []string{"tags[browser]"}, []string{"tags[browser]"}, []string{"tags[browser]"}},
		{"alias column", []string{"user"}, []string{"user.ip"}, []string{"user.ip"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := DefaultSchema().ResolveFields(tt.fields, FieldOptions{OrderBy: tt.orderBy})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d.OrderBy)
		})
	}
}

func TestResolveOrderByAllOrNothing(t *testing.T) {
	tests := []struct {
		name    string
		fields  []string
		orderBy []string
	}{
		{"unknown field", []string{"count()", "unknown_field"}, []string{"unknown_field"}},
		{"one bad entry", []string{"title", "count()"}, []string{"title", "-sum(duration)"}},
		{"unselected column", []string{"title"}, []string{"culprit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DefaultSchema().ResolveFields(tt.fields, FieldOptions{OrderBy: tt.orderBy})
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.InvalidQueryCode))
			assert.Equal(t, "Cannot order by an field that is not selected.", err.Error())
		})
	}
}
