package storage

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEventByID(t *testing.T) {
	b := NewSQLQueryBuilder(SQLOptions{})
	id := uuid.New()

	res, err := b.BuildEventByID(2, id, []string{"title", "exception_frames.filename", "tags.key", "project_id"})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT event_id, project_id, `title`, `exception_frames.filename`, `tags.key` FROM events WHERE project_id = ? AND event_id = ? LIMIT 1",
		res.Query,
	)
	assert.Equal(t, []any{int64(2), id}, res.Args)
}

func TestBuildEventByIDRejectsColumns(t *testing.T) {
	b := NewSQLQueryBuilder(SQLOptions{})

	for _, column := range []string{"tags[browser]", "title; DROP TABLE events", "`title`", "Title"} {
		_, err := b.BuildEventByID(1, uuid.New(), []string{column})
		assert.Error(t, err, column)
	}

	custom := NewSQLQueryBuilder(SQLOptions{AllowedColumnsRegex: regexp.MustCompile(`^title$`), EventsTable: "errors_local"})
	res, err := custom.BuildEventByID(1, uuid.Nil, []string{"title"})
	require.NoError(t, err)
	assert.Contains(t, res.Query, "FROM errors_local")

	_, err = custom.BuildEventByID(1, uuid.Nil, []string{"culprit"})
	assert.Error(t, err)
}

func TestBuildProjects(t *testing.T) {
	b := NewSQLQueryBuilder(SQLOptions{})

	res, ok := b.BuildProjects([]int64{3, 1})
	require.True(t, ok)
	assert.Equal(t, "SELECT id, slug FROM projects WHERE id IN (?, ?) ORDER BY id", res.Query)
	assert.Equal(t, []any{int64(3), int64(1)}, res.Args)

	_, ok = b.BuildProjects(nil)
	assert.False(t, ok)
}
