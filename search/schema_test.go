package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchemaValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*SchemaConfig)
		errMsg string
	}{
		{
			name:   "empty timestamp column",
			modify: func(c *SchemaConfig) { c.TimestampColumn = "" },
			errMsg: "timestamp column cannot be empty",
		},
		{
			name: "aggregate without backend",
			modify: func(c *SchemaConfig) {
				c.Aggregates["p99"] = AggregateFunc{Columns: []string{"duration"}}
			},
			errMsg: "aggregate `p99` has no backend function",
		},
		{
			name: "aggregate without columns",
			modify: func(c *SchemaConfig) {
				c.Aggregates["p99"] = AggregateFunc{Backend: "quantileTiming(0.99)"}
			},
			errMsg: "aggregate `p99` accepts no columns",
		},
		{
			name:   "empty field alias",
			modify: func(c *SchemaConfig) { c.FieldAliases["nothing"] = FieldAlias{} },
			errMsg: "field alias `nothing` expands to nothing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSchemaConfig()
			tt.modify(&cfg)

			_, err := NewSchema(cfg)
			require.Error(t, err)
			assert.Equal(t, tt.errMsg, err.Error())
		})
	}
}

func TestNewSchemaAliasConflict(t *testing.T) {
	cfg := DefaultSchemaConfig()
	cfg.KeyAliases["user.id"] = []string{"email"}

	_, err := NewSchema(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key alias `email` maps to both")
}

func TestSchemaLookups(t *testing.T) {
	s := DefaultSchema()

	assert.Equal(t, "user.email", s.CanonicalKey("email"))
	assert.Equal(t, "user.ip", s.CanonicalKey("ip_address"))
	assert.Equal(t, "browser", s.CanonicalKey("browser"))

	assert.True(t, s.IsNumericKey("issue.id"))
	assert.False(t, s.IsNumericKey("issue"))
	assert.True(t, s.IsDateKey("timestamp"))
	assert.False(t, s.IsDateKey("message"))

	assert.Equal(t, "email", s.ColumnName("user.email"))
	assert.Equal(t, "tags[sentry:release]", s.ColumnName("release"))
	assert.Equal(t, "tags[browser]", s.ColumnName("browser"))

	assert.True(t, s.isPassThrough("start"))
	assert.True(t, s.isFilterKey("issue"))
	assert.False(t, s.isFilterKey("issue.id"))
}
