package rewrite

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisjab/eventsearch/fault"
	"github.com/thisisjab/eventsearch/search"
)

const script = `
local json = require("json")

function rewrite(query, params)
  local p = json.decode(params)
  if string.find(query, "forbidden", 1, true) then
    return nil, "forbidden is not allowed"
  end
  if query == "" then
    return nil
  end
  local q = string.gsub(query, "is:crash", "error.handled:0")
  if p.project_id ~= nil then
    q = q .. " projects:" .. #p.project_id
  end
  return q
end
`

func TestLuaRewriter(t *testing.T) {
	r, err := NewLuaRewriter(LuaRewriterConfig{Script: script})
	require.NoError(t, err)

	tests := []struct {
		query    string
		params   search.Params
		expected string
	}{
		{"is:crash level:error", search.Params{}, "error.handled:0 level:error"},
		{"title:foo", search.Params{ProjectIDs: []int64{1, 2}}, "title:foo projects:2"},
		{"", search.Params{ProjectIDs: []int64{1}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := r.Rewrite(context.Background(), tt.query, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLuaRewriterRejects(t *testing.T) {
	r, err := NewLuaRewriter(LuaRewriterConfig{Script: script})
	require.NoError(t, err)

	_, err = r.Rewrite(context.Background(), "forbidden words", search.Params{})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.InvalidQueryCode))
	assert.Equal(t, "forbidden is not allowed", err.Error())
}

func TestLuaRewriterConcurrent(t *testing.T) {
	r, err := NewLuaRewriter(LuaRewriterConfig{Script: script})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			got, err := r.Rewrite(context.Background(), "is:crash", search.Params{})
			assert.NoError(t, err)
			assert.Equal(t, "error.handled:0", got)
		})
	}
	wg.Wait()
}

func TestLuaRewriterFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewrite.lua")
	require.NoError(t, os.WriteFile(path, []byte(`function rewrite(q, p) return "x:" .. q end`), 0o600))

	r, err := NewLuaRewriter(LuaRewriterConfig{ScriptPath: path})
	require.NoError(t, err)

	got, err := r.Rewrite(context.Background(), "y", search.Params{})
	require.NoError(t, err)
	assert.Equal(t, "x:y", got)
}

func TestNewLuaRewriterErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  LuaRewriterConfig
	}{
		{"no script", LuaRewriterConfig{}},
		{"syntax error", LuaRewriterConfig{Script: "function rewrite("}},
		{"missing function", LuaRewriterConfig{Script: "x = 1"}},
		{"missing file", LuaRewriterConfig{ScriptPath: "/does/not/exist.lua"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLuaRewriter(tt.cfg)
			assert.Error(t, err)
		})
	}
}
