// Package rewrite holds query rewriters that run before a query is parsed.
package rewrite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
	luajson "layeh.com/gopher-json"

	"github.com/thisisjab/eventsearch/fault"
	"github.com/thisisjab/eventsearch/search"
)

type LuaRewriterConfig struct {
	ScriptPath string `yaml:"script-path"`
	// Script is inline source used when ScriptPath is empty.
	Script string `yaml:"script"`
}

// LuaRewriter rewrites queries with a user supplied lua script.
// The script MUST define a function `rewrite(query, params)` where params is
// the JSON encoded request params. It returns the new query string, or nil
// to keep the query unchanged. A second return value, when a string, is
// reported as an invalid query.
// Scripts can use the JSON helper with `local json = require("json")`.
type LuaRewriter struct {
	cfg  LuaRewriterConfig
	pool *sync.Pool
}

func NewLuaRewriter(cfg LuaRewriterConfig) (*LuaRewriter, error) {
	if cfg.ScriptPath == "" && cfg.Script == "" {
		return nil, errors.New("lua rewriter needs a script path or an inline script")
	}

	// Load once up front so a broken script fails here rather than in the pool.
	L, err := newState(cfg)
	if err != nil {
		return nil, fmt.Errorf("cannot load rewrite script: %w", err)
	}

	if L.GetGlobal("rewrite").Type() != lua.LTFunction {
		L.Close()
		return nil, errors.New("rewrite script does not define a `rewrite` function")
	}

	pool := &sync.Pool{
		New: func() any {
			L, err := newState(cfg)
			if err != nil {
				panic(err)
			}
			return L
		},
	}
	pool.Put(L)

	return &LuaRewriter{cfg: cfg, pool: pool}, nil
}

func newState(cfg LuaRewriterConfig) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // Don't load anything by default
	})

	// Only the safe libraries; no 'os' or 'io'.
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},  // Allows 'require'
		{lua.BaseLibName, lua.OpenBase},     // Allows 'print', 'pairs', etc.
		{lua.TabLibName, lua.OpenTable},     // Allows 'table.insert', etc.
		{lua.StringLibName, lua.OpenString}, // Allows string manipulation
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	// local json = require("json")
	luajson.Preload(L)

	var err error
	if cfg.ScriptPath != "" {
		err = L.DoFile(cfg.ScriptPath)
	} else {
		err = L.DoString(cfg.Script)
	}
	if err != nil {
		L.Close()
		return nil, err
	}

	return L, nil
}

func (r *LuaRewriter) Rewrite(ctx context.Context, query string, params search.Params) (string, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("cannot encode params: %w", err)
	}

	L := r.pool.Get().(*lua.LState)
	defer r.pool.Put(L)

	L.SetContext(ctx)
	defer L.RemoveContext()

	err = L.CallByParam(lua.P{
		Fn:      L.GetGlobal("rewrite"),
		NRet:    2,
		Protect: true,
	}, lua.LString(query), lua.LString(string(encoded)))

	if err != nil {
		return "", fmt.Errorf("lua script error: %w", err)
	}

	rejection := L.Get(-1)
	rewritten := L.Get(-2)

	// Clean up stack immediately after extraction
	L.Pop(2)

	if msg, ok := rejection.(lua.LString); ok {
		return "", fault.Invalid("%s", string(msg))
	}

	switch v := rewritten.(type) {
	case lua.LString:
		return string(v), nil
	case *lua.LNilType:
		return query, nil
	default:
		return "", fmt.Errorf("rewrite returned %s, expected a string or nil", rewritten.Type())
	}
}
