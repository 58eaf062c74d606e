// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
}

func newTestResolver(process MapEnv) *Resolver {
	if _, ok := process["PATH"]; !ok {
		process["PATH"] = os.Getenv("PATH")
	}
	return New(WithProcessEnv(process))
}

func TestResolveString_Templates(t *testing.T) {
	r := newTestResolver(MapEnv{"B": "2", "SHARED": "process"})
	ctx := context.Background()

	tests := []struct {
		name  string
		input string
		env   Env
		want  string
	}{
		{name: "plain string is unchanged", input: "hello world", want: "hello world"},
		{name: "supplied and process env", input: "{A}-{B}", env: Env{"A": "1"}, want: "1-2"},
		{name: "process env wins", input: "{SHARED}", env: Env{"SHARED": "supplied"}, want: "process"},
		{name: "unknown name becomes empty", input: "x{MISSING}y", want: "xy"},
		{name: "non identifier braces untouched", input: "{a-b} {1x} {}", want: "{a-b} {1x} {}"},
		{name: "json literal untouched", input: `{"k": "v"}`, want: `{"k": "v"}`},
		{name: "nested braces", input: "{{A}}", env: Env{"A": "v"}, want: "{v}"},
		{name: "placeholder after stray brace", input: "{a{A}", env: Env{"A": "v"}, want: "{av"},
		{name: "unclosed brace", input: "tail {A", env: Env{"A": "v"}, want: "tail {A"},
		{name: "underscore identifier", input: "{_x1}", env: Env{"_x1": "ok"}, want: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveString(ctx, tt.input, tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveString_Script(t *testing.T) {
	skipOnWindows(t)
	r := newTestResolver(MapEnv{"FROM_PROCESS": "p", "BOTH": "process"})

	got, err := r.ResolveString(context.Background(), "  #!/bin/sh\nprintf '%s-%s-%s\\n' \"$FROM_PROCESS\" \"$FROM_ENV\" \"$BOTH\"\n", Env{"FROM_ENV": "e", "BOTH": "supplied"})
	require.NoError(t, err)
	assert.Equal(t, "p-e-supplied", got)
}

func TestResolveString_ScriptFailure(t *testing.T) {
	skipOnWindows(t)
	r := newTestResolver(MapEnv{})

	_, err := r.ResolveString(context.Background(), "#!/bin/sh\necho nope >&2\nexit 2", nil)
	require.Error(t, err)
	var scriptErr *ScriptError
	require.True(t, errors.As(err, &scriptErr))
	assert.Equal(t, 2, scriptErr.ExitCode)
	assert.Contains(t, scriptErr.Error(), "nope")
}

func TestIsScript(t *testing.T) {
	assert.True(t, IsScript("#!/bin/sh\necho"))
	assert.True(t, IsScript("\n  #!/usr/bin/env python3"))
	assert.True(t, IsScript("#!"))
	assert.False(t, IsScript("echo #!"))
	assert.False(t, IsScript(""))
}

func TestResolve_Tree(t *testing.T) {
	r := newTestResolver(MapEnv{})
	ctx := context.Background()

	value := map[string]any{
		"a":     "{SEED}",
		"b":     "{a}/b",
		"list":  []any{"{SEED}", 3.0, true, nil},
		"count": 4.0,
	}
	got, err := r.Resolve(ctx, value, Env{"SEED": "s"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a":     "s",
		"b":     "s/b",
		"list":  []any{"s", 3.0, true, nil},
		"count": 4.0,
	}, got)
}

func TestResolve_ArraysDoNotPropagate(t *testing.T) {
	r := newTestResolver(MapEnv{})
	got, err := r.Resolve(context.Background(), []any{map[string]any{"x": "1"}, "{x}"}, Env{})
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"x": "1"}, ""}, got)
}

func TestResolve_DoesNotMutateEnv(t *testing.T) {
	r := newTestResolver(MapEnv{})
	env := Env{"A": "1"}
	_, err := r.Resolve(context.Background(), map[string]any{"B": "{A}"}, env)
	require.NoError(t, err)
	assert.Equal(t, Env{"A": "1"}, env)
}

func TestResolveHeaders_Order(t *testing.T) {
	r := newTestResolver(MapEnv{})
	headers := orderedmap.New[string, any]()
	headers.Set("X-Zeta", "z")
	headers.Set("X-Alpha", "{x_zeta}+{X_Zeta}")
	headers.Set("X-Count", 3)

	out, env, err := r.ResolveHeaders(context.Background(), headers, Env{})
	require.NoError(t, err)

	var keys []string
	for pair := out.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	assert.Equal(t, []string{"X-Zeta", "X-Alpha", "X-Count"}, keys)
	alpha, _ := out.Get("X-Alpha")
	assert.Equal(t, "z+z", alpha)
	count, _ := out.Get("X-Count")
	assert.Equal(t, "3", count)

	assert.Equal(t, "z+z", env["x_alpha"])
	assert.Equal(t, "z+z", env["X_Alpha"])
	assert.Equal(t, "3", env["x_count"])
}

func TestResolveHeaders_ScriptCrossDependency(t *testing.T) {
	skipOnWindows(t)
	r := newTestResolver(MapEnv{})

	headers := orderedmap.New[string, any]()
	headers.Set("x-first", "#!/bin/sh\necho v1")
	headers.Set("x-second", "#!/bin/sh\necho \"$x_first\"")

	out, env, err := r.ResolveHeaders(context.Background(), headers, Env{})
	require.NoError(t, err)
	second, _ := out.Get("x-second")
	assert.Equal(t, "v1", second)
	assert.Equal(t, "v1", env["x_first"])
}

func TestResolveHeaders_Nil(t *testing.T) {
	r := newTestResolver(MapEnv{})
	out, env, err := r.ResolveHeaders(context.Background(), nil, Env{"A": "1"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, Env{"A": "1"}, env)
}

func params(kv ...any) *orderedmap.OrderedMap[string, any] {
	m := orderedmap.New[string, any]()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i].(string), kv[i+1])
	}
	return m
}

func TestResolveParams(t *testing.T) {
	r := newTestResolver(MapEnv{})
	env := Env{"signature": "sig"}

	path, input, err := r.ResolveParams(context.Background(),
		params("id", "{signature}"),
		params("q", "{signature}-q", "n", 1.0),
		env,
	)
	require.NoError(t, err)
	assert.Equal(t, "sig", path.Value("id"))
	assert.Equal(t, "sig-q", input.Value("q"))
	assert.Equal(t, 1.0, input.Value("n"))
	assert.Equal(t, Env{"signature": "sig"}, env)
}

func TestResolveParams_InsertionOrder(t *testing.T) {
	r := newTestResolver(MapEnv{})
	input := orderedmap.New[string, any]()
	require.NoError(t, input.UnmarshalJSON([]byte(`{"zeta":"v1","alpha":"{zeta}","mid":"{alpha}-{zeta}"}`)))

	_, out, err := r.ResolveParams(context.Background(), nil, input, Env{})
	require.NoError(t, err)

	var keys []string
	for pair := out.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, keys)
	assert.Equal(t, "v1", out.Value("alpha"))
	assert.Equal(t, "v1-v1", out.Value("mid"))
}

func TestResolveParams_SetsAreIndependent(t *testing.T) {
	r := newTestResolver(MapEnv{})
	path, input, err := r.ResolveParams(context.Background(),
		params("id", "p"),
		params("q", "{id}"),
		Env{},
	)
	require.NoError(t, err)
	assert.Equal(t, "p", path.Value("id"))
	assert.Equal(t, "", input.Value("q"))
}

func TestResolveParams_Nil(t *testing.T) {
	r := newTestResolver(MapEnv{})
	path, input, err := r.ResolveParams(context.Background(), nil, nil, Env{})
	require.NoError(t, err)
	assert.Equal(t, 0, path.Len())
	assert.Equal(t, 0, input.Len())
}

func TestResolveParams_ScriptErrorAborts(t *testing.T) {
	skipOnWindows(t)
	r := newTestResolver(MapEnv{})

	_, _, err := r.ResolveParams(context.Background(),
		params("id", "#!/bin/sh\nexit 1"),
		params("q", "x"),
		Env{},
	)
	require.Error(t, err)
	var scriptErr *ScriptError
	assert.True(t, errors.As(err, &scriptErr))
}

func TestHeaderAliases(t *testing.T) {
	assert.Equal(t, []string{"x_api_key", "X_Api_Key"}, HeaderAliases("X-Api-Key"))
	assert.Equal(t, []string{"authorization"}, HeaderAliases("authorization"))
}

func TestMergeEnviron(t *testing.T) {
	got := mergeEnviron([]string{"A=1", "B=2"}, Env{"B": "3", "C": "4"})
	assert.Equal(t, []string{"A=1", "B=3", "C=4"}, got)
}
