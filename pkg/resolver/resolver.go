// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

// Package resolver resolves dynamic values: strings with {NAME} placeholders
// and strings holding shebang scripts, recursively through objects and arrays.
// Every resolved object member is published into the environment seen by the
// members that follow it.
package resolver

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mcpany/openapi-bridge/pkg/command"
	"github.com/mcpany/openapi-bridge/pkg/logging"
	"github.com/mcpany/openapi-bridge/pkg/util"
	"github.com/samber/lo"
	"github.com/valyala/fasttemplate"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/sync/errgroup"
)

// ScriptMarker is the prefix that marks a string value as a script.
const ScriptMarker = "#!"

// ScriptError is returned when a script value exits with a non-zero status.
type ScriptError struct {
	ExitCode int
	Stderr   string
}

func (e *ScriptError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("script exited with status %d", e.ExitCode)
	}
	return fmt.Sprintf("script exited with status %d: %s", e.ExitCode, stderr)
}

// Resolver resolves value trees against a layered environment.
type Resolver struct {
	process  ProcessEnv
	executor command.Executor
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithProcessEnv replaces the process environment layer.
func WithProcessEnv(env ProcessEnv) Option {
	return func(r *Resolver) { r.process = env }
}

// WithExecutor replaces the executor used for scripts.
func WithExecutor(executor command.Executor) Option {
	return func(r *Resolver) { r.executor = executor }
}

// New creates a Resolver reading the real process environment and running
// scripts on the local host.
func New(opts ...Option) *Resolver {
	r := &Resolver{process: osEnv{}, executor: command.NewExecutor()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsScript reports whether s is a script value.
func IsScript(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), ScriptMarker)
}

// Resolve resolves value against env. Strings are templates or scripts,
// objects are resolved member by member in order, arrays element by element,
// and any other value is returned as is. env is not modified.
func (r *Resolver) Resolve(ctx context.Context, value any, env Env) (any, error) {
	switch v := value.(type) {
	case string:
		return r.ResolveString(ctx, v, env)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			resolved, err := r.Resolve(ctx, elem, env)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = resolved
		}
		return out, nil
	case map[string]any:
		return r.resolveMap(ctx, v, env.Clone())
	case *orderedmap.OrderedMap[string, any]:
		out, _, err := r.resolveOrdered(ctx, v, env.Clone(), nil)
		return out, err
	default:
		return value, nil
	}
}

// ResolveString resolves a single string value.
func (r *Resolver) ResolveString(ctx context.Context, s string, env Env) (string, error) {
	if IsScript(s) {
		return r.runScript(ctx, s, env)
	}
	return r.substitute(s, env), nil
}

// ResolveHeaders resolves header values strictly in declaration order. After
// each header is resolved its value is published under the header name and
// under HeaderAliases(name), so later headers and the returned environment can
// refer to it.
func (r *Resolver) ResolveHeaders(ctx context.Context, headers *orderedmap.OrderedMap[string, any], env Env) (*orderedmap.OrderedMap[string, string], Env, error) {
	next := env.Clone()
	out := orderedmap.New[string, string]()
	if headers == nil {
		return out, next, nil
	}
	resolved, next, err := r.resolveOrdered(ctx, headers, next, HeaderAliases)
	if err != nil {
		return nil, nil, err
	}
	for pair := resolved.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, util.ToString(pair.Value))
	}
	return out, next, nil
}

// ResolveParams resolves path and input parameters against env. Within each
// set members resolve in insertion order and see the members before them. The
// two sets do not depend on each other and are resolved concurrently.
func (r *Resolver) ResolveParams(ctx context.Context, pathParams, inputParams *orderedmap.OrderedMap[string, any], env Env) (*orderedmap.OrderedMap[string, any], *orderedmap.OrderedMap[string, any], error) {
	var resolvedPath, resolvedInput *orderedmap.OrderedMap[string, any]
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resolvedPath, _, err = r.resolveOrdered(gctx, pathParams, env.Clone(), nil)
		if err != nil {
			return fmt.Errorf("failed to resolve path parameters: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		resolvedInput, _, err = r.resolveOrdered(gctx, inputParams, env.Clone(), nil)
		if err != nil {
			return fmt.Errorf("failed to resolve input parameters: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return resolvedPath, resolvedInput, nil
}

// resolveMap resolves a plain map, which carries no order, in sorted key
// order, folding each result into env.
func (r *Resolver) resolveMap(ctx context.Context, m map[string]any, env Env) (map[string]any, error) {
	out := make(map[string]any, len(m))
	keys := lo.Keys(m)
	sort.Strings(keys)
	for _, k := range keys {
		resolved, err := r.Resolve(ctx, m[k], env)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = resolved
		env[k] = util.ToString(resolved)
	}
	return out, nil
}

func (r *Resolver) resolveOrdered(ctx context.Context, m *orderedmap.OrderedMap[string, any], env Env, aliases func(string) []string) (*orderedmap.OrderedMap[string, any], Env, error) {
	out := orderedmap.New[string, any](m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		resolved, err := r.Resolve(ctx, pair.Value, env)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", pair.Key, err)
		}
		out.Set(pair.Key, resolved)
		folded := util.ToString(resolved)
		env[pair.Key] = folded
		if aliases != nil {
			for _, alias := range aliases(pair.Key) {
				env[alias] = folded
			}
		}
	}
	return out, env, nil
}

func (r *Resolver) lookup(name string, env Env) string {
	if v, ok := r.process.LookupEnv(name); ok {
		return v
	}
	return env[name]
}

// substitute replaces every {IDENTIFIER} in s. Braces that do not enclose an
// identifier are kept verbatim.
func (r *Resolver) substitute(s string, env Env) string {
	return fasttemplate.ExecuteFuncString(s, "{", "}", func(w io.Writer, tag string) (int, error) {
		if isIdentifier(tag) {
			return io.WriteString(w, r.lookup(tag, env))
		}
		// Not a placeholder: keep the opening brace and rescan the rest, which
		// may still contain one.
		return io.WriteString(w, "{"+r.substitute(tag+"}", env))
	})
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

func (r *Resolver) runScript(ctx context.Context, script string, env Env) (string, error) {
	body := strings.TrimSpace(script) + "\n"
	res, err := command.RunScript(ctx, r.executor, body, mergeEnviron(r.process.Environ(), env))
	if err != nil {
		return "", fmt.Errorf("failed to run script: %w", err)
	}
	if res.ExitCode != 0 {
		logging.GetLogger().Debug("Script exited with non-zero status", "exitCode", res.ExitCode)
		return "", &ScriptError{ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return strings.TrimRight(res.Stdout, "\r\n"), nil
}
