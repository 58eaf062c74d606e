// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Env is the supplied name -> value layer of the resolution environment.
// The process environment sits alongside it; see Resolver for the lookup
// order used by templates and scripts.
type Env map[string]string

// Clone returns a copy of the environment that can be extended without
// affecting the receiver.
func (e Env) Clone() Env {
	out := make(Env, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// ProcessEnv abstracts the calling process's environment so resolution can be
// tested without touching os.Setenv.
type ProcessEnv interface {
	LookupEnv(key string) (string, bool)
	Environ() []string
}

type osEnv struct{}

func (osEnv) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }
func (osEnv) Environ() []string                   { return os.Environ() }

// MapEnv is a ProcessEnv backed by a fixed map.
type MapEnv map[string]string

// LookupEnv implements ProcessEnv.
func (m MapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Environ implements ProcessEnv.
func (m MapEnv) Environ() []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}

// mergeEnviron overlays supplied on top of the process environment. Supplied
// values win on conflicting names.
func mergeEnviron(process []string, supplied Env) []string {
	out := make([]string, 0, len(process)+len(supplied))
	for _, kv := range process {
		name, _, _ := strings.Cut(kv, "=")
		if _, overridden := supplied[name]; overridden {
			continue
		}
		out = append(out, kv)
	}
	keys := lo.Keys(supplied)
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+supplied[k])
	}
	return out
}

// HeaderAliases returns the environment names under which a resolved header
// is published: the key lower-cased with '-' replaced by '_', and the key in
// its original case with the same replacement.
func HeaderAliases(key string) []string {
	lower := strings.ReplaceAll(strings.ToLower(key), "-", "_")
	original := strings.ReplaceAll(key, "-", "_")
	return lo.Uniq([]string{lower, original})
}
