// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package openapi

import (
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/mcpany/openapi-bridge/pkg/logging"
	"github.com/mcpany/openapi-bridge/pkg/util"
	"github.com/samber/lo"
)

const (
	typeObject = "object"
	typeString = "string"
)

// schemaConverter turns OpenAPI schemas into JSON schemas. It remembers the
// schemas on the current descent so that recursive definitions terminate.
type schemaConverter struct {
	stack map[*openapi3.Schema]bool
}

func newSchemaConverter() *schemaConverter {
	return &schemaConverter{stack: make(map[*openapi3.Schema]bool)}
}

// convert returns the JSON schema for sr. A nil reference yields nil.
func (c *schemaConverter) convert(sr *openapi3.SchemaRef) *jsonschema.Schema {
	if sr == nil {
		return nil
	}
	s := sr.Value
	if s == nil {
		logging.GetLogger().Warn("Unresolved schema reference", "ref", sr.Ref)
		return &jsonschema.Schema{}
	}
	if c.stack[s] {
		// Recursive definition: stop with a shallow schema.
		out := &jsonschema.Schema{Description: s.Description}
		if s.Type != nil && len(s.Type.Slice()) == 1 {
			out.Type = s.Type.Slice()[0]
		}
		return out
	}
	c.stack[s] = true
	defer delete(c.stack, s)

	out := &jsonschema.Schema{
		Title:       s.Title,
		Description: s.Description,
		Format:      s.Format,
		Pattern:     s.Pattern,
		MultipleOf:  s.MultipleOf,
		UniqueItems: s.UniqueItems,
		ReadOnly:    s.ReadOnly,
		WriteOnly:   s.WriteOnly,
		Deprecated:  s.Deprecated,
	}
	c.setType(out, s)

	if len(s.Enum) > 0 {
		out.Enum = append([]any(nil), s.Enum...)
	}
	if s.Default != nil {
		if raw, err := util.JSON.Marshal(s.Default); err == nil {
			out.Default = raw
		}
	}
	if s.Example != nil {
		out.Examples = []any{s.Example}
	}

	if s.ExclusiveMin {
		out.ExclusiveMinimum = s.Min
	} else {
		out.Minimum = s.Min
	}
	if s.ExclusiveMax {
		out.ExclusiveMaximum = s.Max
	} else {
		out.Maximum = s.Max
	}
	out.MinLength = intPtr(s.MinLength)
	out.MaxLength = uintPtr(s.MaxLength)
	out.MinItems = intPtr(s.MinItems)
	out.MaxItems = uintPtr(s.MaxItems)
	out.MinProperties = intPtr(s.MinProps)
	out.MaxProperties = uintPtr(s.MaxProps)

	if s.Items != nil {
		out.Items = c.convert(s.Items)
	}

	props, required := c.mergeProperties(s)
	if len(props) > 0 {
		out.Properties = make(map[string]*jsonschema.Schema, len(props))
		for name, ref := range props {
			out.Properties[name] = c.convert(ref)
		}
		out.PropertyOrder = sortedKeys(props)
	}
	out.Required = required

	switch {
	case s.AdditionalProperties.Has != nil && !*s.AdditionalProperties.Has:
		out.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
	case s.AdditionalProperties.Schema != nil:
		out.AdditionalProperties = c.convert(s.AdditionalProperties.Schema)
	}

	for _, ref := range s.OneOf {
		out.OneOf = append(out.OneOf, c.convert(ref))
	}
	for _, ref := range s.AnyOf {
		out.AnyOf = append(out.AnyOf, c.convert(ref))
	}
	if s.Not != nil {
		out.Not = c.convert(s.Not)
	}
	return out
}

func (c *schemaConverter) setType(out *jsonschema.Schema, s *openapi3.Schema) {
	var types []string
	if s.Type != nil {
		types = s.Type.Slice()
	}
	if len(types) == 0 {
		// allOf composition without an explicit type is object composition.
		if len(s.Properties) > 0 || len(s.AllOf) > 0 {
			types = []string{typeObject}
		}
		for _, ref := range s.AllOf {
			if len(types) > 0 || ref == nil || ref.Value == nil || ref.Value.Type == nil {
				continue
			}
			types = ref.Value.Type.Slice()
		}
	}
	if s.Nullable && len(types) > 0 && !lo.Contains(types, "null") {
		types = append(append([]string(nil), types...), "null")
	}
	switch len(types) {
	case 0:
	case 1:
		out.Type = types[0]
	default:
		out.Types = types
	}
}

// mergeProperties returns the properties of s together with those of its
// allOf members, and the union of their required lists.
func (c *schemaConverter) mergeProperties(s *openapi3.Schema) (map[string]*openapi3.SchemaRef, []string) {
	props := make(map[string]*openapi3.SchemaRef)
	var required []string
	seen := make(map[*openapi3.Schema]bool)

	var merge func(*openapi3.Schema)
	merge = func(curr *openapi3.Schema) {
		if curr == nil || seen[curr] {
			return
		}
		seen[curr] = true
		for _, ref := range curr.AllOf {
			if ref != nil {
				merge(ref.Value)
			}
		}
		for k, v := range curr.Properties {
			props[k] = v
		}
		required = append(required, curr.Required...)
	}
	merge(s)
	return props, lo.Uniq(required)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func intPtr(v uint64) *int {
	if v == 0 {
		return nil
	}
	return lo.ToPtr(int(v))
}

func uintPtr(v *uint64) *int {
	if v == nil {
		return nil
	}
	return lo.ToPtr(int(*v))
}
