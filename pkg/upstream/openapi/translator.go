// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

// Package openapi translates the operations of an OpenAPI document into tool
// descriptors.
package openapi

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/mcpany/openapi-bridge/pkg/logging"
	"github.com/mcpany/openapi-bridge/pkg/spec"
	"github.com/mcpany/openapi-bridge/pkg/tool"
	"github.com/mcpany/openapi-bridge/pkg/util"
	"github.com/samber/lo"
)

// Parameter locations that feed inputParams. "body" and "formData" only occur
// in documents converted from Swagger 2.
var inputLocations = map[string]bool{
	openapi3.ParameterInQuery: true,
	"body":                    true,
	"formData":                true,
}

// Translate builds a descriptor for every operation of doc, in document order,
// and indexes them by name.
func Translate(doc *spec.Document) (*tool.Catalog, error) {
	tools := make([]*tool.Descriptor, 0, len(doc.Operations))
	for _, op := range doc.Operations {
		tools = append(tools, translateOperation(doc.Extensions, op))
	}
	resolveCollisions(tools)
	logging.GetLogger().Info("Translated OpenAPI operations into tools", "count", len(tools))
	return tool.NewCatalog(tools)
}

func translateOperation(ext spec.DocumentExtensions, op *spec.Operation) *tool.Descriptor {
	pathParams := PathParams(op.Path)
	input, overrides := inputParamsSchema(op)

	d := &tool.Descriptor{
		Name:               ToolName(ext, op),
		Description:        describe(op),
		Method:             op.Method,
		Path:               op.Path,
		PathParams:         pathParams,
		InputSchema:        inputSchema(pathParamsSchema(op, pathParams), input),
		ResponseSchema:     responseSchemas(op),
		SensitiveOverrides: overrides,
		Operation:          op,
	}
	return d
}

// PathParams returns the placeholder names of a path template in order of
// first appearance.
func PathParams(path string) []string {
	var names []string
	rest := path
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			break
		}
		if name := rest[start+1 : start+end]; name != "" {
			names = append(names, name)
		}
		rest = rest[start+end+1:]
	}
	return lo.Uniq(names)
}

// ToolName computes the tool name of op before collisions are resolved.
func ToolName(ext spec.DocumentExtensions, op *spec.Operation) string {
	method := strings.ToLower(op.Method)
	if ext.ToolNameFormat == "" {
		return method + "::" + op.Path
	}
	name := strings.NewReplacer(
		"{method}", method,
		"{path}", op.Path,
		"{operationId}", op.OperationID(),
	).Replace(ext.ToolNameFormat)
	return ext.ToolNamePrefix + name + ext.ToolNameSuffix
}

func describe(op *spec.Operation) string {
	var summary, description string
	var tags []string
	if op.Op != nil {
		summary, description, tags = op.Op.Summary, op.Op.Description, op.Op.Tags
	}
	text := lo.CoalesceOrEmpty(strings.TrimSpace(description), strings.TrimSpace(summary), op.Method+" "+op.Path)

	var b strings.Builder
	b.WriteString(text)
	fmt.Fprintf(&b, "\n\nSends %s %s to the upstream API.", op.Method, op.Path)
	if len(tags) > 0 {
		fmt.Fprintf(&b, "\nTags: %s.", strings.Join(tags, ", "))
	}
	if op.Extensions.Examples != nil {
		if examples, err := util.JSON.MarshalIndent(op.Extensions.Examples, "", "  "); err == nil {
			fmt.Fprintf(&b, "\nExamples:\n%s", examples)
		}
	}
	return b.String()
}

func pathParamsSchema(op *spec.Operation, names []string) *jsonschema.Schema {
	declared := make(map[string]*openapi3.Parameter)
	for _, ref := range op.Parameters() {
		if ref.Value.In == openapi3.ParameterInPath {
			declared[ref.Value.Name] = ref.Value
		}
	}

	s := &jsonschema.Schema{Type: typeObject, Properties: map[string]*jsonschema.Schema{}}
	for _, name := range names {
		description := fmt.Sprintf("Value of the {%s} segment of %s.", name, op.Path)
		if p, ok := declared[name]; ok && p.Description != "" {
			description = p.Description
		}
		s.Properties[name] = &jsonschema.Schema{Type: typeString, Description: description}
		s.Required = append(s.Required, name)
	}
	s.PropertyOrder = names
	return s
}

// inputParamsSchema merges query, body and form parameters with the JSON
// request body properties. Sensitive parameters get the sentinel schema; their
// configured literals are returned separately.
func inputParamsSchema(op *spec.Operation) (*jsonschema.Schema, map[string]any) {
	conv := newSchemaConverter()
	s := &jsonschema.Schema{Type: typeObject, Properties: map[string]*jsonschema.Schema{}}
	var order, required []string

	add := func(name string, prop *jsonschema.Schema, isRequired bool) {
		if _, exists := s.Properties[name]; !exists {
			order = append(order, name)
		}
		s.Properties[name] = prop
		if isRequired {
			required = append(required, name)
		}
	}

	for _, ref := range op.Parameters() {
		p := ref.Value
		if !inputLocations[p.In] {
			continue
		}
		prop := conv.convert(p.Schema)
		if prop == nil {
			prop = &jsonschema.Schema{}
		}
		if prop.Type == "" && len(prop.Types) == 0 {
			prop.Type = typeString
		}
		if p.Description != "" {
			prop.Description = p.Description
		}
		add(p.Name, prop, p.Required)
	}

	if body := jsonBodySchema(op); body != nil {
		bodySchema := conv.convert(body)
		if bodySchema.Type == typeObject || len(bodySchema.Properties) > 0 {
			for _, name := range bodySchema.PropertyOrder {
				add(name, bodySchema.Properties[name], false)
			}
			required = append(required, bodySchema.Required...)
		} else {
			logging.GetLogger().Debug("Ignoring non-object request body", "operation", op.String())
		}
	}

	var overrides map[string]any
	if len(op.Extensions.SensitiveParams) > 0 {
		overrides = make(map[string]any, len(op.Extensions.SensitiveParams))
		for name, value := range op.Extensions.SensitiveParams {
			overrides[name] = value
			if _, ok := s.Properties[name]; ok {
				s.Properties[name] = sensitiveSchema()
			}
		}
		required = lo.Filter(required, func(name string, _ int) bool {
			_, sensitive := overrides[name]
			return !sensitive
		})
	}

	s.Required = lo.Uniq(required)
	s.PropertyOrder = order
	return s, overrides
}

func sensitiveSchema() *jsonschema.Schema {
	var sentinel any = tool.SensitiveSentinel
	return &jsonschema.Schema{
		Const:       &sentinel,
		Description: "Supplied by the server.",
	}
}

func jsonBodySchema(op *spec.Operation) *openapi3.SchemaRef {
	if op.Op == nil || op.Op.RequestBody == nil || op.Op.RequestBody.Value == nil {
		return nil
	}
	content := op.Op.RequestBody.Value.Content
	if mt := content.Get("application/json"); mt != nil && mt.Schema != nil {
		return mt.Schema
	}
	for _, ct := range sortedKeys(content) {
		if mt := content[ct]; strings.Contains(ct, "json") && mt != nil && mt.Schema != nil {
			return mt.Schema
		}
	}
	return nil
}

func inputSchema(pathParams, inputParams *jsonschema.Schema) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type: typeObject,
		Properties: map[string]*jsonschema.Schema{
			tool.PathParamsKey:  pathParams,
			tool.InputParamsKey: inputParams,
		},
		PropertyOrder: []string{tool.PathParamsKey, tool.InputParamsKey},
	}
	if len(pathParams.Required) > 0 {
		s.Required = []string{tool.PathParamsKey}
	}
	return s
}

func responseSchemas(op *spec.Operation) map[string]*jsonschema.Schema {
	if op.Op == nil || op.Op.Responses == nil {
		return nil
	}
	out := make(map[string]*jsonschema.Schema)
	for code, ref := range op.Op.Responses.Map() {
		if ref == nil || ref.Value == nil {
			continue
		}
		resp := ref.Value
		var schema *jsonschema.Schema
		if mt := resp.Content.Get("application/json"); mt != nil && mt.Schema != nil {
			schema = newSchemaConverter().convert(mt.Schema)
		} else {
			schema = &jsonschema.Schema{}
		}
		if schema.Description == "" && resp.Description != nil {
			schema.Description = *resp.Description
		}
		out[code] = schema
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// resolveCollisions keeps the first tool of a given name and appends the
// upper case method in brackets to every later one.
func resolveCollisions(tools []*tool.Descriptor) {
	taken := make(map[string]bool, len(tools))
	for _, d := range tools {
		if taken[d.Name] {
			renamed := fmt.Sprintf("%s [%s]", d.Name, strings.ToUpper(d.Method))
			// Operations without an id can still clash after the method is added.
			for n := 2; taken[renamed]; n++ {
				renamed = fmt.Sprintf("%s [%s] (%d)", d.Name, strings.ToUpper(d.Method), n)
			}
			logging.GetLogger().Warn("Tool name collision", "name", d.Name, "renamed", renamed)
			d.Name = renamed
		}
		taken[d.Name] = true
	}
}
