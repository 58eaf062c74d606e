// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

// Package spec holds the resolved OpenAPI document together with its typed
// extension keys, and the rule based operation filter.
package spec

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Document is a resolved OpenAPI document. It is not modified after it has
// been built.
type Document struct {
	API        *openapi3.T
	Extensions DocumentExtensions
	// Operations lists every operation in declaration order.
	Operations []*Operation
}

// Operation is one path and method pair of a Document.
type Operation struct {
	Path   string
	Method string // upper case
	Op     *openapi3.Operation
	// PathItem is the item the operation belongs to; its parameters apply to
	// the operation as well.
	PathItem   *openapi3.PathItem
	Extensions OperationExtensions
}

// OperationID returns the operation's id, or an empty string.
func (o *Operation) OperationID() string {
	if o.Op == nil {
		return ""
	}
	return o.Op.OperationID
}

// Tags returns the operation's tags.
func (o *Operation) Tags() []string {
	if o.Op == nil {
		return nil
	}
	return o.Op.Tags
}

// Parameters returns the path item parameters overridden by the operation's
// own parameters of the same name and location.
func (o *Operation) Parameters() openapi3.Parameters {
	var params openapi3.Parameters
	seen := make(map[string]int)
	add := func(ref *openapi3.ParameterRef) {
		if ref == nil || ref.Value == nil {
			return
		}
		key := ref.Value.In + "/" + ref.Value.Name
		if i, ok := seen[key]; ok {
			params[i] = ref
			return
		}
		seen[key] = len(params)
		params = append(params, ref)
	}
	if o.PathItem != nil {
		for _, ref := range o.PathItem.Parameters {
			add(ref)
		}
	}
	if o.Op != nil {
		for _, ref := range o.Op.Parameters {
			add(ref)
		}
	}
	return params
}

func (o *Operation) String() string {
	return o.Method + " " + o.Path
}

// methodOrder is the order of operation fields in an OpenAPI path item. It is
// used whenever the source text is not available.
var methodOrder = []string{"GET", "PUT", "POST", "DELETE", "OPTIONS", "HEAD", "PATCH", "TRACE", "CONNECT"}

func isMethod(m string) bool {
	for _, known := range methodOrder {
		if known == m {
			return true
		}
	}
	return false
}

type options struct {
	validate bool
}

// Option configures Parse.
type Option func(*options)

// WithValidation makes Parse run the OpenAPI validator on the loaded
// document.
func WithValidation(validate bool) Option {
	return func(o *options) { o.validate = validate }
}

// rawDocument is the part of the source text decoded directly with yaml.v3:
// the extension keys, and the paths as a node so their order is known.
type rawDocument struct {
	DocumentExtensions `yaml:",inline"`
	Paths              yaml.Node `yaml:"paths"`
}

// Parse builds a Document from JSON or YAML text. Paths and methods keep the
// order in which they appear in data.
func Parse(ctx context.Context, data []byte, opts ...Option) (*Document, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	api, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	if o.validate {
		if err := api.Validate(ctx); err != nil {
			return nil, fmt.Errorf("OpenAPI document validation failed: %w", err)
		}
	}

	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode document extensions: %w", err)
	}

	doc := &Document{API: api, Extensions: raw.DocumentExtensions}
	ops, err := operationsFromNode(api, &raw.Paths)
	if err != nil {
		return nil, err
	}
	doc.Operations = ops
	return doc, nil
}

// New builds a Document from an already loaded OpenAPI tree. Without the
// source text, paths are visited in sorted order and methods in path item
// field order.
func New(api *openapi3.T) (*Document, error) {
	if api == nil {
		return nil, fmt.Errorf("nil OpenAPI document")
	}
	doc := &Document{API: api}
	if err := decodeExtensions(api.Extensions, &doc.Extensions); err != nil {
		return nil, err
	}
	if api.Paths == nil {
		return doc, nil
	}
	paths := make([]string, 0, api.Paths.Len())
	for path := range api.Paths.Map() {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		item := api.Paths.Value(path)
		if item == nil {
			continue
		}
		for _, method := range methodOrder {
			op, err := newOperation(path, method, item)
			if err != nil {
				return nil, err
			}
			if op != nil {
				doc.Operations = append(doc.Operations, op)
			}
		}
	}
	return doc, nil
}

func newOperation(path, method string, item *openapi3.PathItem) (*Operation, error) {
	o := item.GetOperation(method)
	if o == nil {
		return nil, nil
	}
	op := &Operation{Path: path, Method: method, Op: o, PathItem: item}
	if err := decodeExtensions(o.Extensions, &op.Extensions); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return op, nil
}

// operationsFromNode walks the paths mapping of the source text. Path items
// the walk cannot see into (for example $ref items) fall back to the loaded
// tree.
func operationsFromNode(api *openapi3.T, paths *yaml.Node) ([]*Operation, error) {
	if api.Paths == nil {
		return nil, nil
	}
	var ops []*Operation
	visited := make(map[string]bool)

	if paths.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(paths.Content); i += 2 {
			path := paths.Content[i].Value
			item := api.Paths.Value(path)
			if item == nil {
				continue
			}
			itemNode := paths.Content[i+1]
			if itemNode.Kind != yaml.MappingNode {
				continue
			}
			for j := 0; j+1 < len(itemNode.Content); j += 2 {
				method := strings.ToUpper(itemNode.Content[j].Value)
				if !isMethod(method) {
					continue
				}
				o := item.GetOperation(method)
				if o == nil {
					continue
				}
				op := &Operation{Path: path, Method: method, Op: o, PathItem: item}
				if err := itemNode.Content[j+1].Decode(&op.Extensions); err != nil {
					return nil, fmt.Errorf("%s %s: failed to decode operation extensions: %w", method, path, err)
				}
				ops = append(ops, op)
				visited[method+" "+path] = true
			}
		}
	}

	rest, err := New(&openapi3.T{Paths: api.Paths})
	if err != nil {
		return nil, err
	}
	for _, op := range rest.Operations {
		if !visited[op.String()] {
			ops = append(ops, op)
		}
	}
	return ops, nil
}
