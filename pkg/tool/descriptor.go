// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/mcpany/openapi-bridge/pkg/spec"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// SensitiveSentinel stands in for the schema of a sensitive parameter. The
// real value is kept server side in Descriptor.SensitiveOverrides.
const SensitiveSentinel = "*SENSITIVE*"

// Top level properties of every tool input schema.
const (
	PathParamsKey  = "pathParams"
	InputParamsKey = "inputParams"
)

// Descriptor is the callable form of one OpenAPI operation. Descriptors are
// built once and never modified afterwards.
type Descriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Method      string             `json:"method"`
	Path        string             `json:"path"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
	// ResponseSchema maps a status code to the JSON schema of its body. It is
	// informational and never enforced.
	ResponseSchema map[string]*jsonschema.Schema `json:"responseSchema,omitempty"`
	// PathParams lists the path template placeholders in order.
	PathParams []string `json:"-"`

	// SensitiveOverrides holds the literal values of sensitive input
	// parameters. It is never serialized.
	SensitiveOverrides map[string]any  `json:"-"`
	Operation          *spec.Operation `json:"-"`
}

// Params is a parameter object that keeps the order its members were given
// in. Members are resolved in that order.
type Params = orderedmap.OrderedMap[string, any]

// NewParams returns an empty Params.
func NewParams() *Params {
	return orderedmap.New[string, any]()
}

// Arguments is the input of a tool call.
type Arguments struct {
	PathParams  *Params `json:"pathParams,omitempty"`
	InputParams *Params `json:"inputParams,omitempty"`
}
