// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package spec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mcpany/openapi-bridge/pkg/auth"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Extension keys recognised on the document and on operations.
const (
	ExtFilterRules       = "x-filter-rules"
	ExtRequestConfig     = "x-request-config"
	ExtResponseConfig    = "x-response-config"
	ExtToolNameFormat    = "x-tool-name-format"
	ExtToolNamePrefix    = "x-tool-name-prefix"
	ExtToolNameSuffix    = "x-tool-name-suffix"
	ExtExamples          = "x-examples"
	ExtRemapPathToHeader = "x-remap-path-to-header"
	ExtCustomBaseURL     = "x-custom-base-url"
	ExtSensitiveParams   = "x-sensitive-params"
	ExtSensitiveFields   = "x-sensitive-response-fields"
	ExtIncludeKeys       = "x-include-response-keys"
	ExtExcludeKeys       = "x-exclude-response-keys"
)

const (
	// DefaultTimeout applies when x-request-config.timeout is not set.
	DefaultTimeout = 30 * time.Second
	// DefaultProxyParam is the query parameter carrying the target URL.
	DefaultProxyParam = "url"
)

// DocumentExtensions are the custom top-level keys of a document.
type DocumentExtensions struct {
	FilterRules    []FilterRule   `yaml:"x-filter-rules"`
	RequestConfig  RequestConfig  `yaml:"x-request-config"`
	ResponseConfig ResponseConfig `yaml:"x-response-config"`
	ToolNameFormat string         `yaml:"x-tool-name-format"`
	ToolNamePrefix string         `yaml:"x-tool-name-prefix"`
	ToolNameSuffix string         `yaml:"x-tool-name-suffix"`
}

// FilterRule selects operations. Every populated field must match; the first
// matching rule decides whether the operation is kept.
type FilterRule struct {
	Path        string   `yaml:"path"`
	Method      string   `yaml:"method"`
	OperationID string   `yaml:"operationId"`
	Tags        []string `yaml:"tags"`
	Exclude     bool     `yaml:"exclude"`
}

// RequestConfig holds the defaults applied to every outgoing request.
type RequestConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Proxy   *Proxy `yaml:"proxy"`
	// Headers keeps declaration order; later headers may refer to earlier ones.
	Headers *orderedmap.OrderedMap[string, any] `yaml:"headers"`
	Timeout Duration                            `yaml:"timeout"`
	Retries int                                 `yaml:"retries"`
	// Auth maps a security scheme name to its credentials.
	Auth map[string]auth.Credentials `yaml:"auth"`
}

// EffectiveTimeout returns the configured timeout or DefaultTimeout.
func (c RequestConfig) EffectiveTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.Timeout)
}

// Proxy routes requests through another endpoint, passing the real target as a
// query parameter.
type Proxy struct {
	URL   string `yaml:"url"`
	Param string `yaml:"param"`
}

// ParamName returns the query parameter name, defaulting to DefaultProxyParam.
func (p *Proxy) ParamName() string {
	if p == nil || p.Param == "" {
		return DefaultProxyParam
	}
	return p.Param
}

// ResponseConfig is the document-wide response shaping.
type ResponseConfig struct {
	MaxLength               int      `yaml:"maxLength"`
	IncludeResponseKeys     []string `yaml:"includeResponseKeys"`
	ExcludeResponseKeys     []string `yaml:"excludeResponseKeys"`
	SensitiveResponseFields []string `yaml:"sensitiveResponseFields"`
}

// OperationExtensions are the custom keys of a single operation.
type OperationExtensions struct {
	Examples                any            `yaml:"x-examples"`
	RemapPathToHeader       []string       `yaml:"x-remap-path-to-header"`
	CustomBaseURL           string         `yaml:"x-custom-base-url"`
	SensitiveParams         map[string]any `yaml:"x-sensitive-params"`
	SensitiveResponseFields []string       `yaml:"x-sensitive-response-fields"`
	IncludeResponseKeys     []string       `yaml:"x-include-response-keys"`
	ExcludeResponseKeys     []string       `yaml:"x-exclude-response-keys"`
}

// Duration accepts either a number of milliseconds or a Go duration string.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("timeout must be a number or a duration string, got %v", node.Tag)
	}
	if node.Tag == "!!null" {
		*d = 0
		return nil
	}
	value := strings.TrimSpace(node.Value)
	if ms, err := strconv.ParseFloat(value, 64); err == nil {
		*d = Duration(ms * float64(time.Millisecond))
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler. Durations are written as
// milliseconds.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).Milliseconds(), nil
}

// decodeExtensions decodes a kin-openapi extension map into one of the
// extension structs above.
func decodeExtensions(ext map[string]any, out any) error {
	if len(ext) == 0 {
		return nil
	}
	data, err := yaml.Marshal(ext)
	if err != nil {
		return fmt.Errorf("failed to encode extensions: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode extensions: %w", err)
	}
	return nil
}
