// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package spec

import (
	"context"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
openapi: 3.0.3
info:
  title: Sample
  version: "1.0"
servers:
  - url: https://api.example.com/v1
x-tool-name-format: "{operationId}"
x-tool-name-prefix: "svc_"
x-request-config:
  baseUrl: https://override.example.com
  timeout: 1500
  retries: 2
  proxy:
    url: https://proxy.example.com/forward
  headers:
    X-Zeta: z
    Authorization: "Bearer {TOKEN}"
    X-Alpha: a
  auth:
    TC3HMAC:
      secretId: "{SECRET_ID}"
      secretKey: key
      region: ap-shanghai
x-response-config:
  maxLength: 100
  excludeResponseKeys: [internal]
paths:
  /zoo/{id}:
    post:
      operationId: createZoo
      x-sensitive-params:
        apiKey: s3cr3t
      x-remap-path-to-header: [X-Zone]
      responses:
        "200":
          description: ok
    get:
      operationId: getZoo
      tags: [zoo]
      x-custom-base-url: https://zoo.example.com
      x-include-response-keys: [name, owner.id]
      x-examples:
        - id: 1
      responses:
        "200":
          description: ok
  /animals:
    get:
      operationId: listAnimals
      responses:
        "200":
          description: ok
`

func TestParse_OperationOrder(t *testing.T) {
	doc, err := Parse(context.Background(), []byte(sampleYAML))
	require.NoError(t, err)

	var keys []string
	for _, op := range doc.Operations {
		keys = append(keys, op.String())
	}
	assert.Equal(t, []string{"POST /zoo/{id}", "GET /zoo/{id}", "GET /animals"}, keys)
	assert.Equal(t, "createZoo", doc.Operations[0].OperationID())
	assert.Equal(t, []string{"zoo"}, doc.Operations[1].Tags())
}

func TestParse_DocumentExtensions(t *testing.T) {
	doc, err := Parse(context.Background(), []byte(sampleYAML))
	require.NoError(t, err)

	ext := doc.Extensions
	assert.Equal(t, "{operationId}", ext.ToolNameFormat)
	assert.Equal(t, "svc_", ext.ToolNamePrefix)
	assert.Equal(t, "https://override.example.com", ext.RequestConfig.BaseURL)
	assert.Equal(t, 1500*time.Millisecond, ext.RequestConfig.EffectiveTimeout())
	assert.Equal(t, 2, ext.RequestConfig.Retries)
	require.NotNil(t, ext.RequestConfig.Proxy)
	assert.Equal(t, "url", ext.RequestConfig.Proxy.ParamName())
	assert.Equal(t, 100, ext.ResponseConfig.MaxLength)
	assert.Equal(t, []string{"internal"}, ext.ResponseConfig.ExcludeResponseKeys)

	var headerKeys []string
	for pair := ext.RequestConfig.Headers.Oldest(); pair != nil; pair = pair.Next() {
		headerKeys = append(headerKeys, pair.Key)
	}
	assert.Equal(t, []string{"X-Zeta", "Authorization", "X-Alpha"}, headerKeys)

	creds, ok := ext.RequestConfig.Auth["TC3HMAC"]
	require.True(t, ok)
	assert.Equal(t, "{SECRET_ID}", creds.SecretID)
	assert.Equal(t, "ap-shanghai", creds.Region)
}

func TestParse_OperationExtensions(t *testing.T) {
	doc, err := Parse(context.Background(), []byte(sampleYAML))
	require.NoError(t, err)

	post := doc.Operations[0].Extensions
	assert.Equal(t, map[string]any{"apiKey": "s3cr3t"}, post.SensitiveParams)
	assert.Equal(t, []string{"X-Zone"}, post.RemapPathToHeader)

	get := doc.Operations[1].Extensions
	assert.Equal(t, "https://zoo.example.com", get.CustomBaseURL)
	assert.Equal(t, []string{"name", "owner.id"}, get.IncludeResponseKeys)
	assert.Equal(t, []any{map[string]any{"id": 1}}, get.Examples)
}

func TestParse_JSON(t *testing.T) {
	data := `{
  "openapi": "3.0.0",
  "info": {"title": "J", "version": "1"},
  "x-request-config": {"timeout": "2s"},
  "paths": {
    "/b": {"delete": {"responses": {"204": {"description": "gone"}}}},
    "/a": {"put": {"x-custom-base-url": "http://a", "responses": {"200": {"description": "ok"}}}}
  }
}`
	doc, err := Parse(context.Background(), []byte(data))
	require.NoError(t, err)
	require.Len(t, doc.Operations, 2)
	assert.Equal(t, "DELETE /b", doc.Operations[0].String())
	assert.Equal(t, "PUT /a", doc.Operations[1].String())
	assert.Equal(t, "http://a", doc.Operations[1].Extensions.CustomBaseURL)
	assert.Equal(t, 2*time.Second, doc.Extensions.RequestConfig.EffectiveTimeout())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse(context.Background(), []byte("{not json"))
	assert.Error(t, err)

	_, err = Parse(context.Background(), []byte(`
openapi: 3.0.0
info: {title: t, version: "1"}
x-request-config:
  timeout: soon
paths: {}
`))
	assert.ErrorContains(t, err, "invalid timeout")
}

func TestParse_Validation(t *testing.T) {
	// Missing info.version.
	data := []byte(`
openapi: 3.0.0
info: {title: t}
paths: {}
`)
	_, err := Parse(context.Background(), data)
	require.NoError(t, err)
	_, err = Parse(context.Background(), data, WithValidation(true))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	api := &openapi3.T{
		OpenAPI: "3.0.0",
		Info:    &openapi3.Info{Title: "t", Version: "1"},
		Paths:   openapi3.NewPaths(),
		Extensions: map[string]any{
			ExtToolNameSuffix: "_v1",
			ExtResponseConfig: map[string]any{"maxLength": 10},
		},
	}
	api.Paths.Set("/b", &openapi3.PathItem{
		Post: &openapi3.Operation{OperationID: "postB"},
		Get:  &openapi3.Operation{OperationID: "getB", Extensions: map[string]any{ExtRemapPathToHeader: []any{"X-A"}}},
	})
	api.Paths.Set("/a", &openapi3.PathItem{Delete: &openapi3.Operation{OperationID: "deleteA"}})

	doc, err := New(api)
	require.NoError(t, err)
	assert.Equal(t, "_v1", doc.Extensions.ToolNameSuffix)
	assert.Equal(t, 10, doc.Extensions.ResponseConfig.MaxLength)

	var keys []string
	for _, op := range doc.Operations {
		keys = append(keys, op.String())
	}
	assert.Equal(t, []string{"DELETE /a", "GET /b", "POST /b"}, keys)
	assert.Equal(t, []string{"X-A"}, doc.Operations[1].Extensions.RemapPathToHeader)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestOperation_Parameters(t *testing.T) {
	item := &openapi3.PathItem{
		Parameters: openapi3.Parameters{
			{Value: openapi3.NewPathParameter("id")},
			{Value: openapi3.NewQueryParameter("q").WithDescription("item level")},
		},
	}
	op := &Operation{
		PathItem: item,
		Op: &openapi3.Operation{Parameters: openapi3.Parameters{
			{Value: openapi3.NewQueryParameter("q").WithDescription("operation level")},
			{Value: openapi3.NewQueryParameter("limit")},
		}},
	}
	params := op.Parameters()
	require.Len(t, params, 3)
	assert.Equal(t, "id", params[0].Value.Name)
	assert.Equal(t, "operation level", params[1].Value.Description)
	assert.Equal(t, "limit", params[2].Value.Name)
}

func TestDuration(t *testing.T) {
	var rc RequestConfig
	assert.Equal(t, DefaultTimeout, rc.EffectiveTimeout())
	var p *Proxy
	assert.Equal(t, DefaultProxyParam, p.ParamName())
	assert.Equal(t, "target", (&Proxy{Param: "target"}).ParamName())
}
