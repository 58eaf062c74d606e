// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package spec

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mcpany/openapi-bridge/pkg/logging"
	"github.com/samber/lo"
)

// patternTimeout bounds a single rule match.
const patternTimeout = time.Second

// InvalidRuleError reports a filter rule whose pattern does not compile.
type InvalidRuleError struct {
	Index int
	Field string
	Err   error
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("filter rule %d: invalid %s pattern: %v", e.Index, e.Field, e.Err)
}

func (e *InvalidRuleError) Unwrap() error {
	return e.Err
}

type compiledRule struct {
	path, method, operationID *regexp2.Regexp
	tags                      []string
	exclude                   bool
}

func compilePattern(index int, field, pattern string, opts regexp2.RegexOptions) (*regexp2.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp2.Compile(pattern, opts|regexp2.ECMAScript)
	if err != nil {
		return nil, &InvalidRuleError{Index: index, Field: field, Err: err}
	}
	re.MatchTimeout = patternTimeout
	return re, nil
}

func compileRules(rules []FilterRule) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, rule := range rules {
		var (
			c   = compiledRule{tags: rule.Tags, exclude: rule.Exclude}
			err error
		)
		if c.path, err = compilePattern(i, "path", rule.Path, regexp2.None); err != nil {
			return nil, err
		}
		if c.method, err = compilePattern(i, "method", rule.Method, regexp2.IgnoreCase); err != nil {
			return nil, err
		}
		if c.operationID, err = compilePattern(i, "operationId", rule.OperationID, regexp2.None); err != nil {
			return nil, err
		}
		compiled = append(compiled, c)
	}
	return compiled, nil
}

func matchPattern(re *regexp2.Regexp, s string) bool {
	if re == nil {
		return true
	}
	ok, err := re.MatchString(s)
	if err != nil {
		logging.GetLogger().Warn("Filter pattern match failed", "pattern", re.String(), "error", err)
		return false
	}
	return ok
}

func (r compiledRule) matches(op *Operation) bool {
	if !matchPattern(r.path, op.Path) || !matchPattern(r.method, op.Method) || !matchPattern(r.operationID, op.OperationID()) {
		return false
	}
	if len(r.tags) > 0 && len(lo.Intersect(r.tags, op.Tags())) == 0 {
		return false
	}
	return true
}

// included reports whether the first matching rule keeps op. An operation no
// rule matches is dropped.
func included(rules []compiledRule, op *Operation) bool {
	for _, rule := range rules {
		if rule.matches(op) {
			return !rule.exclude
		}
	}
	return false
}

// Filter applies the document's filter rules and returns a document holding
// only the kept operations. Without rules the document itself is returned.
// The input document and the OpenAPI objects it shares with the result are
// left untouched.
func Filter(doc *Document) (*Document, error) {
	if len(doc.Extensions.FilterRules) == 0 {
		return doc, nil
	}
	rules, err := compileRules(doc.Extensions.FilterRules)
	if err != nil {
		return nil, err
	}

	kept := lo.Filter(doc.Operations, func(op *Operation, _ int) bool {
		return included(rules, op)
	})
	logging.GetLogger().Debug("Applied filter rules", "rules", len(rules), "operations", len(doc.Operations), "kept", len(kept))

	return &Document{
		API:        filteredAPI(doc.API, kept),
		Extensions: doc.Extensions,
		Operations: kept,
	}, nil
}

// filteredAPI returns a shallow copy of api whose paths only carry the kept
// operations. Path items are copied, operations are shared.
func filteredAPI(api *openapi3.T, kept []*Operation) *openapi3.T {
	if api == nil {
		return nil
	}
	out := *api
	out.Paths = openapi3.NewPathsWithCapacity(len(kept))

	items := make(map[string]*openapi3.PathItem)
	for _, op := range kept {
		item, ok := items[op.Path]
		if !ok {
			src := op.PathItem
			if src == nil && api.Paths != nil {
				src = api.Paths.Value(op.Path)
			}
			item = &openapi3.PathItem{}
			if src != nil {
				item.Extensions = src.Extensions
				item.Ref = src.Ref
				item.Summary = src.Summary
				item.Description = src.Description
				item.Servers = src.Servers
				item.Parameters = src.Parameters
			}
			items[op.Path] = item
			out.Paths.Set(op.Path, item)
		}
		item.SetOperation(op.Method, op.Op)
	}
	return &out
}
