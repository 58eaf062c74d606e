// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

// Package transformer shapes upstream response bodies before they are handed
// back to the caller.
package transformer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mcpany/openapi-bridge/pkg/util"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// SensitiveValue replaces the value of every sensitive response field.
const SensitiveValue = "*SENSITIVE*"

// Rules selects what survives of a response body. Keys are dot paths such as
// "owner.address.city".
type Rules struct {
	Include   []string
	Exclude   []string
	Sensitive []string
	// MaxLength caps the length of the serialized result; zero disables it.
	MaxLength int
}

func (r Rules) hasKeyRules() bool {
	return len(r.Include) > 0 || len(r.Exclude) > 0 || len(r.Sensitive) > 0
}

// Truncated is returned instead of a body whose serialized form is longer than
// Rules.MaxLength.
type Truncated struct {
	Message        string `json:"message"`
	OriginalLength int    `json:"originalLength"`
	MaxLength      int    `json:"maxLength"`
	TruncatedData  string `json:"truncatedData"`
}

// Apply shapes data according to rules. A top level array is shaped item by
// item. Missing paths are ignored.
func Apply(data any, rules Rules) (any, error) {
	out := data
	if rules.hasKeyRules() {
		var err error
		if items, ok := data.([]any); ok {
			shaped := make([]any, len(items))
			for i, item := range items {
				if shaped[i], err = shapeItem(item, rules); err != nil {
					return nil, fmt.Errorf("item %d: %w", i, err)
				}
			}
			out = shaped
		} else if out, err = shapeItem(data, rules); err != nil {
			return nil, err
		}
	}
	if rules.MaxLength > 0 {
		return truncate(out, rules.MaxLength)
	}
	return out, nil
}

func shapeItem(item any, rules Rules) (any, error) {
	src, err := util.JSON.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response item: %w", err)
	}

	doc := string(src)
	if len(rules.Include) > 0 {
		if doc, err = include(src, rules.Include); err != nil {
			return nil, err
		}
	}
	for _, key := range rules.Exclude {
		if doc, err = exclude(doc, key); err != nil {
			return nil, err
		}
	}
	for _, key := range rules.Sensitive {
		p := toPath(key)
		if !gjson.Get(doc, p).Exists() {
			continue
		}
		if doc, err = sjson.Set(doc, p, SensitiveValue); err != nil {
			return nil, fmt.Errorf("failed to redact %q: %w", key, err)
		}
	}

	var out any
	if err := util.JSON.UnmarshalFromString(doc, &out); err != nil {
		return nil, fmt.Errorf("failed to decode shaped response item: %w", err)
	}
	return out, nil
}

// include copies the values found at keys into a new object.
func include(src []byte, keys []string) (string, error) {
	doc := "{}"
	for _, key := range keys {
		p := toPath(key)
		res := gjson.GetBytes(src, p)
		if !res.Exists() {
			continue
		}
		var err error
		if doc, err = sjson.SetRaw(doc, p, res.Raw); err != nil {
			return "", fmt.Errorf("failed to include %q: %w", key, err)
		}
	}
	return doc, nil
}

// exclude deletes key when its parent resolves to an object.
func exclude(doc, key string) (string, error) {
	parts := strings.Split(key, ".")
	parent := gjson.Parse(doc)
	if len(parts) > 1 {
		parent = gjson.Get(doc, toPath(strings.Join(parts[:len(parts)-1], ".")))
	}
	if !parent.IsObject() || !parent.Get(gjson.Escape(parts[len(parts)-1])).Exists() {
		return doc, nil
	}
	out, err := sjson.Delete(doc, toPath(key))
	if err != nil {
		return "", fmt.Errorf("failed to exclude %q: %w", key, err)
	}
	return out, nil
}

// toPath turns a dot path into a gjson/sjson path, escaping every component
// so that characters such as '*' or '#' are taken literally.
func toPath(key string) string {
	parts := strings.Split(key, ".")
	for i, part := range parts {
		parts[i] = gjson.Escape(part)
	}
	return strings.Join(parts, ".")
}

func truncate(data any, maxLength int) (any, error) {
	serialized, err := util.JSON.MarshalToString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	length := utf8.RuneCountInString(serialized)
	if length <= maxLength {
		return data, nil
	}
	return &Truncated{
		Message:        fmt.Sprintf("Response truncated: length %d exceeds the maximum of %d", length, maxLength),
		OriginalLength: length,
		MaxLength:      maxLength,
		TruncatedData:  string([]rune(serialized)[:maxLength]),
	}, nil
}
