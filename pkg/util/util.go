// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

// Package util holds small helpers shared across the bridge packages.
package util //nolint:revive,nolintlint // Package name 'util' is common in this codebase

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// JSON is the encoder used for request bodies, response decoding and deep
// copies. It is wire compatible with encoding/json.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// GenerateUUID creates a new version 4 UUID and returns it as a string.
func GenerateUUID() string {
	return uuid.New().String()
}

// IsNil reports whether i is nil or a typed nil pointer, map, slice, channel
// or function.
func IsNil(i any) bool {
	if i == nil {
		return true
	}
	switch reflect.TypeOf(i).Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Slice, reflect.Func, reflect.UnsafePointer:
		return reflect.ValueOf(i).IsNil()
	}
	return false
}

// ToString converts a value to a string representation efficiently.
// Scalars are formatted without reflection; maps and slices are JSON encoded so
// the result can be embedded in URLs or environment variables.
func ToString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(val)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return formatFloat(float64(val), 32)
	case float64:
		return formatFloat(val, 64)
	case fmt.Stringer:
		return val.String()
	case map[string]any, []any:
		b, err := JSON.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		if b, err := JSON.Marshal(val); err == nil && len(b) > 0 && (b[0] == '{' || b[0] == '[') {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(val float64, bitSize int) string {
	// Integral values inside the int64 range print without an exponent.
	if math.Trunc(val) == val && val >= float64(math.MinInt64) && val < float64(math.MaxInt64) {
		return strconv.FormatInt(int64(val), 10)
	}
	return strconv.FormatFloat(val, 'g', -1, bitSize)
}
