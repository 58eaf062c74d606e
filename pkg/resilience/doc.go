// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

// Package resilience provides retries with exponential backoff and per attempt
// timeouts for upstream calls.
package resilience
