// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package appconsts

const (
	// Name is the name of the bridge. This is used in help messages, as the
	// MCP implementation name and as the environment variable prefix.
	Name = "openapi-bridge"
)

// Version is the version of the bridge. This is a variable so it can be
// set at build time using ldflags. The default value is "dev", which is used
// for local development builds.
var Version = "dev"
