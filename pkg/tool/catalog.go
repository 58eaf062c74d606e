// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"fmt"
)

// Catalog is an ordered, name indexed set of tool descriptors.
type Catalog struct {
	tools []*Descriptor
	index map[string]*Descriptor
}

// NewCatalog indexes tools by name. Names must be unique.
func NewCatalog(tools []*Descriptor) (*Catalog, error) {
	c := &Catalog{
		tools: make([]*Descriptor, 0, len(tools)),
		index: make(map[string]*Descriptor, len(tools)),
	}
	for _, d := range tools {
		if _, exists := c.index[d.Name]; exists {
			return nil, fmt.Errorf("duplicate tool name %q", d.Name)
		}
		c.index[d.Name] = d
		c.tools = append(c.tools, d)
	}
	return c, nil
}

// Get returns the tool called name, or ErrToolNotFound.
func (c *Catalog) Get(name string) (*Descriptor, error) {
	d, ok := c.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return d, nil
}

// List returns the tools in translation order.
func (c *Catalog) List() []*Descriptor {
	out := make([]*Descriptor, len(c.tools))
	copy(out, c.tools)
	return out
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	return len(c.tools)
}
