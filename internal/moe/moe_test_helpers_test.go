// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package moe

import "fmt"

// testCatalog loads the embedded default catalog, the same data every
// production Router uses, so tests exercise real expert/tool shapes
// instead of a hand-rolled miniature catalog.
func testCatalog() *Catalog {
	cat, err := LoadCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("testCatalog: %v", err))
	}
	return cat
}

// testProvider builds a StaticSchemaProvider describing every tool in cat
// (shared tools plus every expert's domain tools), with a synthetic but
// realistic schema so Full/Half/Quarter rendering all produce distinct,
// non-empty text.
func testProvider(cat *Catalog) StaticSchemaProvider {
	p := make(StaticSchemaProvider)
	add := func(name string) {
		if _, ok := p[name]; ok {
			return
		}
		p[name] = ToolSchema{
			Name:        name,
			Description: fmt.Sprintf("Performs the %s operation. Returns a structured result describing the outcome.", name),
			Summary:     fmt.Sprintf("%s: short-form tool summary", name),
			Parameters: []ParamField{
				{Name: "target", Type: "string", Description: "the target of the operation", Examples: []string{"example"}},
				{Name: "mode", Type: "string", Description: "operating mode", Enum: []string{"fast", "thorough"}},
			},
		}
	}
	for _, t := range cat.SharedTools() {
		add(t)
	}
	for _, e := range cat.AllExperts() {
		for _, t := range e.DomainTools {
			add(t)
		}
	}
	return p
}
