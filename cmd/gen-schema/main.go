// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

// Command gen-schema writes the API request body JSON Schemas to
// schemas/api/.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/whiskeytracker/whiskeytracker/internal/api"
)

func main() {
	outDir := filepath.Join("schemas", "api")
	if len(os.Args) > 1 {
		outDir = os.Args[1]
	}

	if err := os.MkdirAll(outDir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	for _, name := range api.SchemaNames() {
		if err := writeSchema(outDir, name); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating %s schema: %v\n", name, err)
			os.Exit(1)
		}
	}
}

func writeSchema(dir, name string) error {
	schema, err := api.GenerateSchema(name)
	if err != nil {
		return err
	}
	outPath := filepath.Join(dir, name+".schema.json")
	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		return err
	}
	fmt.Printf("Generated %s\n", outPath)
	return nil
}
