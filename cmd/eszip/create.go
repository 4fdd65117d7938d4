// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	eszip "github.com/eszip-go/eszip"
	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	var outputPath string
	var checksum string

	cmd := &cobra.Command{
		Use:     "create <files...>",
		Aliases: []string{"c"},
		Short:   "Create a new eszip archive from files",
		Long: `Create a new eszip archive from files.

Examples:
  eszip create -o app.eszip2 main.js utils.js
  eszip create --checksum none -o app.eszip2 *.js`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args, outputPath, checksum)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "output.eszip2", "Output file path")
	cmd.Flags().StringVar(&checksum, "checksum", "sha256", "Checksum algorithm (none, sha256, xxhash3)")
	return cmd
}

func runCreate(files []string, outputPath, checksum string) error {
	archive := eszip.NewV2()

	switch checksum {
	case "none":
		archive.SetChecksum(eszip.ChecksumNone)
	case "sha256":
		archive.SetChecksum(eszip.ChecksumSha256)
	case "xxhash3":
		archive.SetChecksum(eszip.ChecksumXxh3)
	default:
		return fmt.Errorf("unknown checksum: %s", checksum)
	}

	for _, filePath := range files {
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			return fmt.Errorf("resolving path %s: %w", filePath, err)
		}

		content, err := os.ReadFile(absPath)
		if err != nil {
			return fmt.Errorf("reading file %s: %w", filePath, err)
		}

		kind := eszip.ModuleKindJavaScript
		switch strings.ToLower(filepath.Ext(filePath)) {
		case ".json":
			kind = eszip.ModuleKindJson
		case ".wasm":
			kind = eszip.ModuleKindWasm
		}

		specifier := "file://" + absPath
		archive.AddModule(specifier, kind, content, nil)
		fmt.Printf("Added: %s\n", specifier)
	}

	data, err := archive.IntoBytes()
	if err != nil {
		return fmt.Errorf("serializing archive: %w", err)
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	fmt.Printf("Created: %s (%d bytes)\n", outputPath, len(data))
	return nil
}
