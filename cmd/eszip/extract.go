// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	eszip "github.com/eszip-go/eszip"
	"github.com/spf13/cobra"
)

func newExtractCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:     "extract [archive]",
		Aliases: []string{"x"},
		Short:   "Extract files from an eszip archive",
		Long: `Extract files from an eszip archive.
If no archive path is given (or "-" is specified), reads from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archivePath := ""
			if len(args) > 0 {
				archivePath = args[0]
			}
			return runExtract(archivePath, outputDir)
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Output directory")
	return cmd
}

func runExtract(archivePath, outputDir string) error {
	ctx := context.Background()

	var archive *eszip.EszipUnion
	var err error
	if archivePath == "" || archivePath == "-" {
		archive, err = loadArchiveFromReader(ctx, os.Stdin)
	} else {
		archive, err = loadArchive(ctx, archivePath)
	}
	if err != nil {
		return err
	}

	for _, spec := range archive.Specifiers() {
		module := archive.GetModule(spec)
		if module == nil {
			continue
		}

		if strings.HasPrefix(spec, "data:") {
			continue
		}

		source, err := module.Source(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting source for %s: %v\n", spec, err)
			continue
		}
		if source == nil {
			continue
		}

		fullPath := filepath.Join(outputDir, specifierToPath(spec))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
			continue
		}
		if err := os.WriteFile(fullPath, source, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			continue
		}
		fmt.Printf("Extracted: %s\n", fullPath)

		sourceMap, err := module.SourceMap(ctx)
		if err == nil && len(sourceMap) > 0 {
			mapPath := fullPath + ".map"
			if err := os.WriteFile(mapPath, sourceMap, 0644); err == nil {
				fmt.Printf("Extracted: %s\n", mapPath)
			}
		}
	}
	return nil
}
