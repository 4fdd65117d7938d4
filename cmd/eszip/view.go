// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newViewCmd() *cobra.Command {
	var specifier string
	var showSourceMap bool

	cmd := &cobra.Command{
		Use:     "view <archive>",
		Aliases: []string{"v"},
		Short:   "View contents of an eszip archive",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(args[0], specifier, showSourceMap)
		},
	}
	cmd.Flags().StringVarP(&specifier, "specifier", "s", "", "Show only this specifier")
	cmd.Flags().BoolVarP(&showSourceMap, "source-map", "m", false, "Show source maps")
	return cmd
}

func runView(archivePath, specifier string, showSourceMap bool) error {
	ctx := context.Background()

	archive, err := loadArchive(ctx, archivePath)
	if err != nil {
		return err
	}

	for _, spec := range archive.Specifiers() {
		if specifier != "" && spec != specifier {
			continue
		}

		module := archive.GetModule(spec)
		if module == nil {
			// Might be a redirect-only or npm specifier.
			continue
		}

		fmt.Printf("Specifier: %s\n", spec)
		fmt.Printf("Kind: %s\n", module.Kind)
		fmt.Println("---")

		source, err := module.Source(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting source: %v\n", err)
			continue
		}

		if source != nil {
			fmt.Println(string(source))
		} else {
			fmt.Println("(source taken)")
		}

		if showSourceMap {
			sourceMap, err := module.SourceMap(ctx)
			if err == nil && len(sourceMap) > 0 {
				fmt.Println("--- Source Map ---")
				fmt.Println(string(sourceMap))
			}
		}

		fmt.Println("============")
	}
	return nil
}
