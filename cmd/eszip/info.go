// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package main

import (
	"context"
	"fmt"
	"os"

	eszip "github.com/eszip-go/eszip"
	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "info <archive>",
		Aliases: []string{"i"},
		Short:   "Show information about an eszip archive",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}
	return cmd
}

func runInfo(archivePath string) error {
	ctx := context.Background()

	stat, err := os.Stat(archivePath)
	if err != nil {
		return err
	}

	archive, err := loadArchive(ctx, archivePath)
	if err != nil {
		return err
	}

	specifiers := archive.Specifiers()

	fmt.Printf("File: %s\n", archivePath)
	fmt.Printf("Size: %d bytes\n", stat.Size())

	if archive.IsV1() {
		fmt.Println("Format: V1 (JSON)")
	} else {
		fmt.Println("Format: V2 (binary)")
	}

	fmt.Printf("Modules: %d\n", len(specifiers))

	kindCounts := make(map[eszip.ModuleKind]int)
	redirectCount := 0
	totalSourceSize := 0

	for _, spec := range specifiers {
		module := archive.GetModule(spec)
		if module == nil {
			redirectCount++
			continue
		}
		kindCounts[module.Kind]++

		source, _ := module.Source(ctx)
		totalSourceSize += len(source)
	}

	fmt.Println("\nModule types:")
	for kind, count := range kindCounts {
		fmt.Printf("  %s: %d\n", kind, count)
	}
	if redirectCount > 0 {
		fmt.Printf("  redirects: %d\n", redirectCount)
	}

	fmt.Printf("\nTotal source size: %d bytes\n", totalSourceSize)

	if archive.IsV2() {
		snapshot := archive.TakeNpmSnapshot()
		if snapshot != nil {
			fmt.Printf("\nNPM packages: %d\n", len(snapshot.Packages))
			fmt.Printf("NPM root packages: %d\n", len(snapshot.RootPackages))
		}
	}
	return nil
}
