// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

// eszip is a CLI tool for working with eszip archives.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "eszip",
		Short:         "A tool for working with eszip archives",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Help()
			return fmt.Errorf("no command specified")
		},
	}
	root.AddCommand(newViewCmd())
	root.AddCommand(newExtractCmd())
	root.AddCommand(newCreateCmd())
	root.AddCommand(newInfoCmd())
	return root
}
