package cmd

import (
	"github.com/spf13/cobra"
)

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Commands to manage the packages of a repository",
	Long: `Commands to create packages, read their changelog and release them.

A package is a directory holding a manifest (Cargo.toml or package.json) and a CHANGELOG.md
in the Keep a Changelog format.`,
}

func init() {
	rootCmd.AddCommand(packageCmd)
}
