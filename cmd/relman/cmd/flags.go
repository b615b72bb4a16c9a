// Copyright © 2018 One Concern

package cmd

import (
	"strings"

	"github.com/oneconcern/relman/pkg/dlogger"
	"github.com/oneconcern/relman/pkg/manifest"
	"github.com/spf13/cobra"
)

const (
	backendFS     = "fs"
	backendGit    = "git"
	backendGitHub = "github"

	logLevelFlag = "loglevel"
	tokenFlag    = "token"
)

type paramsT struct {
	root struct {
		logLevel string
		noColor  bool
	}
	backend struct {
		kind  string
		dir   string
		repo  string
		ref   string
		token string
	}
	inspect struct {
		output string
		stats  bool
	}
	pkg struct {
		kind        string
		name        string
		description string
		path        string
		version     string
	}
	release struct {
		bump       string
		base       string
		dryRun     bool
		dispatch   bool
		allowEmpty bool
	}
}

var params = paramsT{}

func addLogLevelFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().StringVar(&params.root.logLevel, logLevelFlag, dlogger.LogLevelInfo,
		"The logging level. Levels by increasing order of verbosity: none, error, warn, info, debug")
	return logLevelFlag
}

func addNoColorFlag(cmd *cobra.Command) string {
	noColor := "no-color"
	cmd.PersistentFlags().BoolVar(&params.root.noColor, noColor, false, "Disable colorized output")
	return noColor
}

func addBackendFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&params.backend.kind, "backend", backendGit,
		"The repository backend: "+strings.Join([]string{backendFS, backendGit, backendGitHub}, ", "))
	flags.StringVar(&params.backend.dir, "dir", ".", "The local directory of the repository, with the fs and git backends")
	flags.StringVar(&params.backend.repo, "repo", "", "The full name of a GitHub repository (owner/name), with the github backend")
	flags.StringVar(&params.backend.ref, "ref", "", "The revision to inspect. Defaults to the head of the default branch")
	flags.StringVar(&params.backend.token, tokenFlag, "", "A GitHub API token. Prefer the RELMAN_GITHUB_TOKEN environment variable")
}

func addOutputFlag(cmd *cobra.Command) string {
	output := "output"
	cmd.Flags().StringVarP(&params.inspect.output, output, "o", "table", "Output format: table or yaml")
	return output
}

func addStatsFlag(cmd *cobra.Command) string {
	stats := "stats"
	cmd.Flags().BoolVar(&params.inspect.stats, stats, false, "Print statistics about file reads")
	return stats
}

func addKindFlag(cmd *cobra.Command) string {
	kind := "kind"
	names := make([]string, 0, len(manifest.Kinds()))
	for _, k := range manifest.Kinds() {
		names = append(names, string(k))
	}
	cmd.Flags().StringVar(&params.pkg.kind, kind, string(manifest.Cargo), "The kind of package: "+strings.Join(names, ", "))
	return kind
}

func addPackageNameFlag(cmd *cobra.Command) string {
	name := "name"
	cmd.Flags().StringVar(&params.pkg.name, name, "", "The name of the package")
	return name
}

func addDescriptionFlag(cmd *cobra.Command) string {
	description := "description"
	cmd.Flags().StringVar(&params.pkg.description, description, "", "A short description of the package")
	return description
}

func addPathFlag(cmd *cobra.Command) string {
	pth := "path"
	cmd.Flags().StringVar(&params.pkg.path, pth, ".", "The directory of the new package, relative to the repository root")
	return pth
}

func addVersionFlag(cmd *cobra.Command, usage string) string {
	v := "version"
	cmd.Flags().StringVar(&params.pkg.version, v, "", usage)
	return v
}

func addBumpFlag(cmd *cobra.Command) string {
	bump := "bump"
	cmd.Flags().StringVar(&params.release.bump, bump, "auto",
		"The version bump: auto, patch, minor, major, rc, beta, alpha or an explicit version")
	return bump
}

func addBaseFlag(cmd *cobra.Command) string {
	base := "base"
	cmd.Flags().StringVar(&params.release.base, base, "", "The branch to release from. Defaults to the default branch")
	return base
}

func addDryRunFlag(cmd *cobra.Command) string {
	dryRun := "dry-run"
	cmd.Flags().BoolVar(&params.release.dryRun, dryRun, false, "Prepare the release in memory and print the changes, without pushing anything")
	return dryRun
}

func addDispatchFlag(cmd *cobra.Command) string {
	dispatch := "dispatch"
	cmd.Flags().BoolVar(&params.release.dispatch, dispatch, false, "Ask the relman service to prepare the release, with a repository dispatch event")
	return dispatch
}

func addAllowEmptyFlag(cmd *cobra.Command) string {
	allowEmpty := "allow-empty"
	cmd.Flags().BoolVar(&params.release.allowEmpty, allowEmpty, false, "Allow an explicit bump without unreleased changes")
	return allowEmpty
}
