package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/go-units"
	"github.com/gosuri/uitable"
	"github.com/oneconcern/relman/pkg/project"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

type inspectReport struct {
	Repository string         `yaml:"repository"`
	Revision   string         `yaml:"revision"`
	Project    string         `yaml:"project,omitempty"`
	Packages   []project.Info `yaml:"packages"`
	Errors     []string       `yaml:"errors,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List the packages of a repository",
	Long: `Discovers the Cargo and npm packages of a repository and prints their name, version and location.

Manifests which cannot be parsed are reported without interrupting the discovery.`,
	Example: `% relman inspect --backend fs --dir .
NAME   VERSION  KIND   PATH
core   0.1.0    cargo  crates/core
web    1.2.0    npm    web`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		proj, err := openProject(ctx)
		if err != nil {
			wrapFatalln("open project", err)
			return
		}
		report, err := inspect(ctx, proj)
		if err != nil {
			wrapFatalln("inspect project", err)
			return
		}

		switch params.inspect.output {
		case "yaml":
			out, err := yaml.Marshal(report)
			if err != nil {
				wrapFatalln("render report", err)
				return
			}
			logStdOut("%s", strings.TrimSuffix(string(out), "\n"))
		default:
			logStdOut("%s", renderTable(report))
		}

		if params.inspect.stats {
			st := proj.Cache().Stats()
			logStdOut("%s", faint(fmt.Sprintf("%d files read (%s), %d cache hits, %d misses",
				st.Entries, units.HumanSize(float64(st.Bytes)), st.Hits, st.Misses)))
		}
	},
}

func inspect(ctx context.Context, proj *project.Project) (inspectReport, error) {
	report := inspectReport{
		Repository: proj.Backend().String(),
		Revision:   proj.Revision().String(),
		Packages:   []project.Info{},
	}
	cfg, err := proj.Config(ctx)
	if err != nil {
		return report, err
	}
	report.Project = cfg.Project.Name

	discovery, err := proj.Discover(ctx)
	if err != nil {
		return report, err
	}
	for _, pkg := range discovery.Packages {
		info, err := pkg.Info(ctx)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			continue
		}
		report.Packages = append(report.Packages, info)
	}
	for _, perr := range discovery.Errors {
		report.Errors = append(report.Errors, perr.Error())
	}
	return report, nil
}

func renderTable(report inspectReport) string {
	table := uitable.New()
	table.MaxColWidth = 60
	table.Separator = "  "
	table.AddRow("NAME", "VERSION", "KIND", "PATH")
	for _, info := range report.Packages {
		table.AddRow(info.Name, info.Version, info.Kind, info.Path)
	}
	lines := []string{table.String()}
	for _, e := range report.Errors {
		lines = append(lines, warning("skipped:")+" "+e)
	}
	return strings.Join(lines, "\n")
}

func init() {
	addOutputFlag(inspectCmd)
	addStatsFlag(inspectCmd)
	rootCmd.AddCommand(inspectCmd)
}
