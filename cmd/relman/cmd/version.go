package cmd

import (
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

// Build stamps, set with -ldflags "-X github.com/oneconcern/relman/cmd/relman/cmd.Version=..."
var (
	Version   string
	Commit    string
	BuildDate string
)

const devVersion = "dev"

// buildInfo describes the build of this binary
type buildInfo struct {
	Version   string `yaml:"version"`
	Commit    string `yaml:"commit,omitempty"`
	BuildDate string `yaml:"buildDate,omitempty"`
	Modified  bool   `yaml:"modified,omitempty"`
	GoVersion string `yaml:"goVersion"`
	Platform  string `yaml:"platform"`
}

// currentBuild completes the ldflags stamps with the VCS stamps recorded by the go toolchain
func currentBuild() buildInfo {
	b := buildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		b.fromModule(info)
	}
	if b.Version == "" {
		b.Version = devVersion
	}
	return b
}

func (b *buildInfo) fromModule(info *debug.BuildInfo) {
	if b.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = strings.TrimPrefix(info.Main.Version, "v")
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = setting.Value
			}
		case "vcs.time":
			if b.BuildDate == "" {
				b.BuildDate = setting.Value
			}
		case "vcs.modified":
			b.Modified = setting.Value == "true"
		}
	}
}

func (b buildInfo) String() string {
	table := uitable.New()
	table.Separator = "  "
	table.AddRow("relman", b.Version)
	if b.Commit != "" {
		commit := b.Commit
		if b.Modified {
			commit += " (modified)"
		}
		table.AddRow("commit", commit)
	}
	if b.BuildDate != "" {
		table.AddRow("built", b.BuildDate)
	}
	table.AddRow("go", b.GoVersion+" "+b.Platform)
	return table.String()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of relman",
	Long: `Prints the version of relman, the commit it was built from and the go toolchain.

Release builds are stamped at link time. Otherwise the module version and the
VCS information recorded by the go toolchain are used, when available.`,
	Run: func(cmd *cobra.Command, args []string) {
		b := currentBuild()
		if params.inspect.output != "yaml" {
			logStdOut("%s", b.String())
			return
		}
		out, err := yaml.Marshal(b)
		if err != nil {
			wrapFatalln("render version", err)
			return
		}
		logStdOut("%s", strings.TrimSuffix(string(out), "\n"))
	},
}

func init() {
	addOutputFlag(versionCmd)
	rootCmd.AddCommand(versionCmd)
}
