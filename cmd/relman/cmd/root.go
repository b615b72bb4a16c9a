// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/oneconcern/relman/pkg/config"
	"github.com/oneconcern/relman/pkg/dlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "relman",
	Short: "Relman prepares and publishes package releases",
	Long: `Relman prepares and publishes releases of the packages of a repository.

It discovers Cargo and npm packages, reads their Keep a Changelog files and
computes the next version from unreleased changes.

Releases are proposed as pull requests on a release branch: merging the pull request
publishes the release.
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if params.root.noColor {
			color.NoColor = true
		}
	},
}

var settings config.Config

// used to patch over calls to os.Exit() during test
var logFatalln = log.Fatalln
var logFatalf = log.Fatalf
var osExit = os.Exit

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	addLogLevelFlag(rootCmd)
	addNoColorFlag(rootCmd)
	addBackendFlags(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	v := viper.GetViper()
	config.Setup(v)
	_ = v.BindPFlag("loglevel", rootCmd.PersistentFlags().Lookup(logLevelFlag))
	_ = v.BindPFlag("github.token", rootCmd.PersistentFlags().Lookup(tokenFlag))

	var err error
	settings, err = config.Load(v)
	if err != nil {
		wrapFatalln("loading configuration", err)
		return
	}
	if used := v.ConfigFileUsed(); used != "" {
		logger().Debug("using config file", zap.String("file", used))
	}
}

var cliLogger *zap.Logger

func logger() *zap.Logger {
	if cliLogger != nil {
		return cliLogger
	}
	l, err := dlogger.GetLogger(settings.LogLevel, dlogger.Console())
	if err != nil {
		l = zap.NewNop()
	}
	cliLogger = l.With(zap.String("command", "relman"))
	return cliLogger
}
