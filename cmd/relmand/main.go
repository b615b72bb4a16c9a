// Copyright © 2018 One Concern

// Command relmand serves the webhook API which prepares and publishes releases
// when GitHub events are delivered.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/oneconcern/relman/pkg/config"
	"github.com/oneconcern/relman/pkg/dlogger"
	"github.com/oneconcern/relman/pkg/httpd"
	"github.com/oneconcern/relman/pkg/metrics"
	"github.com/oneconcern/relman/pkg/release"
	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/github"
	"github.com/oneconcern/relman/pkg/web"
	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	serverSettings = httpd.DefaultSettings()
	logLevel       string

	// set with -ldflags "-X main.version=..."
	version string
)

func init() {
	serverSettings.RegisterFlags(pflag.CommandLine)
	pflag.StringVar(&logLevel, "loglevel", "", "The logging level, overrides the loglevel setting")
}

// remoteFactory opens GitHub repositories with the configured credentials
func remoteFactory(cfg config.Config, tr opentracing.Tracer, logger *zap.Logger) web.RemoteFactory {
	return func(_ context.Context, fullName string) (repository.Remote, error) {
		owner, name, err := github.ParseFullName(fullName)
		if err != nil {
			return nil, err
		}
		opts := []github.Option{
			github.Logger(logger),
			github.Token(cfg.GitHub.Token),
			github.UserAgent(userAgent()),
		}
		if cfg.GitHub.APIURL != "" {
			opts = append(opts, github.BaseURL(cfg.GitHub.APIURL))
		}
		return repository.Instrument(tr, logger, github.New(owner, name, opts...)).(repository.Remote), nil
	}
}

func userAgent() string {
	if version == "" {
		return "relmand"
	}
	return "relmand/" + version
}

// applyConfig fills server settings left to their defaults on the command line
func applyConfig(cfg config.Config, fs *pflag.FlagSet, settings *httpd.Settings) {
	if !fs.Changed("address") && cfg.Server.Address != "" {
		settings.Address = cfg.Server.Address
	}
	if !fs.Changed("cleanup-timeout") && cfg.Server.ShutdownTimeout > 0 {
		settings.CleanupTimeout = cfg.Server.ShutdownTimeout
	}
}

func main() {
	pflag.Parse()

	v := viper.GetViper()
	config.Setup(v)
	cfg, err := config.Load(v)
	if err != nil {
		//#nosec
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	applyConfig(cfg, pflag.CommandLine, &serverSettings)

	logger, err := dlogger.GetLogger(cfg.LogLevel, dlogger.Component("relmand", version))
	if err != nil {
		//#nosec
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Server.WebhookSecret == "" {
		logger.Warn("no webhook secret configured (server.webhooksecret): all deliveries will be rejected")
	}

	metrics.Init(prometheus.DefaultRegisterer)

	opts, err := cfg.ReleaseOptions()
	if err != nil {
		logger.Fatal("release settings", zap.Error(err))
	}
	opts = append(opts, release.Logger(logger))

	api, err := web.NewServer(web.ServerParams{
		WebhookSecret: cfg.Server.WebhookSecret,
		Core:          web.NewCore(remoteFactory(cfg, opentracing.GlobalTracer(), logger), opts...),
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("initializing API", zap.Error(err))
	}

	server := httpd.New(
		httpd.WithSettings(serverSettings),
		httpd.LogsWith(logger),
		httpd.HandlesRequestsWith(web.InitRouter(api)),
		httpd.OnShutdown(api.Close),
	)

	if err := server.Listen(); err != nil {
		logger.Fatal("", zap.Error(err))
	}

	if err := server.Serve(); err != nil {
		logger.Fatal("", zap.Error(err))
	}
}
