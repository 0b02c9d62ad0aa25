package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/renowatch/renowatch/internal/cfg"
	"github.com/renowatch/renowatch/internal/eventloop"
	"github.com/renowatch/renowatch/internal/githubclt"
	"github.com/renowatch/renowatch/internal/logfields"
	"github.com/renowatch/renowatch/internal/poller"
	"github.com/renowatch/renowatch/internal/processor"
	"github.com/renowatch/renowatch/internal/provider"
	wh "github.com/renowatch/renowatch/internal/provider/github"
	"github.com/renowatch/renowatch/internal/ratelimit"
	"github.com/renowatch/renowatch/internal/retry"
	"github.com/renowatch/renowatch/internal/statestore"
)

const appName = "renowatch"

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

const EventChannelBufferSize = 1024

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught, terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func startHTTPServer(listenAddr string, mux *http.ServeMux) {
	httpServer := http.Server{
		Addr:    listenAddr,
		Handler: mux,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating http server",
			logfields.Event("http_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := httpServer.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down http server failed",
				logfields.Event("http_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return
		}

		logger.Fatal(
			"http server terminated unexpectedly",
			logfields.Event("http_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	ShowVersion *bool
}

var args arguments

const defConfigFile = "/etc/renowatch/config.toml"

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the renowatch configuration file",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nMonitor and process dependency update pull requests.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	file, err := os.Open(*args.ConfigFile)
	exitOnErr("could not open configuration file", err)
	defer file.Close()

	config, err := cfg.Load(file)
	if err != nil {
		exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)
	}

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s\n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func mustParsePRFilter(config *cfg.Config) *githubclt.PRFilter {
	if config.PRFilterQuery == "" {
		return nil
	}

	filter, err := githubclt.NewPRFilter(config.PRFilterQuery)
	exitOnErr("could not compile pr_filter_query", err)

	return filter
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	mustInitLogger(config)

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("github_organization", config.GithubOrganization),
		zap.Strings("repositories", config.Repositories),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("github_webhook_endpoint", config.HTTPGithubWebhookEndpoint),
		zap.String("github_webhook_secret", hide(config.GithubWebHookSecret)),
		zap.String("github_api_token", hide(config.GithubAPIToken)),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
		zap.Bool("polling_enabled", config.Polling.Enabled),
		zap.Duration("polling_base_interval", config.Polling.BaseInterval()),
	)

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
	})

	githubClient := githubclt.New(config.GithubAPIToken)

	retryer := retry.NewRetryer()
	goodbye.Register(func(context.Context, os.Signal) { retryer.Stop() })

	store := statestore.New(githubClient, config.DashboardIssueTitle, logger)

	rateLimitMonitor := ratelimit.NewMonitor(
		githubClient,
		config.Polling.APIUsageThreshold,
		config.Polling.RateLimitCheckInterval(),
		logger,
	)

	prProcessor := processor.New(processor.Opts{
		Clt:          githubClient,
		StateStore:   store,
		Retryer:      retryer,
		Logger:       logger,
		APIToken:     config.GithubAPIToken,
		AutoApprove:  config.Processor.AutoApprove,
		FixLockfiles: config.Processor.FixLockfiles,
	})

	prPoller := poller.New(poller.Opts{
		Clt:                    githubClient,
		StateStore:             store,
		Processor:              prProcessor,
		RateLimiter:            rateLimitMonitor,
		PRFilter:               mustParsePRFilter(config),
		Logger:                 logger,
		Repositories:           config.Repositories,
		Organization:           config.GithubOrganization,
		BaseInterval:           config.Polling.BaseInterval(),
		MinInterval:            config.Polling.MinInterval(),
		MaxInterval:            config.Polling.MaxInterval(),
		AdaptivePolling:        config.Polling.Adaptive,
		ConcurrentRepositories: uint(config.Polling.ConcurrentRepos),
		RepositoryTimeout:      config.Polling.RepoTimeout(),
		MaxConsecutiveFailures: config.Polling.MaxConsecutiveFailures,
	})

	if config.Polling.Enabled {
		go func() {
			defer panicHandler()

			// the process stays up after a halt, /status and /metrics
			// keep answering so the failure can be inspected
			if err := prPoller.Start(context.Background()); err != nil {
				logger.Error(
					"poller terminated unexpectedly",
					logfields.Event("poller_terminated_unexpectedly"),
					zap.Error(err),
				)
			}
		}()

		goodbye.Register(func(context.Context, os.Signal) {
			logger.Debug("stopping poller", logfields.Event("poller_stopping"))
			prPoller.Stop()
		})
	} else {
		logger.Info("polling is disabled in the configuration", logfields.Event("polling_disabled"))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/status", prPoller.HTTPHandler(logger))

	if config.HTTPGithubWebhookEndpoint != "" {
		evChan := make(chan *provider.Event, EventChannelBufferSize)

		evLoop := eventloop.New(githubClient, prProcessor, evChan, logger)

		evLoopCtx, cancelEvLoop := context.WithCancel(context.Background())
		goodbye.Register(func(context.Context, os.Signal) { cancelEvLoop() })

		go func() {
			defer panicHandler()
			evLoop.Run(evLoopCtx)
		}()

		gh := wh.New(
			evChan,
			wh.WithPayloadSecret(config.GithubWebHookSecret),
		)

		mux.HandleFunc(config.HTTPGithubWebhookEndpoint, gh.HTTPHandler)
		logger.Info(
			"registered github webhook event http endpoint",
			logfields.Event("github_http_handler_registered"),
			zap.String("endpoint", config.HTTPGithubWebhookEndpoint),
		)
	}

	if config.HTTPListenAddr != "" {
		startHTTPServer(config.HTTPListenAddr, mux)
	}

	select {} // termination happens via signals, handled by goodbye
}
