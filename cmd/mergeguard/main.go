package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/mergeguard/internal/cfg"
)

const appName = "mergeguard"

var logger *zap.Logger

// shutdown handler priorities, handlers with lower values run first
const (
	prioHTTPServer = iota
	prioScheduler
	prioTracing
	prioLogSync
)

// Version is set via a ldflag on compilation
var Version = "unknown"

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
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	LogLevel    *string
	ExpandEnv   *bool
	ShowVersion *bool
}

var args arguments

const defConfigFile = "/etc/mergeguard/config.toml"

const usage = `Usage: %s [OPTION]... [COMMAND [ARG]...]
Block merging of pull requests until all other check-runs completed.

Commands:
  server                                   receive GitHub webhook events (default)
  create  INSTALLATION-ID REPOSITORY COMMIT create a pending gate check-run
  refresh INSTALLATION-ID REPOSITORY COMMIT recompute the gate check-run
  status  INSTALLATION-ID REPOSITORY COMMIT show the aggregated check-run state
  version                                  print the version and exit
`

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
			"path to the mergeguard configuration file",
		),
		LogLevel: pflag.String(
			"log-level",
			"",
			"log level, overwrites the log_level setting of the configuration file",
		),
		ExpandEnv: pflag.Bool(
			"env",
			false,
			"replace ${VAR} references in the configuration file with environment variable values",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
	}

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, usage, appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	var opts []cfg.Option
	if *args.ExpandEnv {
		opts = append(opts, cfg.WithEnvExpansion())
	}

	config, err := cfg.LoadFile(*args.ConfigFile, opts...)
	exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)

	if *args.LogLevel != "" {
		config.LogLevel = *args.LogLevel
	}

	exitOnErr(fmt.Sprintf("configuration file %s is invalid", *args.ConfigFile), config.Validate())

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
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
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

	goodbye.RegisterWithPriority(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	}, prioLogSync)
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	cmd := "server"
	if pflag.NArg() > 0 {
		cmd = pflag.Arg(0)
	}

	if *args.ShowVersion || cmd == "version" {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	mustInitLogger(config)

	switch cmd {
	case "server":
		runServer(config)

	case "create", "refresh", "status":
		job, err := parseJobArgs(pflag.Args()[1:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s: %s\n", cmd, err)
			pflag.Usage()
			goodbye.Exit(context.Background(), 2)
		}

		if err := runCommand(cmd, config, job); err != nil {
			logger.Error("command failed", zap.String("command", cmd), zap.Error(err))
			goodbye.Exit(context.Background(), 1)
		}

		goodbye.Exit(context.Background(), 0)

	default:
		fmt.Fprintf(os.Stderr, "ERROR: unknown command: %q\n", cmd)
		pflag.Usage()
		goodbye.Exit(context.Background(), 2)
	}
}
