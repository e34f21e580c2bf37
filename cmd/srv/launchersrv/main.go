package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/serve-tools/ollama-launcher/pkg/errors"
	"github.com/serve-tools/ollama-launcher/pkg/launcher"
	"github.com/serve-tools/ollama-launcher/pkg/logging"
	"github.com/serve-tools/ollama-launcher/pkg/readiness"
	"github.com/serve-tools/ollama-launcher/pkg/statusapi"
)

type flagOptions struct {
	ConfigFile string `long:"config" description:"path to the configuration file (yaml, json or toml)"`
	Timeout    int    `long:"timeout" description:"readiness timeout override, in seconds"`
	Lenient    bool   `long:"lenient" description:"warn instead of aborting when the readiness timeout elapses"`
	LogLevel   string `long:"log-level" description:"log level override: debug, info, warn, error"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts flagOptions
	parser := flags.NewParser(&opts, flags.HelpFlag)
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		return errors.ExitValidation
	}

	var config *launcher.Config
	var err error
	if opts.ConfigFile != "" {
		config, err = launcher.LoadConfigFromFile(opts.ConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			return errors.ExitCode(err)
		}
	} else {
		config = launcher.DefaultConfig()
	}

	if opts.Timeout > 0 {
		config.Readiness.Timeout = time.Duration(opts.Timeout) * time.Second
	}
	if opts.Lenient {
		config.Readiness.Policy = readiness.PolicyLenient
	}
	if opts.LogLevel != "" {
		config.Logging.Level = opts.LogLevel
	}

	logger, err := logging.NewZapLogger(config.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return errors.ExitInternal
	}
	defer logger.Sync()

	logger.Infof("Launcher starting, config: %s, server: %s, timeout: %v, policy: %s",
		configName(opts.ConfigFile), config.Server.BaseURL(), config.Readiness.Timeout, config.Readiness.Policy)

	launch, err := launcher.New(config, logger)
	if err != nil {
		logger.Errorf("Failed to create launcher: %v", err)
		return errors.ExitCode(err)
	}

	// SIGINT/SIGTERM cancel the run context; the launcher propagates the
	// stop to the serving process group.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Status.Addr != "" {
		statusServer := statusapi.NewServer(config.Status.Addr, launch.Status, logger)
		statusServer.Start()
		defer statusServer.Stop(context.Background())
	}

	if err := launch.Run(ctx); err != nil {
		logger.Errorf("Launcher terminated, stage: %s, error: %v", errors.GetErrorType(err), err)
		return errors.ExitCode(err)
	}

	logger.Infof("Launcher stopped cleanly")
	return errors.ExitOK
}

func configName(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}
