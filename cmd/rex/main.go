package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	rexerrors "github.com/pelagornis/go-rex/pkg/rex/v1/errors"
	rexlog "github.com/pelagornis/go-rex/pkg/rex/v1/log"

	"github.com/pelagornis/go-rex/internal/config"
	"github.com/pelagornis/go-rex/internal/events"
	"github.com/pelagornis/go-rex/internal/logger"
	"github.com/pelagornis/go-rex/internal/metrics"
	"github.com/pelagornis/go-rex/internal/scenario"
	"github.com/pelagornis/go-rex/internal/tracing"
)

const (
	ExitSuccess         = 0
	ExitFailure         = 1
	ExitUsageError      = 2
	ExitSigIntBase      = 128
	ExitSigInt          = ExitSigIntBase + int(syscall.SIGINT)
	ExitSigTerm         = ExitSigIntBase + int(syscall.SIGTERM)
	DefaultLogLevel     = "info"
	DefaultLogFmt       = "text"
	DefaultEventBusSize = 256
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		runValidateCommand(os.Args[2:])
		return
	}
	if len(os.Args) == 2 && (os.Args[1] == "--version" || os.Args[1] == "-version") {
		printVersion()
		os.Exit(ExitSuccess)
	}
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "run" {
		args = args[1:]
	}
	os.Exit(runScenarioCommand(args))
}

func printVersion() {
	fmt.Printf("rex version %s\n", version)
	fmt.Printf("commit: %s\n", commit)
	fmt.Printf("built: %s\n", buildDate)
	fmt.Printf("go version: %s\n", runtime.Version())
	fmt.Printf("os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func runValidateCommand(args []string) {
	validateFlags := flag.NewFlagSet("validate", flag.ExitOnError)
	scenarioPath := validateFlags.String("scenario", "", "Path to the scenario YAML file to validate (required)")
	logLevel := validateFlags.String("log-level", DefaultLogLevel, "Log level for validation output (debug, info, warn, error)")

	validateFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s validate -scenario <path> [flags...]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Validates the structure and schema compatibility of a rex scenario.")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		validateFlags.PrintDefaults()
	}

	if err := validateFlags.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing validate flags: %v\n", err)
		os.Exit(ExitUsageError)
	}
	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -scenario flag is required for validation")
		validateFlags.Usage()
		os.Exit(ExitUsageError)
	}

	log := logger.NewLogger(*logLevel, "text", os.Stderr)
	log.Infof("Validating scenario: %s", *scenarioPath)

	_, err := config.LoadScenarioFromFile(*scenarioPath)
	if err != nil {
		var validationErr *rexerrors.ValidationError
		var configErr *rexerrors.ConfigError
		if errors.As(err, &validationErr) {
			log.Errorf("Scenario validation failed:\n%s", validationErr.Error())
		} else if errors.As(err, &configErr) {
			log.Errorf("Scenario configuration error:\n%s", configErr.Error())
		} else {
			log.Errorf("Failed to load or validate scenario: %v", err)
		}
		os.Exit(ExitFailure)
	}

	log.Infof("Scenario validation successful: %s", *scenarioPath)
	os.Exit(ExitSuccess)
}

func runScenarioCommand(args []string) int {
	runFlags := flag.NewFlagSet("rex", flag.ExitOnError)
	scenarioPath := runFlags.String("scenario", "", "Path to the scenario YAML file (required)")
	logLevel := runFlags.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	logFormat := runFlags.String("log-format", DefaultLogFmt, "Log format (text, json)")
	metricsAddr := runFlags.String("metrics-addr", "", "Address to serve Prometheus metrics on (e.g. :9090); empty disables the endpoint")
	versionFlag := runFlags.Bool("version", false, "Print version information and exit")

	runFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [run] [flags...] -scenario <path>\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Runs a rex scenario against a fresh store.")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		runFlags.PrintDefaults()
	}

	if err := runFlags.Parse(args); err != nil {
		return ExitUsageError
	}
	if *versionFlag {
		printVersion()
		return ExitSuccess
	}
	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -scenario flag is required")
		runFlags.Usage()
		return ExitUsageError
	}
	if *logFormat != "text" && *logFormat != "json" {
		fmt.Fprintln(os.Stderr, "Error: -log-format must be 'text' or 'json'")
		return ExitUsageError
	}

	var logWriter io.Writer = os.Stderr
	log := logger.NewLogger(*logLevel, *logFormat, logWriter)
	log = log.With("rex_version", version)

	log.Infof("rex v%s starting...", version)
	log.Debugf("Log level: %s", *logLevel)
	log.Debugf("Log format: %s", *logFormat)

	eventBus := events.NewFanoutEventBus(DefaultEventBusSize, log)
	defer eventBus.Close()
	metricsProvider := metrics.NewPrometheusRegistryProvider()
	tracerProvider, err := tracing.NewProviderFromEnv(context.Background())
	if err != nil {
		log.Warnf("Failed to initialize tracing from environment: %v. Using NoOp tracer.", err)
		tracerProvider, _ = tracing.NewNoOpProvider()
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	listener := events.NewMetricsEventListener(eventBus, metricsProvider.Registry(), log)
	go listener.Start(runCtx)

	var metricsServer *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metricsProvider.Registry(), promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			log.Infof("Serving metrics on %s/metrics", *metricsAddr)
			if serveErr := metricsServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				log.Warnf("Metrics server error: %v", serveErr)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var receivedSignal os.Signal
	var sigMu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
			sigMu.Lock()
			receivedSignal = sig
			sigMu.Unlock()
			cancelRun()
		case <-runCtx.Done():
			log.Debugf("Signal handler exiting because run context is done.")
		}
	}()
	defer wg.Wait()

	log.Infof("Loading scenario: %s", *scenarioPath)
	sc, err := config.LoadScenarioFromFile(*scenarioPath)
	if err != nil {
		log.Errorf("Failed to load scenario: %v", err)
		cancelRun()
		return ExitFailure
	}

	runner := scenario.NewRunner(log, eventBus, nil,
		scenario.WithMetricsRegistryProvider(metricsProvider),
		scenario.WithTracerProvider(tracerProvider),
	)
	report, execErr := runner.Run(runCtx, sc)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if metricsServer != nil {
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Warnf("Error shutting down metrics server: %v", shutdownErr)
		}
	}
	if shutdownErr := tracerProvider.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warnf("Error shutting down tracer provider: %v", shutdownErr)
	}

	printReportSummary(log, report, execErr)

	sigMu.Lock()
	finalSignal := receivedSignal
	sigMu.Unlock()
	return determineExitCode(execErr, finalSignal, log)
}

func printReportSummary(log rexlog.Logger, report *scenario.Report, execErr error) {
	if report == nil {
		log.Warnf("Run finished but no report was generated (likely due to early failure).")
		if execErr != nil {
			log.Errorf("Run error: %v", execErr)
		}
		return
	}

	statusLine := fmt.Sprintf("Scenario '%s' finished", report.ScenarioName)
	summaryLine := fmt.Sprintf("Steps=%d, Commits=%d, NavigationsRejected=%d",
		report.StepsExecuted, report.Commits, report.NavigationsRejected)

	if execErr != nil {
		log.Errorf("%s with error. %s", statusLine, summaryLine)
		log.Errorf("Run error: %v", execErr)
		return
	}
	log.Infof("%s. %s", statusLine, summaryLine)
	log.Infof("Final state: %v", report.FinalState)
}

func determineExitCode(execErr error, sig os.Signal, log rexlog.Logger) int {
	if execErr == nil {
		log.Infof("Scenario completed successfully.")
		return ExitSuccess
	}
	if errors.Is(execErr, context.Canceled) && sig != nil {
		switch sig {
		case syscall.SIGINT:
			log.Warnf("Scenario run interrupted by signal: SIGINT")
			return ExitSigInt
		case syscall.SIGTERM:
			log.Warnf("Scenario run terminated by signal: SIGTERM")
			return ExitSigTerm
		default:
			log.Warnf("Scenario run terminated by signal: %v", sig)
			return ExitFailure
		}
	}
	return ExitFailure
}
