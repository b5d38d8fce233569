package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jobhunter-labs/jobhunter/internal/config"
	"github.com/jobhunter-labs/jobhunter/internal/logger"
	"github.com/jobhunter-labs/jobhunter/internal/pipeline"
	"github.com/jobhunter-labs/jobhunter/internal/session"
	intstate "github.com/jobhunter-labs/jobhunter/internal/state"
	"github.com/jobhunter-labs/jobhunter/internal/tracing"
	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
	jhlog "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/log"
)

// commonFlags are shared by every command that needs Settings.
type commonFlags struct {
	envFile  string
	logLevel string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.envFile, "env-file", DefaultEnvFile, "Path to a .env file (ignored when missing)")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides JOBHUNTER_LOG_LEVEL")
}

// load reads the settings and builds the logger.
func (c *commonFlags) load(stderr io.Writer) (*config.Settings, jhlog.Logger, error) {
	settings, err := config.LoadSettings(c.envFile)
	if err != nil {
		return nil, nil, err
	}
	if c.logLevel != "" {
		settings.LogLevel = c.logLevel
	}
	log := logger.NewLogger(settings.LogLevel, settings.LogFormat, stderr).With("jobhunter_version", version)
	return settings, log, nil
}

func validateCommand(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	pipelinePath := fs.String("pipeline", "", "Path to the pipeline YAML file to validate (required)")
	logLevel := fs.String("log-level", "info", "Log level for validation output (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: jobhunter validate -pipeline <path> [flags...]")
		fmt.Fprintln(stderr, "\nValidates the structure and schema of a pipeline definition.")
		fmt.Fprintln(stderr, "\nFlags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}
	if *pipelinePath == "" {
		fmt.Fprintln(stderr, "Error: -pipeline flag is required for validation")
		fs.Usage()
		return ExitUsageError
	}

	log := logger.NewLogger(*logLevel, "text", stderr)
	log.Infof("Validating pipeline: %s", *pipelinePath)

	p, err := config.LoadPipelineFromFile(*pipelinePath)
	if err != nil {
		var validationErr *jherrors.ValidationError
		var configErr *jherrors.ConfigError
		if errors.As(err, &validationErr) {
			log.Errorf("Pipeline validation failed:\n%s", validationErr.Error())
		} else if errors.As(err, &configErr) {
			log.Errorf("Pipeline configuration error:\n%s", configErr.Error())
		} else {
			log.Errorf("Failed to load or validate pipeline: %v", err)
		}
		return ExitFailure
	}

	log.Infof("Pipeline validation successful: %s (%d stages)", p.Name, len(p.Stages))
	return ExitSuccess
}

func runCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	pipelinePath := fs.String("pipeline", "", "Path to the pipeline YAML file (required)")
	sessionID := fs.String("session", "", "Session to resume before the run and save after it ('new' starts a fresh one)")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run; overrides JOBHUNTER_METRICS_ADDR")
	printReport := fs.Bool("report", false, "Print the run report as JSON on stdout")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: jobhunter run -pipeline <path> [flags...]")
		fmt.Fprintln(stderr, "\nRuns a career pipeline.")
		fmt.Fprintln(stderr, "\nFlags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}
	if *pipelinePath == "" {
		fmt.Fprintln(stderr, "Error: -pipeline flag is required")
		fs.Usage()
		return ExitUsageError
	}
	if *sessionID == NewSessionID {
		*sessionID = session.NewID()
		fmt.Fprintf(stderr, "Session: %s\n", *sessionID)
	}
	if *sessionID != "" {
		if err := session.ValidateID(*sessionID); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return ExitUsageError
		}
	}

	settings, log, err := common.load(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitFailure
	}
	if *metricsAddr != "" {
		settings.MetricsAddr = *metricsAddr
	}
	log.Infof("jobhunter v%s starting", version)

	log.Infof("Loading pipeline: %s", *pipelinePath)
	p, err := config.LoadPipelineFromFile(*pipelinePath)
	if err != nil {
		log.Errorf("Failed to load pipeline: %v", err)
		return ExitFailure
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	obs, err := newObservability(runCtx, settings, log)
	if err != nil {
		log.Errorf("Failed to set up event buses: %v", err)
		return ExitFailure
	}
	defer obs.Close()

	if settings.MetricsAddr != "" {
		stop, err := serveMetrics(settings.MetricsAddr, obs, log)
		if err != nil {
			log.Errorf("%v", err)
			return ExitFailure
		}
		defer stop()
	}

	tracerProvider := tracing.NewProviderFromEnv(runCtx, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Error shutting down tracer provider: %v", err)
		}
	}()

	store := intstate.NewMemoryStateStore(intstate.WithLogger(log), intstate.WithEventBus(obs.bus))

	var repo session.Repository
	if *sessionID != "" {
		var closeRepo func()
		repo, closeRepo, err = openRepository(runCtx, settings, log)
		if err != nil {
			log.Errorf("Failed to open session repository: %v", err)
			return ExitFailure
		}
		defer closeRepo()

		snap, err := repo.Load(runCtx, *sessionID)
		switch {
		case jherrors.IsSnapshotNotFound(err):
			log.Infof("Session '%s' not found, starting a new one", *sessionID)
		case err != nil:
			log.Errorf("Failed to load session '%s': %v", *sessionID, err)
			return ExitFailure
		default:
			store.RestoreSession(snap)
			log.Infof("Resumed session '%s' saved at %s", *sessionID, snap.Timestamp.Format(time.RFC3339))
		}
	}

	runner, err := pipeline.NewRunner(store,
		pipeline.WithEventBus(obs.bus),
		pipeline.WithLogger(log),
		pipeline.WithTracerProvider(tracerProvider),
	)
	if err != nil {
		log.Errorf("Failed to create pipeline runner: %v", err)
		return ExitFailure
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
			log.Warnf("Received signal: %v. Cancelling the run...", sig)
			sigMu.Lock()
			receivedSignal = sig
			sigMu.Unlock()
			cancelRun()
		case <-runCtx.Done():
		}
	}()

	report, runErr := runner.Run(runCtx, p)

	if repo != nil {
		// Partial progress is saved after failed runs too.
		saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := repo.Save(saveCtx, *sessionID, store.SaveSession()); err != nil {
			log.Errorf("Failed to save session '%s': %v", *sessionID, err)
			if runErr == nil {
				runErr = err
			}
		} else {
			log.Infof("Saved session '%s'", *sessionID)
		}
		cancel()
	}

	cancelRun()
	wg.Wait()

	printReportSummary(log, report, runErr)
	if *printReport && report != nil {
		if err := writeJSON(stdout, report); err != nil {
			log.Errorf("Failed to print report: %v", err)
		}
	}

	sigMu.Lock()
	finalSignal := receivedSignal
	sigMu.Unlock()
	return determineExitCode(report, runErr, finalSignal, log)
}

func printReportSummary(log jhlog.Logger, report *pipeline.Report, runErr error) {
	if report == nil {
		log.Warnf("Run finished without a report (failed before the first stage).")
		if runErr != nil {
			logRunErrorReason(log, runErr)
		}
		return
	}

	statusLine := fmt.Sprintf("Pipeline '%s' finished. Status: %s", report.PipelineName, report.Status)
	summaryLine := fmt.Sprintf("Duration: %v. Stages: Total=%d, Completed=%d, Failed=%d, Skipped=%d",
		report.Duration.Truncate(time.Millisecond),
		len(report.Stages), report.CompletedStages, report.FailedStages, report.SkippedStages)

	if report.Status == pipeline.StatusFailed || runErr != nil {
		log.Errorf("%s. %s", statusLine, summaryLine)
		if runErr != nil {
			logRunErrorReason(log, runErr)
		}
	} else {
		log.Infof("%s. %s", statusLine, summaryLine)
	}
	for _, st := range report.Stages {
		if st.Status == pipeline.StatusFailed {
			log.Warnf("  - Stage '%s' (%s, attempts=%d, ignored=%t): %s", st.Name, st.ErrorCategory, st.Attempts, st.Ignored, st.Error)
		}
	}
}

func logRunErrorReason(log jhlog.Logger, runErr error) {
	switch {
	case errors.Is(runErr, context.Canceled):
		log.Warnf("Run Reason: Cancelled.")
	case errors.Is(runErr, context.DeadlineExceeded):
		log.Errorf("Run Reason: Timeout.")
	default:
		log.Errorf("Run Error: %v", runErr)
	}
}

func determineExitCode(report *pipeline.Report, runErr error, sig os.Signal, log jhlog.Logger) int {
	switch {
	case runErr != nil && errors.Is(runErr, context.Canceled) && sig != nil:
		switch sig {
		case syscall.SIGINT:
			log.Warnf("Pipeline run interrupted by signal: SIGINT")
			return ExitSigInt
		case syscall.SIGTERM:
			log.Warnf("Pipeline run terminated by signal: SIGTERM")
			return ExitSigTerm
		}
		log.Warnf("Pipeline run terminated by signal: %v", sig)
		return ExitFailure
	case runErr != nil && errors.Is(runErr, context.DeadlineExceeded):
		log.Errorf("Pipeline run timed out.")
		return ExitTimeout
	case runErr != nil:
		return ExitFailure
	case report != nil && report.Status == pipeline.StatusFailed:
		log.Errorf("Pipeline finished but reported overall status as Failed.")
		return ExitFailure
	}
	log.Infof("Pipeline completed successfully.")
	return ExitSuccess
}
