// Command jobhunter runs career pipelines, scores resumes against job
// descriptions and manages saved coaching sessions.
package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"syscall"

	_ "github.com/jobhunter-labs/jobhunter/workers/ats"
	_ "github.com/jobhunter-labs/jobhunter/workers/exec"
	_ "github.com/jobhunter-labs/jobhunter/workers/passthrough"
)

const (
	ExitSuccess         = 0
	ExitFailure         = 1
	ExitUsageError      = 2
	ExitTimeout         = 124
	ExitSigIntBase      = 128
	ExitSigInt          = ExitSigIntBase + int(syscall.SIGINT)
	ExitSigTerm         = ExitSigIntBase + int(syscall.SIGTERM)
	DefaultEnvFile      = ".env"
	DefaultEventBusSize = 256
	NewSessionID        = "new"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	os.Exit(dispatch(os.Args[1:], os.Stdout, os.Stderr))
}

func dispatch(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return ExitUsageError
	}
	switch args[0] {
	case "run":
		return runCommand(args[1:], stdout, stderr)
	case "validate":
		return validateCommand(args[1:], stderr)
	case "ats":
		return atsCommand(args[1:], stdout, stderr)
	case "session":
		return sessionCommand(args[1:], stdout, stderr)
	case "version", "--version", "-version":
		printVersion(stdout)
		return ExitSuccess
	case "help", "-h", "--help":
		usage(stdout)
		return ExitSuccess
	default:
		fmt.Fprintf(stderr, "Error: unknown command '%s'\n\n", args[0])
		usage(stderr)
		return ExitUsageError
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `Usage: jobhunter <command> [flags...]

Commands:
  run       -pipeline <path> [-session <id>]   Run a career pipeline
  validate  -pipeline <path>                   Validate a pipeline definition
  ats       -resume <path> -job <path>         Score a resume against a job description
  session   list | show -id <id> | delete -id <id>
  version                                      Print version information

Run "jobhunter <command> -h" for command flags.
`)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "jobhunter version %s\n", version)
	fmt.Fprintf(w, "commit: %s\n", commit)
	fmt.Fprintf(w, "built: %s\n", buildDate)
	fmt.Fprintf(w, "go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
