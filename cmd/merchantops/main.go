package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/logging"
)

// Process exit codes shared by every merchantops command. Commands may also
// return an exitError carrying their own code.
const (
	exitFailure  = 1
	exitRejected = 2
	exitCanceled = 130
)

func main() {
	os.Exit(run(Execute, os.Stderr))
}

// run executes the command tree and turns its error into an exit code,
// reporting the failure on stderr unless the command asked for silence.
func run(execute func() error, stderr io.Writer) int {
	err := execute()
	if err == nil {
		return 0
	}
	f := classifyFailure(err)
	if !f.silent {
		reportFailure(f, stderr)
	}
	return f.code
}

// failure is a command error resolved to what the operator sees.
type failure struct {
	cause   error
	summary string
	code    int
	silent  bool
}

func classifyFailure(err error) failure {
	var ee *exitError
	if errors.As(err, &ee) {
		cause := err
		if ee.err != nil {
			cause = ee.err
		}
		return failure{cause: cause, summary: "command failed", code: ee.code, silent: ee.silent}
	}
	if errors.Is(err, context.Canceled) {
		return failure{cause: err, summary: "command canceled", code: exitCanceled}
	}
	// Requests the admin layer refused, such as an unknown merchant or an
	// invalid connector, are told apart from infrastructure failures.
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.StatusCode() < 500 {
		return failure{cause: err, summary: "request rejected", code: exitRejected}
	}
	return failure{cause: err, summary: "command failed", code: exitFailure}
}

func reportFailure(f failure, stderr io.Writer) {
	cmd := currentCommandExecutionContext()
	if cmd.UsesStructuredLog {
		failureLogger(cmd.CommandPath, stderr).Error(f.summary, "exit_code", f.code, "error", f.cause)
		return
	}
	if f.code == exitCanceled {
		fmt.Fprintln(stderr, "canceled")
		return
	}
	fmt.Fprintln(stderr, f.cause)
}

// failureLogger builds a logger for the exit path. A broken LOG_* setting must
// not hide the original error, so it falls back to the defaults.
func failureLogger(commandPath string, stderr io.Writer) *slog.Logger {
	cfg, err := logging.LoadConfigFromEnv()
	if err != nil {
		cfg = logging.DefaultConfig()
	}
	return logging.NewLogger(cfg, stderr, commandPath)
}
