package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/merchantops/merchantops/internal/apperr"
)

func TestReportFailure_StructuredForScopedCommands(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "info")
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "merchantops serve",
		UsesStructuredLog: true,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	reportFailure(failure{cause: errors.New("boom"), summary: "command failed", code: exitFailure}, &out)

	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected structured log output")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if got := payload["app"]; got != "merchantops" {
		t.Fatalf("app = %v, want %q", got, "merchantops")
	}
	if got := payload["command"]; got != "merchantops serve" {
		t.Fatalf("command = %v, want %q", got, "merchantops serve")
	}
	if got := payload["exit_code"]; got != float64(1) {
		t.Fatalf("exit_code = %v, want %v", got, 1)
	}
	if got := payload["error"]; got != "boom" {
		t.Fatalf("error = %v, want %q", got, "boom")
	}
}

func TestReportFailure_FallsBackToJSONWhenLoggingEnvInvalid(t *testing.T) {
	t.Setenv("LOG_FORMAT", "invalid")
	t.Setenv("LOG_LEVEL", "info")
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "merchantops kv status",
		UsesStructuredLog: true,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	reportFailure(failure{cause: errors.New("boom"), summary: "command failed", code: exitFailure}, &out)

	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected structured log output")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("expected JSON fallback log, got parse error: %v", err)
	}
}

func TestReportFailure_PlainOutputForNonScopedCommands(t *testing.T) {
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "merchantops connectors validate-auth",
		UsesStructuredLog: false,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	reportFailure(failure{cause: errors.New("plain boom"), summary: "command failed", code: exitFailure}, &out)
	if got := out.String(); got != "plain boom\n" {
		t.Fatalf("output = %q, want %q", got, "plain boom\n")
	}
}

func TestReportFailure_CanceledOutputForNonScopedCommands(t *testing.T) {
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "merchantops connectors validate-auth",
		UsesStructuredLog: false,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	reportFailure(failure{cause: context.Canceled, summary: "command canceled", code: exitCanceled}, &out)
	if got := out.String(); got != "canceled\n" {
		t.Fatalf("output = %q, want %q", got, "canceled\n")
	}
}

func TestRunExitCodes(t *testing.T) {
	setCommandExecutionContext(commandExecutionContext{CommandPath: "merchantops"})
	t.Cleanup(resetCommandExecutionContext)

	tests := []struct {
		name    string
		err     error
		want    int
		wantOut string
	}{
		{name: "success", err: nil, want: 0},
		{name: "generic", err: errors.New("nope"), want: 1, wantOut: "nope\n"},
		{name: "canceled", err: fmt.Errorf("wrapped: %w", context.Canceled), want: 130, wantOut: "canceled\n"},
		{name: "exit error", err: &exitError{code: 2, err: errors.New("rejected")}, want: 2, wantOut: "rejected\n"},
		{name: "silent exit error", err: &exitError{code: 3, silent: true}, want: 3},
		{name: "rejected request", err: fmt.Errorf("kv toggle: %w", apperr.NotFound("", "Merchant account does not exist in our records")), want: exitRejected, wantOut: "kv toggle: Merchant account does not exist in our records\n"},
		{name: "internal admin error", err: apperr.Internal("failed to fetch merchant account", errors.New("db down")), want: exitFailure, wantOut: "failed to fetch merchant account: db down\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			got := run(func() error { return tc.err }, &out)
			if got != tc.want {
				t.Fatalf("run() = %d, want %d", got, tc.want)
			}
			if out.String() != tc.wantOut {
				t.Fatalf("output = %q, want %q", out.String(), tc.wantOut)
			}
		})
	}
}
