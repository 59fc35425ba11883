package main

import (
	"strings"
	"testing"

	"github.com/zk/bzltest/internal/bep"
	"github.com/zk/bzltest/internal/orchestrator"
)

func TestReportFailures_IncludesDiagnostics(t *testing.T) {
	result := &orchestrator.Result{
		Outcome: &bep.Outcome{
			ExitCode:      bep.TestFailed,
			ErrorMessages: []string{"ERROR: //calc:calc_test failed"},
		},
		Message:     "some tests failed",
		Diagnostics: []string{"/tmp/calc/test.xml: failed to open test report: no such file"},
	}

	var buf strings.Builder
	reportFailures(&buf, result)
	out := buf.String()

	for _, want := range []string{
		"ERROR: //calc:calc_test failed",
		"/tmp/calc/test.xml: failed to open test report",
		"some tests failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReportFailures_QuietOnSuccess(t *testing.T) {
	result := &orchestrator.Result{Outcome: &bep.Outcome{ExitCode: bep.Success}}

	var buf strings.Builder
	reportFailures(&buf, result)

	if buf.Len() != 0 {
		t.Errorf("output on a clean run: %q", buf.String())
	}
}
