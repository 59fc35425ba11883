package runner

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Intent selects the Bazel command verb and mode-specific flags
type Intent int

const (
	IntentTest Intent = iota
	IntentDebug
	IntentCoverage
	IntentRun
	IntentBenchmark
)

// verb returns the command verb token for an intent
func (i Intent) verb() string {
	switch i {
	case IntentCoverage:
		return "coverage"
	case IntentRun:
		return "run"
	case IntentDebug:
		return "debug"
	default:
		return "test"
	}
}

// Request describes one external command invocation
type Request struct {
	Intent       Intent
	EventLogPath string
	Targets      []string
	// TestNames are the flat test names to filter on, already in the
	// tool's native form (suite methods translated).
	TestNames []string
	Env       map[string]string
	Flags     []string // User passthrough flags
	DebugPort int
}

// BuildArgs constructs the external command's argument vector. The
// order is deterministic: verb, mode flags, filter, env, passthrough
// flags, targets.
func BuildArgs(req Request) []string {
	args := []string{req.Intent.verb()}

	if req.EventLogPath != "" {
		args = append(args, "--build_event_json_file="+req.EventLogPath)
	}

	switch req.Intent {
	case IntentCoverage:
		args = append(args, "--combined_report=lcov", "--instrumentation_filter=^//")
	case IntentDebug:
		port := req.DebugPort
		if port == 0 {
			port = 2345
		}
		args = append(args, fmt.Sprintf("--test_arg=--port=%d", port), "--test_output=streamed")
	}

	if filter := TestFilter(req.TestNames); filter != "" {
		args = append(args, "--test_filter="+filter)
	}

	// Sorted for a stable argument vector
	keys := make([]string, 0, len(req.Env))
	for k := range req.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("--test_env=%s=%s", k, req.Env[k]))
	}

	args = append(args, req.Flags...)
	args = append(args, req.Targets...)

	if req.Intent == IntentBenchmark {
		// Everything after the marker goes to the test binary
		args = append(args, "--", "-test.bench=.", "-test.run=^$")
	}

	return args
}

var regexMeta = regexp.MustCompile(`[.*+?()|\[\]{}^$\\]`)

// escapeRegex backslash-escapes regex metacharacters in a name segment
func escapeRegex(s string) string {
	return regexMeta.ReplaceAllString(s, `\$0`)
}

// TestFilter builds the --test_filter regex for a set of flat test
// names. Every slash segment is anchored (^seg$) so "TestA/case" only
// matches that exact subtest path, and alternates are joined with |.
func TestFilter(names []string) string {
	alternates := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		segments := strings.Split(name, "/")
		for i, seg := range segments {
			segments[i] = "^" + escapeRegex(seg) + "$"
		}
		alternates = append(alternates, strings.Join(segments, "/"))
	}
	return strings.Join(alternates, "|")
}
