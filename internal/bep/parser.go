package bep

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// TestReportName is the artifact name Bazel gives every per-target
// test report in the build event stream.
const TestReportName = "test.xml"

// ExitCode classifies how a Bazel invocation ended.
type ExitCode int

const (
	// FailedToParse is the initial sentinel; it survives to the final
	// outcome only when the stream never produced a finished event.
	FailedToParse ExitCode = iota
	Success
	BuildFailed
	CommandLineProblem
	TestFailed
	Interrupted
)

// String returns the string representation of an exit code
func (c ExitCode) String() string {
	switch c {
	case Success:
		return "SUCCESS"
	case BuildFailed:
		return "BUILD_FAILED"
	case CommandLineProblem:
		return "COMMAND_LINE_PROBLEM"
	case TestFailed:
		return "TESTS_FAILED"
	case Interrupted:
		return "INTERRUPTED"
	case FailedToParse:
		return "FAILED_TO_PARSE"
	default:
		return "UNKNOWN"
	}
}

// exitCodeFromBazel maps Bazel's numeric exit codes to ExitCode
func exitCodeFromBazel(code int) ExitCode {
	switch code {
	case 0:
		return Success
	case 2:
		return CommandLineProblem
	case 3, 4:
		return TestFailed
	case 8:
		return Interrupted
	default:
		return BuildFailed
	}
}

// Outcome is the summary produced from one build event stream.
// It is built incrementally while scanning and immutable once the
// parser hands it out.
type Outcome struct {
	ExitCode           ExitCode
	TestReportPaths    []string
	ErrorMessages      []string
	WorkspaceDirectory string
	ExecutionRoot      string
	GeneratedFileRoot  string
}

// buildEvent mirrors the subset of Build Event Protocol fields the
// parser classifies on. At most one payload field is set per event.
type buildEvent struct {
	ID struct {
		TestResult *struct {
			Label string `json:"label"`
		} `json:"testResult"`
	} `json:"id"`
	Progress      *progressPayload      `json:"progress"`
	Finished      *finishedPayload      `json:"finished"`
	Started       *startedPayload       `json:"started"`
	WorkspaceInfo *workspaceInfoPayload `json:"workspaceInfo"`
	TestResult    *testResultPayload    `json:"testResult"`
	Configuration *configurationPayload `json:"configuration"`
}

type progressPayload struct {
	Stderr string `json:"stderr"`
}

type finishedPayload struct {
	ExitCode struct {
		Name string `json:"name"`
		Code int    `json:"code"`
	} `json:"exitCode"`
}

type startedPayload struct {
	WorkspaceDirectory string `json:"workspaceDirectory"`
}

type workspaceInfoPayload struct {
	LocalExecRoot string `json:"localExecRoot"`
}

type testResultPayload struct {
	TestActionOutput []struct {
		Name string `json:"name"`
		URI  string `json:"uri"`
	} `json:"testActionOutput"`
}

type configurationPayload struct {
	MakeVariable map[string]string `json:"makeVariable"`
}

// Logger interface for debug logging
type Logger interface {
	Debug(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Parser incrementally consumes newline-delimited build event JSON and
// accumulates an Outcome. Lines may be fed one at a time (tailing) or
// via Parse for a complete stream.
type Parser struct {
	outcome   Outcome
	collector ErrorCollector
	corrupt   bool
	lineNum   int
}

// NewParser creates a parser with the FailedToParse sentinel set
func NewParser() *Parser {
	return &Parser{outcome: Outcome{ExitCode: FailedToParse}}
}

// FeedLine classifies a single event line. After the first malformed
// line the parser stops mutating the outcome: event logs are append
// only, so a corrupt line usually means truncation and continuing past
// it risks misattributing later lines.
func (p *Parser) FeedLine(line []byte) {
	if p.corrupt {
		return
	}
	p.lineNum++

	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return
	}

	var event buildEvent
	if err := json.Unmarshal([]byte(trimmed), &event); err != nil {
		p.corrupt = true
		p.outcome.ErrorMessages = append(p.outcome.ErrorMessages,
			fmt.Sprintf("malformed build event stream (line %d)", p.lineNum))
		return
	}

	switch {
	case event.Finished != nil:
		// Absent exitCode unmarshals to 0, which maps to Success
		p.outcome.ExitCode = exitCodeFromBazel(event.Finished.ExitCode.Code)

	case event.Progress != nil:
		p.outcome.ErrorMessages = p.collector.Collect(event.Progress.Stderr)

	case event.WorkspaceInfo != nil:
		p.outcome.ExecutionRoot = event.WorkspaceInfo.LocalExecRoot

	case event.Started != nil:
		p.outcome.WorkspaceDirectory = event.Started.WorkspaceDirectory

	case event.TestResult != nil:
		for _, output := range event.TestResult.TestActionOutput {
			if output.Name != TestReportName {
				continue
			}
			p.outcome.TestReportPaths = append(p.outcome.TestReportPaths,
				strings.TrimPrefix(output.URI, "file://"))
		}

	case event.Configuration != nil:
		if bindir, ok := event.Configuration.MakeVariable["BINDIR"]; ok {
			p.outcome.GeneratedFileRoot = bindir
		}
	}
}

// Corrupt reports whether a malformed line has been seen
func (p *Parser) Corrupt() bool {
	return p.corrupt
}

// Outcome returns the outcome accumulated so far. The parser must not
// be fed after this is called.
func (p *Parser) Outcome() *Outcome {
	out := p.outcome
	return &out
}

// Parse consumes a complete event stream and returns its outcome.
// It never fails: a read error or truncated stream simply finalizes
// whatever was accumulated, and a missing finished event leaves the
// exit code at the FailedToParse sentinel.
func Parse(r io.Reader) *Outcome {
	parser := NewParser()

	scanner := bufio.NewScanner(r)
	// Progress events can carry large stderr chunks
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		parser.FeedLine(scanner.Bytes())
		if parser.Corrupt() {
			break
		}
	}

	return parser.Outcome()
}

// ParseFile parses the event log at path and deletes it afterwards.
// The delete is best effort; failures are logged, not escalated.
func ParseFile(path string, logger Logger) *Outcome {
	file, err := os.Open(path)
	if err != nil {
		return &Outcome{
			ExitCode:      FailedToParse,
			ErrorMessages: []string{fmt.Sprintf("unable to read build event log: %v", err)},
		}
	}

	outcome := Parse(file)
	_ = file.Close()

	if err := os.Remove(path); err != nil && logger != nil {
		logger.Debug("Failed to delete event log %s: %v", path, err)
	}

	return outcome
}
