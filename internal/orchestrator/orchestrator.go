package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/zk/bzltest/internal/bep"
	"github.com/zk/bzltest/internal/config"
	"github.com/zk/bzltest/internal/coverage"
	"github.com/zk/bzltest/internal/junit"
	"github.com/zk/bzltest/internal/runner"
	"github.com/zk/bzltest/internal/testtree"
)

// Logger interface for logging
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Consumer receives resolved test outcomes. Implemented by the UI
// layer; the orchestrator only locates the node each event belongs to.
type Consumer interface {
	// Event delivers one test lifecycle event with its resolved node
	Event(node *testtree.Node, event junit.TestEvent)
	// Incomplete marks a requested test that never reached a terminal
	// event, so it is not silently left in a running state
	Incomplete(node *testtree.Node)
}

// Config holds orchestrator dependencies
type Config struct {
	WorkspaceRoot string
	BazelPath     string // Defaults to "bazel"
	Runner        runner.Runner
	Tree          *testtree.Tree
	Logger        Logger
	Settings      config.Config
}

// Orchestrator composes the pipeline: build the command line, spawn,
// stream output through the event parser, convert per-target reports,
// resolve test identities, and aggregate coverage.
type Orchestrator struct {
	workspaceRoot string
	bazelPath     string
	runner        runner.Runner
	tree          *testtree.Tree
	logger        Logger
	settings      config.Config

	mu       sync.Mutex
	inflight map[string]*runToken
}

// runToken identifies one in-flight run on an output channel
type runToken struct {
	cancel context.CancelFunc
}

// Request describes one run
type Request struct {
	Intent  runner.Intent
	Targets []string
	// Tests are the requested test nodes; their names become the test
	// filter and they are the set marked incomplete on early exits.
	Tests []*testtree.Node
	// Channel names the output resource this run occupies. At most one
	// live external process per channel; a new run cancels the
	// previous one sharing its channel.
	Channel  string
	Consumer Consumer
	// Stdout receives the process's stdout lines (UI concern)
	Stdout runner.LineSink
	// Stream parses the event log incrementally while Bazel writes it
	Stream   bool
	Coverage bool
	// Remap translates generated file paths back to authored sources
	Remap func(path string) (string, bool)
}

// Result is the outcome of one run
type Result struct {
	Outcome     *bep.Outcome
	Message     string // User-facing remediation, empty on success
	Coverage    *coverage.Result
	Diagnostics []string
}

// New creates an orchestrator
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Tree == nil {
		cfg.Tree = testtree.NewTree()
	}
	if cfg.BazelPath == "" {
		cfg.BazelPath = "bazel"
	}

	return &Orchestrator{
		workspaceRoot: cfg.WorkspaceRoot,
		bazelPath:     cfg.BazelPath,
		runner:        cfg.Runner,
		tree:          cfg.Tree,
		logger:        cfg.Logger,
		settings:      cfg.Settings,
		inflight:      make(map[string]*runToken),
	}, nil
}

// Tree returns the live test identity tree
func (o *Orchestrator) Tree() *testtree.Tree {
	return o.tree
}

// Run executes one test invocation end to end. It returns an error
// only for spawn failures and cancellation; everything downstream of a
// started process degrades into diagnostics on the Result instead.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	token := &runToken{cancel: cancel}
	o.acquireChannel(req.Channel, token)
	defer o.releaseChannel(req.Channel, token)

	// Stale subtests from a previous parameterization must not linger
	for _, n := range req.Tests {
		o.tree.PruneDynamicSubtests(n)
	}

	intent := req.Intent
	if req.Coverage && intent == runner.IntentTest {
		intent = runner.IntentCoverage
	}

	eventLog := filepath.Join(os.TempDir(), fmt.Sprintf("bzltest-bep-%s.json", uuid.NewString()))

	names := make([]string, 0, len(req.Tests))
	for _, n := range req.Tests {
		names = append(names, o.tree.FormatFilterName(n.Name, n))
	}

	env, envDiags := o.mergeEnv()

	args := runner.BuildArgs(runner.Request{
		Intent:       intent,
		EventLogPath: eventLog,
		Targets:      req.Targets,
		TestNames:    names,
		Env:          env,
		Flags:        o.settings.Flags,
		DebugPort:    o.settings.DebugPort,
	})
	o.logger.Debug("Executing: %s %v", o.bazelPath, args)

	var tailer *bep.Tailer
	if req.Stream {
		t, err := bep.NewTailer(eventLog, o.logger)
		if err != nil {
			o.logger.Warn("Event log tailing unavailable, parsing after exit: %v", err)
		} else if err := t.Start(); err != nil {
			o.logger.Warn("Event log tailing unavailable, parsing after exit: %v", err)
			_ = t.Finish()
		} else {
			tailer = t
		}
	}

	collector := &bep.ErrorCollector{}
	stdout := req.Stdout
	if stdout == nil {
		stdout = func(line string) { o.logger.Debug("stdout: %s", line) }
	}

	exit, runErr := o.runner.Run(ctx, runner.Spec{
		Command: o.bazelPath,
		Args:    args,
		Dir:     o.workspaceRoot,
		Env:     env,
		Stdout:  stdout,
		Stderr:  func(line string) { collector.Collect(line) },
	})
	o.logger.Debug("Process exited with code %d", exit)

	var outcome *bep.Outcome
	if tailer != nil {
		outcome = tailer.Finish()
	} else {
		outcome = bep.ParseFile(eventLog, o.logger)
	}

	result := &Result{
		Outcome:     outcome,
		Message:     RemediationMessage(outcome.ExitCode),
		Diagnostics: append(envDiags, collector.Messages()...),
	}

	if runErr != nil {
		if ctx.Err() != nil {
			// Cancelled: partial output already streamed is preserved,
			// nothing is synthesized for the cancelled portion.
			result.Message = "run was cancelled"
			return result, runErr
		}
		return result, fmt.Errorf("failed to run %s: %w", o.bazelPath, runErr)
	}

	if req.Consumer != nil {
		o.deliverOutcomes(req, outcome, result)
	}

	if (req.Coverage || intent == runner.IntentCoverage) &&
		outcome.ExitCode == bep.Success && outcome.ExecutionRoot != "" {
		o.aggregateCoverage(req, outcome, result)
	}

	return result, nil
}

// deliverOutcomes converts every discovered report, resolves each
// event's test identity, and feeds the consumer. A missing or
// malformed report skips that artifact only.
func (o *Orchestrator) deliverOutcomes(req Request, outcome *bep.Outcome, result *Result) {
	completed := make(map[string]bool)

	var artifactErrs error
	for _, path := range outcome.TestReportPaths {
		doc, err := junit.ParseFile(path)
		if err != nil {
			artifactErrs = multierr.Append(artifactErrs, fmt.Errorf("%s: %w", path, err))
			continue
		}

		for _, event := range junit.Convert(doc) {
			node, ok := o.tree.Resolve(event.Test)
			if !ok {
				// Renamed or removed test; skip enrichment for this event
				o.logger.Debug("No test identity for %q", event.Test)
				continue
			}
			req.Consumer.Event(node, event)
			if event.Action != junit.ActionOutput {
				completed[node.ID] = true
			}
		}
	}
	for _, err := range multierr.Errors(artifactErrs) {
		result.Diagnostics = append(result.Diagnostics, err.Error())
	}

	// Tests still pending after a failed or interrupted run get an
	// explicit incomplete state instead of staying "running" forever
	if outcome.ExitCode != bep.Success {
		for _, n := range req.Tests {
			if !completed[n.ID] {
				req.Consumer.Incomplete(n)
			}
		}
	}
}

// aggregateCoverage loads the combined report and builds the rollup
func (o *Orchestrator) aggregateCoverage(req Request, outcome *bep.Outcome, result *Result) {
	reportPath := filepath.Join(outcome.ExecutionRoot, "bazel-out", "_coverage_report.dat")
	records, err := coverage.ParseLCOVFile(reportPath)
	if err != nil {
		result.Diagnostics = append(result.Diagnostics,
			fmt.Sprintf("coverage report unavailable: %v", err))
		return
	}

	workspace := outcome.WorkspaceDirectory
	if workspace == "" {
		workspace = o.workspaceRoot
	}

	result.Coverage = coverage.Aggregate(records, coverage.Config{
		WorkspaceRoot:   workspace,
		ModuleRoot:      o.workspaceRoot,
		Packages:        PackagesFromTargets(req.Targets),
		GeneratedPrefix: outcome.GeneratedFileRoot,
		Remap:           req.Remap,
	})
}

// mergeEnv combines the configured env map with the env file, file
// entries losing to explicit keys. Env file problems degrade to a
// diagnostic.
func (o *Orchestrator) mergeEnv() (map[string]string, []string) {
	merged := make(map[string]string)
	var diags []string

	if o.settings.EnvFile != "" {
		fileEnv, err := config.LoadEnvFile(o.settings.EnvFile)
		if err != nil {
			diags = append(diags, fmt.Sprintf("env file ignored: %v", err))
		} else {
			for k, v := range fileEnv {
				merged[k] = v
			}
		}
	}
	for k, v := range o.settings.Env {
		merged[k] = v
	}

	return merged, diags
}

// acquireChannel requests cancellation of any in-flight run sharing
// the channel, then registers this run as its occupant
func (o *Orchestrator) acquireChannel(channel string, token *runToken) {
	if channel == "" {
		channel = "default"
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if prev, ok := o.inflight[channel]; ok {
		prev.cancel()
	}
	o.inflight[channel] = token
}

// releaseChannel removes this run's registration unless a newer run
// already took the channel over
func (o *Orchestrator) releaseChannel(channel string, token *runToken) {
	if channel == "" {
		channel = "default"
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.inflight[channel] == token {
		delete(o.inflight, channel)
	}
}

// RemediationMessage maps an exit class to a user-facing hint
func RemediationMessage(code bep.ExitCode) string {
	switch code {
	case bep.Success:
		return ""
	case bep.BuildFailed:
		return "build failed before tests could run; see the reported errors"
	case bep.CommandLineProblem:
		return "bazel rejected the command line; check the configured passthrough flags"
	case bep.TestFailed:
		return "some tests failed"
	case bep.Interrupted:
		return "the run was interrupted before completing"
	case bep.FailedToParse:
		return "the build produced no readable event stream"
	default:
		return "bazel exited abnormally"
	}
}

// PackagesFromTargets derives the in-scope package directories from
// Bazel target labels ("//pkg/path:target" -> "pkg/path"). Wildcard
// segments are skipped; coverage scoping wants exact packages only.
func PackagesFromTargets(targets []string) []string {
	var packages []string
	seen := make(map[string]bool)

	for _, target := range targets {
		label := strings.TrimPrefix(target, "//")
		if i := strings.Index(label, ":"); i >= 0 {
			label = label[:i]
		}
		if label == "" || strings.Contains(label, "...") || seen[label] {
			continue
		}
		seen[label] = true
		packages = append(packages, label)
	}

	return packages
}
