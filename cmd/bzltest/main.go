package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zk/bzltest/internal/bep"
	"github.com/zk/bzltest/internal/config"
	"github.com/zk/bzltest/internal/junit"
	"github.com/zk/bzltest/internal/logger"
	"github.com/zk/bzltest/internal/orchestrator"
	"github.com/zk/bzltest/internal/runner"
	"github.com/zk/bzltest/internal/testtree"
)

var (
	version = "0.0.1"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var (
		coverageFlag bool
		benchFlag    bool
		runFlag      bool
		filterNames  []string
		workspace    string
	)

	rootCmd := &cobra.Command{
		Use:   "bzltest [targets]",
		Short: "Run Bazel tests and correlate their results",
		Long: `bzltest runs a Bazel test invocation, consumes its build event stream,
and correlates per-target XML reports back to individual test cases.

Examples:
  bzltest //foo/bar:bar_test              # Run one test target
  bzltest --filter TestParse //foo/...    # Filter to a single test
  bzltest --coverage //foo/bar:bar_test   # Collect line coverage`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent := runner.IntentTest
			switch {
			case benchFlag:
				intent = runner.IntentBenchmark
			case runFlag:
				intent = runner.IntentRun
			}
			exitCode := run(workspace, intent, coverageFlag, filterNames, args)
			os.Exit(exitCode)
			return nil
		},
	}

	rootCmd.Flags().BoolVar(&coverageFlag, "coverage", false, "collect line coverage")
	rootCmd.Flags().BoolVar(&benchFlag, "bench", false, "run benchmarks instead of tests")
	rootCmd.Flags().BoolVar(&runFlag, "run", false, "run the target instead of testing it")
	rootCmd.Flags().StringArrayVar(&filterNames, "filter", nil, "test name to run (repeatable, supports Suite/Method and Test/subtest)")
	rootCmd.Flags().StringVar(&workspace, "workspace", ".", "Bazel workspace root")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run executes one invocation and returns the process exit code
func run(workspace string, intent runner.Intent, withCoverage bool, filterNames, targets []string) int {
	fileLogger, err := logger.NewFileLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create debug logger: %v\n", err)
		return 1
	}
	defer func() { _ = fileLogger.Close() }()

	settings, err := config.Load(workspace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	orch, err := orchestrator.New(orchestrator.Config{
		WorkspaceRoot: workspace,
		Runner:        runner.NewExecRunner(fileLogger),
		Tree:          testtree.NewTree(),
		Logger:        fileLogger,
		Settings:      settings,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create orchestrator: %v\n", err)
		return 1
	}

	// Cancel the run (and the bazel process tree) on Ctrl-C
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Without a source scan the tree is empty: events fall through to
	// not-found and the printer reports them flat.
	printer := &consolePrinter{}
	result, err := orch.Run(ctx, orchestrator.Request{
		Intent:   intent,
		Targets:  targets,
		Channel:  "console",
		Consumer: printer,
		Stream:   true,
		Coverage: withCoverage || settings.Coverage,
		Stdout:   func(line string) { fmt.Println(line) },
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		return 1
	}

	reportFailures(os.Stderr, result)

	if result.Coverage != nil {
		fmt.Println()
		for _, pkg := range result.Coverage.Packages {
			fmt.Printf("coverage %s: %d/%d lines (%.1f%%)\n",
				pkg.Name, pkg.Hits, pkg.Lines, pkg.Percent())
		}
	}

	printer.printSummary()

	if result.Outcome.ExitCode == bep.Success {
		return 0
	}
	return 1
}

// reportFailures writes the build's error messages, the run's
// diagnostics (unreadable reports, env file problems), and the
// remediation hint to w
func reportFailures(w io.Writer, result *orchestrator.Result) {
	for _, msg := range result.Outcome.ErrorMessages {
		fmt.Fprintln(w, msg)
	}
	for _, diag := range result.Diagnostics {
		fmt.Fprintln(w, diag)
	}
	if result.Message != "" {
		fmt.Fprintf(w, "\n%s\n", result.Message)
	}
}

// consolePrinter is a minimal Consumer that prints terminal events
type consolePrinter struct {
	passed  int
	failed  int
	skipped int
}

func (p *consolePrinter) Event(node *testtree.Node, event junit.TestEvent) {
	name := event.Test
	if node != nil {
		name = node.Label
	}
	switch event.Action {
	case junit.ActionPass:
		p.passed++
		fmt.Printf("PASS %s (%.2fs)\n", name, event.Elapsed)
	case junit.ActionFail, junit.ActionErrored:
		p.failed++
		fmt.Printf("FAIL %s (%.2fs)\n", name, event.Elapsed)
	case junit.ActionSkip:
		p.skipped++
		fmt.Printf("SKIP %s\n", name)
	case junit.ActionOutput:
		fmt.Printf("     %s\n", strings.TrimRight(event.Output, "\n"))
	}
}

func (p *consolePrinter) Incomplete(node *testtree.Node) {
	fmt.Printf("???? %s (incomplete)\n", node.Label)
}

func (p *consolePrinter) printSummary() {
	total := p.passed + p.failed + p.skipped
	if total == 0 {
		return
	}
	fmt.Println()
	if p.skipped > 0 {
		fmt.Printf("Results: %d passed, %d failed, %d skipped, %d total\n",
			p.passed, p.failed, p.skipped, total)
	} else {
		fmt.Printf("Results: %d passed, %d failed, %d total\n", p.passed, p.failed, total)
	}
}
